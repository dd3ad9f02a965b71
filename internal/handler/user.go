package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/middleware"
	"github.com/usergate/usergate/internal/model"
	"github.com/usergate/usergate/internal/service"
	"github.com/usergate/usergate/internal/validation"
)

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Secure bool
}

// UserHandler handles registration, login and session endpoints.
type UserHandler struct {
	svc    *service.UserService
	cookie CookieConfig
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.UserService, cookie CookieConfig, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{svc: svc, cookie: cookie, logger: logger}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// ProfileResponse wraps the authenticated user.
type ProfileResponse struct {
	User *model.User `json:"user"`
}

// ValidationResponse lists every invalid field.
type ValidationResponse struct {
	Errors []validation.FieldError `json:"errors"`
}

// Register creates an account and starts a session.
// POST /users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user registered",
		slog.String("user_id", result.User.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	h.setTokenCookie(w, result.Token, result.Claims.ExpiresAtTime())
	writeJSON(w, http.StatusCreated, AuthResponse{Token: result.Token, User: result.User})
}

// Login verifies credentials and starts a session.
// POST /users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.setTokenCookie(w, result.Token, result.Claims.ExpiresAtTime())
	writeJSON(w, http.StatusOK, AuthResponse{Token: result.Token, User: result.User})
}

// Profile returns the authenticated user.
// GET /users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProfileResponse{User: auth.MustUserFromContext(r.Context())})
}

// Logout revokes the presented token and clears the cookie.
// POST /users/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), auth.ClaimsFromContext(r.Context())); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.logger.Info("user logged out",
		slog.String("user_id", auth.UserIDFromContext(r.Context())),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	h.clearTokenCookie(w)
	writeMessage(w, http.StatusOK, "Logged out")
}

// decode reads a JSON body into dst. It writes the error response and
// returns false on failure.
func (h *UserHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// handleServiceError maps service errors to HTTP responses.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs *validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, ValidationResponse{Errors: verrs.Fields})
	case errors.Is(err, service.ErrDuplicateEmail):
		writeMessage(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrMissingSessionClaim):
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
	default:
		h.logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("user_id", auth.UserIDFromContext(r.Context())),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *UserHandler) setTokenCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(h.svc.TokenTTL().Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *UserHandler) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
