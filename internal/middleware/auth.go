package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/metrics"
	"github.com/usergate/usergate/internal/model"
	"github.com/usergate/usergate/internal/service"
)

// TokenCookieName is the cookie that carries the session token.
const TokenCookieName = "token"

const (
	msgUnauthorized = "Unauthorized"
	msgUserNotFound = "User not found"
)

// Authenticator resolves a raw session token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, *auth.Claims, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger        *slog.Logger
	Authenticator Authenticator
	Metrics       metrics.Recorder
}

// Auth returns a middleware that authenticates requests by session token.
// The token is read from the "token" cookie, falling back to an
// "Authorization: Bearer" header. Rejected requests never reach next.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				reject(cfg, w, r, service.ReasonMissingToken, msgUnauthorized, nil)
				return
			}

			user, claims, err := cfg.Authenticator.Authenticate(r.Context(), token)
			if err != nil {
				reason := service.FailureReason(err)
				msg := msgUnauthorized
				if errors.Is(err, service.ErrUserNotFound) {
					msg = msgUserNotFound
				}
				reject(cfg, w, r, reason, msg, err)
				return
			}

			cfg.Metrics.IncAuthDecision(metrics.OutcomeAllowed, "")
			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", user.ID),
				slog.String("token_id", claims.TokenID()),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithSession(r.Context(), user, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reject(cfg AuthConfig, w http.ResponseWriter, r *http.Request, reason, msg string, err error) {
	cfg.Metrics.IncAuthDecision(metrics.OutcomeRejected, reason)

	attrs := []any{
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	}
	if reason == service.ReasonStoreError {
		cfg.Logger.Error("store error during auth", append(attrs, slog.String("error", err.Error()))...)
	} else {
		cfg.Logger.Warn("authentication failed", attrs...)
	}

	writeAuthError(w, msg)
}

// extractToken returns the session token from the cookie, then the
// Authorization header. Empty means no token was presented.
func extractToken(r *http.Request) string {
	if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
func writeAuthError(w http.ResponseWriter, message string) {
	writeJSONError(w, http.StatusUnauthorized, message)
}
