package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/metrics"
	"github.com/usergate/usergate/internal/model"
	"github.com/usergate/usergate/internal/service"
)

// stubAuthenticator returns a fixed result and records the tokens it saw.
type stubAuthenticator struct {
	user   *model.User
	claims *auth.Claims
	err    error
	seen   []string
}

func (s *stubAuthenticator) Authenticate(_ context.Context, token string) (*model.User, *auth.Claims, error) {
	s.seen = append(s.seen, token)
	if s.err != nil {
		return nil, nil, s.err
	}
	return s.user, s.claims, nil
}

func newGuardedHandler(a Authenticator, rec metrics.Recorder, logBuf *bytes.Buffer) (http.Handler, *bool) {
	called := false
	logger := slog.New(slog.NewJSONHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user := auth.UserFromContext(r.Context())
		_, _ = w.Write([]byte(user.ID))
	})
	return Auth(AuthConfig{Logger: logger, Authenticator: a, Metrics: rec})(next), &called
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Message
}

func testClaims() *auth.Claims {
	c := &auth.Claims{}
	c.Subject = "user-1"
	c.ID = "jti-1"
	return c
}

func TestAuth_NoTokenRejectsBeforeLookup(t *testing.T) {
	t.Parallel()

	stub := &stubAuthenticator{}
	rec := metrics.NewInMemory()
	var logs bytes.Buffer
	h, called := newGuardedHandler(stub, rec, &logs)

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if msg := decodeMessage(t, w); msg != "Unauthorized" {
		t.Errorf("message = %q, want Unauthorized", msg)
	}
	if *called {
		t.Error("downstream handler must not run")
	}
	if len(stub.seen) != 0 {
		t.Error("authenticator must not be called without a token")
	}
	if got := rec.Snapshot().AuthDecisions["rejected:missing_token"]; got != 1 {
		t.Errorf("rejected:missing_token = %d, want 1", got)
	}
	if !strings.Contains(logs.String(), `"reason":"missing_token"`) {
		t.Errorf("log should carry reason, got %s", logs.String())
	}
}

func TestAuth_CookieTakesPriorityOverHeader(t *testing.T) {
	t.Parallel()

	stub := &stubAuthenticator{user: &model.User{ID: "user-1"}, claims: testClaims()}
	var logs bytes.Buffer
	h, called := newGuardedHandler(stub, nil, &logs)

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !*called {
		t.Fatal("downstream handler should run")
	}
	if len(stub.seen) != 1 || stub.seen[0] != "cookie-token" {
		t.Errorf("authenticator saw %v, want [cookie-token]", stub.seen)
	}
	if w.Body.String() != "user-1" {
		t.Errorf("context user = %q, want user-1", w.Body.String())
	}
}

func TestAuth_BearerHeader(t *testing.T) {
	t.Parallel()

	stub := &stubAuthenticator{user: &model.User{ID: "user-1"}, claims: testClaims()}
	var logs bytes.Buffer
	h, _ := newGuardedHandler(stub, nil, &logs)

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(stub.seen) != 1 || stub.seen[0] != "header-token" {
		t.Errorf("authenticator saw %v, want [header-token]", stub.seen)
	}
}

func TestAuth_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantMsg    string
		wantReason string
	}{
		{
			name:       "invalid token",
			err:        errors.Join(service.ErrUnauthorized, auth.ErrInvalidToken),
			wantMsg:    "Unauthorized",
			wantReason: service.ReasonInvalidToken,
		},
		{
			name:       "expired token",
			err:        errors.Join(service.ErrUnauthorized, auth.ErrTokenExpired),
			wantMsg:    "Unauthorized",
			wantReason: service.ReasonExpiredToken,
		},
		{
			name:       "revoked token",
			err:        errors.Join(service.ErrUnauthorized, service.ErrTokenRevoked),
			wantMsg:    "Unauthorized",
			wantReason: service.ReasonRevokedToken,
		},
		{
			name:       "user not found",
			err:        service.ErrUserNotFound,
			wantMsg:    "User not found",
			wantReason: service.ReasonUserNotFound,
		},
		{
			name:       "store error fails closed",
			err:        errors.New("redis: connection refused"),
			wantMsg:    "Unauthorized",
			wantReason: service.ReasonStoreError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stub := &stubAuthenticator{err: tt.err}
			rec := metrics.NewInMemory()
			var logs bytes.Buffer
			h, called := newGuardedHandler(stub, rec, &logs)

			req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
			req.Header.Set("Authorization", "Bearer some-token")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if msg := decodeMessage(t, w); msg != tt.wantMsg {
				t.Errorf("message = %q, want %q", msg, tt.wantMsg)
			}
			if *called {
				t.Error("downstream handler must not run")
			}
			if got := rec.Snapshot().AuthDecisions["rejected:"+tt.wantReason]; got != 1 {
				t.Errorf("rejected:%s = %d, want 1", tt.wantReason, got)
			}
			if strings.Contains(logs.String(), "some-token") {
				t.Error("token must not be logged")
			}
		})
	}
}

func TestAuth_IssuedTokenNotLogged(t *testing.T) {
	t.Parallel()

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: "0123456789abcdef0123456789abcdef",
		TTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	token, claims, err := issuer.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	stub := &stubAuthenticator{user: &model.User{ID: "user-42"}, claims: claims}
	var logs bytes.Buffer
	h, _ := newGuardedHandler(stub, nil, &logs)

	req := httptest.NewRequest(http.MethodGet, "/users/profile", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if strings.Contains(logs.String(), token) {
		t.Error("token must not be logged on success")
	}
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{"none", "", "", ""},
		{"cookie", "abc", "", "abc"},
		{"bearer", "", "Bearer xyz", "xyz"},
		{"bearer with spaces", "", "Bearer  xyz ", "xyz"},
		{"basic scheme ignored", "", "Basic dXNlcjpwYXNz", ""},
		{"lowercase bearer ignored", "", "bearer xyz", ""},
		{"empty cookie falls back", "", "Bearer xyz", "xyz"},
		{"cookie wins", "abc", "Bearer xyz", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			if got := extractToken(req); got != tt.want {
				t.Errorf("extractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
