package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/usergate/usergate/internal/metrics"
	"github.com/usergate/usergate/internal/middleware"
)

// RouterConfig collects everything the router wires together.
type RouterConfig struct {
	Logger        *slog.Logger
	Handler       *Handler
	Health        *HealthHandler
	Users         *UserHandler
	Metrics       *MetricsHandler
	Authenticator middleware.Authenticator
	Recorder      metrics.Recorder

	CORS           middleware.CORSConfig
	Security       middleware.SecurityConfig
	MaxRequestBody int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.MaxRequestBody > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxRequestBody))
	}

	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}
	r.Get("/", cfg.Handler.Hello)

	guard := middleware.Auth(middleware.AuthConfig{
		Logger:        cfg.Logger,
		Authenticator: cfg.Authenticator,
		Metrics:       cfg.Recorder,
	})

	r.Route("/users", func(r chi.Router) {
		r.With(middleware.RequireJSON).Post("/register", cfg.Users.Register)
		r.With(middleware.RequireJSON).Post("/login", cfg.Users.Login)

		r.Group(func(r chi.Router) {
			r.Use(guard)
			r.Get("/profile", cfg.Users.Profile)
			r.Post("/logout", cfg.Users.Logout)
		})
	})

	r.NotFound(cfg.Handler.NotFound)
	r.MethodNotAllowed(cfg.Handler.MethodNotAllowed)

	return r
}
