// Package main is the entrypoint for the usergate API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/cache"
	"github.com/usergate/usergate/internal/config"
	"github.com/usergate/usergate/internal/handler"
	"github.com/usergate/usergate/internal/metrics"
	"github.com/usergate/usergate/internal/middleware"
	"github.com/usergate/usergate/internal/repository"
	"github.com/usergate/usergate/internal/retry"
	"github.com/usergate/usergate/internal/server"
	"github.com/usergate/usergate/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	policy := func(component string) retry.Policy {
		return retry.Policy{
			MaxAttempts: cfg.StartupMaxAttempts,
			BaseDelay:   cfg.StartupRetryDelay,
			OnRetry: func(attempt int, delay time.Duration, err error) {
				logger.Warn("dependency not ready, retrying",
					slog.String("component", component),
					slog.Int("attempt", attempt),
					slog.Duration("delay", delay),
					slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL)),
				)
			},
		}
	}

	// User record store
	var repo *repository.Repository
	err = retry.Do(ctx, policy("postgres"), func(ctx context.Context) error {
		repo, err = repository.New(ctx, cfg.DatabaseURL, cfg.GetPoolOptions())
		return err
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if cfg.MigrateOnStart {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			repo.Close()
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	// Revocation index
	var cacheClient *cache.Cache
	err = retry.Do(ctx, policy("redis"), func(ctx context.Context) error {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		return err
	})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Metrics
	var (
		recorder        metrics.Recorder = metrics.NewNoop()
		metricsExporter *handler.MetricsHandler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder = metrics.NewCollector(reg)
		metricsExporter = handler.NewMetricsHandler(metrics.Handler(reg))
	}

	// Credentials and tokens
	hasher, err := auth.NewPasswordHasher(auth.Algorithm(cfg.PasswordAlgorithm), cfg.BcryptCost)
	if err != nil {
		logger.Error("failed to create password hasher", "error", err)
		os.Exit(1)
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	})
	if err != nil {
		logger.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}
	cfg.JWTSecret = ""

	userService, err := service.NewUserService(repo, cacheClient, hasher, tokens, cfg.GetHashConcurrency(), recorder)
	if err != nil {
		logger.Error("failed to create user service", "error", err)
		os.Exit(1)
	}

	// Router
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := handler.NewRouter(handler.RouterConfig{
		Logger:         logger,
		Handler:        handler.New("usergate", version),
		Health:         handler.NewHealthHandler(repo, cacheClient, logger),
		Users:          handler.NewUserHandler(userService, handler.CookieConfig{Secure: cfg.CookieSecure}, logger),
		Metrics:        metricsExporter,
		Authenticator:  userService,
		Recorder:       recorder,
		CORS:           corsCfg,
		Security:       middleware.SecurityConfig{HSTS: cfg.IsProduction()},
		MaxRequestBody: cfg.MaxRequestBodySize,
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
		"password_algorithm", hasher.Algorithm(),
		"token_ttl", tokens.TTL().String(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "usergate")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a connection URL.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	q := parsed.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		parsed.RawQuery = q.Encode()
	}

	return parsed.String()
}

// sanitizeError replaces every secret URL in err's message with its
// redacted form and masks password= fragments.
func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
