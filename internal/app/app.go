package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sundayezeilo/pinboard/internal/auth"
	"github.com/sundayezeilo/pinboard/internal/config"
	"github.com/sundayezeilo/pinboard/internal/db"
	"github.com/sundayezeilo/pinboard/internal/metrics"
	"github.com/sundayezeilo/pinboard/internal/pin"
	"github.com/sundayezeilo/pinboard/internal/server"
	"github.com/sundayezeilo/pinboard/internal/tag"
)

// App holds the application dependencies and configuration.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	DBPool *pgxpool.Pool
	Server *server.Server
	Auth   *auth.Authenticator
	Pins   pin.Service
	Tags   tag.Service
}

// New initializes and returns a new App instance with all dependencies wired up.
func New(ctx context.Context) (*App, error) {
	LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := NewLogger(cfg.App.LogLevel)

	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	pool, err := db.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("database schema applied")
	}

	a, err := wire(cfg, logger, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("application initialized",
		"addr", cfg.Server.Addr(),
		"metrics", cfg.Observability.MetricsEnabled,
	)
	return a, nil
}

// wire builds repositories, services, handlers and the server on top of an
// open pool.
func wire(cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool) (*App, error) {
	exec := db.NewExecutor(pool)

	tagRepo := tag.NewRepository(exec, nil)
	pinRepo := pin.NewRepository(exec, tagRepo, nil)

	tagSvc := tag.NewService(tagRepo, &tag.ServiceConfig{Logger: logger})
	pinSvc := pin.NewService(pinRepo, &pin.ServiceConfig{
		TagCleaner:      tagRepo,
		Logger:          logger,
		DefaultPageSize: cfg.Pagination.DefaultPageSize,
		MaxPageSize:     cfg.Pagination.MaxPageSize,
	})

	authn, err := auth.New(auth.Config{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.JWTIssuer,
		TokenTTL: cfg.Auth.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure auth: %w", err)
	}

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m, err = metrics.New(metrics.Config{
			Namespace: cfg.Observability.ServiceName,
			Pool:      pool,
			Labels:    prometheus.Labels{"version": cfg.Observability.ServiceVersion},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	srv := server.New(server.Config{
		Server:        cfg.Server,
		Observability: cfg.Observability,
		Logger:        logger,
		Auth:          authn,
		Pins:          pin.NewHandler(pin.HandlerConfig{Service: pinSvc, Logger: logger}),
		Tags:          tag.NewHandler(tag.HandlerConfig{Service: tagSvc, Logger: logger}),
		Metrics:       m,
		DB:            pool,
	})

	return &App{
		Config: cfg,
		Logger: logger,
		DBPool: pool,
		Server: srv,
		Auth:   authn,
		Pins:   pinSvc,
		Tags:   tagSvc,
	}, nil
}

// Start starts the application server and blocks until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting", "addr", a.Config.Server.Addr())

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown releases the database pool.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.DBPool != nil {
		a.DBPool.Close()
		a.Logger.Info("database connection closed")
	}

	return nil
}

// LoadEnv loads a .env file in development and test. Production reads the
// real environment only.
func LoadEnv() {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file found", "error", err)
		}
	}
}

// NewLogger creates a JSON logger at the given level. Unknown levels fall
// back to info.
func NewLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
