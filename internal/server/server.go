package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sundayezeilo/pinboard/internal/auth"
	"github.com/sundayezeilo/pinboard/internal/config"
	"github.com/sundayezeilo/pinboard/internal/httpx"
	"github.com/sundayezeilo/pinboard/internal/metrics"
	"github.com/sundayezeilo/pinboard/internal/pin"
	"github.com/sundayezeilo/pinboard/internal/tag"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable. *pgxpool.Pool
// satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the server's dependencies.
type Config struct {
	Server        config.ServerConfig
	Observability config.ObservabilityConfig
	Logger        *slog.Logger
	Auth          *auth.Authenticator
	Pins          *pin.Handler
	Tags          *tag.Handler
	Metrics       *metrics.Metrics // optional; nil disables /x/metrics
	DB            Pinger           // optional; checked by /x/health
}

// Server represents the HTTP server with all dependencies.
type Server struct {
	cfg    Config
	logger *slog.Logger
	router http.Handler
	server *http.Server
}

// New creates a new Server instance with its routes mounted.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		s.logger.Info("shutdown requested", "cause", context.Cause(ctx))

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("shutdown timeout exceeded, forcing close")
			return s.server.Close()
		}
		return err
	}

	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// Recovery is outermost so panics in any later middleware are caught.
	r.Use(httpx.Recovery(s.logger), httpx.RequestID, httpx.Logger(s.logger))
	if s.cfg.Metrics != nil {
		r.Use(s.cfg.Metrics.Middleware)
	}
	r.Use(httpx.CORS(s.cfg.Server.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Get("/x/health", s.healthCheckHandler)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/x/metrics", s.cfg.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.cfg.Auth.Middleware(s.logger))
		r.Route("/pins", s.cfg.Pins.Routes)
		r.Route("/tags", s.cfg.Tags.Routes)
	})

	return r
}

// healthCheckHandler reports 503 when the database cannot be reached.
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK

	if s.cfg.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := s.cfg.DB.Ping(ctx); err != nil {
			s.logger.WarnContext(ctx, "health check failed",
				"request_id", httpx.GetRequestID(ctx),
				"error", err.Error(),
			)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}

	httpx.WriteJSON(w, code, map[string]string{
		"status":  status,
		"service": s.cfg.Observability.ServiceName,
		"version": s.cfg.Observability.ServiceVersion,
	})
}
