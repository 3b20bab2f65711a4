// Package server exposes the clip pipeline over an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/metrics"
	"github.com/webclip-dev/webclip/internal/repository"
)

// Pipeline is the slice of the orchestrator the API consumes.
type Pipeline interface {
	Start(req entity.ClipRequest) (entity.Job, error)
}

// Jobs is the slice of the job state machine the API consumes.
type Jobs interface {
	Current() (entity.Job, bool)
	Cancel() (entity.Job, error)
}

// CacheInfo reports selector cache occupancy for the health endpoint.
type CacheInfo interface {
	Size(ctx context.Context) int
}

// Pinger is the database liveness check.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps are the server's collaborators. Registry is optional; when nil the
// health reply omits the format list. Metrics registry nil disables /metrics.
type Deps struct {
	Pipeline Pipeline
	Jobs     Jobs
	History  repository.HistoryStore
	Cache    CacheInfo
	DB       Pinger
	Registry *prom.Registry
}

// Config tunes the HTTP server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Server is the HTTP front of the clip service.
type Server struct {
	deps Deps
	cfg  Config
	log  *slog.Logger
	rest *http.Server
}

func New(deps Deps, cfg Config, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{deps: deps, cfg: cfg, log: logger}
	s.rest = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/clips", s.handleStartClip)
		r.Get("/clips/current", s.handleCurrentClip)
		r.Post("/clips/current/cancel", s.handleCancelClip)
		r.Get("/history", s.handleHistory)
	})
	r.Get("/healthz", s.handleHealth)
	if s.deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.HTTPHandler(s.deps.Registry))
	}
	return r
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.rest.Handler
}

// Start serves until Stop or a listener error. It blocks.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.cfg.Addr)
	err := s.rest.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests within the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.rest.Shutdown(shutdownCtx); err != nil {
		s.log.Error("http shutdown failed", "error", err)
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

// logRequests records one line per request in the service's slog format.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
