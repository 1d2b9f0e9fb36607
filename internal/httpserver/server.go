// Package httpserver exposes Vaani over HTTP: the assistant endpoint used by
// dialog clients, the WebSocket dialog bridge, health probes, and the
// Prometheus metrics endpoint.
package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaanibank/vaani/internal/config"
	"github.com/vaanibank/vaani/internal/health"
	"github.com/vaanibank/vaani/internal/observe"
	"github.com/vaanibank/vaani/internal/teller"
)

// shutdownTimeout bounds graceful shutdown once the run context is cancelled.
const shutdownTimeout = 10 * time.Second

// Server is the Vaani HTTP server. Construct with [New], run with [Start].
type Server struct {
	teller  *teller.Teller
	metrics *observe.Metrics
	health  *health.Handler
	dialog  http.Handler

	router chi.Router
	http   *http.Server
	tls    *config.TLSConfig
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics overrides the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithHealth installs a health handler with registered readiness checkers.
// Without it, /readyz reports ready unconditionally.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithDialogHandler mounts h at GET /ws/dialog. Without it, the route is
// absent and clients fall back to the plain assistant endpoint.
func WithDialogHandler(h http.Handler) Option {
	return func(s *Server) { s.dialog = h }
}

// New creates a Server listening on cfg.ListenAddr once started.
func New(cfg config.ServerConfig, t *teller.Teller, opts ...Option) *Server {
	s := &Server{
		teller: t,
		tls:    cfg.TLS,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New()
	}

	s.router = s.buildRouter()
	s.http = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(observe.Middleware(s.metrics))

	r.Post("/assistant", s.handleAssistant)
	if s.dialog != nil {
		r.Handle("/ws/dialog", s.dialog)
	}

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Handler returns the assembled router. Useful for tests with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
// A non-nil return other than on cancellation means the listener failed.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.http.Addr, "tls", s.tls != nil)
		var err error
		if s.tls != nil {
			err = s.http.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		} else {
			err = s.http.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shCtx); err != nil {
			slog.Warn("http server shutdown", "err", err)
			return err
		}
		slog.Info("http server stopped")
		return nil
	}
}
