// Package server exposes the encoder over HTTP.
//
// Routes:
//
//   - POST /v1/encode: image body in, audio/wav out. Query parameters mode,
//     rate, bits, channels, vox and fskid override the configured defaults;
//     mode=auto picks the first mode the image fits. Bodies over
//     MaxImageBytes and images whose header declares more than MaxImagePixels
//     are refused with 413 before decoding.
//   - GET /v1/modes: the registered modes as JSON.
//   - GET /v1/sessions: encode requests currently streaming.
//   - GET /healthz, GET /readyz: see package health.
//   - GET /metrics: Prometheus exposition.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/slowscan/internal/config"
	"github.com/MrWong99/slowscan/internal/health"
	"github.com/MrWong99/slowscan/internal/observe"
	"github.com/MrWong99/slowscan/internal/transmit"
	"github.com/MrWong99/slowscan/pkg/sstv"
)

// Server is the HTTP encode service. Create it with [New]; it is safe for
// concurrent use.
type Server struct {
	cfg      config.ServerConfig
	reg      *sstv.Registry
	svc      *transmit.Service
	metrics  *observe.Metrics
	gatherer prometheus.Gatherer
	checkers []health.Checker

	health   *health.Handler
	sessions *sessionTable
	defaults atomic.Pointer[config.EncodeConfig]

	// slots bounds concurrent encodes; nil means unlimited.
	slots chan struct{}

	mu       sync.Mutex
	srv      *http.Server
	stopOnce sync.Once
}

// Option is a functional option for [New].
type Option func(*Server)

// WithRegistry serves modes from reg instead of [sstv.DefaultRegistry].
func WithRegistry(reg *sstv.Registry) Option {
	return func(s *Server) { s.reg = reg }
}

// WithService runs sessions through svc.
func WithService(svc *transmit.Service) Option {
	return func(s *Server) { s.svc = svc }
}

// WithMetrics records HTTP metrics into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer serves /metrics from g instead of the default Prometheus
// registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithCheckers adds readiness checks next to the built-in mode check.
func WithCheckers(c ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, c...) }
}

// New creates a Server. enc supplies the session defaults that query
// parameters override.
func New(cfg config.ServerConfig, enc config.EncodeConfig, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		reg:      sstv.DefaultRegistry(),
		gatherer: prometheus.DefaultGatherer,
		sessions: newSessionTable(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.svc == nil {
		s.svc = transmit.New(s.metrics)
	}
	if cfg.MaxConcurrent > 0 {
		s.slots = make(chan struct{}, cfg.MaxConcurrent)
	}
	s.defaults.Store(&enc)
	s.health = health.New(append([]health.Checker{health.ModesChecker(s.reg, func() string { return s.EncodeDefaults().Mode })}, s.checkers...)...)
	return s
}

// EncodeDefaults returns the session defaults currently in effect.
func (s *Server) EncodeDefaults() config.EncodeConfig {
	return *s.defaults.Load()
}

// SetEncodeDefaults replaces the session defaults. Requests already running
// keep the values they started with.
func (s *Server) SetEncodeDefaults(enc config.EncodeConfig) {
	s.defaults.Store(&enc)
	slog.Info("encode defaults updated", "mode", enc.Mode, "sample_rate", enc.SampleRate, "bits", enc.Bits)
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/encode", s.handleEncode)
	mux.HandleFunc("GET /v1/modes", s.handleModes)
	mux.HandleFunc("GET /v1/sessions", s.handleSessions)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	s.health.Register(mux)
	return observe.Middleware(s.metrics)(mux)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully within cfg.ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	slog.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx := context.Background()
	if d := s.cfg.ShutdownTimeout.Duration; d > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, d)
		defer cancel()
	}
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// ListenAndServe listens on cfg.ListenAddr and calls [Server.Serve].
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Shutdown marks the server as draining, so /readyz fails, and waits for
// running encodes to finish or ctx to expire. It is safe to call more than
// once; only the first call does any work.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		s.health.SetDraining(true)
		slog.Info("server shutting down", "active_sessions", s.sessions.len())

		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()
		if srv == nil {
			return
		}
		if err = srv.Shutdown(ctx); err != nil {
			slog.Warn("shutdown deadline exceeded", "active_sessions", s.sessions.len(), "err", err)
			_ = srv.Close()
			err = fmt.Errorf("server: shutdown: %w", err)
			return
		}
		slog.Info("shutdown complete")
	})
	return err
}
