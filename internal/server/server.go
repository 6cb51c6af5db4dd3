// Package server provides the ipocket HTTP server.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ipocket/ipocket/internal/inventory"
	"github.com/ipocket/ipocket/internal/version"
)

// ReadinessChecker verifies that the server is ready to serve traffic.
// Returns nil if ready, an error describing why not otherwise.
type ReadinessChecker func(ctx context.Context) error

// RouteRegistrar registers a feature module's routes on the server mux
// (consumer-side interface, implemented by each module's Handler).
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Options configures the HTTP server.
type Options struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the ipocket HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
}

// operational endpoints skip logging and rate limiting
var opsPaths = []string{"/healthz", "/readyz", "/metrics"}

// New creates a Server with the standard middleware chain and mounts the
// given module routes. The authn middleware is optional; pass nil to serve
// an unauthenticated API. The inventory store, when non-nil, feeds the
// Prometheus inventory gauges on /metrics.
func New(opts Options, logger *zap.Logger, ready ReadinessChecker,
	authn Middleware, inv *inventory.Store, routes ...RouteRegistrar) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
		ready:  ready,
	}

	s.registerRoutes()
	for _, r := range routes {
		r.RegisterRoutes(mux)
	}
	if inv != nil {
		// Duplicate registration only happens in tests building several
		// servers in one process; keep it non-fatal.
		if err := prometheus.Register(newInventoryCollector(inv, logger)); err != nil {
			logger.Warn("inventory metrics registration failed", zap.Error(err))
		}
	}

	rps := opts.RateLimitRPS
	if rps <= 0 {
		rps = 100
	}
	burst := opts.RateLimitBurst
	if burst <= 0 {
		burst = 200
	}

	// Middleware chain: outermost listed first.
	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggingMiddleware(logger, opsPaths),
		SecurityHeadersMiddleware,
		VersionHeaderMiddleware,
		RateLimitMiddleware(rps, burst, opsPaths),
	}
	if authn != nil {
		middlewares = append(middlewares, authn)
	}

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      Chain(mux, middlewares...),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// registerRoutes sets up the operational endpoints.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// handleHealthz is a liveness probe -- returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

// handleReadyz checks readiness -- returns 200 if the server can serve traffic.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// handleHealth returns service identity and build metadata.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"service": "ipocket",
		"version": version.Map(),
	})
}
