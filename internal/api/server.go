// Package api exposes the miner over HTTP: the review endpoint, place
// resolution, operational stats, health and readiness probes, a Prometheus
// text exposition, and token-guarded admin actions.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tranmanhhung/sn111/internal/auth"
	"github.com/tranmanhhung/sn111/internal/config"
	"github.com/tranmanhhung/sn111/internal/logging"
	"github.com/tranmanhhung/sn111/internal/miner"
	"github.com/tranmanhhung/sn111/internal/predictor"
	"github.com/tranmanhhung/sn111/internal/storage"
)

// SessionPool reports browser pool capacity for the stats and readiness
// endpoints. *collector.Pool satisfies it.
type SessionPool interface {
	Size() int
	Available() int
}

// Backends bundles the subsystems the HTTP layer serves and reports on.
// Predictor, Prefetcher and Pool may be nil when the corresponding
// subsystem is disabled; the stats and readiness handlers degrade
// accordingly.
type Backends struct {
	Service    *miner.Service
	Predictor  *predictor.Predictor
	Prefetcher *miner.Prefetcher
	Pool       SessionPool
	Store      *storage.Store
}

// Server is the HTTP front end of the miner.
type Server struct {
	router     *http.ServeMux
	server     *http.Server
	addr       string
	log        *logging.Logger
	svc        *miner.Service
	predictor  *predictor.Predictor
	prefetcher *miner.Prefetcher
	pool       SessionPool
	store      *storage.Store
	guard      *auth.Guard
	metrics    *Metrics
	cfg        config.Config
	startedAt  time.Time
}

// NewServer wires the service and its backends into an HTTP server.
func NewServer(cfg config.Config, backends Backends, log *logging.Logger) *Server {
	s := &Server{
		router:     http.NewServeMux(),
		addr:       fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		log:        log,
		svc:        backends.Service,
		predictor:  backends.Predictor,
		prefetcher: backends.Prefetcher,
		pool:       backends.Pool,
		store:      backends.Store,
		guard:      auth.NewGuard(cfg.Auth),
		metrics:    NewMetrics(),
		cfg:        cfg,
		startedAt:  time.Now(),
	}

	s.registerRoutes()

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.applyMiddleware(s.router),
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
	}

	return s
}

// Start begins serving requests. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("HTTP server starting", map[string]interface{}{
		"addr": s.addr,
	})

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("HTTP server shutting down", nil)
	return s.server.Shutdown(ctx)
}

// ServeHTTP implements http.Handler so tests can drive the full
// middleware chain without a listening socket.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the router with the standard middleware chain.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = RecoveryMiddleware(s.log)(handler)
	handler = LoggingMiddleware(s.log, s.metrics)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware()(handler)
	return handler
}
