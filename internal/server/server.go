// Package server provides the HTTP API for evaluation, fusion, chunking,
// comparison, and run history.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ragbench/rag-bench/internal/bus"
	"github.com/ragbench/rag-bench/internal/config"
	"github.com/ragbench/rag-bench/internal/evaluation"
	"github.com/ragbench/rag-bench/internal/pkg/logger"
	"github.com/ragbench/rag-bench/internal/pkg/middleware"
	"github.com/ragbench/rag-bench/internal/retrieval/fusion"
	"github.com/ragbench/rag-bench/internal/runner"
	"github.com/ragbench/rag-bench/internal/store"
)

// Server is the HTTP server that wires the evaluation services together.
type Server struct {
	cfg        *config.Config
	version    string
	log        *logger.Logger
	httpServer *http.Server

	bus      bus.Bus
	store    *store.RunStore
	registry *evaluation.Registry
	fuser    *fusion.Fuser
	runner   *runner.Runner

	handler *Handler

	mu      sync.RWMutex
	started bool
}

// New creates a server from the application config. runStore may be nil when
// run history persistence is not configured; history endpoints then return
// service-unavailable.
func New(cfg *config.Config, version string, runStore *store.RunStore, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Default()
	}

	eventBus, err := bus.NewBus(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("creating event bus: %w", err)
	}

	registry := evaluation.NewRegistry(evaluation.RegistryConfig{
		Ks:    cfg.Eval.Ks,
		BleuN: cfg.Eval.BleuN,
	})

	fuser, err := fusion.NewFuser(cfg.Eval.RRFK)
	if err != nil {
		return nil, fmt.Errorf("creating fuser: %w", err)
	}

	run, err := runner.New(runner.Config{
		TopK:         cfg.Eval.TopK,
		Workers:      cfg.Eval.Workers,
		RetrieveRate: cfg.Eval.RetrieveRate,
	}, registry, fuser, eventBus, log)
	if err != nil {
		return nil, fmt.Errorf("creating runner: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		version:  version,
		log:      log,
		bus:      eventBus,
		store:    runStore,
		registry: registry,
		fuser:    fuser,
		runner:   run,
	}
	s.handler = NewHandler(s.runner, s.registry, s.fuser, s.store, cfg, version)

	return s, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.cfg.Address(),
		Handler:      s.buildHandler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	s.log.Info("starting HTTP server", "addr", s.cfg.Address())
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP shutdown error", "error", err)
	}

	if s.store != nil {
		s.store.Close()
	}
	if s.bus != nil {
		s.bus.Close()
	}

	s.started = false
	s.log.Info("server stopped")

	return nil
}

// buildHandler assembles routes and the middleware chain.
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	s.handler.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.APIKeyAuth(s.cfg.Security.APIKey)(handler)

	if s.cfg.Security.RateLimit > 0 {
		rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			RequestsPerSecond: float64(s.cfg.Security.RateLimit),
			Burst:             s.cfg.Security.RateLimit * 2,
			CleanupInterval:   time.Minute,
		})
		handler = rl.Middleware(handler)
	}

	return s.withLogging(handler)
}

func (s *Server) withLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		handler.ServeHTTP(wrapped, r)

		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Health reports whether the server is running.
func (s *Server) Health() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
