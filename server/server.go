package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/verist/marketbrief/pkg/domain"
)

// Server represents HTTP server instance
type Server struct {
	config   ConfigProvider
	pipeline Pipeline
	runner   Runner
	store    Store // may be nil
	cache    CacheStats
	version  string
	debug    bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Pipeline exposes the latest run outcome and collector health
type Pipeline interface {
	LastResult() *domain.PipelineResult
	CollectorStatuses() map[string]domain.CollectorStatus
}

// Runner triggers on-demand pipeline runs
type Runner interface {
	RunNow(ctx context.Context, window time.Duration) (domain.PipelineResult, error)
}

// Store reads persisted run history
type Store interface {
	ListResults(ctx context.Context, limit int) ([]domain.PipelineResult, error)
}

// CacheStats reports search cache occupancy
type CacheStats interface {
	CacheSize() int
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// New initializes a new server instance; store and cache may be nil
func New(cfg ConfigProvider, pipeline Pipeline, runner Runner, store Store, cache CacheStats, version string, debug bool) *Server {
	s := &Server{
		config:   cfg,
		pipeline: pipeline,
		runner:   runner,
		store:    store,
		cache:    cache,
		version:  version,
		debug:    debug,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("marketbrief", "verist", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /results/last", s.lastResultHandler)
		r.HandleFunc("GET /results", s.listResultsHandler)
		r.HandleFunc("POST /run", s.runHandler)
	})
}

// statusHandler returns server status, collector health and last run summary
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":     "ok",
		"version":    s.version,
		"time":       time.Now().UTC(),
		"collectors": s.pipeline.CollectorStatuses(),
	}
	if s.cache != nil {
		status["search_cache_size"] = s.cache.CacheSize()
	}
	if last := s.pipeline.LastResult(); last != nil {
		status["last_run"] = map[string]interface{}{
			"success":    last.Success,
			"error":      last.Error,
			"collected":  last.Collected,
			"analyzed":   last.Analyzed,
			"ranked":     last.Ranked,
			"translated": last.Translated,
			"elapsed":    last.Elapsed.String(),
			"timestamp":  last.Timestamp,
		}
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// lastResultHandler returns the full latest run result
func (s *Server) lastResultHandler(w http.ResponseWriter, r *http.Request) {
	last := s.pipeline.LastResult()
	if last == nil {
		RenderError(w, r, fmt.Errorf("no runs recorded yet"), http.StatusNotFound)
		return
	}
	RenderJSON(w, r, http.StatusOK, last)
}

// listResultsHandler returns persisted run history, newest first
func (s *Server) listResultsHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		RenderError(w, r, fmt.Errorf("run history not available"), http.StatusNotFound)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			RenderError(w, r, fmt.Errorf("invalid limit %q", v), http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	results, err := s.store.ListResults(r.Context(), limit)
	if err != nil {
		lgr.Printf("[ERROR] failed to list run results: %v", err)
		RenderError(w, r, fmt.Errorf("failed to list results"), http.StatusInternalServerError)
		return
	}
	RenderJSON(w, r, http.StatusOK, results)
}

// runHandler triggers an immediate pipeline run and returns its result
func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	window := time.Duration(0)
	if v := r.URL.Query().Get("window"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			RenderError(w, r, fmt.Errorf("invalid window %q", v), http.StatusBadRequest)
			return
		}
		window = parsed
	}

	result, err := s.runner.RunNow(r.Context(), window)
	if err != nil {
		RenderError(w, r, err, http.StatusConflict)
		return
	}
	RenderJSON(w, r, http.StatusOK, result)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
