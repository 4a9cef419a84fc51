// Package server implements the racksizer HTTP API.
//
// # Routes
//
//	GET  /api/health              liveness and catalog size
//	GET  /api/configs             configuration catalog
//	GET  /api/configs/{key}       one configuration record
//	POST /api/solve               solve one configuration, stores a run
//	POST /api/compare             solve and rank configurations
//	POST /api/export              CAD blocks for a footprint
//	GET  /api/runs/{id}           a stored run
//	GET  /api/runs/{id}/export    CAD blocks of a stored run
//	GET  /metrics                 Prometheus metrics
//
// Errors are returned as {"error":{"code":...,"message":...}} with the HTTP
// status derived from the error code.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/racksizer/pkg/catalog"
	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/observability"
	"github.com/matzehuels/racksizer/pkg/pipeline"
	"github.com/matzehuels/racksizer/pkg/session"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// CatalogSource provides the current configuration catalog.
// [catalog.Watcher] implements it.
type CatalogSource interface {
	Catalog() *catalog.Catalog
}

type staticCatalog struct{ cat *catalog.Catalog }

func (s staticCatalog) Catalog() *catalog.Catalog { return s.cat }

// StaticCatalog serves cat for the lifetime of the server.
func StaticCatalog(cat *catalog.Catalog) CatalogSource {
	return staticCatalog{cat: cat}
}

// Deps are the collaborators of a Server.
type Deps struct {
	Runner  *pipeline.Runner
	Catalog CatalogSource
	Runs    session.Store
	RunTTL  time.Duration
	Logger  *log.Logger
	// Gatherer backs /metrics. Nil leaves the route out.
	Gatherer prometheus.Gatherer
	// Timeout bounds every solve, compare and export request. Zero means none.
	Timeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	runner  *pipeline.Runner
	catalog CatalogSource
	runs    session.Store
	runTTL  time.Duration
	logger  *log.Logger
	timeout time.Duration
	router  chi.Router
}

// New creates a server. Missing dependencies get defaults: an uncached
// runner, the built-in catalog and an in-memory run store.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.Runner == nil {
		d.Runner = pipeline.NewRunner(nil, nil, d.Logger)
	}
	if d.Catalog == nil {
		d.Catalog = StaticCatalog(catalog.Default())
	}
	if d.Runs == nil {
		d.Runs = session.NewMemoryStore()
	}
	if d.RunTTL <= 0 {
		d.RunTTL = session.DefaultTTL
	}

	s := &Server{
		runner:  d.Runner,
		catalog: d.Catalog,
		runs:    d.Runs,
		runTTL:  d.RunTTL,
		logger:  d.Logger,
		timeout: d.Timeout,
	}
	s.router = s.routes(d.Gatherer)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/configs", s.handleConfigs)
		r.Get("/configs/{key}", s.handleConfig)
		r.Get("/runs/{id}", s.handleRun)

		r.Group(func(r chi.Router) {
			r.Use(s.withTimeout)
			r.Post("/solve", s.handleSolve)
			r.Post("/compare", s.handleCompare)
			r.Post("/export", s.handleExport)
			r.Get("/runs/{id}/export", s.handleRunExport)
		})
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusNotFound, errors.ErrCodeNotFound, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorBody(w, http.StatusMethodNotAllowed, errors.ErrCodeInvalidInput, r.Method+" not allowed on "+r.URL.Path)
	})
	return r
}

// observe reports every response to the HTTP hooks and the debug log.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)

		observability.HTTP().OnResponse(r.Context(), r.Method, route, status, elapsed)
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed.Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// withTimeout bounds the request context.
func (s *Server) withTimeout(next http.Handler) http.Handler {
	if s.timeout <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
