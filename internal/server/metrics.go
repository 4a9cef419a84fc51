package server

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matzehuels/racksizer/pkg/observability"
)

// Metrics implements the observability hooks on Prometheus collectors.
type Metrics struct {
	solverRuns     *prometheus.CounterVec
	solverSteps    *prometheus.CounterVec
	solverDuration prometheus.Histogram
	compareRuns    prometheus.Counter
	compareExcl    prometheus.Counter
	cacheEvents    *prometheus.CounterVec
	cacheBytes     prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		solverRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "racksizer_solver_runs_total",
			Help: "Solver runs by outcome; failed runs are counted as error.",
		}, []string{"outcome"}),
		solverSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "racksizer_solver_steps_total",
			Help: "Footprints evaluated by the solver, by phase.",
		}, []string{"phase"}),
		solverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "racksizer_solver_duration_seconds",
			Help:    "Wall time of one solver run.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		compareRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racksizer_compare_runs_total",
			Help: "Completed comparison sweeps.",
		}),
		compareExcl: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racksizer_compare_excluded_total",
			Help: "Configurations left out of a comparison for lack of a solution.",
		}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "racksizer_cache_events_total",
			Help: "Result cache events by stage and event (hit, miss, set).",
		}, []string{"kind", "event"}),
		cacheBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "racksizer_cache_written_bytes_total",
			Help: "Bytes written to the result cache.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "racksizer_http_requests_total",
			Help: "Served API requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "racksizer_http_request_duration_seconds",
			Help:    "API request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.solverRuns, m.solverSteps, m.solverDuration,
		m.compareRuns, m.compareExcl,
		m.cacheEvents, m.cacheBytes,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Install registers m as the process-wide observability hooks.
func (m *Metrics) Install() {
	observability.SetSolverHooks(m)
	observability.SetCacheHooks(m)
	observability.SetHTTPHooks(m)
}

// =============================================================================
// Solver Hooks
// =============================================================================

func (m *Metrics) OnSolveStart(context.Context, string) {}

func (m *Metrics) OnStep(_ context.Context, _, phase string, _ int) {
	m.solverSteps.WithLabelValues(phase).Inc()
}

func (m *Metrics) OnSolveComplete(_ context.Context, _, outcome string, _ int, d time.Duration, err error) {
	if err != nil {
		outcome = "error"
	}
	m.solverRuns.WithLabelValues(outcome).Inc()
	m.solverDuration.Observe(d.Seconds())
}

func (m *Metrics) OnCompareComplete(_ context.Context, candidates, results int, _ time.Duration) {
	m.compareRuns.Inc()
	m.compareExcl.Add(float64(candidates - results))
}

// =============================================================================
// Cache Hooks
// =============================================================================

func (m *Metrics) OnCacheHit(_ context.Context, kind string) {
	m.cacheEvents.WithLabelValues(kind, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, kind string) {
	m.cacheEvents.WithLabelValues(kind, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, kind string, size int) {
	m.cacheEvents.WithLabelValues(kind, "set").Inc()
	m.cacheBytes.Add(float64(size))
}

// =============================================================================
// HTTP Hooks
// =============================================================================

func (m *Metrics) OnResponse(_ context.Context, method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

var (
	_ observability.SolverHooks = (*Metrics)(nil)
	_ observability.CacheHooks  = (*Metrics)(nil)
	_ observability.HTTPHooks   = (*Metrics)(nil)
)
