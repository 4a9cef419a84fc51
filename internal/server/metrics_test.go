package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsHooks(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	ctx := context.Background()

	m.OnStep(ctx, "std", "scale", 1)
	m.OnStep(ctx, "std", "scale", 2)
	m.OnStep(ctx, "std", "expand", 3)
	m.OnSolveComplete(ctx, "std", "storage_only", 3, time.Millisecond, nil)
	m.OnSolveComplete(ctx, "std", "", 1, time.Millisecond, errors.New("boom"))
	m.OnCompareComplete(ctx, 4, 3, time.Second)
	m.OnCacheMiss(ctx, "solve")
	m.OnCacheSet(ctx, "solve", 512)
	m.OnCacheHit(ctx, "solve")
	m.OnResponse(ctx, "POST", "/api/solve", 422, time.Millisecond)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"scale steps", m.solverSteps.WithLabelValues("scale"), 2},
		{"expand steps", m.solverSteps.WithLabelValues("expand"), 1},
		{"storage_only runs", m.solverRuns.WithLabelValues("storage_only"), 1},
		{"failed runs", m.solverRuns.WithLabelValues("error"), 1},
		{"compare runs", m.compareRuns, 1},
		{"compare excluded", m.compareExcl, 1},
		{"cache hits", m.cacheEvents.WithLabelValues("solve", "hit"), 1},
		{"cache misses", m.cacheEvents.WithLabelValues("solve", "miss"), 1},
		{"cache bytes", m.cacheBytes, 512},
		{"http requests", m.httpRequests.WithLabelValues("POST", "/api/solve", "422"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewMetricsRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	defer func() {
		if recover() == nil {
			t.Error("second registration should panic")
		}
	}()
	NewMetrics(reg)
}
