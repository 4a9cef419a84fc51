package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/racksizer/pkg/cache"
	"github.com/matzehuels/racksizer/pkg/compare"
	"github.com/matzehuels/racksizer/pkg/observability"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store results. Multiple goroutines can safely use the same Runner with
// different options. Concurrent identical solves share one scan, which
// outlives any caller that gives up waiting on it.
//
// Cache failures are logged and never fail a run.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	flight singleflight.Group
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Cache key kinds reported to observability hooks.
const (
	kindSolve   = "solve"
	kindCompare = "compare"
	kindExport  = "export"
)

// SolveWithCacheInfo solves with caching and returns cache hit info.
func (r *Runner) SolveWithCacheInfo(ctx context.Context, opts Options) (*solver.Result, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForSolve(); err != nil {
		return nil, false, err
	}
	cfg, err := opts.ResolveConfig()
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.SolveKey(cfg, opts.SolveKeyOpts())

	compute := func() (*solver.Result, error) { return Solve(ctx, opts) }
	if opts.OnStep == nil {
		// Step callbacks are per caller, so only silent solves are shared.
		compute = func() (*solver.Result, error) { return r.sharedSolve(ctx, key, opts) }
	}
	return cached(ctx, r, kindSolve, key, opts.Refresh, cache.TTLSolve, compute)
}

// sharedSolve joins the in-flight scan for key, starting one if none runs.
// The scan is detached from any single caller: cancelling ctx only abandons
// this caller's wait.
func (r *Runner) sharedSolve(ctx context.Context, key string, opts Options) (*solver.Result, error) {
	detached := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(key, func() (any, error) { return Solve(detached, opts) })
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*solver.Result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Solve is a convenience wrapper that calls SolveWithCacheInfo and discards the cache hit info.
func (r *Runner) Solve(ctx context.Context, opts Options) (*solver.Result, error) {
	res, _, err := r.SolveWithCacheInfo(ctx, opts)
	return res, err
}

// CompareWithCacheInfo compares with caching and returns cache hit info.
func (r *Runner) CompareWithCacheInfo(ctx context.Context, opts Options) (*compare.Result, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForCompare(); err != nil {
		return nil, false, err
	}
	configs, err := opts.Catalog.Select(opts.ConfigKeys)
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.CompareKey(configs, opts.SolveKeyOpts())

	return cached(ctx, r, kindCompare, key, opts.Refresh, cache.TTLCompare, func() (*compare.Result, error) {
		return Compare(ctx, opts)
	})
}

// Compare is a convenience wrapper that calls CompareWithCacheInfo and discards the cache hit info.
func (r *Runner) Compare(ctx context.Context, opts Options) (*compare.Result, error) {
	res, _, err := r.CompareWithCacheInfo(ctx, opts)
	return res, err
}

// ExportWithCacheInfo exports with caching and returns cache hit info.
func (r *Runner) ExportWithCacheInfo(ctx context.Context, opts Options) (*ExportResult, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForExport(); err != nil {
		return nil, false, err
	}
	cfg, err := opts.ResolveConfig()
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.ExportKey(cfg, opts.ExportKeyOpts())

	return cached(ctx, r, kindExport, key, opts.Refresh, cache.TTLExport, func() (*ExportResult, error) {
		return Export(opts)
	})
}

// Export is a convenience wrapper that calls ExportWithCacheInfo and discards the cache hit info.
func (r *Runner) Export(ctx context.Context, opts Options) (*ExportResult, error) {
	res, _, err := r.ExportWithCacheInfo(ctx, opts)
	return res, err
}

// cached serves key from the runner's cache, computing and storing the
// value on a miss. Values that fail to decode are recomputed.
func cached[T any](ctx context.Context, r *Runner, kind, key string, refresh bool, ttl time.Duration, compute func() (T, error)) (T, bool, error) {
	hooks := observability.Cache()

	if !refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		if err != nil {
			r.Logger.Warn("cache read failed", "kind", kind, "err", err)
		}
		if err == nil && hit {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				hooks.OnCacheHit(ctx, kind)
				return v, true, nil // Cache hit
			}
			r.Logger.Debug("discarding undecodable cache entry", "kind", kind)
		}
		hooks.OnCacheMiss(ctx, kind)
	}

	v, err := compute()
	if err != nil {
		var zero T
		return zero, false, err
	}

	if data, err := json.Marshal(v); err == nil {
		if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
			r.Logger.Warn("cache write failed", "kind", kind, "err", err)
		} else {
			hooks.OnCacheSet(ctx, kind, len(data))
		}
	}
	return v, false, nil // Cache miss
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
