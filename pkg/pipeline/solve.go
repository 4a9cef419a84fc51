package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/racksizer/pkg/compare"
	"github.com/matzehuels/racksizer/pkg/rack"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// Solve resolves the selected configuration and runs the solver without
// caching.
func Solve(ctx context.Context, opts Options) (*solver.Result, error) {
	if err := opts.ValidateForSolve(); err != nil {
		return nil, err
	}
	cfg, err := opts.ResolveConfig()
	if err != nil {
		return nil, err
	}

	opts.Logger.Debug("solving",
		"config", cfg.Key,
		"storage", opts.Storage,
		"throughput", opts.Throughput,
		"height", opts.Height,
		"aspect", opts.AspectRatio)

	res, err := solver.Solve(ctx, opts.Request(cfg), solver.Options{
		Logger: opts.Logger,
		OnStep: opts.OnStep,
	})
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", cfg.Key, err)
	}
	return res, nil
}

// Compare runs the comparator over the selected configurations without
// caching.
func Compare(ctx context.Context, opts Options) (*compare.Result, error) {
	if err := opts.ValidateForCompare(); err != nil {
		return nil, err
	}
	configs, err := opts.Catalog.Select(opts.ConfigKeys)
	if err != nil {
		return nil, err
	}

	res, err := compare.Run(ctx, opts.Request(rack.Configuration{}), configs, compare.Options{
		Logger:      opts.Logger,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}
	return res, nil
}
