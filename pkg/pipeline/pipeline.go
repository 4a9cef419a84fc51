// Package pipeline provides the sizing pipeline shared by the CLI and the
// HTTP API.
//
// This package resolves a rack configuration from a catalog, runs the
// dimensional solver, the comparator or the layout exporter, and caches the
// results. By centralizing this logic, every entry point validates options,
// applies defaults and keys the cache identically.
//
// # Stages
//
//  1. Solve: find the smallest footprint for one configuration
//  2. Compare: solve every selected configuration and rank by footprint
//  3. Export: materialize the bays of a footprint in the CAD text format
//
// Each stage has an uncached function ([Solve], [Compare], [Export]) and a
// cached [Runner] method.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    Storage:    5000,
//	    Throughput: 200,
//	    Height:     10000,
//	    ConfigKey:  "dd-double",
//	}
//	res, err := runner.Solve(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Footprint)
package pipeline

import (
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/racksizer/pkg/cache"
	"github.com/matzehuels/racksizer/pkg/catalog"
	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/layout"
	"github.com/matzehuels/racksizer/pkg/rack"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

// DefaultAspectRatio is the length/width ratio used when none is given.
const DefaultAspectRatio = solver.DefaultAspectRatio

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for a pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Solve options
	Storage     int     `json:"storage"`
	Throughput  float64 `json:"throughput"`
	AspectRatio float64 `json:"aspect_ratio,omitempty"`
	Height      float64 `json:"height"`

	ExpandForPerformance    bool `json:"expand_for_performance,omitempty"`
	ReduceLevels            bool `json:"reduce_levels,omitempty"`
	ExpandBeyondConstraints bool `json:"expand_beyond_constraints,omitempty"`

	// Warehouse bound; both zero means unconstrained.
	BoundLength float64 `json:"bound_length,omitempty"`
	BoundWidth  float64 `json:"bound_width,omitempty"`

	// Configuration selection
	ConfigKey  string   `json:"config,omitempty"`
	ConfigKeys []string `json:"configs,omitempty"` // Compare subset; empty means all

	// Export options
	Length float64 `json:"length,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Levels int     `json:"levels,omitempty"` // Level override for the export summary

	Refresh     bool `json:"refresh,omitempty"`
	Concurrency int  `json:"concurrency,omitempty"`

	// Runtime options (not serialized)
	Logger  *log.Logger       `json:"-"`
	Catalog *catalog.Catalog  `json:"-"`
	OnStep  func(solver.Step) `json:"-"`
}

// =============================================================================
// Options Methods
// =============================================================================

// SetSolveDefaults sets default values shared by solve and compare.
func (o *Options) SetSolveDefaults() {
	if o.AspectRatio == 0 {
		o.AspectRatio = DefaultAspectRatio
	}
	o.setRuntimeDefaults()
}

func (o *Options) setRuntimeDefaults() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Catalog == nil {
		o.Catalog = catalog.Default()
	}
}

// ValidateForSolve applies defaults and checks the fields a single solve needs.
func (o *Options) ValidateForSolve() error {
	if err := o.validateInputs(); err != nil {
		return err
	}
	if o.ConfigKey == "" {
		return errors.New(errors.ErrCodeNoConfigurationSelected, "no configuration selected")
	}
	return nil
}

// ValidateForCompare applies defaults and checks the fields a comparison needs.
func (o *Options) ValidateForCompare() error {
	return o.validateInputs()
}

func (o *Options) validateInputs() error {
	o.SetSolveDefaults()
	if err := o.Request(rack.Configuration{}).ValidateInputs(); err != nil {
		return err
	}
	if (o.BoundLength == 0) != (o.BoundWidth == 0) {
		return errors.New(errors.ErrCodeInvalidInput, "bound length and width must be given together")
	}
	return nil
}

// ValidateForExport applies defaults and checks the fields an export needs.
func (o *Options) ValidateForExport() error {
	o.setRuntimeDefaults()
	if o.ConfigKey == "" {
		return errors.New(errors.ErrCodeNoConfigurationSelected, "no configuration selected")
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"length", o.Length}, {"width", o.Width}, {"height", o.Height}} {
		if err := errors.ValidatePositive(f.name, f.v); err != nil {
			return err
		}
	}
	if o.Levels < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "levels must not be negative, got %d", o.Levels)
	}
	return nil
}

// Bound returns the warehouse bound, or nil when none is set.
func (o *Options) Bound() *layout.Footprint {
	if o.BoundLength == 0 && o.BoundWidth == 0 {
		return nil
	}
	return &layout.Footprint{Length: o.BoundLength, Width: o.BoundWidth}
}

// Flags returns the solver flags.
func (o *Options) Flags() solver.Flags {
	return solver.Flags{
		ExpandForPerformance:    o.ExpandForPerformance,
		ReduceLevels:            o.ReduceLevels,
		ExpandBeyondConstraints: o.ExpandBeyondConstraints,
	}
}

// Request builds the solver request for cfg.
func (o *Options) Request(cfg rack.Configuration) solver.Request {
	return solver.Request{
		StorageRequirement:    o.Storage,
		ThroughputRequirement: o.Throughput,
		AspectRatio:           o.AspectRatio,
		Height:                o.Height,
		Config:                cfg,
		Flags:                 o.Flags(),
		Bound:                 o.Bound(),
	}
}

// SolveKeyOpts returns cache key options for solve and compare.
func (o *Options) SolveKeyOpts() cache.SolveKeyOpts {
	return cache.SolveKeyOpts{
		Storage:                 o.Storage,
		Throughput:              o.Throughput,
		AspectRatio:             o.AspectRatio,
		Height:                  o.Height,
		ExpandForPerformance:    o.ExpandForPerformance,
		ReduceLevels:            o.ReduceLevels,
		ExpandBeyondConstraints: o.ExpandBeyondConstraints,
		BoundLength:             o.BoundLength,
		BoundWidth:              o.BoundWidth,
	}
}

// ExportKeyOpts returns cache key options for an export.
func (o *Options) ExportKeyOpts() cache.ExportKeyOpts {
	return cache.ExportKeyOpts{
		Length: o.Length,
		Width:  o.Width,
		Height: o.Height,
		Levels: o.Levels,
	}
}

// ResolveConfig looks up the selected configuration in the catalog.
func (o *Options) ResolveConfig() (rack.Configuration, error) {
	o.setRuntimeDefaults()
	return o.Catalog.Get(o.ConfigKey)
}
