// Package solver searches for the smallest footprint that meets a storage
// and a throughput target for one rack configuration.
//
// The search is a monotonic one-dimensional scan over the footprint length;
// the width follows from a fixed aspect ratio. A run has up to three phases:
//
//  1. Storage: grow the length in 1 m steps from 10 m until the layout holds
//     the required number of locations.
//  2. Performance: if the throughput density (throughput per square metre)
//     is still above the configuration's ceiling and the caller opted in,
//     keep growing until it is not.
//  3. Reduction: if the caller opted in and the ceiling is met, drop beam
//     levels while the storage target is still met.
//
// Every step is a yield point: the context is checked, the step is reported
// to the registered observability hooks and to [Options.OnStep]. A cancelled
// run returns the context error and no result.
package solver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/layout"
	"github.com/matzehuels/racksizer/pkg/metrics"
	"github.com/matzehuels/racksizer/pkg/observability"
	"github.com/matzehuels/racksizer/pkg/rack"
)

// Scan bounds in millimetres. The first evaluated length is
// StartLength + StepLength. A phase stops once the last evaluated length
// exceeds SafetyLength, so its final candidate is SafetyLength + StepLength.
const (
	StartLength  = 10_000.0
	StepLength   = 1_000.0
	SafetyLength = 1_000_000.0
)

// DefaultAspectRatio is the length/width ratio used when none is given.
const DefaultAspectRatio = 1.0

// Flags are the caller's decisions that steer the scan.
type Flags struct {
	// ExpandForPerformance continues past the storage target until the
	// density ceiling is met.
	ExpandForPerformance bool `json:"expand_for_performance"`
	// ReduceLevels drops beam levels on the final footprint while storage
	// is still met.
	ReduceLevels bool `json:"reduce_levels"`
	// ExpandBeyondConstraints lets the scan grow past the warehouse bound.
	ExpandBeyondConstraints bool `json:"expand_beyond_constraints"`
}

// Request is one solver invocation.
type Request struct {
	StorageRequirement    int                `json:"storage_requirement"`
	ThroughputRequirement float64            `json:"throughput_requirement"`
	AspectRatio           float64            `json:"aspect_ratio"`
	Height                float64            `json:"height"`
	Config                rack.Configuration `json:"config"`
	Flags                 Flags              `json:"flags"`
	// Bound is the warehouse envelope. Nil means unconstrained.
	Bound *layout.Footprint `json:"bound,omitempty"`
}

// Validate checks the request before any scan is attempted.
func (r Request) Validate() error {
	if err := r.ValidateInputs(); err != nil {
		return err
	}
	if r.Config.Key == "" {
		return errors.New(errors.ErrCodeNoConfigurationSelected, "no configuration selected")
	}
	return r.Config.Validate()
}

// ValidateInputs checks the numeric inputs, ignoring the configuration.
func (r Request) ValidateInputs() error {
	if r.StorageRequirement < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			"storage requirement must be positive, got %d", r.StorageRequirement)
	}
	if err := errors.ValidatePositive("throughput requirement", r.ThroughputRequirement); err != nil {
		return err
	}
	if err := errors.ValidatePositive("aspect ratio", r.AspectRatio); err != nil {
		return err
	}
	if err := errors.ValidatePositive("height", r.Height); err != nil {
		return err
	}
	if r.Bound != nil {
		if err := errors.ValidatePositive("bound length", r.Bound.Length); err != nil {
			return err
		}
		if err := errors.ValidatePositive("bound width", r.Bound.Width); err != nil {
			return err
		}
	}
	return nil
}

// Phase names a stage of the scan.
type Phase string

const (
	PhaseStorage     Phase = "storage"
	PhasePerformance Phase = "performance"
	PhaseReduction   Phase = "reduction"
)

// Outcome summarizes how far a run got.
type Outcome string

const (
	// OutcomeComplete means storage and the density ceiling are both met.
	OutcomeComplete Outcome = "complete"
	// OutcomeStorageOnly means storage is met, the density ceiling is not,
	// and the performance phase was not requested.
	OutcomeStorageOnly Outcome = "storage_only"
	// OutcomePerformanceUnattainable means the performance phase ran but hit
	// the warehouse bound or the safety bound first.
	OutcomePerformanceUnattainable Outcome = "performance_unattainable"
)

// Result is a solved footprint.
type Result struct {
	metrics.Result

	// Density is the throughput requirement per square metre of footprint.
	Density         float64 `json:"density"`
	CapacityUtilPct float64 `json:"capacity_util_pct"`

	ConfigKey  string `json:"config_key"`
	ConfigName string `json:"config_name"`

	Outcome Outcome `json:"outcome"`
	// Reduced marks a result whose level count was lowered after the scan.
	Reduced bool `json:"reduced,omitempty"`
	// ExceedsBound marks a footprint larger than the requested bound.
	ExceedsBound bool `json:"exceeds_bound,omitempty"`
	Iterations   int  `json:"iterations"`

	// Shortfall explains why the density ceiling is not met. Nil when the
	// outcome is complete.
	Shortfall *errors.Error `json:"shortfall,omitempty"`
}

// MeetsPerformance reports whether the density is within the ceiling.
func (r *Result) MeetsPerformance() bool {
	return r.Density <= r.MaxPerfDensity
}

// Step describes one scan step.
type Step struct {
	Phase     Phase   `json:"phase"`
	Iteration int     `json:"iteration"`
	Length    float64 `json:"length"`
	Width     float64 `json:"width"`
	Levels    int     `json:"levels"`
	Locations int     `json:"locations"`
	Density   float64 `json:"density"`
}

// Options customize a run.
type Options struct {
	// Logger receives phase transitions at debug level. Nil discards.
	Logger *log.Logger
	// OnStep is called after every evaluation. It runs on the solving
	// goroutine and must not block.
	OnStep func(Step)
}

// Solve runs the scan for req.
func Solve(ctx context.Context, req Request, opts Options) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s := &scan{
		req:    req,
		opts:   opts,
		logger: opts.Logger,
		hooks:  observability.Solver(),
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s.logger = s.logger.With("config", req.Config.Key)

	start := time.Now()
	s.hooks.OnSolveStart(ctx, req.Config.Key)
	res, err := s.run(ctx)

	outcome := ""
	if res != nil {
		outcome = string(res.Outcome)
	}
	s.hooks.OnSolveComplete(ctx, req.Config.Key, outcome, s.iter, time.Since(start), err)
	return res, err
}

type scan struct {
	req    Request
	opts   Options
	logger *log.Logger
	hooks  observability.SolverHooks
	iter   int
}

func (s *scan) run(ctx context.Context) (*Result, error) {
	res, length, err := s.storage(ctx)
	if err != nil {
		return nil, err
	}

	switch {
	case res.MeetsPerformance():
		res.Outcome = OutcomeComplete
	case !s.req.Flags.ExpandForPerformance:
		res.Outcome = OutcomeStorageOnly
		res.Shortfall = errors.New(errors.ErrCodePerformanceUnattainable,
			"density %.2f exceeds ceiling %.2f; performance expansion not requested",
			res.Density, res.MaxPerfDensity)
	default:
		res, err = s.performance(ctx, res, length)
		if err != nil {
			return nil, err
		}
	}

	if s.req.Flags.ReduceLevels && res.Outcome == OutcomeComplete {
		res, err = s.reduce(ctx, res)
		if err != nil {
			return nil, err
		}
	}

	res.Iterations = s.iter
	s.logger.Debug("solved",
		"outcome", res.Outcome,
		"length_mm", res.Footprint.Length,
		"width_mm", res.Footprint.Width,
		"levels", res.Levels,
		"locations", res.TotalLocations,
		"density", res.Density)
	return res, nil
}

// storage grows the footprint until the storage requirement is met.
func (s *scan) storage(ctx context.Context) (*Result, float64, error) {
	s.logger.Debug("scan phase", "phase", PhaseStorage, "length_mm", StartLength)

	for length := StartLength; ; {
		if length > SafetyLength {
			return nil, 0, errors.New(errors.ErrCodeStorageUnattainable,
				"storage requirement %d not met below %.0f m", s.req.StorageRequirement, SafetyLength/1000)
		}
		next := length + StepLength
		fp := s.footprint(next)
		exceeds := s.exceeds(fp)
		if exceeds && !s.req.Flags.ExpandBeyondConstraints {
			return nil, 0, errors.New(errors.ErrCodeConstraintExceeded,
				"storage requirement %d not met within bound %.0fx%.0f mm",
				s.req.StorageRequirement, s.req.Bound.Length, s.req.Bound.Width)
		}
		length = next

		m, err := metrics.Compute(fp, s.req.Height, s.req.Config)
		if err != nil {
			return nil, 0, fmt.Errorf("compute metrics at %.0f mm: %w", length, err)
		}
		res := s.result(m)
		res.ExceedsBound = exceeds
		if err := s.yield(ctx, PhaseStorage, res); err != nil {
			return nil, 0, err
		}

		if m.TotalLocations >= s.req.StorageRequirement {
			s.logger.Debug("storage met",
				"length_mm", length,
				"locations", m.TotalLocations,
				"density", res.Density)
			return res, length, nil
		}
	}
}

// performance grows the footprint from where storage was met until the
// density ceiling is met. On failure the storage result is returned with a
// shortfall.
func (s *scan) performance(ctx context.Context, storageMet *Result, length float64) (*Result, error) {
	s.logger.Debug("scan phase", "phase", PhasePerformance, "length_mm", length)

	unattainable := func(cause error, format string, args ...any) *Result {
		res := *storageMet
		res.Outcome = OutcomePerformanceUnattainable
		res.Shortfall = errors.Wrap(errors.ErrCodePerformanceUnattainable, cause, format, args...)
		return &res
	}

	for {
		if length > SafetyLength {
			return unattainable(nil, "density ceiling %.2f not met below %.0f m",
				storageMet.MaxPerfDensity, SafetyLength/1000), nil
		}
		next := length + StepLength
		fp := s.footprint(next)
		exceeds := s.exceeds(fp)
		if exceeds && !s.req.Flags.ExpandBeyondConstraints {
			cause := errors.New(errors.ErrCodeConstraintExceeded,
				"bound %.0fx%.0f mm reached", s.req.Bound.Length, s.req.Bound.Width)
			return unattainable(cause, "density %.2f exceeds ceiling %.2f", storageMet.Density, storageMet.MaxPerfDensity), nil
		}
		length = next

		m, err := metrics.Compute(fp, s.req.Height, s.req.Config)
		if err != nil {
			return nil, fmt.Errorf("compute metrics at %.0f mm: %w", length, err)
		}
		res := s.result(m)
		res.ExceedsBound = exceeds
		if err := s.yield(ctx, PhasePerformance, res); err != nil {
			return nil, err
		}

		if res.MeetsPerformance() {
			s.logger.Debug("performance met", "length_mm", length, "density", res.Density)
			res.Outcome = OutcomeComplete
			return res, nil
		}
	}
}

// reduce lowers the level count on the solved footprint while storage is
// still met. The density does not depend on levels and is carried over.
func (s *scan) reduce(ctx context.Context, solved *Result) (*Result, error) {
	s.logger.Debug("scan phase", "phase", PhaseReduction, "levels", solved.Levels)

	best := solved
	for levels := solved.MaxLevels - 1; levels >= 1; levels-- {
		m, err := metrics.Compute(solved.Footprint, s.req.Height, s.req.Config, metrics.WithLevels(levels))
		if err != nil {
			return nil, fmt.Errorf("compute metrics at %d levels: %w", levels, err)
		}
		if m.TotalLocations < s.req.StorageRequirement {
			break
		}

		res := s.result(m)
		res.Density = solved.Density
		res.CapacityUtilPct = solved.CapacityUtilPct
		res.ExceedsBound = solved.ExceedsBound
		res.Outcome = solved.Outcome
		res.Reduced = true
		if err := s.yield(ctx, PhaseReduction, res); err != nil {
			return nil, err
		}
		best = res
	}

	if best.Reduced {
		s.logger.Debug("levels reduced", "from", solved.Levels, "to", best.Levels)
	}
	return best, nil
}

func (s *scan) footprint(length float64) layout.Footprint {
	return layout.Footprint{Length: length, Width: length / s.req.AspectRatio}
}

func (s *scan) exceeds(fp layout.Footprint) bool {
	return s.req.Bound != nil && fp.Exceeds(*s.req.Bound)
}

func (s *scan) result(m metrics.Result) *Result {
	res := &Result{
		Result:     m,
		ConfigKey:  s.req.Config.Key,
		ConfigName: s.req.Config.DisplayName(),
	}
	if m.FootprintM2 > 0 {
		res.Density = s.req.ThroughputRequirement / m.FootprintM2
	}
	if m.MaxPerfDensity > 0 {
		res.CapacityUtilPct = res.Density / m.MaxPerfDensity * 100
	}
	return res
}

// yield is the cancellation point between scan steps.
func (s *scan) yield(ctx context.Context, phase Phase, res *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.iter++
	s.hooks.OnStep(ctx, s.req.Config.Key, string(phase), s.iter)
	if s.opts.OnStep != nil {
		s.opts.OnStep(Step{
			Phase:     phase,
			Iteration: s.iter,
			Length:    res.Footprint.Length,
			Width:     res.Footprint.Width,
			Levels:    res.Levels,
			Locations: res.TotalLocations,
			Density:   res.Density,
		})
	}
	return nil
}
