// Package compare runs the dimensional solver once per rack configuration
// and ranks the solutions by footprint.
//
// Each configuration is solved in its own task. Tasks share no mutable
// state; each writes only its own result slot, so the ranking depends only
// on the inputs. A configuration whose run fails is left out of the ranking
// and listed in [Result.Excluded]; it never aborts its siblings.
package compare

import (
	"cmp"
	"context"
	stderrors "errors"
	"io"
	"runtime"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/observability"
	"github.com/matzehuels/racksizer/pkg/rack"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// Options customize a comparison.
type Options struct {
	// Logger receives excluded configurations at debug level. Nil discards.
	Logger *log.Logger
	// Concurrency bounds the number of solver runs in flight.
	// Zero means GOMAXPROCS.
	Concurrency int
}

// Excluded records a configuration that produced no solution.
type Excluded struct {
	ConfigKey string      `json:"config_key"`
	Code      errors.Code `json:"code"`
	Message   string      `json:"message"`
}

// Result is a ranked comparison.
type Result struct {
	// Ranked holds one solution per successful configuration, smallest
	// footprint first. Equal footprints keep catalog order.
	Ranked   []*solver.Result `json:"ranked"`
	Excluded []Excluded       `json:"excluded,omitempty"`
}

// Run solves base against every configuration in configs. The Config field
// of base is ignored.
func Run(ctx context.Context, base solver.Request, configs []rack.Configuration, opts Options) (*Result, error) {
	if err := base.ValidateInputs(); err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, errors.New(errors.ErrCodeNoConfigurationSelected, "no configurations to compare")
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	slots := make([]*solver.Result, len(configs))
	failures := make([]error, len(configs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, cfg := range configs {
		g.Go(func() error {
			req := base
			req.Config = cfg
			res, err := solver.Solve(gctx, req, solver.Options{Logger: logger})
			if err != nil {
				if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failures[i] = err
				return nil
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{}
	for i, res := range slots {
		if res != nil {
			out.Ranked = append(out.Ranked, res)
			continue
		}
		ex := Excluded{
			ConfigKey: configs[i].Key,
			Code:      errors.GetCode(failures[i]),
			Message:   errors.UserMessage(failures[i]),
		}
		logger.Debug("configuration excluded", "config", ex.ConfigKey, "code", ex.Code, "reason", ex.Message)
		out.Excluded = append(out.Excluded, ex)
	}

	slices.SortStableFunc(out.Ranked, func(a, b *solver.Result) int {
		return cmp.Compare(a.FootprintM2, b.FootprintM2)
	})

	observability.Solver().OnCompareComplete(ctx, len(configs), len(out.Ranked), time.Since(start))
	return out, nil
}
