package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/pipeline"
	"github.com/matzehuels/racksizer/pkg/solver"
)

// solveFlags holds the solve flags that are not pipeline options.
type solveFlags struct {
	noCache     bool
	interactive bool
	jsonOut     bool
	export      string
}

// solveCommand creates the solve command.
func (c *CLI) solveCommand() *cobra.Command {
	var flags solveFlags
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Find the smallest footprint for one rack configuration",
		Long: `Find the smallest footprint for one rack configuration.

The solver grows the footprint in 1 m steps along its length, with the width
following the aspect ratio, until the layout holds the required storage
locations. With --expand-performance it keeps growing until the throughput
density is within the configuration's ceiling; with --reduce-levels it then
drops beam levels while storage is still met.

When --config is omitted on a terminal, a picker lists the catalog.
With --interactive, a result that meets storage but not throughput asks
whether to continue expanding.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSolve(cmd.Context(), cmd.OutOrStdout(), opts, flags)
		},
	}

	bindSolveFlags(cmd, &opts)
	cmd.Flags().StringVarP(&opts.ConfigKey, "config", "c", "", "rack configuration key")
	_ = cmd.RegisterFlagCompletionFunc("config", c.completeConfigKeys)
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "ask before expanding for performance")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "write the result as JSON")
	cmd.Flags().StringVar(&flags.export, "export", "", "write the solved layout as CAD blocks to this file")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")

	return cmd
}

// runSolve resolves the configuration, solves and prints the result.
func (c *CLI) runSolve(ctx context.Context, w io.Writer, opts pipeline.Options, flags solveFlags) error {
	cat, err := c.loadCatalog()
	if err != nil {
		return err
	}
	opts.Catalog = cat
	opts.Logger = loggerFromContext(ctx)

	if err := c.selectConfig(&opts); err != nil {
		return err
	}
	if flags.interactive && !c.isTTY() {
		return errors.New(errors.ErrCodeInvalidInput, "--interactive needs a terminal")
	}

	runner, err := c.newRunner(flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(opts.Logger)
	res, cached, err := c.solveFlow(ctx, runner, opts, flags.interactive)
	if err != nil {
		return err
	}
	prog.done("Solved " + res.ConfigKey)

	if flags.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	} else {
		printSolveResult(res, cached)
	}

	if flags.export != "" {
		if err := writeSolvedExport(opts, res, flags.export); err != nil {
			return err
		}
		if !flags.jsonOut {
			printFile(flags.export)
		}
	}
	return nil
}

// selectConfig fills in the configuration key from the picker when none was
// given and stdin is a terminal. Without a terminal the key stays empty and
// validation reports that no configuration is selected.
func (c *CLI) selectConfig(opts *pipeline.Options) error {
	if opts.ConfigKey != "" || !c.isTTY() {
		return nil
	}
	key, err := c.pick(opts.Catalog)
	if err != nil {
		return err
	}
	opts.ConfigKey = key
	return nil
}

// solveFlow runs a solve. In interactive mode a storage-only result is
// offered for expansion and solved again with the performance phase on.
func (c *CLI) solveFlow(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options, interactive bool) (*solver.Result, bool, error) {
	res, cached, err := c.solveOnce(ctx, runner, opts)
	if err != nil || !interactive || opts.ExpandForPerformance || res.Outcome != solver.OutcomeStorageOnly {
		return res, cached, err
	}

	expand, err := c.confirm(res)
	if err != nil {
		return nil, false, err
	}
	if !expand {
		return res, cached, nil
	}
	opts.ExpandForPerformance = true
	return c.solveOnce(ctx, runner, opts)
}

// solveOnce runs one cached solve behind a spinner that follows the scan.
func (c *CLI) solveOnce(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*solver.Result, bool, error) {
	label := fmt.Sprintf("Solving %s...", opts.ConfigKey)
	spinner := newSpinnerWithContext(ctx, label)
	spinner.Start()

	opts.OnStep = func(s solver.Step) {
		spinner.Update(fmt.Sprintf("%s %s phase, %s long", label, s.Phase, formatMetres(s.Length)))
	}

	res, cached, err := runner.SolveWithCacheInfo(ctx, opts)
	if err != nil {
		spinner.StopWithError("Solve failed")
		return nil, false, err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	return res, cached, nil
}

// writeSolvedExport writes the CAD blocks of a solved footprint to path.
func writeSolvedExport(opts pipeline.Options, res *solver.Result, path string) error {
	cfg, err := opts.ResolveConfig()
	if err != nil {
		return err
	}
	out, err := pipeline.ExportSolved(cfg, res)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(out.Text), 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", path, err)
	}
	return nil
}

// printSolveResult prints the result card of a solve.
func printSolveResult(res *solver.Result, cached bool) {
	printSuccess("Solved %s", StyleHighlight.Render(res.ConfigName))
	printKeyValue("Footprint", formatFootprint(res.Footprint.Length, res.Footprint.Width, res.FootprintM2))
	printKeyValue("Layout", fmt.Sprintf("%d rows × %d bays", res.Rows, res.BaysPerRack))
	if res.TunnelBays > 0 || res.BackpackBays > 0 {
		printKeyValue("Special", fmt.Sprintf("%d tunnel · %d backpack bays", res.TunnelBays, res.BackpackBays))
	}
	printKeyValue("Levels", fmt.Sprintf("%d of %d", res.Levels, res.MaxLevels))
	printKeyValue("Locations", StyleNumber.Render(fmt.Sprintf("%d", res.TotalLocations)))
	printKeyValue("Density", fmt.Sprintf("%.2f/m² (ceiling %.1f/m², %.0f%%)", res.Density, res.MaxPerfDensity, res.CapacityUtilPct))
	printKeyValue("Volume", fmt.Sprintf("%.1f m³", res.GrossVolumeM3))
	printKeyValue("Outcome", string(res.Outcome))

	if res.Reduced {
		printDetail("Levels reduced from %d", res.MaxLevels)
	}
	if res.ExceedsBound {
		printWarning("Footprint exceeds the warehouse bound")
	}
	if res.Shortfall != nil {
		printWarning("%s", res.Shortfall.Message)
	}
	printStats(cached, fmt.Sprintf("%d iterations", res.Iterations), fmt.Sprintf("%d bays", res.TotalBays))
}
