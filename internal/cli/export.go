package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/racksizer/pkg/pipeline"
	"github.com/matzehuels/racksizer/pkg/rack"
)

// exportCommand creates the export command.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		output  string
		noCache bool
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the bay layout of a footprint as CAD blocks",
		Long: `Export the bay layout of a footprint as CAD blocks.

One line is written per bay type present, Standard first, then Tunnel and
Backpack:

  {Block,Color,Rotation|TagName:BayType|(x,y,0)(x,y,0)...}

Coordinates are bay centres in millimetres, rounded to integers. Without
--output the lines go to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(cmd.Context(), cmd.OutOrStdout(), opts, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigKey, "config", "c", "", "rack configuration key")
	_ = cmd.RegisterFlagCompletionFunc("config", c.completeConfigKeys)
	cmd.Flags().Float64Var(&opts.Length, "length", 0, "footprint length (mm)")
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "footprint width (mm)")
	cmd.Flags().Float64Var(&opts.Height, "height", 0, "clear building height (mm)")
	cmd.Flags().IntVar(&opts.Levels, "levels", 0, "level count for the summary (default: structural maximum)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "ignore cached results")

	return cmd
}

// runExport exports the footprint and writes the CAD lines.
func (c *CLI) runExport(ctx context.Context, w io.Writer, opts pipeline.Options, output string, noCache bool) error {
	cat, err := c.loadCatalog()
	if err != nil {
		return err
	}
	opts.Catalog = cat
	opts.Logger = loggerFromContext(ctx)

	if err := c.selectConfig(&opts); err != nil {
		return err
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	res, cached, err := runner.ExportWithCacheInfo(ctx, opts)
	if err != nil {
		return err
	}

	if output == "" {
		_, err := io.WriteString(w, res.Text)
		return err
	}
	if err := os.WriteFile(output, []byte(res.Text), 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}

	counts := res.Document.Counts()
	printSuccess("Exported %d bays", res.Document.Count())
	printFile(output)
	printStats(cached,
		fmt.Sprintf("%d standard", counts[rack.BayStandard]),
		fmt.Sprintf("%d tunnel", counts[rack.BayTunnel]),
		fmt.Sprintf("%d backpack", counts[rack.BayBackpack]),
		fmt.Sprintf("%d locations", res.Metrics.TotalLocations),
	)
	return nil
}
