package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/racksizer/pkg/compare"
	"github.com/matzehuels/racksizer/pkg/pipeline"
)

// compareCommand creates the compare command.
func (c *CLI) compareCommand() *cobra.Command {
	var (
		noCache bool
		jsonOut bool
		configs string
	)
	opts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Solve every rack configuration and rank by footprint",
		Long: `Solve every rack configuration of the catalog and rank by footprint.

Each configuration is solved independently with the same requirements.
Configurations without a solution are listed with the reason and left out
of the ranking. Equal footprints keep catalog order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigKeys = splitKeys(configs)
			return c.runCompare(cmd.Context(), cmd.OutOrStdout(), opts, noCache, jsonOut)
		},
	}

	bindSolveFlags(cmd, &opts)
	cmd.Flags().StringVar(&configs, "configs", "", "comma-separated configuration keys (default: all)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "parallel solver runs (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "write the comparison as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runCompare runs the comparison and prints the ranking.
func (c *CLI) runCompare(ctx context.Context, w io.Writer, opts pipeline.Options, noCache, jsonOut bool) error {
	cat, err := c.loadCatalog()
	if err != nil {
		return err
	}
	opts.Catalog = cat
	opts.Logger = loggerFromContext(ctx)

	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Comparing configurations...")
	spinner.Start()

	res, cached, err := runner.CompareWithCacheInfo(ctx, opts)
	if err != nil {
		spinner.StopWithError("Comparison failed")
		return err
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		return nil
	}

	printSuccess("Compared %d configurations", len(res.Ranked)+len(res.Excluded))
	if len(res.Ranked) > 0 {
		fmt.Fprintln(w, compareTable(res))
	}
	for _, ex := range res.Excluded {
		printWarning("%s excluded: %s", ex.ConfigKey, ex.Message)
		printDetail("%s", ex.Code)
	}
	printStats(cached, fmt.Sprintf("%d ranked", len(res.Ranked)))
	return nil
}

// compareTable renders the ranking. The best footprint is highlighted.
func compareTable(res *compare.Result) string {
	rows := make([][]string, len(res.Ranked))
	for i, r := range res.Ranked {
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			r.ConfigKey,
			fmt.Sprintf("%.1f × %.1f", r.Footprint.Length/1000, r.Footprint.Width/1000),
			fmt.Sprintf("%.1f", r.FootprintM2),
			fmt.Sprintf("%d", r.Levels),
			fmt.Sprintf("%d", r.TotalLocations),
			fmt.Sprintf("%.2f", r.Density),
			fmt.Sprintf("%.0f%%", r.CapacityUtilPct),
			string(r.Outcome),
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Config", "L × W (m)", "m²", "Levels", "Locations", "Density", "Util", "Outcome").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == -1:
				return headerStyle.Padding(0, 1)
			case row == 0:
				return base.Foreground(colorGreen).Bold(true)
			case col == 0:
				return base.Foreground(colorDim)
			}
			return base
		})
	return t.Render()
}

// splitKeys parses a comma-separated key list, dropping blanks.
func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
