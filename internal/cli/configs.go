package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/racksizer/pkg/catalog"
)

// configsCommand creates the configs command for listing the catalog.
func (c *CLI) configsCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List the rack configurations of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := c.loadCatalog()
			if err != nil {
				return err
			}
			return writeConfigs(cmd.OutOrStdout(), cat, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "write the full configuration records as JSON")

	return cmd
}

func writeConfigs(w io.Writer, cat *catalog.Catalog, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cat.All())
	}

	rows := [][]string{}
	for _, cfg := range cat.All() {
		rows = append(rows, []string{
			cfg.Key,
			cfg.DisplayName(),
			string(cfg.LayoutMode),
			fmt.Sprintf("%d×%d", cfg.ToteQtyPerBay, cfg.TotesDeep),
			fmt.Sprintf("%.0f", cfg.MaxPerfDensity),
			features(cfg),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Key", "Name", "Layout", "Totes", "Ceiling/m²", "Bays").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
			}
			if col == 0 {
				return lipgloss.NewStyle().Foreground(colorCyan).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, StyleDim.Render(fmt.Sprintf("  %d configurations from %s", cat.Len(), cat.Source())))
	return nil
}
