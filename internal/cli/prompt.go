package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/racksizer/pkg/solver"
)

// promptTheme matches the CLI palette.
func promptTheme() *huh.Theme {
	t := huh.ThemeBase()
	t.Focused.Title = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(colorGray)
	t.Focused.FocusedButton = lipgloss.NewStyle().
		Foreground(colorWhite).
		Background(colorCyan).
		Padding(0, 2).
		MarginRight(1)
	t.Focused.BlurredButton = lipgloss.NewStyle().
		Foreground(colorGray).
		Padding(0, 2).
		MarginRight(1)
	return t
}

// confirmExpand asks whether to keep growing a storage-only result until the
// density ceiling is met.
func confirmExpand(res *solver.Result) (bool, error) {
	expand := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Storage met, throughput density too high").
				Description(fmt.Sprintf(
					"%s at %s reaches %.1f/m² against a ceiling of %.1f/m². Continue expanding for performance?",
					res.ConfigKey,
					formatFootprint(res.Footprint.Length, res.Footprint.Width, res.FootprintM2),
					res.Density, res.MaxPerfDensity,
				)).
				Affirmative("Expand").
				Negative("Stop here").
				Value(&expand),
		),
	).WithTheme(promptTheme()).Run()
	if err != nil {
		return false, fmt.Errorf("confirm: %w", err)
	}
	return expand, nil
}
