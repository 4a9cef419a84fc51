package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/racksizer/pkg/catalog"
	"github.com/matzehuels/racksizer/pkg/errors"
	"github.com/matzehuels/racksizer/pkg/rack"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// ConfigListModel - Interactive configuration selection
// =============================================================================

// ConfigListModel is the bubbletea model for interactive configuration selection.
type ConfigListModel struct {
	Configs  []rack.Configuration
	Cursor   int
	Selected *rack.Configuration
	Height   int
	Offset   int
}

// NewConfigListModel creates a new configuration list model.
func NewConfigListModel(configs []rack.Configuration) ConfigListModel {
	return ConfigListModel{
		Configs: configs,
		Height:  15,
	}
}

func (m ConfigListModel) Init() tea.Cmd {
	return nil
}

func (m ConfigListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Configs)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Configs) == 0 {
				return m, tea.Quit
			}
			cfg := m.Configs[m.Cursor]
			m.Selected = &cfg
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m ConfigListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Rack Configuration"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Configs))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		cfg := m.Configs[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{
			cursor,
			cfg.Key,
			cfg.DisplayName(),
			string(cfg.LayoutMode),
			fmt.Sprintf("%d×%d", cfg.ToteQtyPerBay, cfg.TotesDeep),
			features(cfg),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Key", "Name", "Layout", "Totes", "Bays").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col >= 3 {
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Configs))))

	return b.String()
}

// features summarizes the special bay types a configuration places.
func features(cfg rack.Configuration) string {
	var parts []string
	if cfg.ConsiderTunnels {
		parts = append(parts, "tunnels")
	}
	if cfg.ConsiderBackpacks {
		parts = append(parts, "backpacks")
	}
	if len(parts) == 0 {
		return "—"
	}
	return strings.Join(parts, ", ")
}

// pickConfig runs the picker and returns the chosen configuration key.
func pickConfig(cat *catalog.Catalog) (string, error) {
	final, err := tea.NewProgram(NewConfigListModel(cat.All())).Run()
	if err != nil {
		return "", fmt.Errorf("configuration picker: %w", err)
	}
	m, ok := final.(ConfigListModel)
	if !ok || m.Selected == nil {
		return "", errors.New(errors.ErrCodeNoConfigurationSelected, "no configuration selected")
	}
	return m.Selected.Key, nil
}
