package report

import "github.com/charmbracelet/lipgloss"

var (
	Cyan    = lipgloss.Color("#00E5FF")
	Magenta = lipgloss.Color("#FF1B6B")
	Yellow  = lipgloss.Color("#FFB500")
	Green   = lipgloss.Color("#2AFFAA")
	Red     = lipgloss.Color("#FF5555")

	Muted = lipgloss.Color("#6C7280")
	Text  = lipgloss.Color("#ECEFF4")
)

// Styles used by the CLI reports.
type Styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Value    lipgloss.Style
	Profit   lipgloss.Style
	Loss     lipgloss.Style
	Warning  lipgloss.Style
	Header   lipgloss.Style
	Cell     lipgloss.Style
	Box      lipgloss.Style
	ErrorBox lipgloss.Style
}

// DefaultStyles returns the default report styling.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Foreground(Cyan).Bold(true),
		Label:   lipgloss.NewStyle().Foreground(Muted).Width(16),
		Value:   lipgloss.NewStyle().Foreground(Text),
		Profit:  lipgloss.NewStyle().Foreground(Green).Bold(true),
		Loss:    lipgloss.NewStyle().Foreground(Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Yellow),
		Header:  lipgloss.NewStyle().Foreground(Magenta).Bold(true).Padding(0, 1),
		Cell:    lipgloss.NewStyle().Foreground(Text).Padding(0, 1),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Cyan).
			Padding(0, 1),
		ErrorBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Red).
			Padding(0, 1),
	}
}
