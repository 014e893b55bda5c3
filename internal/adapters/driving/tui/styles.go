package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the dashboard's lipgloss styles.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Panel   lipgloss.Style
}

// DefaultStyles returns the default dashboard styling.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#06B6D4")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086")),
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#CDD6F4")),
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F9E2AF")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8")),
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#45475A")),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#45475A")).
			Padding(0, 1),
	}
}
