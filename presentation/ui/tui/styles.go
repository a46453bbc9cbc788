package tui

import "github.com/charmbracelet/lipgloss"

type lipglossStyle = lipgloss.Style

var (
	brandStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F5A623"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeRow  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

func field(label, value string) string {
	return labelStyle.Render(label) + value
}
