package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	header    lipgloss.Style
	panel     lipgloss.Style
	focused   lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	tool      lipgloss.Style
	errorText lipgloss.Style
	help      lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#61afef")
	green := lipgloss.Color("#98c379")
	amber := lipgloss.Color("#e5c07b")
	red := lipgloss.Color("#e06c75")
	muted := lipgloss.Color("#7f848e")

	return theme{
		header: lipgloss.NewStyle().Bold(true).Foreground(blue).Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(muted),
		focused: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue),
		user:      lipgloss.NewStyle().Foreground(green).Bold(true),
		assistant: lipgloss.NewStyle().Foreground(blue).Bold(true),
		tool:      lipgloss.NewStyle().Foreground(amber),
		errorText: lipgloss.NewStyle().Foreground(red),
		help:      lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
	}
}
