package board

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title       lipgloss.Style
	header      lipgloss.Style
	free        lipgloss.Style
	taken       lipgloss.Style
	selected    lipgloss.Style
	section     lipgloss.Style
	empty       lipgloss.Style
	participant lipgloss.Style
	claimant    lipgloss.Style
	barBracket  lipgloss.Style
	barFill     lipgloss.Style
	barEmpty    lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:       lipgloss.NewStyle().Bold(true),
		header:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		free:        lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		taken:       lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Strikethrough(true),
		selected:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		section:     lipgloss.NewStyle().MarginTop(1),
		empty:       lipgloss.NewStyle().Faint(true),
		participant: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		claimant:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		barBracket:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:     lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:    lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
	}
}
