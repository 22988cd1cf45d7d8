package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	session    lipgloss.Style
	role       lipgloss.Style
	detail     lipgloss.Style
	meta       lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	statusTint map[string]lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		session: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		role:    lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		meta:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section: lipgloss.NewStyle().MarginTop(1),
		empty:   lipgloss.NewStyle().Faint(true),
		statusTint: map[string]lipgloss.Style{
			"starting": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			"active":   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			"idle":     lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
			"stopping": lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
			"stopped":  lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		},
	}
}

func (s styles) statusStyle(status string) lipgloss.Style {
	if tint, ok := s.statusTint[status]; ok {
		return tint
	}
	return s.detail
}
