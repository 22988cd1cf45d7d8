package status

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/karlmjogila/swarmops/internal/application"
	"github.com/karlmjogila/swarmops/internal/domain"
)

type RenderOptions struct {
	Now        time.Time
	StaleAfter time.Duration
}

func renderView(overviews []application.SessionOverview, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Swarm Sessions"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(overviews))),
	}

	if len(overviews) == 0 {
		lines = append(lines, s.empty.Render("No active sessions."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, overview := range overviews {
		lines = append(lines, s.section.Render(renderSession(overview, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderSession(overview application.SessionOverview, opts RenderOptions, s styles) string {
	session := overview.Session

	header := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.session.Render(session.Key),
		" ",
		s.role.Render(fmt.Sprintf("role=%s", overview.Role.Name)),
		" ",
		s.statusStyle(string(session.Status)).Render(fmt.Sprintf("[%s]", session.Status)),
	)

	parts := []string{header}
	if session.Label != "" {
		parts = append(parts, s.detail.Render(session.Label))
	}
	parts = append(parts,
		s.detail.Render(workLine(overview.WorkItem)),
		s.meta.Render(usageLine(session.TokenUsage)),
		activityLine(session, opts, s),
	)

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func workLine(item *domain.WorkItem) string {
	if item == nil {
		return "work: none"
	}
	return fmt.Sprintf("work: %s [%s]", item.Title, item.Status)
}

func usageLine(usage domain.TokenUsage) string {
	return fmt.Sprintf(
		"tokens: in %d / out %d / think %d (total %d)",
		usage.Input, usage.Output, usage.Thinking, usage.Total(),
	)
}

func activityLine(session domain.Session, opts RenderOptions, s styles) string {
	line := s.meta.Render(fmt.Sprintf("last activity %s", formatRelative(session.LastActivityAt, opts.Now)))

	if isStale(session.LastActivityAt, opts) {
		line += " " + s.warning.Render("[stale]")
	}

	return line
}

func isStale(lastActivityAt time.Time, opts RenderOptions) bool {
	if opts.Now.IsZero() || opts.StaleAfter <= 0 || lastActivityAt.IsZero() {
		return false
	}
	return opts.Now.Sub(lastActivityAt) > opts.StaleAfter
}

func formatRelative(at, now time.Time) string {
	if at.IsZero() {
		return "unknown"
	}
	if now.IsZero() || !at.Before(now) {
		return "just now"
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(math.Floor(elapsed.Hours()/24)))
	}
}
