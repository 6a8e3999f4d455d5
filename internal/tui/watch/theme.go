// Package watch is a terminal view of a running receiver's verdict stream.
package watch

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/scrapehook/internal/events"
)

// Theme holds every style the watch view uses.
type Theme struct {
	Accepted  lipgloss.Style
	Duplicate lipgloss.Style
	Rejected  lipgloss.Style
	Invalid   lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	return Theme{
		Accepted:  lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Duplicate: lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Rejected:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
		Invalid:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		TickerActive:   lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		TickerInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#444444")),
	}
}

// VerdictStyle picks the color for a verdict. Unknown verdicts are dimmed.
func (t Theme) VerdictStyle(v events.Verdict) lipgloss.Style {
	switch v {
	case events.VerdictAccepted:
		return t.Accepted
	case events.VerdictDuplicate:
		return t.Duplicate
	case events.VerdictRejected:
		return t.Rejected
	case events.VerdictInvalid:
		return t.Invalid
	default:
		return t.Dim
	}
}
