package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/scrapehook/internal/events"
)

// HealthState tracks receiver health from /healthz polling.
type HealthState struct {
	Status    string
	Connected bool
	LastCheck time.Time
}

func renderHeader(health HealthState, ticker Ticker, activity Activity, theme Theme, width int, now time.Time) string {
	innerWidth := width - 4

	statusText := theme.Accepted.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.Rejected.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.Rejected.Render("DEGRADED")
	}

	lastEvent := "never"
	if !activity.Last().IsZero() {
		lastEvent = fmt.Sprintf("%s ago", formatDuration(now.Sub(activity.Last())))
	}

	titleText := fmt.Sprintf(" SCRAPEHOOK WATCH %s", theme.Highlight.Render(ticker.Current()))
	clock := theme.Dim.Render(now.Format("15:04:05"))
	pad := max(innerWidth-lipgloss.Width(titleText)-lipgloss.Width(clock)-4, 1)
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		fmt.Sprintf(" %s", statusText),
		fmt.Sprintf(" Last verdict: %s %s", lastEvent, activity.Render(theme)),
	)
	return theme.Border.Width(innerWidth).Render(content)
}

// renderCounters shows one total per verdict in a fixed order so the row
// does not shift as counts appear.
func renderCounters(counts map[events.Verdict]int64, theme Theme, width int) string {
	cells := make([]string, 0, len(events.Verdicts))
	for _, v := range events.Verdicts {
		label := strings.TrimPrefix(string(v), "delivery.")
		cells = append(cells, theme.VerdictStyle(v).Render(fmt.Sprintf("%s %d", label, counts[v])))
	}
	return theme.Border.Width(width - 4).Render(" " + strings.Join(cells, "   "))
}

func renderLogBox(body string, entries int, theme Theme, width int) string {
	if entries == 0 {
		body = theme.Dim.Render("  Waiting for callbacks...")
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("VERDICTS"),
		lipgloss.NewStyle().Padding(0, 1).Render(body),
	)
	return theme.Border.Width(width - 4).Render(content)
}

func renderLog(eventLog []events.Event, theme Theme) string {
	lines := make([]string, 0, len(eventLog))
	for _, e := range eventLog {
		lines = append(lines, formatEvent(e, theme))
	}
	return strings.Join(lines, "\n")
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))
	verdict := theme.VerdictStyle(e.Verdict).Render(fmt.Sprintf("%-20s", e.Verdict))
	return fmt.Sprintf("%s %s %s", ts, verdict, describe(e.Delivery))
}

func describe(d events.Delivery) string {
	var parts []string
	if d.DeliveryID != "" {
		id := d.DeliveryID
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, fmt.Sprintf("[%s]", id))
	}
	if d.Webhook != "" {
		parts = append(parts, d.Webhook)
	}
	if d.EventType != "" {
		parts = append(parts, d.EventType)
	}
	if d.Reason != "" {
		parts = append(parts, d.Reason)
	}
	if d.Field != "" {
		parts = append(parts, "("+d.Field+")")
	}
	return strings.Join(parts, " ")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
