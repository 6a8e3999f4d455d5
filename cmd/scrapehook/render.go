package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/mattjoyce/scrapehook/internal/doctor"
	"github.com/mattjoyce/scrapehook/internal/event"
	"github.com/mattjoyce/scrapehook/internal/inbox"
)

// theme keeps CLI colors in one place.
type theme struct {
	OK     lipgloss.Style
	Failed lipgloss.Style
	Header lipgloss.Style
	Label  lipgloss.Style
	Dim    lipgloss.Style
	Border lipgloss.Style
}

func newTheme() theme {
	return theme{
		OK:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00FF00")),
		Failed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000")),
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#61AFEF")),
		Label:  lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("#874BFD")),
	}
}

func renderVerdict(w io.Writer, valid bool, reason string) {
	th := newTheme()
	if valid {
		fmt.Fprintln(w, th.OK.Render("VALID"))
		return
	}
	line := th.Failed.Render("INVALID")
	if reason != "" {
		line += " " + th.Dim.Render(reason)
	}
	fmt.Fprintln(w, line)
}

func renderField(w io.Writer, label, value string) {
	th := newTheme()
	fmt.Fprintf(w, "%s %s\n", th.Label.Render(fmt.Sprintf("%-12s", label+":")), value)
}

func renderEnvelope(w io.Writer, env *event.Envelope) {
	renderField(w, "webhook", env.Webhook)
	renderField(w, "type", string(env.Event.Type()))

	switch ev := env.Event.(type) {
	case *event.LinksEvent:
		renderField(w, "host", ev.Host)
		renderField(w, "links", strconv.Itoa(len(ev.Links)))
		for _, link := range ev.Links {
			fmt.Fprintf(w, "  - %s\n", link)
		}
	case *event.ScrapedEvent:
		renderField(w, "url", ev.URL)
		renderField(w, "results", ev.Results)
	case *event.ExploreEvent:
		renderProgress(w, "explored", ev.Explored)
		renderProgress(w, "found", ev.Found)
	}
	for _, k := range slices.Sorted(maps.Keys(env.Headers)) {
		renderField(w, "header", k+"="+env.Headers[k])
	}
}

func renderProgress(w io.Writer, label string, p event.Progress) {
	renderField(w, label, strconv.Itoa(p.Len()))
	for _, u := range p.URLs {
		fmt.Fprintf(w, "  - %s\n", u)
	}
}

func renderDeliveryTable(w io.Writer, deliveries []*inbox.Delivery) {
	th := newTheme()
	if len(deliveries) == 0 {
		fmt.Fprintln(w, th.Dim.Render("no deliveries recorded"))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(th.Border).
		Headers("ID", "WEBHOOK", "TYPE", "SENT", "RECEIVED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return th.Header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, d := range deliveries {
		t.Row(d.ID, d.Webhook, d.EventType, formatTime(d.SentAt), formatTime(d.ReceivedAt))
	}
	fmt.Fprintln(w, t.Render())
}

func renderDelivery(w io.Writer, d *inbox.Delivery) {
	renderField(w, "id", d.ID)
	renderField(w, "webhook", d.Webhook)
	renderField(w, "type", d.EventType)
	renderField(w, "sent", formatTime(d.SentAt))
	renderField(w, "received", formatTime(d.ReceivedAt))
	renderField(w, "digest", d.BodyDigest)
	if d.RequestID != nil {
		renderField(w, "request_id", *d.RequestID)
	}
	fmt.Fprintln(w, string(d.Body))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func renderDoctorResult(w io.Writer, r *doctor.Result) {
	th := newTheme()
	for _, issue := range r.Errors {
		fmt.Fprintf(w, "%s %s %s\n", th.Failed.Render("ERROR"), th.Label.Render(issue.Field), issue.Message)
	}
	for _, issue := range r.Warnings {
		fmt.Fprintf(w, "%s %s %s\n", th.Label.Render("WARN "), th.Label.Render(issue.Field), issue.Message)
	}
	if r.Valid {
		fmt.Fprintf(w, "%s %s\n", th.OK.Render("OK"), th.Dim.Render(fmt.Sprintf("%d warning(s)", len(r.Warnings))))
	}
}
