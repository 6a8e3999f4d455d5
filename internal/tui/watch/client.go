package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/scrapehook/internal/events"
)

type eventMsg events.Event

type healthMsg struct {
	Status string `json:"status"`
}

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct {
	err error
}

type reconnectMsg struct{}

// subscribeToEvents streams /events into ch until the connection drops.
// lastID is sent as Last-Event-ID so the receiver replays only what was missed.
func subscribeToEvents(client *http.Client, baseURL, token string, lastID int64, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, baseURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "text/event-stream")
		if lastID > 0 {
			req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
		}

		resp, err := client.Do(req)
		if err != nil {
			return sseDisconnectedMsg{err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return sseDisconnectedMsg{err: fmt.Errorf("event stream returned %s", resp.Status)}
		}
		return sseDisconnectedMsg{err: readStream(resp.Body, ch)}
	}
}

// readStream decodes server-sent events from r. Frames without data, such
// as keep-alive comments, are skipped.
func readStream(r io.Reader, ch chan<- events.Event) error {
	scanner := bufio.NewScanner(r)

	var (
		id      int64
		verdict string
		data    string
	)
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if data != "" {
				ev := events.Event{ID: id, Verdict: events.Verdict(verdict), At: time.Now()}
				if err := json.Unmarshal([]byte(data), &ev.Delivery); err != nil {
					return fmt.Errorf("decode event %d: %w", id, err)
				}
				ch <- ev
			}
			id, verdict, data = 0, "", ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "id: "):
			if n, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				id = n
			}
		case strings.HasPrefix(line, "event: "):
			verdict = line[7:]
		case strings.HasPrefix(line, "data: "):
			data = line[6:]
		}
	}
	return scanner.Err()
}

func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

// fetchHealth queries /healthz, which needs no token.
func fetchHealth(client *http.Client, baseURL string) tea.Msg {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return errMsg(err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}
