package watch

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/scrapehook/internal/events"
)

// maxLogEntries bounds the verdict log kept in memory.
const maxLogEntries = 200

type keyMap struct {
	Quit key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model is the BubbleTea model for `scrapehook watch`.
type Model struct {
	baseURL string
	token   string

	stream *http.Client
	poll   *http.Client

	width  int
	height int

	health   HealthState
	counts   map[events.Verdict]int64
	eventLog []events.Event
	lastID   int64

	ticker   Ticker
	activity Activity
	now      func() time.Time

	theme Theme
	keys  keyMap
	log   viewport.Model

	hubEvents chan events.Event
	lastError string
}

// New creates a watch model for the receiver at baseURL. token is the
// api.token bearer token guarding /events.
func New(baseURL, token string) *Model {
	return &Model{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		stream:    &http.Client{},
		poll:      &http.Client{Timeout: 2 * time.Second},
		counts:    make(map[events.Verdict]int64),
		eventLog:  make([]events.Event, 0),
		ticker:    NewTicker(),
		now:       time.Now,
		theme:     NewDefaultTheme(),
		keys:      defaultKeys(),
		log:       viewport.New(0, 0),
		hubEvents: make(chan events.Event, 100),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.stream, m.baseURL, m.token, m.lastID, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.poll, m.baseURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.log, cmd = m.log.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = max(m.width-8, 10)
		m.log.Height = max(m.height-14, 3)
		m.log.SetContent(renderLog(m.eventLog, m.theme))

	case tickMsg:
		m.ticker.Tick()
		m.activity.Decay(m.now())
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		// A replay after reconnect never repeats what was already counted.
		if e.ID > 0 && e.ID <= m.lastID {
			return m, receiveNextEvent(m.hubEvents)
		}
		if e.ID > 0 {
			m.lastID = e.ID
		}
		m.counts[e.Verdict]++

		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxLogEntries {
			m.eventLog = m.eventLog[:maxLogEntries]
		}
		m.log.SetContent(renderLog(m.eventLog, m.theme))

		m.activity.OnEvent(m.now())
		m.health.Connected = true
		m.lastError = ""

		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.Connected = true
		m.health.LastCheck = m.now()
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.poll, m.baseURL)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		if msg.err != nil {
			m.lastError = fmt.Sprintf("event stream disconnected (%v), reconnecting...", msg.err)
		}
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.stream, m.baseURL, m.token, m.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.poll, m.baseURL)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	parts := []string{
		renderHeader(m.health, m.ticker, m.activity, m.theme, m.width, m.now()),
		renderCounters(m.counts, m.theme, m.width),
		renderLogBox(m.log.View(), len(m.eventLog), m.theme, m.width),
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.Rejected.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Scroll"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
