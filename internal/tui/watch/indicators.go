package watch

import (
	"strings"
	"time"
)

// Ticker alternates frames on every tick; a frozen frame means the view
// stopped updating.
type Ticker struct {
	frames []string
	index  int
}

func NewTicker() Ticker {
	return Ticker{frames: []string{"⟲", "⟳"}}
}

func (t *Ticker) Tick() {
	t.index = (t.index + 1) % len(t.frames)
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

const activityDots = 5

// Activity lights up when a verdict arrives and fades one dot every two
// seconds after that.
type Activity struct {
	dots int
	last time.Time
}

func (a *Activity) OnEvent(now time.Time) {
	a.dots = activityDots
	a.last = now
}

func (a *Activity) Decay(now time.Time) {
	if a.dots == 0 {
		return
	}
	faded := int(now.Sub(a.last) / (2 * time.Second))
	a.dots = max(activityDots-faded, 0)
}

func (a Activity) Render(theme Theme) string {
	var b strings.Builder
	for i := range activityDots {
		if i < a.dots {
			b.WriteString(theme.TickerActive.Render("●"))
		} else {
			b.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return b.String()
}

func (a Activity) Last() time.Time {
	return a.last
}
