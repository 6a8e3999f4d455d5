// Package events fans receiver verdicts out to live subscribers.
package events

import (
	"sync"
	"time"
)

// Verdict is what the receiver decided about one callback.
type Verdict string

const (
	VerdictAccepted  Verdict = "delivery.accepted"
	VerdictDuplicate Verdict = "delivery.duplicate"
	VerdictRejected  Verdict = "delivery.rejected"
	VerdictInvalid   Verdict = "delivery.invalid"
)

// Verdicts lists every verdict in display order.
var Verdicts = []Verdict{VerdictAccepted, VerdictDuplicate, VerdictRejected, VerdictInvalid}

// Delivery describes the callback a verdict is about. Rejected callbacks
// carry only Reason; nothing from an unverified body is published.
type Delivery struct {
	DeliveryID string `json:"delivery_id,omitempty"`
	Webhook    string `json:"webhook,omitempty"`
	EventType  string `json:"event_type,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Field      string `json:"field,omitempty"`
}

// Event is one published verdict.
type Event struct {
	ID       int64     `json:"id"`
	Verdict  Verdict   `json:"type"`
	At       time.Time `json:"at"`
	Delivery Delivery  `json:"data"`
}

// Hub keeps the most recent events in a ring for clients that reconnect,
// and running totals per verdict since start.
type Hub struct {
	now func() time.Time

	mu     sync.Mutex
	lastID int64
	ring   []Event
	start  int
	size   int
	counts map[Verdict]int64

	subs      map[int]chan Event
	nextSubID int
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 100
	}
	return &Hub{
		now:    time.Now,
		ring:   make([]Event, capacity),
		counts: make(map[Verdict]int64, len(Verdicts)),
		subs:   make(map[int]chan Event),
	}
}

// Publish records a verdict and offers it to every subscriber. Subscribers
// that are not keeping up miss the event rather than blocking the receiver.
func (h *Hub) Publish(v Verdict, d Delivery) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev := Event{ID: h.lastID, Verdict: v, At: h.now().UTC(), Delivery: d}
	h.counts[v]++
	h.pushLocked(ev)

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	return ev
}

// Counts returns the number of events published per verdict.
func (h *Hub) Counts() map[Verdict]int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[Verdict]int64, len(h.counts))
	for v, n := range h.counts {
		out[v] = n
	}
	return out
}

func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, 64)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Since returns buffered events with ID > lastID, oldest first.
func (h *Hub) Since(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		if ev := h.ring[(h.start+i)%len(h.ring)]; ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) pushLocked(ev Event) {
	if h.size < len(h.ring) {
		h.ring[(h.start+h.size)%len(h.ring)] = ev
		h.size++
		return
	}
	h.ring[h.start] = ev
	h.start = (h.start + 1) % len(h.ring)
}
