package watch

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/scrapehook/internal/auth"
	"github.com/mattjoyce/scrapehook/internal/events"
)

func TestReadStream(t *testing.T) {
	stream := ": keep-alive\n\n" +
		"id: 7\nevent: delivery.accepted\ndata: {\"delivery_id\":\"d-1\",\"webhook\":\"job-1\",\"event_type\":\"links\"}\n\n" +
		"id: 8\nevent: delivery.rejected\ndata: {\"reason\":\"stale timestamp\"}\n\n"

	ch := make(chan events.Event, 4)
	require.NoError(t, readStream(strings.NewReader(stream), ch))
	close(ch)

	var got []events.Event
	for ev := range ch {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[0].ID)
	assert.Equal(t, events.VerdictAccepted, got[0].Verdict)
	assert.Equal(t, events.Delivery{DeliveryID: "d-1", Webhook: "job-1", EventType: "links"}, got[0].Delivery)
	assert.Equal(t, events.VerdictRejected, got[1].Verdict)
	assert.Equal(t, "stale timestamp", got[1].Delivery.Reason)
}

func TestReadStreamBadData(t *testing.T) {
	ch := make(chan events.Event, 1)
	err := readStream(strings.NewReader("id: 1\nevent: delivery.accepted\ndata: {nope\n\n"), ch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode event 1")
}

func TestSubscribeSendsTokenAndLastEventID(t *testing.T) {
	var gotLastID string
	handler := auth.RequireToken("reader")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLastID = r.Header.Get("Last-Event-ID")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "id: 4\nevent: delivery.duplicate\ndata: {\"webhook\":\"job-4\"}\n\n")
	}))
	srv := httptest.NewServer(handler)
	defer srv.Close()

	ch := make(chan events.Event, 4)
	msg := subscribeToEvents(srv.Client(), srv.URL, "reader", 3, ch)()

	disconnected, ok := msg.(sseDisconnectedMsg)
	require.True(t, ok, "got %T", msg)
	assert.NoError(t, disconnected.err)
	assert.Equal(t, "3", gotLastID)

	select {
	case ev := <-ch:
		assert.Equal(t, int64(4), ev.ID)
		assert.Equal(t, events.VerdictDuplicate, ev.Verdict)
		assert.Equal(t, "job-4", ev.Delivery.Webhook)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestSubscribeOmitsLastEventIDOnFirstConnect(t *testing.T) {
	seen := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = r.Header["Last-Event-Id"]
	}))
	defer srv.Close()

	subscribeToEvents(srv.Client(), srv.URL, "reader", 0, make(chan events.Event, 1))()
	assert.False(t, seen)
}

func TestSubscribeWrongToken(t *testing.T) {
	srv := httptest.NewServer(auth.RequireToken("reader")(http.NotFoundHandler()))
	defer srv.Close()

	msg := subscribeToEvents(srv.Client(), srv.URL, "writer", 0, make(chan events.Event, 1))()
	disconnected, ok := msg.(sseDisconnectedMsg)
	require.True(t, ok, "got %T", msg)
	require.Error(t, disconnected.err)
	assert.Contains(t, disconnected.err.Error(), "401")
}

func TestSubscribeReplaysFromHub(t *testing.T) {
	hub := events.NewHub(8)
	hub.Publish(events.VerdictAccepted, events.Delivery{Webhook: "job-1"})
	hub.Publish(events.VerdictRejected, events.Delivery{Reason: "verification"})
	hub.Publish(events.VerdictInvalid, events.Delivery{Reason: "unknown event type"})

	srv := httptest.NewServer(auth.RequireToken("reader")(hub))
	defer srv.Close()

	ch := make(chan events.Event, 8)
	go subscribeToEvents(srv.Client(), srv.URL, "reader", 1, ch)()

	var got []events.Verdict
	for len(got) < 2 {
		select {
		case ev := <-ch:
			got = append(got, ev.Verdict)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %v", got)
		}
	}
	assert.Equal(t, []events.Verdict{events.VerdictRejected, events.VerdictInvalid}, got)
	srv.CloseClientConnections()
}

func TestFetchHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	msg := fetchHealth(srv.Client(), srv.URL)
	assert.Equal(t, healthMsg{Status: "ok"}, msg)
}

func TestFetchHealthUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, ok := fetchHealth(srv.Client(), srv.URL).(errMsg)
	assert.True(t, ok)
}
