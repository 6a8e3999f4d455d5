package event

import "encoding/json"

// Type is the data.type discriminator of a callback.
type Type string

const (
	TypeLinks   Type = "links"
	TypeScraped Type = "scraped"
	TypeExplore Type = "explore"
)

// Envelope is a decoded callback.
type Envelope struct {
	Webhook string
	Event   Event
	Headers map[string]string
}

// Event is one of *LinksEvent, *ScrapedEvent or *ExploreEvent.
type Event interface {
	Type() Type
	event()
}

// LinksEvent lists the links discovered on a host.
type LinksEvent struct {
	Links []string `json:"links"`
	Host  string   `json:"host"`
}

// ScrapedEvent carries the result of scraping a single URL.
type ScrapedEvent struct {
	URL     string `json:"url"`
	Results string `json:"results"`
}

// ExploreEvent reports exploration progress: pages explored so far and
// links found so far.
type ExploreEvent struct {
	Explored Progress `json:"explored"`
	Found    Progress `json:"found"`
}

// Progress is one explore figure. The service sends either a running count
// or the URLs themselves; URLs is non-nil only in the second case.
type Progress struct {
	Count int
	URLs  []string
}

// Len is the number of URLs covered, whichever form was sent.
func (p Progress) Len() int {
	if p.URLs != nil {
		return len(p.URLs)
	}
	return p.Count
}

// MarshalJSON writes the form that was received.
func (p Progress) MarshalJSON() ([]byte, error) {
	if p.URLs != nil {
		return json.Marshal(p.URLs)
	}
	return json.Marshal(p.Count)
}

func (*LinksEvent) Type() Type   { return TypeLinks }
func (*ScrapedEvent) Type() Type { return TypeScraped }
func (*ExploreEvent) Type() Type { return TypeExplore }

func (*LinksEvent) event()   {}
func (*ScrapedEvent) event() {}
func (*ExploreEvent) event() {}

func IsLinksEvent(e Event) bool {
	_, ok := e.(*LinksEvent)
	return ok
}

func IsScrapedEvent(e Event) bool {
	_, ok := e.(*ScrapedEvent)
	return ok
}

func IsExploreEvent(e Event) bool {
	_, ok := e.(*ExploreEvent)
	return ok
}

// Links returns the links variant, if that is what the envelope carries.
func (e *Envelope) Links() (*LinksEvent, bool) {
	if e == nil {
		return nil, false
	}
	ev, ok := e.Event.(*LinksEvent)
	return ev, ok
}

// Scraped returns the scraped variant, if that is what the envelope carries.
func (e *Envelope) Scraped() (*ScrapedEvent, bool) {
	if e == nil {
		return nil, false
	}
	ev, ok := e.Event.(*ScrapedEvent)
	return ev, ok
}

// Explore returns the explore variant, if that is what the envelope carries.
func (e *Envelope) Explore() (*ExploreEvent, bool) {
	if e == nil {
		return nil, false
	}
	ev, ok := e.Event.(*ExploreEvent)
	return ev, ok
}
