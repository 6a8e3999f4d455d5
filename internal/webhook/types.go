package webhook

import (
	"context"
	"time"

	"github.com/mattjoyce/scrapehook/internal/inbox"
)

//go:generate mockgen -destination=mocks/mock_sink.go -package=mocks github.com/mattjoyce/scrapehook/internal/webhook DeliverySink

// Callback headers set by the scrape service.
const (
	HeaderSignature = "x-webhook-signature"
	HeaderTimestamp = "x-webhook-timestamp"
)

// DeliverySink receives callbacks that passed verification and parsing.
type DeliverySink interface {
	Record(ctx context.Context, req inbox.RecordRequest) (*inbox.Delivery, bool, error)
}

// DeliveryReader backs the read-only delivery API.
type DeliveryReader interface {
	Get(ctx context.Context, id string) (*inbox.Delivery, error)
	List(ctx context.Context, opts inbox.ListOptions) ([]*inbox.Delivery, error)
}

// Config holds callback receiver configuration.
type Config struct {
	Listen string
	// Path is the callback route, e.g. "/api/scrape-callback".
	Path string
	// Secret is the shared API key used to verify signatures.
	Secret string
	// MaxAge is the replay window; zero means DefaultMaxAge.
	MaxAge time.Duration
	// MaxBodySize is the maximum accepted body in bytes (default: 1MB).
	MaxBodySize int64
	// APIToken enables the bearer-protected delivery API when set.
	APIToken string
}

// CallbackResponse is the JSON response for accepted callbacks.
type CallbackResponse struct {
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Duplicate  bool   `json:"duplicate"`
}

// ErrorResponse is the JSON response for rejected callbacks.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Default values
const (
	DefaultPath        = "/api/scrape-callback"
	DefaultMaxBodySize = 1048576 // 1 MB
)
