package inbox

import (
	"encoding/json"
	"errors"
	"time"
)

var ErrDeliveryNotFound = errors.New("delivery not found")

// Delivery is a verified callback as stored in the inbox.
type Delivery struct {
	ID         string          `json:"id"`
	Webhook    string          `json:"webhook"`
	EventType  string          `json:"event_type"`
	Body       json.RawMessage `json:"body"`
	BodyDigest string          `json:"body_digest"`
	Signature  string          `json:"signature"`
	SentAt     time.Time       `json:"sent_at"`
	ReceivedAt time.Time       `json:"received_at"`
	RequestID  *string         `json:"request_id,omitempty"`
}

// RecordRequest describes a callback that already passed verification and parsing.
type RecordRequest struct {
	Webhook   string
	EventType string
	// Body is the raw request body; it is stored byte for byte.
	Body      []byte
	Signature string
	// Timestamp is the x-webhook-timestamp header, epoch milliseconds.
	Timestamp string
	RequestID string
}

// ListOptions filters List. Limit <= 0 means DefaultListLimit.
type ListOptions struct {
	Limit     int
	EventType string
}

const DefaultListLimit = 50
