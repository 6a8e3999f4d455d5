// Package scrape submits asynchronous scrape jobs and checks the callbacks
// they produce.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/scrapehook/internal/event"
	"github.com/mattjoyce/scrapehook/internal/log"
	"github.com/mattjoyce/scrapehook/internal/webhook"
)

// HeaderAPIKey carries the API key on submissions.
const HeaderAPIKey = "x-api-key"

// DefaultTimeout bounds a single submission.
const DefaultTimeout = 60 * time.Second

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

// Request is a scrape job submission.
type Request struct {
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	CallbackURL string `json:"callbackUrl"`
	// ID is echoed back as the callback's webhook field. Generated when empty.
	ID string `json:"id"`
}

// Response is the service acknowledgement. Body is whatever the service
// returned; its shape is not part of the contract.
type Response struct {
	ID         string
	StatusCode int
	Body       json.RawMessage
}

// Client talks to the scrape service on behalf of a single API key.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	verifier   *webhook.Verifier
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// WithClock sets the clock used by VerifyWebhook.
func WithClock(now func() time.Time) Option {
	return func(cl *Client) { cl.verifier = webhook.NewVerifier(now) }
}

// NewClient returns a client for apiURL. apiURL may be empty when the
// client is only used to verify callbacks.
func NewClient(apiURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		apiURL:     strings.TrimSpace(apiURL),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		verifier:   webhook.NewVerifier(nil),
		logger:     log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scrape submits req. The result arrives later as a signed callback to
// req.CallbackURL.
func (c *Client) Scrape(ctx context.Context, req Request) (*Response, error) {
	if err := c.validate(req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, invalidRequest("encode request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, invalidRequest("build request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(HeaderAPIKey, c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "read response", Cause: err}
	}

	c.logger.Debug("scrape submitted",
		"id", req.ID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Kind:       KindHTTPStatus,
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	out := &Response{ID: req.ID, StatusCode: resp.StatusCode}
	if len(bytes.TrimSpace(body)) > 0 {
		if !json.Valid(body) {
			return nil, &Error{Kind: KindInvalidResponse, StatusCode: resp.StatusCode, Message: "response is not JSON"}
		}
		out.Body = json.RawMessage(body)
	}
	return out, nil
}

// VerifyWebhook checks a callback against this client's API key.
func (c *Client) VerifyWebhook(body []byte, signature, timestamp string, maxAge time.Duration) (bool, error) {
	return c.verifier.Verify(webhook.VerifyOptions{
		Body:      body,
		Signature: signature,
		Timestamp: timestamp,
		Secret:    c.apiKey,
		MaxAge:    maxAge,
	})
}

// ParseEvent decodes a verified callback body.
func (c *Client) ParseEvent(body []byte) (*event.Envelope, error) {
	return event.ParseEvent(body)
}

func (c *Client) validate(req Request) error {
	if c.apiURL == "" {
		return invalidRequest("api url is not configured")
	}
	if c.apiKey == "" {
		return invalidRequest("api key is not configured")
	}
	if strings.TrimSpace(req.URL) == "" {
		return invalidRequest("url is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return invalidRequest("prompt is required")
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalidRequest("callback url %q must be an absolute http(s) url", req.CallbackURL)
		}
	}
	return nil
}

func classifyTransportError(ctx context.Context, err error) *Error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Kind: KindCancelled, Message: "request cancelled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	return &Error{Kind: KindNetwork, Message: "post scrape request", Cause: err}
}
