// Package inbox persists verified scrape callbacks and drops replays.
//
// A delivery is identified by the BLAKE3 digest of "{timestamp}.{body}", the
// same content the sender signed. A byte-identical replay inside the freshness
// window therefore maps onto the existing row instead of creating a new one.
package inbox

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/mattjoyce/scrapehook/internal/log"
)

type Inbox struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Inbox)

func WithLogger(logger *slog.Logger) Option {
	return func(i *Inbox) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(i *Inbox) {
		if now != nil {
			i.now = now
		}
	}
}

func New(db *sql.DB, opts ...Option) *Inbox {
	i := &Inbox{
		db:     db,
		logger: log.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Digest returns the dedupe key for a callback.
func Digest(timestamp string, body []byte) string {
	h := blake3.New()
	_, _ = h.Write([]byte(timestamp))
	_, _ = h.Write([]byte{'.'})
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Record stores a delivery. When the same signed content was recorded before,
// the existing delivery is returned with duplicate set to true.
func (i *Inbox) Record(ctx context.Context, req RecordRequest) (delivery *Delivery, duplicate bool, err error) {
	if req.Webhook == "" {
		return nil, false, fmt.Errorf("webhook is empty")
	}
	if req.EventType == "" {
		return nil, false, fmt.Errorf("event type is empty")
	}
	if len(req.Body) == 0 {
		return nil, false, fmt.Errorf("body is empty")
	}
	sentMs, err := strconv.ParseInt(req.Timestamp, 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("timestamp %q: %w", req.Timestamp, err)
	}

	d := &Delivery{
		ID:         uuid.NewString(),
		Webhook:    req.Webhook,
		EventType:  req.EventType,
		Body:       append([]byte(nil), req.Body...),
		BodyDigest: Digest(req.Timestamp, req.Body),
		Signature:  req.Signature,
		SentAt:     time.UnixMilli(sentMs).UTC(),
		ReceivedAt: i.now().UTC(),
	}
	var requestID any
	if req.RequestID != "" {
		d.RequestID = &req.RequestID
		requestID = req.RequestID
	}

	res, err := i.db.ExecContext(ctx, `
INSERT INTO webhook_delivery(
  id, webhook, event_type, body, body_digest, signature, sent_at, received_at, request_id
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(body_digest) DO NOTHING;
`, d.ID, d.Webhook, d.EventType, []byte(d.Body), d.BodyDigest, d.Signature,
		d.SentAt.Format(time.RFC3339Nano), d.ReceivedAt.Format(time.RFC3339Nano), requestID)
	if err != nil {
		return nil, false, fmt.Errorf("record delivery: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("record delivery: %w", err)
	}
	if n == 1 {
		i.logger.Debug("delivery recorded", "delivery_id", d.ID, "event_type", d.EventType)
		return d, false, nil
	}

	existing, err := i.getBy(ctx, "body_digest", d.BodyDigest)
	if err != nil {
		return nil, false, fmt.Errorf("load duplicate delivery: %w", err)
	}
	i.logger.Info("duplicate delivery ignored", "delivery_id", existing.ID, "event_type", existing.EventType)
	return existing, true, nil
}

// Get returns the delivery with id, or ErrDeliveryNotFound.
func (i *Inbox) Get(ctx context.Context, id string) (*Delivery, error) {
	if id == "" {
		return nil, fmt.Errorf("id is empty")
	}
	return i.getBy(ctx, "id", id)
}

// List returns deliveries newest first.
func (i *Inbox) List(ctx context.Context, opts ListOptions) ([]*Delivery, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := selectDelivery
	args := []any{}
	if opts.EventType != "" {
		query += "\nWHERE event_type = ?"
		args = append(args, opts.EventType)
	}
	query += "\nORDER BY received_at DESC, rowid DESC\nLIMIT ?;"
	args = append(args, limit)

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]*Delivery, 0, limit)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("list deliveries: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return out, nil
}

// Count returns the number of stored deliveries.
func (i *Inbox) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM webhook_delivery;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return n, nil
}

const selectDelivery = `
SELECT id, webhook, event_type, body, body_digest, signature, sent_at, received_at, request_id
FROM webhook_delivery`

func (i *Inbox) getBy(ctx context.Context, column, value string) (*Delivery, error) {
	// column is always a literal from this package.
	row := i.db.QueryRowContext(ctx, selectDelivery+"\nWHERE "+column+" = ?;", value)
	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeliveryNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDelivery(s scanner) (*Delivery, error) {
	var (
		d           Delivery
		body        []byte
		sentAtS     string
		receivedAtS string
		requestID   sql.NullString
	)
	if err := s.Scan(&d.ID, &d.Webhook, &d.EventType, &body, &d.BodyDigest, &d.Signature, &sentAtS, &receivedAtS, &requestID); err != nil {
		return nil, err
	}
	d.Body = body
	if t, err := time.Parse(time.RFC3339Nano, sentAtS); err == nil {
		d.SentAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, receivedAtS); err == nil {
		d.ReceivedAt = t
	}
	if requestID.Valid {
		d.RequestID = &requestID.String
	}
	return &d, nil
}
