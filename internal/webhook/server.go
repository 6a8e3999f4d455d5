package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/scrapehook/internal/auth"
	"github.com/mattjoyce/scrapehook/internal/event"
	"github.com/mattjoyce/scrapehook/internal/events"
	"github.com/mattjoyce/scrapehook/internal/inbox"
	"github.com/mattjoyce/scrapehook/internal/log"
)

// Server represents the callback receiver HTTP server.
type Server struct {
	config     Config
	sink       DeliverySink
	deliveries DeliveryReader
	hub        *events.Hub
	verifier   *Verifier
	logger     *slog.Logger
	server     *http.Server
}

type Option func(*Server)

// WithDeliveries enables GET /deliveries when Config.APIToken is set.
func WithDeliveries(r DeliveryReader) Option {
	return func(s *Server) { s.deliveries = r }
}

// WithEvents publishes receiver activity to hub and enables GET /events when
// Config.APIToken is set.
func WithEvents(hub *events.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithClock sets the clock used for timestamp freshness.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.verifier = NewVerifier(now) }
}

// New creates a new receiver. sink may be nil, in which case verified
// callbacks are acknowledged without being stored.
func New(config Config, sink DeliverySink, logger *slog.Logger, opts ...Option) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		config:   config,
		sink:     sink,
		verifier: &Verifier{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the receiver (blocking) until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.config.Secret == "" {
		return fmt.Errorf("webhook server: secret is not configured")
	}

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting", "listen", s.config.Listen, "path", s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Post(s.config.Path, s.handleCallback)

	if s.config.APIToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireToken(s.config.APIToken))
			if s.deliveries != nil {
				r.Get("/deliveries", s.handleListDeliveries)
				r.Get("/deliveries/{id}", s.handleGetDelivery)
			}
			if s.hub != nil {
				r.Get("/events", s.handleEvents)
			}
		})
	}

	return r
}

// loggingMiddleware logs HTTP requests (excludes bodies and signatures).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCallback verifies, parses and records an incoming callback.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxBodySize+1))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	sig := r.Header.Get(HeaderSignature)
	ts := r.Header.Get(HeaderTimestamp)
	if sig == "" || ts == "" {
		s.logger.Warn("webhook signature headers missing",
			"path", r.URL.Path,
			"has_signature", sig != "",
			"has_timestamp", ts != "",
		)
		s.reject(w, "missing_headers")
		return
	}

	ok, err := s.verifier.Verify(VerifyOptions{
		Body:      body,
		Signature: sig,
		Timestamp: ts,
		Secret:    s.config.Secret,
		MaxAge:    s.config.MaxAge,
	})
	if err != nil {
		var mpe *MissingParameterError
		if errors.As(err, &mpe) {
			s.logger.Warn("webhook verification precondition failed", "path", r.URL.Path, "parameter", mpe.Name)
		} else {
			s.logger.Error("webhook verification error", "path", r.URL.Path, "error", err)
		}
		s.reject(w, "precondition")
		return
	}
	if !ok {
		s.logger.Warn("webhook signature verification failed", "path", r.URL.Path)
		s.reject(w, "verification")
		return
	}

	env, err := event.ParseEvent(body)
	if err != nil {
		s.handleInvalidEvent(w, r, err)
		return
	}

	resp := CallbackResponse{Status: "ok"}
	if s.sink != nil {
		delivery, duplicate, err := s.sink.Record(ctx, inbox.RecordRequest{
			Webhook:   env.Webhook,
			EventType: string(env.Event.Type()),
			Body:      body,
			Signature: sig,
			Timestamp: ts,
			RequestID: middleware.GetReqID(ctx),
		})
		if err != nil {
			s.logger.Error("failed to record delivery",
				"path", r.URL.Path,
				"event_type", env.Event.Type(),
				"error", err,
			)
			s.respondError(w, http.StatusInternalServerError, "failed to record delivery")
			return
		}
		resp.DeliveryID = delivery.ID
		resp.Duplicate = duplicate
	}

	verdict := events.VerdictAccepted
	if resp.Duplicate {
		verdict = events.VerdictDuplicate
	}
	s.publish(verdict, events.Delivery{
		DeliveryID: resp.DeliveryID,
		Webhook:    env.Webhook,
		EventType:  string(env.Event.Type()),
	})

	s.logger.Info("webhook delivery accepted",
		"webhook", env.Webhook,
		"event_type", env.Event.Type(),
		"delivery_id", resp.DeliveryID,
		"duplicate", resp.Duplicate,
	)
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInvalidEvent(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusUnprocessableEntity
	resp := ErrorResponse{Error: "invalid event"}

	var (
		sve *event.SchemaValidationError
		uve *event.UnknownVariantError
	)
	switch {
	case errors.Is(err, event.ErrParse):
		status = http.StatusBadRequest
		resp.Error = "malformed JSON"
	case errors.As(err, &uve):
		resp.Error = "unknown event type"
		resp.Field = "data.type"
	case errors.As(err, &sve):
		resp.Error = "invalid event payload"
		resp.Field = sve.Field
	}

	s.logger.Warn("webhook event rejected", "path", r.URL.Path, "status", status, "error", err)
	s.publish(events.VerdictInvalid, events.Delivery{Reason: resp.Error, Field: resp.Field})
	s.respondJSON(w, status, resp)
}

// reject answers 403 without telling the sender which check failed.
func (s *Server) reject(w http.ResponseWriter, reason string) {
	s.publish(events.VerdictRejected, events.Delivery{Reason: reason})
	s.respondError(w, http.StatusForbidden, "forbidden")
}

func (s *Server) publish(v events.Verdict, d events.Delivery) {
	if s.hub != nil {
		s.hub.Publish(v, d)
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
