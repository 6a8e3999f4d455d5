package webhook

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/scrapehook/internal/inbox"
)

func (s *Server) handleListDeliveries(w http.ResponseWriter, r *http.Request) {
	opts := inbox.ListOptions{EventType: r.URL.Query().Get("type")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 500 {
			s.respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		opts.Limit = limit
	}

	list, err := s.deliveries.List(r.Context(), opts)
	if err != nil {
		s.logger.Error("failed to list deliveries", "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"deliveries": list})
}

func (s *Server) handleGetDelivery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	d, err := s.deliveries.Get(r.Context(), id)
	if errors.Is(err, inbox.ErrDeliveryNotFound) {
		s.respondError(w, http.StatusNotFound, "delivery not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load delivery", "delivery_id", id, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load delivery")
		return
	}
	s.respondJSON(w, http.StatusOK, d)
}

// handleEvents streams hub events. The server-wide write timeout would cut
// long-lived streams, so it is lifted for this response only.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Debug("could not clear write deadline for event stream", "error", err)
	}
	s.hub.ServeHTTP(w, r)
}
