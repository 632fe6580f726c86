package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"
	infraconfig "event-aggregator/internal/infrastructure/config"
	"event-aggregator/internal/infrastructure/logx"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"
)

const statsNote = "Duplicate events are dropped by Database Constraints"

type Server struct {
	svc         *application.IngestionService
	ping        func(ctx context.Context) error
	metrics     http.Handler
	corsOrigins []string
	middlewares []func(http.Handler) http.Handler
	maxBody     int64
}

func NewServer(svc *application.IngestionService) *Server {
	return &Server{svc: svc, ping: svc.Ready, maxBody: infraconfig.DefaultMaxBodyBytes}
}


// SetMetricsHandler mounts h at /metrics.
func (s *Server) SetMetricsHandler(h http.Handler) { s.metrics = h }

func (s *Server) SetCORSOrigins(origins []string) { s.corsOrigins = origins }

// Use appends middlewares that run after the built-in ones.
func (s *Server) Use(mw ...func(http.Handler) http.Handler) {
	s.middlewares = append(s.middlewares, mw...)
}

type publishResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

type statsResponse struct {
	UniqueEventsStored int64  `json:"unique_events_stored"`
	Note               string `json:"note"`
}

type eventResponse struct {
	SequenceID int64           `json:"sequence_id"`
	Topic      string          `json:"topic"`
	EventID    string          `json:"event_id"`
	OccurredAt string          `json:"occurred_at"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
	StoredAt   string          `json:"stored_at"`
}

func (s *Server) Publish(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	cand, err := decodePublish(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeValidationError(w, err)
		return
	}

	res, err := s.svc.Submit(r.Context(), cand)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, publishResponse{
		Status:  mapOutcome(res.Outcome),
		EventID: res.Event.EventID,
	})
}

func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{UniqueEventsStored: st.UniqueEventsStored, Note: statsNote})
}

func (s *Server) ListEvents(w http.ResponseWriter, r *http.Request) {
	var (
		topic  string
		limit  *int
		before *int64
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "topic", query, &topic); err != nil {
		writeFieldError(w, "topic", "invalid value")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeFieldError(w, "limit", "must be an integer")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "before", query, &before); err != nil {
		writeFieldError(w, "before", "must be an integer")
		return
	}
	if limit != nil && *limit <= 0 {
		writeFieldError(w, "limit", "must be positive")
		return
	}
	if before != nil && *before <= 0 {
		writeFieldError(w, "before", "must be positive")
		return
	}

	q := domain.ListQuery{Topic: topic}
	if limit != nil {
		q.Limit = *limit
	}
	if before != nil {
		q.Before = *before
	}
	events, err := s.svc.ListEvents(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func toEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		SequenceID: e.SequenceID,
		Topic:      e.Topic,
		EventID:    e.EventID,
		OccurredAt: e.OccurredAt.UTC().Format(timeLayout),
		Source:     e.Source,
		Payload:    e.Payload,
		StoredAt:   e.StoredAt.UTC().Format(timeLayout),
	}
}

func mapOutcome(o domain.Outcome) string {
	switch o {
	case domain.OutcomeStored:
		return "processed"
	case domain.OutcomeDuplicateRejected:
		return "ignored_duplicate"
	default:
		return string(o)
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, application.ErrStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	if errors.Is(err, domain.ErrInvalidEvent) {
		logx.WithFields(r.Context()).Warn("http.event_rejected", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, "event rejected by store")
		return
	}
	logx.WithFields(r.Context()).Error("http.internal_error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
