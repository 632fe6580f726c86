package worker

import (
	"context"
	"encoding/json"
	"time"

	"event-aggregator/internal/domain"
	"event-aggregator/internal/infrastructure/httpx"
)

// Sender delivers one event to the aggregator and returns the status it
// reported ("processed" or "ignored_duplicate").
type Sender interface {
	Send(ctx context.Context, ev domain.Event) (string, error)
}

type publishRequest struct {
	Topic      string          `json:"topic"`
	EventID    string          `json:"event_id"`
	OccurredAt string          `json:"occurred_at"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
}

type publishResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// HTTPSender posts events to the aggregator's /publish endpoint.
type HTTPSender struct {
	Client *httpx.Client
	URL    string
}

func (s *HTTPSender) Send(ctx context.Context, ev domain.Event) (string, error) {
	var out publishResponse
	err := s.Client.PostJSON(ctx, s.URL, publishRequest{
		Topic:      ev.Topic,
		EventID:    ev.EventID,
		OccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339Nano),
		Source:     ev.Source,
		Payload:    ev.Payload,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Status, nil
}
