package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"event-aggregator/internal/domain"
)

const timeLayout = time.RFC3339Nano

// naiveLayouts are accepted for timestamps without a zone; they are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type publishRequest struct {
	Topic      *string         `json:"topic"`
	EventID    *string         `json:"event_id"`
	OccurredAt *string         `json:"occurred_at"`
	Timestamp  *string         `json:"timestamp"`
	Source     *string         `json:"source"`
	Payload    json.RawMessage `json:"payload"`
}

// decodePublish reads one JSON object from body and turns it into a
// validated candidate event. Unknown fields are ignored; trailing data is
// rejected.
func decodePublish(body io.Reader) (domain.Event, error) {
	dec := json.NewDecoder(body)

	var req publishRequest
	if err := dec.Decode(&req); err != nil {
		return domain.Event{}, decodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Event{}, err
		}
		return domain.Event{}, errors.New("request body must contain a single JSON object")
	}

	ts := req.OccurredAt
	if ts == nil {
		ts = req.Timestamp
	}
	if ts == nil || *ts == "" {
		return domain.Event{}, &domain.ValidationError{Field: "occurred_at", Reason: "is required"}
	}
	occurredAt, err := parseTimestamp(*ts)
	if err != nil {
		return domain.Event{}, &domain.ValidationError{Field: "occurred_at", Reason: "must be an RFC 3339 timestamp"}
	}

	ev := domain.Event{
		Topic:      deref(req.Topic),
		EventID:    deref(req.EventID),
		OccurredAt: occurredAt,
		Source:     deref(req.Source),
		Payload:    bytes.TrimSpace(req.Payload),
	}
	if err := domain.ValidateCandidate(ev); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q", s)
}

func decodeError(err error) error {
	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.Is(err, io.EOF):
		return errors.New("request body is required")
	case errors.As(err, &typeErr) && typeErr.Field == "":
		return errors.New("request body must be a JSON object")
	case errors.As(err, &typeErr):
		return &domain.ValidationError{Field: typeErr.Field, Reason: "must be a " + typeErr.Type.String()}
	case errors.As(err, &syntaxErr):
		return fmt.Errorf("malformed JSON at offset %d", syntaxErr.Offset)
	}
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
