package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTopicLen   = 255
	MaxEventIDLen = 255
	MaxSourceLen  = 255
)

var ErrInvalidEvent = errors.New("invalid event")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidEvent }

// ValidateCandidate checks the structural shape of a candidate event before it
// is handed to the ingestion service.
func ValidateCandidate(e Event) error {
	if err := validateText("topic", e.Topic, MaxTopicLen); err != nil {
		return err
	}
	if err := validateText("event_id", e.EventID, MaxEventIDLen); err != nil {
		return err
	}
	if err := validateText("source", e.Source, MaxSourceLen); err != nil {
		return err
	}
	if e.OccurredAt.IsZero() {
		return &ValidationError{Field: "occurred_at", Reason: "is required"}
	}
	return ValidatePayload(e.Payload)
}

// ValidatePayload accepts only a JSON object encoded as UTF-8. json.Valid
// does not look inside string literals, so the encoding is checked separately.
func ValidatePayload(p json.RawMessage) error {
	trimmed := bytes.TrimSpace(p)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &ValidationError{Field: "payload", Reason: "is required"}
	}
	if !utf8.Valid(trimmed) {
		return &ValidationError{Field: "payload", Reason: "must be valid UTF-8"}
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return &ValidationError{Field: "payload", Reason: "must be a JSON object"}
	}
	return nil
}

func validateText(field, v string, max int) error {
	switch {
	case v == "":
		return &ValidationError{Field: field, Reason: "is required"}
	case len(v) > max:
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d bytes", max)}
	case !utf8.ValidString(v):
		return &ValidationError{Field: field, Reason: "must be valid UTF-8"}
	case strings.ContainsRune(v, 0):
		return &ValidationError{Field: field, Reason: "must not contain NUL characters"}
	}
	return nil
}
