package domain

import (
	"encoding/json"
	"time"
)

// Event is a stored (or candidate) event. StoredAt and SequenceID are zero
// on candidates and assigned by the store on a successful insert.
type Event struct {
	Topic      string
	EventID    string
	OccurredAt time.Time
	Source     string
	Payload    json.RawMessage
	StoredAt   time.Time
	SequenceID int64
}

// Key identifies the claim an event makes in the store.
type Key struct {
	Topic   string
	EventID string
}

func (e Event) Key() Key { return Key{Topic: e.Topic, EventID: e.EventID} }

// InsertResult is what the store reports for one insertIfAbsent attempt.
// When Inserted is false the pair was already claimed and the other fields are zero.
type InsertResult struct {
	Inserted   bool
	StoredAt   time.Time
	SequenceID int64
}
