package application

import (
	"context"
	"time"

	"event-aggregator/internal/domain"
)

// EventStore is the durable event collection. InsertIfAbsent must check and
// claim (topic, event_id) in one indivisible storage operation: with N
// concurrent callers on the same key exactly one observes Inserted.
type EventStore interface {
	InsertIfAbsent(ctx context.Context, ev domain.Event) (domain.InsertResult, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context, q domain.ListQuery) ([]domain.Event, error)
	Ping(ctx context.Context) error
}

// Notifier receives newly stored events. Delivery is best effort and must
// never block or fail a submission.
type Notifier interface {
	EventStored(ctx context.Context, ev domain.Event)
}

// OutcomeRecorder collects submission metrics.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, topic string, outcome domain.Outcome, took time.Duration)
	RecordFailure(ctx context.Context, topic string)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type NopNotifier struct{}

func (NopNotifier) EventStored(context.Context, domain.Event) {}

type NopRecorder struct{}

func (NopRecorder) RecordOutcome(context.Context, string, domain.Outcome, time.Duration) {}
func (NopRecorder) RecordFailure(context.Context, string)                                {}

// EventSource produces fresh candidate events for the generator.
type EventSource interface {
	Next(ctx context.Context) (domain.Event, error)
}
