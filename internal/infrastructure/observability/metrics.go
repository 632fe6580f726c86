package observability

import (
	"context"
	"time"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var _ application.OutcomeRecorder = (*Metrics)(nil)

// Metrics holds the instruments shared by the HTTP layer and the ingestion
// service.
type Metrics struct {
	HTTPRequestDuration otelmetric.Float64Histogram
	HTTPRequestTotal    otelmetric.Int64Counter

	EventsStored    otelmetric.Int64Counter
	EventsDuplicate otelmetric.Int64Counter
	StoreFailures   otelmetric.Int64Counter
	SubmitDuration  otelmetric.Float64Histogram

	topics map[string]struct{}
}

// OtherTopic labels every topic outside the allow-list passed to NewMetrics.
const OtherTopic = "other"

// NewMetrics registers the instruments. Only the listed topics get their own
// label value; topics are client input and would otherwise grow the series
// set without bound.
func NewMetrics(meter otelmetric.Meter, topics ...string) (*Metrics, error) {
	m := Metrics{topics: make(map[string]struct{}, len(topics))}
	for _, t := range topics {
		m.topics[t] = struct{}{}
	}
	var err error

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("HTTP request duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	m.HTTPRequestTotal, err = meter.Int64Counter(
		"http.request.total",
		otelmetric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsStored, err = meter.Int64Counter(
		"events.stored",
		otelmetric.WithDescription("Submissions that stored a new event"),
	)
	if err != nil {
		return nil, err
	}

	m.EventsDuplicate, err = meter.Int64Counter(
		"events.duplicate",
		otelmetric.WithDescription("Submissions rejected because (topic, event_id) was already stored"),
	)
	if err != nil {
		return nil, err
	}

	m.StoreFailures, err = meter.Int64Counter(
		"events.store_failures",
		otelmetric.WithDescription("Submissions that failed because the store was unavailable"),
	)
	if err != nil {
		return nil, err
	}

	m.SubmitDuration, err = meter.Float64Histogram(
		"events.submit.duration",
		otelmetric.WithUnit("ms"),
		otelmetric.WithDescription("Time spent in the store's conditional insert"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *Metrics) topicLabel(topic string) attribute.KeyValue {
	if _, ok := m.topics[topic]; !ok {
		topic = OtherTopic
	}
	return attribute.String("topic", topic)
}

func (m *Metrics) RecordOutcome(ctx context.Context, topic string, outcome domain.Outcome, took time.Duration) {
	label := m.topicLabel(topic)
	attrs := otelmetric.WithAttributes(label)
	switch outcome {
	case domain.OutcomeStored:
		m.EventsStored.Add(ctx, 1, attrs)
	case domain.OutcomeDuplicateRejected:
		m.EventsDuplicate.Add(ctx, 1, attrs)
	}
	m.SubmitDuration.Record(ctx, float64(took.Microseconds())/1000, otelmetric.WithAttributes(
		label,
		attribute.String("outcome", string(outcome)),
	))
}

func (m *Metrics) RecordFailure(ctx context.Context, topic string) {
	m.StoreFailures.Add(ctx, 1, otelmetric.WithAttributes(m.topicLabel(topic)))
}
