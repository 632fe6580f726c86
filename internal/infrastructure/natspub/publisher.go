// Package natspub announces newly stored events on NATS core subjects.
package natspub

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const DefaultSubjectPrefix = "events.stored"

var _ application.Notifier = (*Publisher)(nil)

// Publisher is fire-and-forget: a failed publish is logged and dropped.
// A Publisher without a connection is a stub and publishes nothing.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	log    *zap.Logger
}

// Message is the JSON body published for each stored event.
type Message struct {
	Topic      string          `json:"topic"`
	EventID    string          `json:"event_id"`
	Source     string          `json:"source"`
	OccurredAt time.Time       `json:"occurred_at"`
	StoredAt   time.Time       `json:"stored_at"`
	SequenceID int64           `json:"sequence_id"`
	Payload    json.RawMessage `json:"payload"`
}

// New connects to natsURL. An empty URL yields a stub publisher.
func New(natsURL, prefix string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if natsURL == "" {
		log.Warn("NATS_URL not set, stored events will not be published (stub mode)")
		return &Publisher{prefix: prefix, log: log}, nil
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("event-aggregator"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	log.Info("NATS publisher initialised", zap.String("url", nc.ConnectedUrlRedacted()), zap.String("prefix", prefix))
	return &Publisher{nc: nc, prefix: prefix, log: log}, nil
}

// Subject returns the subject an event of the given topic is published on.
func (p *Publisher) Subject(topic string) string {
	return p.prefix + "." + sanitizeToken(topic)
}

func (p *Publisher) EventStored(_ context.Context, ev domain.Event) {
	if p == nil || p.nc == nil {
		return
	}
	subject := p.Subject(ev.Topic)
	data, err := json.Marshal(Message{
		Topic:      ev.Topic,
		EventID:    ev.EventID,
		Source:     ev.Source,
		OccurredAt: ev.OccurredAt,
		StoredAt:   ev.StoredAt,
		SequenceID: ev.SequenceID,
		Payload:    ev.Payload,
	})
	if err != nil {
		p.log.Warn("nats.encode_failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn("nats.publish_failed",
			zap.String("subject", subject),
			zap.String("event_id", ev.EventID),
			zap.Error(err),
		)
		return
	}
	p.log.Debug("nats.published", zap.String("subject", subject), zap.Int64("sequence_id", ev.SequenceID))
}

// Close flushes pending messages and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// sanitizeToken maps a topic onto a single subject token.
func sanitizeToken(topic string) string {
	if topic == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, topic)
}
