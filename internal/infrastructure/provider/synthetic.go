package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"

	"github.com/google/uuid"
)

var _ application.EventSource = (*Synthetic)(nil)

var (
	Topics = []string{
		"payment-processed",
		"order-created",
		"inventory-update",
		"user-signup",
		"shipping-status",
		"system-alert",
	}
	Sources = []string{
		"payment-service-01",
		"order-service-west",
		"inventory-worker-03",
		"auth-service-prod",
		"logistics-gateway",
		"backend-api-node-05",
	}
)

// Synthetic produces fresh random events with unique ids.
type Synthetic struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewSynthetic(seed uint64) *Synthetic {
	return &Synthetic{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: time.Now}
}

func (s *Synthetic) Next(_ context.Context) (domain.Event, error) {
	s.mu.Lock()
	topic := Topics[s.rnd.IntN(len(Topics))]
	source := Sources[s.rnd.IntN(len(Sources))]
	payload := s.payload(topic)
	s.mu.Unlock()

	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("encode payload: %w", err)
	}
	return domain.Event{
		Topic:      topic,
		EventID:    uuid.NewString(),
		OccurredAt: s.now().UTC(),
		Source:     source,
		Payload:    raw,
	}, nil
}

// between returns a uniform int in [lo, hi].
func (s *Synthetic) between(lo, hi int) int { return lo + s.rnd.IntN(hi-lo+1) }

func (s *Synthetic) payload(topic string) map[string]any {
	switch topic {
	case "payment-processed":
		return map[string]any{
			"amount":   s.between(10000, 500000),
			"currency": "IDR",
			"status":   "SUCCESS",
		}
	case "inventory-update":
		return map[string]any{
			"sku": fmt.Sprintf("ITEM-%d", s.between(100, 999)),
			"qty": s.between(-5, 10),
		}
	default:
		return map[string]any{
			"info": "generic log",
			"code": s.between(100, 200),
		}
	}
}

const ReplaySource = "REPLAY-ATTACK-SIMULATOR"

// Replay turns a previously sent key into a resubmission of the same
// (topic, event_id) with a different body.
func Replay(k domain.Key, now time.Time) domain.Event {
	return domain.Event{
		Topic:      k.Topic,
		EventID:    k.EventID,
		OccurredAt: now.UTC(),
		Source:     ReplaySource,
		Payload:    json.RawMessage(`{"retry_count":1,"warning":"duplicate_attempt"}`),
	}
}
