// Package memstore is a process-local EventStore for tests and development.
// Claims do not survive a restart.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"
)

var _ application.EventStore = (*Store)(nil)

type Store struct {
	mu     sync.RWMutex
	byKey  map[domain.Key]int // index into events
	events []domain.Event     // insertion order
	seq    int64
	last   time.Time
	now    func() time.Time
}

type Option func(*Store)

// WithNow overrides the clock used for stored_at.
func WithNow(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func New(opts ...Option) *Store {
	s := &Store{byKey: map[domain.Key]int{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertIfAbsent checks and claims the key under one write lock.
func (s *Store) InsertIfAbsent(ctx context.Context, ev domain.Event) (domain.InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.InsertResult{}, fmt.Errorf("insert event: %w: %w", application.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := ev.Key()
	if _, ok := s.byKey[k]; ok {
		return domain.InsertResult{}, nil
	}
	storedAt := s.now().UTC()
	if storedAt.Before(s.last) {
		storedAt = s.last
	}
	s.last = storedAt
	s.seq++

	ev.StoredAt = storedAt
	ev.SequenceID = s.seq
	ev.Payload = append([]byte(nil), ev.Payload...)
	s.byKey[k] = len(s.events)
	s.events = append(s.events, ev)
	return domain.InsertResult{Inserted: true, StoredAt: storedAt, SequenceID: s.seq}, nil
}

func (s *Store) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

// List walks insertion order backwards; stored_at is non-decreasing in that
// order, so this is (stored_at, sequence_id) descending.
func (s *Store) List(_ context.Context, q domain.ListQuery) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, 0, min(q.Limit, len(s.events)))
	for i := len(s.events) - 1; i >= 0 && len(out) < q.Limit; i-- {
		ev := s.events[i]
		if q.Before > 0 && ev.SequenceID >= q.Before {
			continue
		}
		if q.Topic != "" && ev.Topic != q.Topic {
			continue
		}
		ev.Payload = append([]byte(nil), ev.Payload...)
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }
