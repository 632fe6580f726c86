package application

import (
	"context"
	"fmt"
	"time"

	"event-aggregator/internal/domain"
	"event-aggregator/internal/infrastructure/logx"

	"go.uber.org/zap"
)

const (
	DefaultInsertTimeout = 5 * time.Second
	DefaultListLimit     = 10
	DefaultListMaxLimit  = 1000
)

// IngestionService classifies submissions as stored or duplicate. It keeps
// no dedup state of its own; uniqueness is decided by the store.
type IngestionService struct {
	store         EventStore
	notifier      Notifier
	recorder      OutcomeRecorder
	clock         Clock
	log           *zap.Logger
	insertTimeout time.Duration
	listDefault   int
	listMax       int
}

type Option func(*IngestionService)

func WithClock(c Clock) Option              { return func(s *IngestionService) { s.clock = c } }
func WithNotifier(n Notifier) Option        { return func(s *IngestionService) { s.notifier = n } }
func WithRecorder(r OutcomeRecorder) Option { return func(s *IngestionService) { s.recorder = r } }
func WithLogger(l *zap.Logger) Option       { return func(s *IngestionService) { s.log = l } }

// WithInsertTimeout bounds how long one insert may wait on the store.
func WithInsertTimeout(d time.Duration) Option {
	return func(s *IngestionService) { s.insertTimeout = d }
}

// WithListLimits sets the default and maximum page size for ListEvents.
func WithListLimits(def, max int) Option {
	return func(s *IngestionService) { s.listDefault, s.listMax = def, max }
}

func NewIngestionService(store EventStore, opts ...Option) *IngestionService {
	s := &IngestionService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}
	if s.recorder == nil {
		s.recorder = NopRecorder{}
	}
	if s.log == nil {
		s.log = logx.L()
	}
	if s.insertTimeout <= 0 {
		s.insertTimeout = DefaultInsertTimeout
	}
	if s.listDefault <= 0 {
		s.listDefault = DefaultListLimit
	}
	if s.listMax <= 0 {
		s.listMax = DefaultListMaxLimit
	}
	if s.listDefault > s.listMax {
		s.listDefault = s.listMax
	}
	return s
}

// Submit attempts to claim the candidate's (topic, event_id). The insert runs
// detached from the caller's cancellation so that an abandoned request still
// completes or fails atomically in the store; it is bounded by the insert
// timeout instead. Errors wrap ErrStoreUnavailable, or domain.ErrInvalidEvent
// when the store refuses the data itself.
func (s *IngestionService) Submit(ctx context.Context, cand domain.Event) (domain.SubmitResult, error) {
	log := logx.Enrich(s.log, ctx).With(
		zap.String("topic", cand.Topic),
		zap.String("event_id", cand.EventID),
	)
	start := s.clock.Now()

	insCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.insertTimeout)
	defer cancel()

	res, err := s.store.InsertIfAbsent(insCtx, cand)
	if err != nil {
		s.recorder.RecordFailure(ctx, cand.Topic)
		log.Error("event.store_failed", zap.Error(err))
		return domain.SubmitResult{}, err
	}
	took := s.clock.Now().Sub(start)

	if !res.Inserted {
		s.recorder.RecordOutcome(ctx, cand.Topic, domain.OutcomeDuplicateRejected, took)
		log.Info("event.duplicate_ignored", zap.Duration("took", took))
		return domain.SubmitResult{Outcome: domain.OutcomeDuplicateRejected, Event: cand}, nil
	}

	stored := cand
	stored.StoredAt = res.StoredAt
	stored.SequenceID = res.SequenceID
	s.recorder.RecordOutcome(ctx, cand.Topic, domain.OutcomeStored, took)
	s.notifier.EventStored(ctx, stored)
	log.Info("event.stored",
		zap.Int64("sequence_id", res.SequenceID),
		zap.Time("stored_at", res.StoredAt),
		zap.Duration("took", took),
	)
	return domain.SubmitResult{Outcome: domain.OutcomeStored, Event: stored}, nil
}

func (s *IngestionService) Stats(ctx context.Context) (domain.Stats, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count events: %w", err)
	}
	return domain.Stats{UniqueEventsStored: n}, nil
}

// ListEvents returns stored events most recent first. A non-positive limit
// falls back to the default page size; larger limits are clamped.
func (s *IngestionService) ListEvents(ctx context.Context, q domain.ListQuery) ([]domain.Event, error) {
	q.Limit = s.normalizeLimit(q.Limit)
	out, err := s.store.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return out, nil
}

func (s *IngestionService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *IngestionService) normalizeLimit(n int) int {
	switch {
	case n <= 0:
		return s.listDefault
	case n > s.listMax:
		return s.listMax
	}
	return n
}
