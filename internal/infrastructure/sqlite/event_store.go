package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"
	"event-aggregator/internal/infrastructure/logx"

	"go.uber.org/zap"
)

var _ application.EventStore = (*Store)(nil)

// Store keeps events in the events table. stored_at is unix nanoseconds and
// is raised to the current maximum on insert so it never goes backwards.
// Inserts go through the writer; Count, List and Ping use the read pool.
type Store struct {
	db  *DB
	now func() time.Time
}

func NewStore(db *DB) *Store { return &Store{db: db, now: time.Now} }

func (s *Store) InsertIfAbsent(ctx context.Context, ev domain.Event) (domain.InsertResult, error) {
	const ins = `
        INSERT INTO events(topic, event_id, occurred_at, source, payload, stored_at)
        VALUES (?, ?, ?, ?, ?, MAX(?, COALESCE((SELECT MAX(stored_at) FROM events), 0)))
        ON CONFLICT (topic, event_id) DO NOTHING
        RETURNING sequence_id, stored_at`
	log := logx.Enrich(logx.L(), ctx).With(
		zap.String("repo", "events"),
		zap.String("operation", "InsertIfAbsent"),
		zap.String("topic", ev.Topic),
		zap.String("event_id", ev.EventID),
	)
	var (
		seq      int64
		storedAt int64
	)
	err := s.db.Writer.QueryRowContext(ctx, ins,
		ev.Topic, ev.EventID, ev.OccurredAt.UTC().Format(time.RFC3339Nano), ev.Source, string(ev.Payload),
		s.now().UnixNano(),
	).Scan(&seq, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("sql.exec_conflict")
		return domain.InsertResult{}, nil
	}
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return domain.InsertResult{}, fmt.Errorf("insert event: %w: %w", application.ErrStoreUnavailable, err)
	}
	log.Debug("sql.exec_success", zap.Int64("sequence_id", seq))
	return domain.InsertResult{
		Inserted:   true,
		SequenceID: seq,
		StoredAt:   time.Unix(0, storedAt).UTC(),
	}, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.Reader.QueryRowContext(ctx, `SELECT count(*) FROM events`).Scan(&n); err != nil {
		logx.Enrich(logx.L(), ctx).Error("sql.query_failed", zap.String("operation", "Count"), zap.Error(err))
		return 0, fmt.Errorf("count events: %w: %w", application.ErrStoreUnavailable, err)
	}
	return n, nil
}

func (s *Store) List(ctx context.Context, q domain.ListQuery) ([]domain.Event, error) {
	query, args := buildListQuery(q)
	rows, err := s.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		logx.Enrich(logx.L(), ctx).Error("sql.query_failed", zap.String("operation", "List"), zap.Error(err))
		return nil, fmt.Errorf("list events: %w: %w", application.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]domain.Event, 0, q.Limit)
	for rows.Next() {
		var (
			e          domain.Event
			occurredAt string
			payload    string
			storedAt   int64
		)
		if err := rows.Scan(&e.SequenceID, &e.Topic, &e.EventID, &occurredAt, &e.Source, &payload, &storedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w: %w", application.ErrStoreUnavailable, err)
		}
		t, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("scan event %d: %w", e.SequenceID, err)
		}
		e.OccurredAt = t.UTC()
		e.Payload = []byte(payload)
		e.StoredAt = time.Unix(0, storedAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w: %w", application.ErrStoreUnavailable, err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", application.ErrStoreUnavailable, err)
	}
	return nil
}

// buildListQuery orders by (stored_at, sequence_id); before is a plain
// sequence_id bound.
func buildListQuery(q domain.ListQuery) (string, []any) {
	var (
		b     strings.Builder
		args  []any
		where []string
	)
	b.WriteString(`SELECT sequence_id, topic, event_id, occurred_at, source, payload, stored_at FROM events`)
	if q.Topic != "" {
		args = append(args, q.Topic)
		where = append(where, "topic = ?")
	}
	if q.Before > 0 {
		args = append(args, q.Before)
		where = append(where, "sequence_id < ?")
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, q.Limit)
	b.WriteString(" ORDER BY stored_at DESC, sequence_id DESC LIMIT ?")
	return b.String(), args
}
