package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"event-aggregator/internal/application"
	"event-aggregator/internal/domain"
	"event-aggregator/internal/infrastructure/logx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var _ application.EventStore = (*EventStore)(nil)

// EventStore keeps events in the events table. Uniqueness of (topic,
// event_id) is enforced by the uq_topic_event_id constraint; concurrent
// inserts of one key wait on the constraint and all but one do nothing.
//
// stored_at is clock_timestamp() at row creation and is not clamped:
// concurrent transactions may commit out of timestamp order, and a backwards
// step of the database clock shows up as-is. Listing breaks equal stored_at
// by sequence_id.
type EventStore struct{ db *DB }

func NewEventStore(db *DB) *EventStore { return &EventStore{db: db} }

func (r *EventStore) InsertIfAbsent(ctx context.Context, ev domain.Event) (domain.InsertResult, error) {
	const ins = `
        INSERT INTO events(topic, event_id, occurred_at, source, payload)
        VALUES ($1, $2, $3, $4, $5::json)
        ON CONFLICT (topic, event_id) DO NOTHING
        RETURNING sequence_id, stored_at`
	log := logx.Enrich(logx.L(), ctx).With(
		zap.String("repo", "events"),
		zap.String("operation", "InsertIfAbsent"),
		zap.String("topic", ev.Topic),
		zap.String("event_id", ev.EventID),
	)
	var out domain.InsertResult
	err := r.db.Pool.QueryRow(ctx, ins, ev.Topic, ev.EventID, ev.OccurredAt, ev.Source, string(ev.Payload)).
		Scan(&out.SequenceID, &out.StoredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debug("sql.exec_conflict")
		return domain.InsertResult{}, nil
	}
	if err != nil {
		log.Error("sql.exec_failed", zap.Error(err))
		return domain.InsertResult{}, classify("insert event", err)
	}
	out.Inserted = true
	out.StoredAt = out.StoredAt.UTC()
	log.Debug("sql.exec_success", zap.Int64("sequence_id", out.SequenceID))
	return out, nil
}

func (r *EventStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM events`).Scan(&n); err != nil {
		logx.Enrich(logx.L(), ctx).Error("sql.query_failed", zap.String("operation", "Count"), zap.Error(err))
		return 0, fmt.Errorf("count events: %w: %w", application.ErrStoreUnavailable, err)
	}
	return n, nil
}

func (r *EventStore) List(ctx context.Context, q domain.ListQuery) ([]domain.Event, error) {
	query, args := buildListQuery(q)
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		logx.Enrich(logx.L(), ctx).Error("sql.query_failed", zap.String("operation", "List"), zap.Error(err))
		return nil, fmt.Errorf("list events: %w: %w", application.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	out := make([]domain.Event, 0, q.Limit)
	for rows.Next() {
		var e domain.Event
		var payload string
		if err := rows.Scan(&e.SequenceID, &e.Topic, &e.EventID, &e.OccurredAt, &e.Source, &payload, &e.StoredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w: %w", application.ErrStoreUnavailable, err)
		}
		e.Payload = []byte(payload)
		e.OccurredAt = e.OccurredAt.UTC()
		e.StoredAt = e.StoredAt.UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w: %w", application.ErrStoreUnavailable, err)
	}
	return out, nil
}

// classify keeps data exceptions (SQLSTATE class 22) apart from
// unavailability: the row was refused, retrying cannot help.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "22") {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrInvalidEvent, err)
	}
	return fmt.Errorf("%s: %w: %w", op, application.ErrStoreUnavailable, err)
}

func (r *EventStore) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w: %w", application.ErrStoreUnavailable, err)
	}
	return nil
}

// buildListQuery orders by (stored_at, sequence_id). The before cursor is a
// plain sequence_id bound, so an id that was never assigned still pages.
func buildListQuery(q domain.ListQuery) (string, []any) {
	var (
		b     strings.Builder
		args  []any
		where []string
	)
	b.WriteString(`SELECT sequence_id, topic, event_id, occurred_at, source, payload::text, stored_at FROM events`)
	if q.Topic != "" {
		args = append(args, q.Topic)
		where = append(where, fmt.Sprintf("topic = $%d", len(args)))
	}
	if q.Before > 0 {
		args = append(args, q.Before)
		where = append(where, fmt.Sprintf("sequence_id < $%d", len(args)))
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, q.Limit)
	fmt.Fprintf(&b, " ORDER BY stored_at DESC, sequence_id DESC LIMIT $%d", len(args))
	return b.String(), args
}
