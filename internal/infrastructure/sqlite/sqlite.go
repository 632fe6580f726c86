// Package sqlite is a single-file EventStore built on the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	infraconfig "event-aggregator/internal/infrastructure/config"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
    sequence_id INTEGER PRIMARY KEY AUTOINCREMENT,
    topic       TEXT    NOT NULL,
    event_id    TEXT    NOT NULL,
    occurred_at TEXT    NOT NULL,
    source      TEXT    NOT NULL,
    payload     TEXT    NOT NULL,
    stored_at   INTEGER NOT NULL,
    CONSTRAINT uq_topic_event_id UNIQUE (topic, event_id)
);
CREATE INDEX IF NOT EXISTS idx_events_recent ON events (stored_at DESC, sequence_id DESC);
CREATE INDEX IF NOT EXISTS idx_events_topic_recent ON events (topic, stored_at DESC, sequence_id DESC);
`

// DB pairs a single-connection writer with a read pool. WAL lets readers
// proceed while the writer holds its transaction.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

func (db *DB) Close() error {
	return errors.Join(db.Reader.Close(), db.Writer.Close())
}

// Open opens (or creates) the database file at path and applies the schema.
// One writer connection is kept so inserts serialize inside the process; the
// busy timeout covers other processes holding the file.
func Open(ctx context.Context, path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: empty path")
	}
	busy := infraconfig.DefaultSQLiteBusyTimeout / time.Millisecond

	writer, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", path, busy))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(ctx); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := Migrate(ctx, writer); err != nil {
		_ = writer.Close()
		return nil, err
	}

	reader, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=query_only(1)", path, busy))
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open sqlite reader: %w", err)
	}
	reader.SetMaxOpenConns(infraconfig.DefaultSQLiteReadConns)
	if err := reader.PingContext(ctx); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("ping sqlite reader: %w", err)
	}
	return &DB{Writer: writer, Reader: reader}, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}
