package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 5
	defaultMaxIdleConns    = 2
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 1 * time.Minute
)

const journalSchema = `CREATE TABLE IF NOT EXISTS notification_journal (
	id           BIGSERIAL PRIMARY KEY,
	chat_id      BIGINT      NOT NULL,
	lesson_title TEXT        NOT NULL,
	lesson_url   TEXT        NOT NULL,
	is_negative  BOOLEAN     NOT NULL,
	sent_at      TIMESTAMPTZ NOT NULL
)`

const journalIndex = `CREATE INDEX IF NOT EXISTS notification_journal_sent_at_idx ON notification_journal (sent_at)`

// NewPostgresConnection creates and returns a new PostgreSQL database connection.
// It also pings the database to ensure connectivity.
func NewPostgresConnection(ctx context.Context, dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the journal table if it does not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{journalSchema, journalIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply journal schema: %w", err)
		}
	}
	return nil
}
