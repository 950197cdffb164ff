package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"review_notification_bot/internal/domain/journal"
)

type PostgresJournalRepository struct {
	db *sql.DB
}

func NewPostgresJournalRepository(db *sql.DB) *PostgresJournalRepository {
	return &PostgresJournalRepository{db: db}
}

func (r *PostgresJournalRepository) Record(ctx context.Context, e *journal.Entry) error {
	query := `INSERT INTO notification_journal (chat_id, lesson_title, lesson_url, is_negative, sent_at)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id`

	err := r.db.QueryRowContext(ctx, query, e.ChatID, e.LessonTitle, e.LessonURL, e.IsNegative, e.SentAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("error recording journal entry: %w", err)
	}
	return nil
}

func (r *PostgresJournalRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM notification_journal WHERE sent_at >= $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting journal entries: %w", err)
	}
	return count, nil
}

func (r *PostgresJournalRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM notification_journal WHERE sent_at < $1`

	result, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("error pruning journal entries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error reading pruned row count: %w", err)
	}
	return rows, nil
}
