package journal

import (
	"context"
	"time"
)

// Repository persists the delivery journal.
type Repository interface {
	Record(ctx context.Context, e *Entry) error
	CountSince(ctx context.Context, since time.Time) (int, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
