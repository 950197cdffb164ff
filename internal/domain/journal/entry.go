package journal

import "time"

// Entry is one notification delivered to the notifications chat.
// Corresponds to the 'notification_journal' table.
type Entry struct {
	ID          int64
	ChatID      int64
	LessonTitle string
	LessonURL   string
	IsNegative  bool
	SentAt      time.Time
}
