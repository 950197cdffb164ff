package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"review_notification_bot/internal/domain/journal"
	"review_notification_bot/internal/domain/review"
	"review_notification_bot/internal/infra/devman"
)

// PollStatsProvider exposes the long-polling client's counters.
type PollStatsProvider interface {
	Stats() devman.Stats
}

// DispatchStats are the dispatcher's counters.
type DispatchStats struct {
	Found          int
	Timeouts       int
	Sent           int
	Failed         int
	Malformed      int
	LastReviewAt   time.Time
	LastSentAt     time.Time
	StartedAt      time.Time
	JournalEnabled bool
}

// StatusService collects runtime counters. It is written by the dispatcher and
// read from the bot command and scheduler goroutines.
type StatusService struct {
	poll        PollStatsProvider
	journalRepo journal.Repository
	now         func() time.Time

	mu    sync.Mutex
	stats DispatchStats
}

func NewStatusService(poll PollStatsProvider, journalRepo journal.Repository) *StatusService {
	s := &StatusService{
		poll:        poll,
		journalRepo: journalRepo,
		now:         time.Now,
	}
	s.stats.StartedAt = s.now()
	s.stats.JournalEnabled = journalRepo != nil
	return s
}

func (s *StatusService) Snapshot() DispatchStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// PollStats returns zero stats when no poller is attached.
func (s *StatusService) PollStats() devman.Stats {
	if s.poll == nil {
		return devman.Stats{}
	}
	return s.poll.Stats()
}

// Report renders the /status reply.
func (s *StatusService) Report(ctx context.Context) string {
	stats := s.Snapshot()
	poll := s.PollStats()
	now := s.now()

	var b strings.Builder
	fmt.Fprintf(&b, "Бот работает %s.\n", now.Sub(stats.StartedAt).Truncate(time.Second))
	fmt.Fprintf(&b, "Запросов к API: %d (таймаутов: %d, переподключений: %d).\n", poll.Requests, poll.Timeouts, poll.Reconnects)
	fmt.Fprintf(&b, "Ответов: %d с проверками, %d пустых.\n", stats.Found, stats.Timeouts)
	fmt.Fprintf(&b, "Уведомлений отправлено: %d, ошибок отправки: %d, битых записей: %d.\n", stats.Sent, stats.Failed, stats.Malformed)

	if stats.LastReviewAt.IsZero() {
		b.WriteString("Проверенных работ пока не было.\n")
	} else {
		fmt.Fprintf(&b, "Последняя проверка: %s.\n", stats.LastReviewAt.Format("2006-01-02 15:04:05"))
	}

	if poll.HasCursor {
		fmt.Fprintf(&b, "Текущая метка времени: %s.", poll.Cursor)
	} else {
		b.WriteString("Метка времени ещё не получена.")
	}

	if s.journalRepo != nil {
		count, err := s.journalRepo.CountSince(ctx, now.Add(-24*time.Hour))
		if err != nil {
			b.WriteString("\nЖурнал недоступен.")
		} else {
			fmt.Fprintf(&b, "\nЗа сутки в журнале: %d.", count)
		}
	}
	return b.String()
}

func (s *StatusService) recordPayload(status review.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch status {
	case review.StatusFound:
		s.stats.Found++
		s.stats.LastReviewAt = s.now()
	case review.StatusTimeout:
		s.stats.Timeouts++
	}
}

func (s *StatusService) recordSent(at time.Time) {
	s.mu.Lock()
	s.stats.Sent++
	s.stats.LastSentAt = at
	s.mu.Unlock()
}

func (s *StatusService) recordFailed() {
	s.mu.Lock()
	s.stats.Failed++
	s.mu.Unlock()
}

func (s *StatusService) recordMalformed() {
	s.mu.Lock()
	s.stats.Malformed++
	s.mu.Unlock()
}
