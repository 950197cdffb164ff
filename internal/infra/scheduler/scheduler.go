package scheduler

import (
	"context"
	"fmt"
	"time"

	"review_notification_bot/internal/app"
	"review_notification_bot/internal/domain/journal"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type MaintenanceScheduler struct {
	cronEngine           *cron.Cron
	status               *app.StatusService
	journalRepo          journal.Repository // nil when the journal is disabled
	logger               *logrus.Entry
	retention            time.Duration
	cronSpecJournalPrune string
	cronSpecHeartbeat    string
	now                  func() time.Time
}

func NewMaintenanceScheduler(
	status *app.StatusService,
	journalRepo journal.Repository,
	logger *logrus.Entry,
	retention time.Duration,
	cronSpecJournalPrune string, // e.g., "0 3 * * *" (03:00 daily)
	cronSpecHeartbeat string, // e.g., "0 * * * *" (hourly)
) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		cronEngine:           cron.New(cron.WithLocation(time.Local)),
		status:               status,
		journalRepo:          journalRepo,
		logger:               logger,
		retention:            retention,
		cronSpecJournalPrune: cronSpecJournalPrune,
		cronSpecHeartbeat:    cronSpecHeartbeat,
		now:                  time.Now,
	}
}

func (s *MaintenanceScheduler) Start() error {
	s.logger.Info("Starting maintenance scheduler...")

	if _, err := s.cronEngine.AddFunc(s.cronSpecHeartbeat, s.heartbeat); err != nil {
		return fmt.Errorf("could not add heartbeat cron job: %w", err)
	}

	if s.journalRepo != nil {
		_, err := s.cronEngine.AddFunc(s.cronSpecJournalPrune, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()
			if err := s.pruneJournal(ctx); err != nil {
				s.logger.WithError(err).Error("Journal pruning failed")
			}
		})
		if err != nil {
			return fmt.Errorf("could not add journal pruning cron job: %w", err)
		}
	}

	s.cronEngine.Start()
	s.logger.WithField("jobs", len(s.cronEngine.Entries())).Info("Maintenance scheduler started")
	return nil
}

func (s *MaintenanceScheduler) heartbeat() {
	stats := s.status.Snapshot()
	poll := s.status.PollStats()
	s.logger.WithFields(logrus.Fields{
		"requests":       poll.Requests,
		"poll_timeouts":  poll.Timeouts,
		"reconnects":     poll.Reconnects,
		"found":          stats.Found,
		"sent":           stats.Sent,
		"failed":         stats.Failed,
		"malformed":      stats.Malformed,
		"last_review_at": stats.LastReviewAt,
	}).Info("Heartbeat")
}

func (s *MaintenanceScheduler) pruneJournal(ctx context.Context) error {
	before := s.now().Add(-s.retention)
	deleted, err := s.journalRepo.DeleteOlderThan(ctx, before)
	if err != nil {
		return err
	}
	s.logger.WithField("deleted", deleted).WithField("before", before.Format(time.RFC3339)).Info("Journal pruned")
	return nil
}

func (s *MaintenanceScheduler) Stop() {
	s.logger.Info("Stopping maintenance scheduler...")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.logger.Info("Maintenance scheduler gracefully stopped")
}
