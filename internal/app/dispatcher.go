// internal/app/dispatcher.go
package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"review_notification_bot/internal/domain/journal"
	"review_notification_bot/internal/domain/review"
	domainTelegram "review_notification_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// ErrSourceClosed is returned if the review source ends without reporting an error.
var ErrSourceClosed = errors.New("review source ended unexpectedly")

// ReviewSource is an endless sequence of review payloads, e.g. the long-polling client.
type ReviewSource interface {
	Reviews(ctx context.Context) iter.Seq2[review.Payload, error]
}

// Dispatcher turns checked attempts into chat notifications.
type Dispatcher struct {
	source         ReviewSource
	telegramClient domainTelegram.Client
	chatID         int64
	journalRepo    journal.Repository // nil when the journal is disabled
	status         *StatusService
	logger         *logrus.Entry
	now            func() time.Time
}

func NewDispatcher(
	source ReviewSource,
	tc domainTelegram.Client,
	chatID int64,
	journalRepo journal.Repository,
	status *StatusService,
	logger *logrus.Entry,
) *Dispatcher {
	if status == nil {
		status = NewStatusService(nil, nil)
	}
	return &Dispatcher{
		source:         source,
		telegramClient: tc,
		chatID:         chatID,
		journalRepo:    journalRepo,
		status:         status,
		logger:         logger,
		now:            time.Now,
	}
}

// Run consumes the review source until it fails or ctx is cancelled.
// It never returns nil.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.WithField("chat_id", d.chatID).Info("Dispatcher started, waiting for reviews")

	for payload, err := range d.source.Reviews(ctx) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return err
			}
			return fmt.Errorf("review polling failed: %w", err)
		}
		if err := d.HandlePayload(ctx, payload); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrSourceClosed
}

// HandlePayload sends one notification per attempt of a "found" payload, in order.
// Broken attempts and failed sends are logged and skipped; an unknown status is fatal.
func (d *Dispatcher) HandlePayload(ctx context.Context, payload review.Payload) error {
	logCtx := d.logger.WithField("status", payload.Status)
	logCtx.WithField("attempts", len(payload.NewAttempts)).Debug("Got review")

	switch payload.Status {
	case review.StatusTimeout:
		d.status.recordPayload(payload.Status)
		return nil
	case review.StatusFound:
		d.status.recordPayload(payload.Status)
	default:
		return review.UnknownStatusError(payload.Status)
	}

	for i, attempt := range payload.NewAttempts {
		attemptLog := logCtx.WithField("attempt_index", i)

		text, err := BuildNotification(attempt)
		if err != nil {
			d.status.recordMalformed()
			attemptLog.WithError(err).Error("Skipping malformed review attempt")
			continue
		}

		if err := d.telegramClient.SendMessage(d.chatID, text, nil); err != nil {
			d.status.recordFailed()
			attemptLog.WithError(err).Error("Failed to send review notification")
			continue
		}
		sentAt := d.now()
		d.status.recordSent(sentAt)
		attemptLog.WithField("chat_id", d.chatID).Debug("Sent notification")

		d.recordJournal(ctx, attempt, sentAt, attemptLog)
	}
	return nil
}

func (d *Dispatcher) recordJournal(ctx context.Context, attempt review.Attempt, sentAt time.Time, logCtx *logrus.Entry) {
	if d.journalRepo == nil {
		return
	}
	entry := &journal.Entry{
		ChatID:      d.chatID,
		LessonTitle: *attempt.LessonTitle,
		LessonURL:   *attempt.LessonURL,
		IsNegative:  *attempt.IsNegative,
		SentAt:      sentAt,
	}
	if err := d.journalRepo.Record(ctx, entry); err != nil {
		logCtx.WithError(err).Warn("Failed to record notification in journal")
	}
}
