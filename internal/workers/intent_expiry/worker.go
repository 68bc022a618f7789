// Package intent_expiry sweeps pending deposit intents on a fixed
// cadence: one reminder once the reminder threshold passes, automatic
// cancellation once the hard deadline passes. Cancellation goes through
// the same conditional transition as user cancels, so racing a concurrent
// webhook settlement is safe: whichever commits first wins and the loser
// no-ops.
package intent_expiry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
	"github.com/tikup-service/tikup_service/internal/domain/services/notify"
	"github.com/tikup-service/tikup_service/pkg/logger"
	"github.com/tikup-service/tikup_service/pkg/metrics"
)

// IntentStore is the slice of the intent repository the worker uses
type IntentStore interface {
	ListPending(ctx context.Context, limit int) ([]*entities.DepositIntent, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// Config holds worker configuration
type Config struct {
	SweepInterval time.Duration
	BatchSize     int
}

// DefaultConfig returns default worker configuration
func DefaultConfig() *Config {
	return &Config{
		SweepInterval: 60 * time.Second,
		BatchSize:     100,
	}
}

// Worker expires stale pending deposit intents
type Worker struct {
	intents       IntentStore
	sink          notify.Sink
	sweepInterval time.Duration
	batchSize     int
	logger        *logger.Logger
	now           func() time.Time
	stopCh        chan struct{}
}

// NewWorker creates a new expiry worker
func NewWorker(intents IntentStore, sink notify.Sink, config *Config, logger *logger.Logger) *Worker {
	if config == nil {
		config = DefaultConfig()
	}
	return &Worker{
		intents:       intents,
		sink:          sink,
		sweepInterval: config.SweepInterval,
		batchSize:     config.BatchSize,
		logger:        logger,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the sweep loop
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting intent expiry worker",
		"sweep_interval", w.sweepInterval.String(),
		"batch_size", w.batchSize)

	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Intent expiry worker stopped (context cancelled)")
			return
		case <-w.stopCh:
			w.logger.Info("Intent expiry worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the worker
func (w *Worker) Stop() {
	close(w.stopCh)
}

// sweep walks pending intents and applies reminder and expiry thresholds
func (w *Worker) sweep(ctx context.Context) {
	intents, err := w.intents.ListPending(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("Failed to list pending intents", "error", err)
		return
	}

	if len(intents) == 0 {
		w.logger.Debug("No pending intents to sweep")
		return
	}

	now := w.now()
	remindedCount := 0
	expiredCount := 0

	for _, intent := range intents {
		switch {
		case intent.IsExpired(now):
			if w.expire(ctx, intent, now) {
				expiredCount++
			}
		case intent.NeedsReminder(now):
			if w.remind(ctx, intent) {
				remindedCount++
			}
		}
	}

	if remindedCount > 0 || expiredCount > 0 {
		w.logger.Info("Intent sweep completed",
			"scanned", len(intents),
			"reminded", remindedCount,
			"expired", expiredCount)
	}
}

// remind sends at most one payment reminder per intent. The flag is
// flipped with a conditional update first, so overlapping sweeps cannot
// both send.
func (w *Worker) remind(ctx context.Context, intent *entities.DepositIntent) bool {
	flagged, err := w.intents.MarkReminderSent(ctx, intent.ID)
	if err != nil {
		w.logger.Error("Failed to flag reminder", "intent_id", intent.ID, "error", err)
		return false
	}
	if !flagged {
		return false
	}

	if err := w.sink.SendMessage(ctx, intent.UserID, notify.Reminder(intent.Amount)); err != nil {
		w.logger.Error("Failed to send payment reminder",
			"intent_id", intent.ID,
			"user_id", intent.UserID,
			"error", err)
		// Flag stays set: one reminder attempt per intent.
	}

	metrics.RemindersSent.Inc()
	w.logger.Info("Sent payment reminder",
		"intent_id", intent.ID,
		"user_id", intent.UserID)
	return true
}

// expire cancels an overdue intent and tells the user. A lost race
// against a concurrent settlement is a benign no-op.
func (w *Worker) expire(ctx context.Context, intent *entities.DepositIntent, now time.Time) bool {
	err := w.intents.Cancel(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidState) {
			w.logger.Debug("Intent settled before expiry could cancel it", "intent_id", intent.ID)
			return false
		}
		w.logger.Error("Failed to expire intent", "intent_id", intent.ID, "error", err)
		return false
	}

	metrics.IntentsExpired.Inc()
	w.logger.Info("Expired stale deposit intent",
		"intent_id", intent.ID,
		"user_id", intent.UserID,
		"created_at", intent.CreatedAt.Format(time.RFC3339))

	if intent.MessageID != nil {
		if err := w.sink.EditCaption(ctx, intent.UserID, *intent.MessageID, notify.ExpiredCaption(now)); err != nil {
			w.logger.Error("Failed to edit expired QR message",
				"intent_id", intent.ID,
				"message_id", *intent.MessageID,
				"error", err)
		}
	}

	if err := w.sink.SendMessage(ctx, intent.UserID, notify.Expired(intent.Amount)); err != nil {
		w.logger.Error("Failed to send expiry notice",
			"intent_id", intent.ID,
			"user_id", intent.UserID,
			"error", err)
	}

	return true
}

// RunOnce runs a single sweep (for testing or manual trigger)
func (w *Worker) RunOnce(ctx context.Context) {
	w.sweep(ctx)
}

// WithClock overrides the worker clock, for tests
func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}
