// Package reconcile matches asynchronous bank notifications to pending
// deposit intents and drives settlement: the atomic pending→completed
// flip plus balance credit, followed by best-effort commission and chat
// notifications.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
	"github.com/tikup-service/tikup_service/internal/domain/services/notify"
	"github.com/tikup-service/tikup_service/pkg/logger"
	"github.com/tikup-service/tikup_service/pkg/metrics"
)

// IntentStore is the slice of the intent repository the reconciler uses
type IntentStore interface {
	GetByTID(ctx context.Context, tid string) (*entities.DepositIntent, error)
	FindPendingByUserAndAmount(ctx context.Context, userID string, amount decimal.Decimal, createdAfter time.Time) (*entities.DepositIntent, error)
	Settle(ctx context.Context, id uuid.UUID, n *entities.BankNotification) (decimal.Decimal, error)
}

// CommissionEngine pays the referrer after a settled deposit
type CommissionEngine interface {
	PayCommission(ctx context.Context, intent *entities.DepositIntent) (*entities.Commission, error)
}

// Service reconciles bank notifications against pending intents
type Service struct {
	intents    IntentStore
	commission CommissionEngine
	sink       notify.Sink
	logger     *logger.Logger
	userIDRe   *regexp.Regexp
	now        func() time.Time
}

// NewService creates a reconciler. prefix is the description token that
// precedes the numeric user id, e.g. "TIKUP".
func NewService(intents IntentStore, commission CommissionEngine, sink notify.Sink, prefix string, logger *logger.Logger) *Service {
	return &Service{
		intents:    intents,
		commission: commission,
		sink:       sink,
		logger:     logger,
		userIDRe:   regexp.MustCompile(regexp.QuoteMeta(prefix) + `(\d+)`),
		now:        time.Now,
	}
}

// Reconcile processes one bank notification. Unroutable, duplicate and
// unmatched notifications are benign per-notification outcomes: they are
// logged, counted and reported in the result with a nil error. A non-nil
// error means an unexpected persistence failure; nothing was partially
// applied (the conditional update commits deposit credit and status flip
// together or not at all).
func (s *Service) Reconcile(ctx context.Context, n *entities.BankNotification) (*entities.SettlementResult, error) {
	metrics.WebhookNotifications.Inc()

	userID := s.ExtractUserID(n.Description)
	if userID == "" {
		metrics.WebhookUnroutable.Inc()
		s.logger.Warn("Unroutable notification, no user id in description",
			"tid", n.TID,
			"description", n.Description)
		return &entities.SettlementResult{Outcome: entities.SettlementUnroutable}, nil
	}

	// Duplicate-delivery defense: a tid is only ever written at
	// settlement, so any intent carrying it is already completed.
	if existing, err := s.intents.GetByTID(ctx, n.TID); err == nil {
		metrics.WebhookDuplicates.Inc()
		s.logger.Info("Notification already applied", "tid", n.TID, "intent_id", existing.ID)
		return &entities.SettlementResult{Outcome: entities.SettlementDuplicate, Intent: existing}, nil
	} else if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, fmt.Errorf("duplicate check failed: %w", err)
	}

	cutoff := s.now().Add(-entities.MatchLookback)
	intent, err := s.intents.FindPendingByUserAndAmount(ctx, userID, n.Amount, cutoff)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNoMatchingIntent) {
			metrics.WebhookUnmatched.Inc()
			s.logger.Warn("No pending intent for notification, manual review required",
				"tid", n.TID,
				"user_id", userID,
				"amount", n.Amount.String())
			return &entities.SettlementResult{Outcome: entities.SettlementUnmatched}, nil
		}
		return nil, fmt.Errorf("intent lookup failed: %w", err)
	}

	newBalance, err := s.intents.Settle(ctx, intent.ID, n)
	if err != nil {
		switch {
		case errors.Is(err, domainerrors.ErrDuplicateNotification):
			// A racing delivery of the same tid won; idempotent no-op.
			metrics.WebhookDuplicates.Inc()
			s.logger.Info("Concurrent duplicate delivery lost the settle race", "tid", n.TID)
			return &entities.SettlementResult{Outcome: entities.SettlementDuplicate, Intent: intent}, nil
		case errors.Is(err, domainerrors.ErrInvalidState):
			// Expiry or a user cancel got there first.
			metrics.WebhookUnmatched.Inc()
			s.logger.Warn("Intent left pending state before settlement",
				"tid", n.TID,
				"intent_id", intent.ID)
			return &entities.SettlementResult{Outcome: entities.SettlementUnmatched}, nil
		default:
			return nil, fmt.Errorf("settlement failed: %w", err)
		}
	}

	metrics.WebhookSettled.Inc()
	s.logger.Info("Deposit settled",
		"intent_id", intent.ID,
		"user_id", userID,
		"amount", n.Amount.String(),
		"tid", n.TID,
		"bank", n.BankName)

	result := &entities.SettlementResult{
		Outcome:    entities.SettlementSettled,
		Intent:     intent,
		NewBalance: newBalance,
	}

	// The deposit credit is committed. Commission is a best-effort
	// follow-up: losing it is acceptable, losing the deposit is not.
	commission, err := s.commission.PayCommission(ctx, intent)
	if err != nil {
		s.logger.Error("Commission payment failed after settlement",
			"intent_id", intent.ID,
			"error", err)
	} else {
		result.Commission = commission
	}

	s.notifySettled(ctx, intent, n, newBalance)

	return result, nil
}

// ExtractUserID pulls the owning user id out of a bank transfer
// description, or returns "" when none is present
func (s *Service) ExtractUserID(description string) string {
	m := s.userIDRe.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[1]
}

// notifySettled edits the QR message to its paid state and sends the
// receipt. Best-effort only.
func (s *Service) notifySettled(ctx context.Context, intent *entities.DepositIntent, n *entities.BankNotification, newBalance decimal.Decimal) {
	if intent.MessageID != nil {
		caption := notify.PaidCaption(n.Amount, newBalance)
		if err := s.sink.EditCaption(ctx, intent.UserID, *intent.MessageID, caption); err != nil {
			s.logger.Error("Failed to edit QR message",
				"intent_id", intent.ID,
				"message_id", *intent.MessageID,
				"error", err)
		}
	}

	receipt := notify.Receipt(n.Amount, newBalance, n.TID, n.BankName, n.SenderName, s.now())
	if err := s.sink.SendMessage(ctx, intent.UserID, receipt); err != nil {
		s.logger.Error("Failed to send settlement receipt",
			"intent_id", intent.ID,
			"error", err)
	}
}

// WithClock overrides the service clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
