// Package deposit implements the deposit intent manager: it opens pending
// intents when a user picks an amount, ties them to the chat message that
// renders the QR code, and exposes the lookups the reconciler and the bot
// cancel flow need.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
	"github.com/tikup-service/tikup_service/pkg/logger"
)

// IntentStore is the slice of the intent repository this service uses
type IntentStore interface {
	Create(ctx context.Context, intent *entities.DepositIntent) error
	SetMessageID(ctx context.Context, id uuid.UUID, messageID int) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.DepositIntent, error)
	GetByMessageID(ctx context.Context, messageID int) (*entities.DepositIntent, error)
	FindPendingByUserAndAmount(ctx context.Context, userID string, amount decimal.Decimal, createdAfter time.Time) (*entities.DepositIntent, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

// Service manages deposit intent lifecycle up to the point a bank
// notification or the expiry worker takes over
type Service struct {
	intents IntentStore
	prefix  string
	logger  *logger.Logger
	now     func() time.Time
}

// NewService creates a deposit intent manager. prefix is the textual
// token rendered into bank transfer descriptions, e.g. "TIKUP".
func NewService(intents IntentStore, prefix string, logger *logger.Logger) *Service {
	return &Service{
		intents: intents,
		prefix:  prefix,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateIntent validates the amount against the offered denominations and
// opens a pending intent. The QR message id is attached afterwards via
// AttachMessage; the row tolerates briefly lacking one.
func (s *Service) CreateIntent(ctx context.Context, userID string, amount decimal.Decimal) (*entities.DepositIntent, error) {
	if !entities.IsValidDenomination(amount) {
		return nil, domainerrors.Wrap(domainerrors.ErrInvalidAmount, "amount %s", amount.String())
	}

	now := s.now()
	intent := &entities.DepositIntent{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Status:      entities.IntentStatusPending,
		Description: s.TransferDescription(userID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.intents.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("failed to create deposit intent: %w", err)
	}

	s.logger.Info("Created deposit intent",
		"intent_id", intent.ID,
		"user_id", userID,
		"amount", amount.String())

	return intent, nil
}

// AttachMessage records the chat message rendering the intent's QR code
func (s *Service) AttachMessage(ctx context.Context, intentID uuid.UUID, messageID int) error {
	if err := s.intents.SetMessageID(ctx, intentID, messageID); err != nil {
		return err
	}
	s.logger.Debug("Attached QR message to intent", "intent_id", intentID, "message_id", messageID)
	return nil
}

// FindPendingByUserAndAmount returns the most recent pending intent for
// the exact (user, amount) pair within the lookback window, or
// ErrNoMatchingIntent
func (s *Service) FindPendingByUserAndAmount(ctx context.Context, userID string, amount decimal.Decimal) (*entities.DepositIntent, error) {
	cutoff := s.now().Add(-entities.MatchLookback)
	return s.intents.FindPendingByUserAndAmount(ctx, userID, amount, cutoff)
}

// FindByMessageID resolves the intent behind a QR message, used when the
// user cancels via the button under the displayed QR
func (s *Service) FindByMessageID(ctx context.Context, messageID int) (*entities.DepositIntent, error) {
	return s.intents.GetByMessageID(ctx, messageID)
}

// Cancel transitions a pending intent to cancelled. ErrInvalidState means
// the intent already reached a terminal state; callers surface that as a
// no-op, never as a user-facing failure.
func (s *Service) Cancel(ctx context.Context, intentID uuid.UUID) error {
	err := s.intents.Cancel(ctx, intentID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrInvalidState) {
			s.logger.Debug("Cancel no-op, intent not pending", "intent_id", intentID)
		}
		return err
	}

	s.logger.Info("Cancelled deposit intent", "intent_id", intentID)
	return nil
}

// TransferDescription builds the bank transfer memo that routes a
// notification back to its owner, e.g. "TIKUP123456789"
func (s *Service) TransferDescription(userID string) string {
	return s.prefix + userID
}

// WithClock overrides the service clock, for tests
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
