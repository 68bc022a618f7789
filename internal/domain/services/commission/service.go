// Package commission pays referrers their cut of a settled deposit.
// Payment happens after the deposit credit has committed and is
// best-effort from the reconciler's point of view: a commission-path
// fault never rolls back a received deposit.
package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
	"github.com/tikup-service/tikup_service/internal/domain/services/notify"
	"github.com/tikup-service/tikup_service/pkg/logger"
	"github.com/tikup-service/tikup_service/pkg/metrics"
)

// UserStore resolves depositors and their referral linkage
type UserStore interface {
	GetByUserID(ctx context.Context, userID string) (*entities.User, error)
}

// AffiliateStore resolves referral codes to affiliate profiles
type AffiliateStore interface {
	GetByCode(ctx context.Context, code string) (*entities.Affiliate, error)
}

// CommissionStore persists payouts atomically with the referrer credit
type CommissionStore interface {
	CreateAndCredit(ctx context.Context, commission *entities.Commission) (bool, error)
}

// Service is the commission engine
type Service struct {
	users      UserStore
	affiliates AffiliateStore
	store      CommissionStore
	sink       notify.Sink
	logger     *logger.Logger
}

// NewService creates a commission engine
func NewService(users UserStore, affiliates AffiliateStore, store CommissionStore, sink notify.Sink, logger *logger.Logger) *Service {
	return &Service{
		users:      users,
		affiliates: affiliates,
		store:      store,
		sink:       sink,
		logger:     logger,
	}
}

// PayCommission computes and pays the referrer's cut of a completed
// intent. Returns (nil, nil) when there is nothing to pay: no referral
// linkage, no active affiliate behind the code, the amount floors to
// zero, or a payout already exists for this intent.
func (s *Service) PayCommission(ctx context.Context, intent *entities.DepositIntent) (*entities.Commission, error) {
	depositor, err := s.users.GetByUserID(ctx, intent.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load depositor: %w", err)
	}
	if !depositor.HasReferrer() {
		return nil, nil
	}

	affiliate, err := s.affiliates.GetByCode(ctx, *depositor.ReferredBy)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			s.logger.Warn("Referral code has no affiliate profile",
				"user_id", intent.UserID,
				"code", *depositor.ReferredBy)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve affiliate: %w", err)
	}
	if !affiliate.IsActive() {
		s.logger.Info("Skipping commission for inactive affiliate",
			"affiliate_user_id", affiliate.UserID,
			"intent_id", intent.ID)
		return nil, nil
	}

	paid := entities.CommissionFor(intent.Amount, affiliate.CommissionRate)
	if paid.IsZero() {
		return nil, nil
	}

	commission := &entities.Commission{
		ID:       uuid.New(),
		UserID:   affiliate.UserID,
		SourceID: intent.UserID,
		IntentID: intent.ID,
		Amount:   intent.Amount,
		Paid:     paid,
		Rate:     affiliate.CommissionRate,
	}

	created, err := s.store.CreateAndCredit(ctx, commission)
	if err != nil {
		return nil, fmt.Errorf("failed to pay commission: %w", err)
	}
	if !created {
		s.logger.Info("Commission already paid for intent", "intent_id", intent.ID)
		return nil, nil
	}

	metrics.CommissionsPaid.Inc()
	s.logger.Info("Paid referral commission",
		"intent_id", intent.ID,
		"referrer", affiliate.UserID,
		"source", intent.UserID,
		"amount", paid.String(),
		"rate", affiliate.CommissionRate.String())

	s.notifyReferrer(ctx, affiliate, depositor, commission)

	return commission, nil
}

// notifyReferrer is best-effort: delivery failure never fails the payout
func (s *Service) notifyReferrer(ctx context.Context, affiliate *entities.Affiliate, depositor *entities.User, commission *entities.Commission) {
	text := notify.CommissionEarned(commission.Paid, depositor.Username, commission.Rate, affiliate.Rank)
	if err := s.sink.SendMessage(ctx, affiliate.UserID, text); err != nil {
		s.logger.Error("Failed to send commission notification",
			"referrer", affiliate.UserID,
			"error", err)
	}
}
