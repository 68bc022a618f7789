// Package referral manages the affiliate program: enrollment, referral
// attribution at first contact, and rank re-evaluation as the referral
// count crosses tier thresholds.
package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
	"github.com/tikup-service/tikup_service/pkg/logger"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6

	// attempts before giving up on finding an unused code
	maxCodeAttempts = 10
)

// UserStore is the slice of the user repository this service uses
type UserStore interface {
	Upsert(ctx context.Context, userID, username string, referredBy *string) (*entities.User, error)
	GetByUserID(ctx context.Context, userID string) (*entities.User, error)
	UpdateRank(ctx context.Context, userID, rank string) error
}

// AffiliateStore persists enrollment records
type AffiliateStore interface {
	Create(ctx context.Context, affiliate *entities.Affiliate) error
	GetByUserID(ctx context.Context, userID string) (*entities.Affiliate, error)
	GetByCode(ctx context.Context, code string) (*entities.Affiliate, error)
	IncrementReferrals(ctx context.Context, userID string) (*entities.Affiliate, error)
	UpdateRank(ctx context.Context, userID, rank string, rate decimal.Decimal) error
}

// Service manages the referral program
type Service struct {
	users       UserStore
	affiliates  AffiliateStore
	botUsername string
	logger      *logger.Logger
}

// NewService creates a referral service. botUsername is used to build
// t.me deep links carrying the referral code.
func NewService(users UserStore, affiliates AffiliateStore, botUsername string, logger *logger.Logger) *Service {
	return &Service{
		users:       users,
		affiliates:  affiliates,
		botUsername: botUsername,
		logger:      logger,
	}
}

// Enroll opts a user into the referral program with a fresh unique code
// and Bronze rank. Returns ErrAlreadyEnrolled for repeat activation.
func (s *Service) Enroll(ctx context.Context, userID string) (*entities.Affiliate, error) {
	if _, err := s.affiliates.GetByUserID(ctx, userID); err == nil {
		return nil, domainerrors.ErrAlreadyEnrolled
	} else if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, fmt.Errorf("enrollment check failed: %w", err)
	}

	bronze := entities.AffiliateRanks[0]

	var affiliate *entities.Affiliate
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate referral code: %w", err)
		}

		candidate := &entities.Affiliate{
			UserID:          userID,
			Code:            code,
			Link:            s.ReferralLink(code),
			Rank:            bronze.Name,
			CommissionRate:  bronze.CommissionRate,
			TotalCommission: decimal.Zero,
			Status:          entities.AffiliateStatusActive,
		}

		err = s.affiliates.Create(ctx, candidate)
		if err == nil {
			affiliate = candidate
			break
		}
		if errors.Is(err, domainerrors.ErrAlreadyEnrolled) {
			return nil, domainerrors.ErrAlreadyEnrolled
		}
		if errors.Is(err, domainerrors.ErrInvalidInput) {
			// Code collision, retry with a new one.
			continue
		}
		return nil, err
	}
	if affiliate == nil {
		return nil, fmt.Errorf("could not find an unused referral code")
	}

	s.logger.Info("Enrolled affiliate",
		"user_id", userID,
		"code", affiliate.Code,
		"rank", affiliate.Rank)

	return affiliate, nil
}

// Attribute records first contact for a user, optionally crediting a
// referral code. The linkage is set at most once: an existing referrer is
// never overwritten, and self-referral is ignored. When a new attribution
// lands, the referrer's count and rank are updated.
func (s *Service) Attribute(ctx context.Context, userID, username, code string) (*entities.User, error) {
	var referredBy *string

	if code != "" {
		affiliate, err := s.affiliates.GetByCode(ctx, code)
		switch {
		case errors.Is(err, domainerrors.ErrNotFound):
			s.logger.Warn("Unknown referral code at first contact", "user_id", userID, "code", code)
		case err != nil:
			return nil, fmt.Errorf("failed to resolve referral code: %w", err)
		case affiliate.UserID == userID:
			s.logger.Warn("User tried their own referral code", "user_id", userID)
		default:
			referredBy = &code
		}
	}

	// Was the user already attributed? Upsert keeps the first linkage
	// either way, but we only bump the referrer on a fresh attribution.
	alreadyLinked := false
	if existing, err := s.users.GetByUserID(ctx, userID); err == nil {
		alreadyLinked = existing.HasReferrer()
	} else if !errors.Is(err, domainerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	user, err := s.users.Upsert(ctx, userID, username, referredBy)
	if err != nil {
		return nil, err
	}

	if referredBy != nil && !alreadyLinked {
		s.creditReferrer(ctx, *referredBy, userID)
	}

	return user, nil
}

// Profile returns the affiliate record for a user, or ErrNotFound when
// the user has not enrolled
func (s *Service) Profile(ctx context.Context, userID string) (*entities.Affiliate, error) {
	return s.affiliates.GetByUserID(ctx, userID)
}

// ReferralLink builds the t.me deep link for a referral code
func (s *Service) ReferralLink(code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", s.botUsername, code)
}

// creditReferrer bumps the referral count and re-evaluates rank. Rank
// recomputation is idempotent: an unchanged count yields the same rank.
func (s *Service) creditReferrer(ctx context.Context, code, referredUserID string) {
	affiliate, err := s.affiliates.GetByCode(ctx, code)
	if err != nil {
		s.logger.Error("Failed to load referrer for crediting", "code", code, "error", err)
		return
	}

	updated, err := s.affiliates.IncrementReferrals(ctx, affiliate.UserID)
	if err != nil {
		s.logger.Error("Failed to increment referral count",
			"affiliate_user_id", affiliate.UserID,
			"error", err)
		return
	}

	s.logger.Info("Attributed referral",
		"referrer", affiliate.UserID,
		"referred", referredUserID,
		"total_referrals", updated.TotalReferrals)

	rank := entities.RankForReferrals(updated.TotalReferrals)
	if rank.Name == updated.Rank {
		return
	}

	if err := s.affiliates.UpdateRank(ctx, updated.UserID, rank.Name, rank.CommissionRate); err != nil {
		s.logger.Error("Failed to update affiliate rank", "user_id", updated.UserID, "error", err)
		return
	}
	if err := s.users.UpdateRank(ctx, updated.UserID, rank.Name); err != nil {
		s.logger.Error("Failed to update user rank", "user_id", updated.UserID, "error", err)
		return
	}

	s.logger.Info("Affiliate rank upgraded",
		"user_id", updated.UserID,
		"rank", rank.Name,
		"rate", rank.CommissionRate.String())
}

// generateCode produces a 6-character A-Z0-9 referral code
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
