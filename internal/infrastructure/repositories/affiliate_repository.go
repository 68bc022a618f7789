package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
)

const affiliateColumns = `id, user_id, aff_code, aff_link, rank, commission_rate,
	   total_referrals, total_commission, status, created_at, updated_at`

// AffiliateRepository persists referral-program enrollment records
type AffiliateRepository struct {
	db *sqlx.DB
}

// NewAffiliateRepository creates a new affiliate repository
func NewAffiliateRepository(db *sqlx.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

// Create inserts a new affiliate profile. The unique constraints on
// user_id and aff_code surface as ErrAlreadyEnrolled and ErrInvalidInput
// respectively.
func (r *AffiliateRepository) Create(ctx context.Context, affiliate *entities.Affiliate) error {
	query := `
		INSERT INTO affiliates (
			user_id, aff_code, aff_link, rank, commission_rate,
			total_referrals, total_commission, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		affiliate.UserID,
		affiliate.Code,
		affiliate.Link,
		affiliate.Rank,
		affiliate.CommissionRate,
		affiliate.TotalReferrals,
		affiliate.TotalCommission,
		affiliate.Status,
	).Scan(&affiliate.ID, &affiliate.CreatedAt, &affiliate.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "affiliates_user_id_key" {
				return domainerrors.ErrAlreadyEnrolled
			}
			return domainerrors.Wrap(domainerrors.ErrInvalidInput, "referral code collision")
		}
		return fmt.Errorf("failed to create affiliate: %w", err)
	}

	return nil
}

// GetByUserID retrieves an affiliate profile by owner
func (r *AffiliateRepository) GetByUserID(ctx context.Context, userID string) (*entities.Affiliate, error) {
	query := `SELECT ` + affiliateColumns + ` FROM affiliates WHERE user_id = $1`

	var affiliate entities.Affiliate
	err := r.db.GetContext(ctx, &affiliate, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}

	return &affiliate, nil
}

// GetByCode retrieves an affiliate profile by referral code
func (r *AffiliateRepository) GetByCode(ctx context.Context, code string) (*entities.Affiliate, error) {
	query := `SELECT ` + affiliateColumns + ` FROM affiliates WHERE aff_code = $1`

	var affiliate entities.Affiliate
	err := r.db.GetContext(ctx, &affiliate, query, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get affiliate by code: %w", err)
	}

	return &affiliate, nil
}

// IncrementReferrals bumps the cumulative referral count and returns the
// updated profile for rank re-evaluation
func (r *AffiliateRepository) IncrementReferrals(ctx context.Context, userID string) (*entities.Affiliate, error) {
	query := `
		UPDATE affiliates
		SET total_referrals = total_referrals + 1,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + affiliateColumns

	var affiliate entities.Affiliate
	err := r.db.GetContext(ctx, &affiliate, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment referrals: %w", err)
	}

	return &affiliate, nil
}

// UpdateRank sets the rank label and its commission rate together
func (r *AffiliateRepository) UpdateRank(ctx context.Context, userID, rank string, rate decimal.Decimal) error {
	query := `
		UPDATE affiliates
		SET rank = $2, commission_rate = $3, updated_at = NOW()
		WHERE user_id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, userID, rank, rate); err != nil {
		return fmt.Errorf("failed to update affiliate rank: %w", err)
	}
	return nil
}
