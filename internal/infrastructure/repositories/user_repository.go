package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
)

// UserRepository persists users and their balances
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user on first contact or refreshes the username.
// An existing referral linkage is never overwritten: COALESCE keeps the
// first attribution.
func (r *UserRepository) Upsert(ctx context.Context, userID, username string, referredBy *string) (*entities.User, error) {
	query := `
		INSERT INTO users (user_id, username, referred_by, rank, balance)
		VALUES ($1, $2, $3, 'Bronze', 0)
		ON CONFLICT (user_id)
		DO UPDATE SET
			username = EXCLUDED.username,
			referred_by = COALESCE(users.referred_by, EXCLUDED.referred_by),
			updated_at = NOW()
		RETURNING id, user_id, username, balance, rank, referred_by, created_at, updated_at
	`

	if username == "" {
		username = "Unknown"
	}

	var user entities.User
	err := r.db.GetContext(ctx, &user, query, userID, username, referredBy)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return &user, nil
}

// GetByUserID retrieves a user by platform user id
func (r *UserRepository) GetByUserID(ctx context.Context, userID string) (*entities.User, error) {
	query := `
		SELECT id, user_id, username, balance, rank, referred_by, created_at, updated_at
		FROM users
		WHERE user_id = $1
	`

	var user entities.User
	err := r.db.GetContext(ctx, &user, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// AdjustBalance applies a relative balance adjustment and returns the new
// balance. The delta is applied at the store layer so concurrent credits
// to the same user never lose updates.
func (r *UserRepository) AdjustBalance(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET balance = balance + $2,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`

	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, query, userID, delta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, domainerrors.ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to adjust balance: %w", err)
	}

	return balance, nil
}

// Debit subtracts amount from the user's balance only if sufficient funds
// remain. Returns the new balance, or ErrInvalidInput when the balance
// would go negative.
func (r *UserRepository) Debit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	query := `
		UPDATE users
		SET balance = balance - $2,
			updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`

	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, query, userID, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, domainerrors.Wrap(domainerrors.ErrInvalidInput, "insufficient balance")
		}
		return decimal.Zero, fmt.Errorf("failed to debit balance: %w", err)
	}

	return balance, nil
}

// UpdateRank sets the user's rank label
func (r *UserRepository) UpdateRank(ctx context.Context, userID, rank string) error {
	query := `UPDATE users SET rank = $2, updated_at = NOW() WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID, rank); err != nil {
		return fmt.Errorf("failed to update rank: %w", err)
	}
	return nil
}

// CountReferredBy returns how many users were attributed to the given
// referral code
func (r *UserRepository) CountReferredBy(ctx context.Context, code string) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE referred_by = $1`

	var count int
	if err := r.db.GetContext(ctx, &count, query, code); err != nil {
		return 0, fmt.Errorf("failed to count referrals: %w", err)
	}
	return count, nil
}
