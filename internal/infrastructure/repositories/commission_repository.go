package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
)

// CommissionRepository persists commission payouts
type CommissionRepository struct {
	db *sqlx.DB
}

// NewCommissionRepository creates a new commission repository
func NewCommissionRepository(db *sqlx.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// GetByIntentID retrieves the commission paid for a settled intent, if any
func (r *CommissionRepository) GetByIntentID(ctx context.Context, intentID uuid.UUID) (*entities.Commission, error) {
	query := `
		SELECT id, user_id, referral_id, intent_id, amount, commission_amount, rate, created_at
		FROM commissions
		WHERE intent_id = $1
	`

	var commission entities.Commission
	err := r.db.GetContext(ctx, &commission, query, intentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get commission: %w", err)
	}

	return &commission, nil
}

// CreateAndCredit records the payout and credits the referrer in one
// transaction. ON CONFLICT (intent_id) DO NOTHING makes a second payout
// attempt for the same intent a success-no-op: the returned bool is false
// and no balance moves.
func (r *CommissionRepository) CreateAndCredit(ctx context.Context, commission *entities.Commission) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO commissions (
			id, user_id, referral_id, intent_id, amount, commission_amount, rate
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (intent_id) DO NOTHING
	`

	result, err := tx.ExecContext(ctx, insert,
		commission.ID,
		commission.UserID,
		commission.SourceID,
		commission.IntentID,
		commission.Amount,
		commission.Paid,
		commission.Rate,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create commission: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Already paid for this intent.
		return false, nil
	}

	credit := `
		UPDATE users
		SET balance = balance + $2,
			updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := tx.ExecContext(ctx, credit, commission.UserID, commission.Paid); err != nil {
		return false, fmt.Errorf("failed to credit referrer: %w", err)
	}

	totals := `
		UPDATE affiliates
		SET total_commission = total_commission + $2,
			updated_at = NOW()
		WHERE user_id = $1
	`
	if _, err := tx.ExecContext(ctx, totals, commission.UserID, commission.Paid); err != nil {
		return false, fmt.Errorf("failed to update affiliate totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit commission: %w", err)
	}

	return true, nil
}

// TotalByUser returns the lifetime commission paid to a beneficiary
func (r *CommissionRepository) TotalByUser(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(commission_amount), 0)
		FROM commissions
		WHERE user_id = $1
	`

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to total commissions: %w", err)
	}
	return total, nil
}
