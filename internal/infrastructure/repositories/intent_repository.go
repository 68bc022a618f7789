package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/tikup-service/tikup_service/internal/domain/entities"
	domainerrors "github.com/tikup-service/tikup_service/internal/domain/errors"
)

const intentColumns = `id, user_id, amount, status, description, tid, message_id,
	   bank_name, sender_name, sender_account, reminder_sent, created_at, updated_at`

// IntentRepository persists deposit intents and owns the conditional
// status transitions that make settle and expire mutually exclusive.
type IntentRepository struct {
	db *sqlx.DB
}

// NewIntentRepository creates a new intent repository
func NewIntentRepository(db *sqlx.DB) *IntentRepository {
	return &IntentRepository{db: db}
}

// Create inserts a new pending intent
func (r *IntentRepository) Create(ctx context.Context, intent *entities.DepositIntent) error {
	query := `
		INSERT INTO deposit_intents (
			id, user_id, amount, status, description, tid, message_id,
			bank_name, sender_name, sender_account, reminder_sent, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		intent.ID,
		intent.UserID,
		intent.Amount,
		intent.Status,
		intent.Description,
		intent.TID,
		intent.MessageID,
		intent.BankName,
		intent.SenderName,
		intent.SenderAccount,
		intent.ReminderSent,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create intent: %w", err)
	}

	return nil
}

// SetMessageID stores the id of the chat message rendering the QR code.
// The row briefly lacks a message id between creation and the QR message
// being sent.
func (r *IntentRepository) SetMessageID(ctx context.Context, id uuid.UUID, messageID int) error {
	query := `
		UPDATE deposit_intents
		SET message_id = $2, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, messageID); err != nil {
		return fmt.Errorf("failed to set message id: %w", err)
	}
	return nil
}

// GetByID retrieves an intent by surrogate id
func (r *IntentRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.DepositIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM deposit_intents WHERE id = $1`

	var intent entities.DepositIntent
	err := r.db.GetContext(ctx, &intent, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get intent: %w", err)
	}

	return &intent, nil
}

// GetByTID retrieves an intent by external bank transaction id
func (r *IntentRepository) GetByTID(ctx context.Context, tid string) (*entities.DepositIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM deposit_intents WHERE tid = $1`

	var intent entities.DepositIntent
	err := r.db.GetContext(ctx, &intent, query, tid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get intent by tid: %w", err)
	}

	return &intent, nil
}

// GetByMessageID retrieves an intent by the chat message rendering its QR
func (r *IntentRepository) GetByMessageID(ctx context.Context, messageID int) (*entities.DepositIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM deposit_intents
		WHERE message_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var intent entities.DepositIntent
	err := r.db.GetContext(ctx, &intent, query, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get intent by message id: %w", err)
	}

	return &intent, nil
}

// FindPendingByUserAndAmount returns the most recently created pending
// intent for the exact (user, amount) pair created after the cutoff.
// Pending intents older than the cutoff are not eligible reconciliation
// targets; the expiry worker deals with them.
func (r *IntentRepository) FindPendingByUserAndAmount(ctx context.Context, userID string, amount decimal.Decimal, createdAfter time.Time) (*entities.DepositIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM deposit_intents
		WHERE user_id = $1
		  AND amount = $2
		  AND status = $3
		  AND created_at >= $4
		ORDER BY created_at DESC
		LIMIT 1
	`

	var intent entities.DepositIntent
	err := r.db.GetContext(ctx, &intent, query, userID, amount, entities.IntentStatusPending, createdAfter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainerrors.ErrNoMatchingIntent
		}
		return nil, fmt.Errorf("failed to find pending intent: %w", err)
	}

	return &intent, nil
}

// ListPending returns open intents oldest first, for the expiry sweep
func (r *IntentRepository) ListPending(ctx context.Context, limit int) ([]*entities.DepositIntent, error) {
	query := `
		SELECT ` + intentColumns + `
		FROM deposit_intents
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	var intents []*entities.DepositIntent
	err := r.db.SelectContext(ctx, &intents, query, entities.IntentStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending intents: %w", err)
	}

	return intents, nil
}

// Settle atomically completes a pending intent and credits the owner's
// balance. The status flip is conditional on status='pending' so a
// concurrent cancel observes ErrInvalidState, and the unique index on tid
// turns a racing duplicate delivery into ErrDuplicateNotification before
// any money moves. Returns the new balance.
func (r *IntentRepository) Settle(ctx context.Context, id uuid.UUID, n *entities.BankNotification) (decimal.Decimal, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	update := `
		UPDATE deposit_intents
		SET status = $2,
			tid = $3,
			bank_name = $4,
			sender_name = $5,
			sender_account = $6,
			updated_at = NOW()
		WHERE id = $1 AND status = $7
		RETURNING user_id
	`

	var userID string
	err = tx.GetContext(ctx, &userID, update,
		id,
		entities.IntentStatusCompleted,
		n.TID,
		nullable(n.BankName),
		nullable(n.SenderName),
		nullable(n.SenderAccount),
		entities.IntentStatusPending,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, domainerrors.ErrInvalidState
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return decimal.Zero, domainerrors.ErrDuplicateNotification
		}
		return decimal.Zero, fmt.Errorf("failed to complete intent: %w", err)
	}

	credit := `
		UPDATE users
		SET balance = balance + $2,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`

	var balance decimal.Decimal
	if err := tx.GetContext(ctx, &balance, credit, userID, n.Amount); err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return balance, nil
}

// Cancel transitions a pending intent to cancelled. Returns
// ErrInvalidState when the intent already reached a terminal state, which
// callers surface as a benign no-op.
func (r *IntentRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE deposit_intents
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
	`

	result, err := r.db.ExecContext(ctx, query, id, entities.IntentStatusCancelled, entities.IntentStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel intent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domainerrors.ErrInvalidState
	}

	return nil
}

// MarkReminderSent flags a pending intent as reminded. Conditional on the
// flag still being unset so concurrent sweeps send at most one reminder.
func (r *IntentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE deposit_intents
		SET reminder_sent = TRUE, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND reminder_sent = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id, entities.IntentStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
