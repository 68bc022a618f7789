package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Deposit timing and matching constants
const (
	// ReminderAfter is how long an intent may sit pending before the
	// user gets a single payment reminder
	ReminderAfter = 5 * time.Minute

	// ExpireAfter is the hard deadline after which a pending intent is
	// auto-cancelled by the expiry worker
	ExpireAfter = 15 * time.Minute

	// MatchLookback bounds how far back the reconciler searches for a
	// pending intent. Older pending intents are left for the expiry
	// worker rather than matched against incoming notifications.
	MatchLookback = 30 * time.Minute
)

// DepositDenominations are the offered top-up amounts in VND
var DepositDenominations = []int64{20000, 50000, 100000, 200000, 500000}

// IsValidDenomination reports whether amount is one of the offered denominations
func IsValidDenomination(amount decimal.Decimal) bool {
	for _, d := range DepositDenominations {
		if amount.Equal(decimal.NewFromInt(d)) {
			return true
		}
	}
	return false
}

// DepositIntent represents one QR code shown to a user for one amount.
// tid, bank metadata and the rendering message id are nullable: the row is
// created before the QR message is sent and before the bank reports anything.
type DepositIntent struct {
	ID            uuid.UUID       `db:"id"`
	UserID        string          `db:"user_id"`
	Amount        decimal.Decimal `db:"amount"`
	Status        IntentStatus    `db:"status"`
	Description   string          `db:"description"`
	TID           *string         `db:"tid"`
	MessageID     *int            `db:"message_id"`
	BankName      *string         `db:"bank_name"`
	SenderName    *string         `db:"sender_name"`
	SenderAccount *string         `db:"sender_account"`
	ReminderSent  bool            `db:"reminder_sent"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// Age returns how long the intent has been open relative to now
func (i *DepositIntent) Age(now time.Time) time.Duration {
	return now.Sub(i.CreatedAt)
}

// NeedsReminder reports whether the reminder threshold has been reached
// and no reminder has been sent yet
func (i *DepositIntent) NeedsReminder(now time.Time) bool {
	return i.Status.IsPending() && !i.ReminderSent && i.Age(now) >= ReminderAfter
}

// IsExpired reports whether the hard cancellation deadline has passed
func (i *DepositIntent) IsExpired(now time.Time) bool {
	return i.Status.IsPending() && i.Age(now) >= ExpireAfter
}

// BankNotification is one transaction entry delivered by the payment
// gateway webhook
type BankNotification struct {
	TID           string          `json:"tid"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	When          string          `json:"when"`
	BankName      string          `json:"bankName"`
	SenderName    string          `json:"corresponsiveName"`
	SenderAccount string          `json:"corresponsiveAccount"`
}

// SettlementOutcome classifies what Reconcile did with one notification
type SettlementOutcome string

const (
	SettlementSettled    SettlementOutcome = "settled"
	SettlementDuplicate  SettlementOutcome = "duplicate"
	SettlementUnroutable SettlementOutcome = "unroutable"
	SettlementUnmatched  SettlementOutcome = "unmatched"
)

// SettlementResult reports the outcome of reconciling one notification
type SettlementResult struct {
	Outcome    SettlementOutcome
	Intent     *DepositIntent
	NewBalance decimal.Decimal
	Commission *Commission
}
