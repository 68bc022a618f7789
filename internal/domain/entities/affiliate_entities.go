package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AffiliateStatus represents the lifecycle state of an affiliate profile
type AffiliateStatus string

const (
	AffiliateStatusActive    AffiliateStatus = "active"
	AffiliateStatusSuspended AffiliateStatus = "suspended"
)

// Affiliate is a user's enrollment record in the referral program.
// CommissionRate is derived from TotalReferrals via the rank table and is
// re-evaluated whenever the referral count changes.
type Affiliate struct {
	ID              int64           `db:"id"`
	UserID          string          `db:"user_id"`
	Code            string          `db:"aff_code"`
	Link            string          `db:"aff_link"`
	Rank            string          `db:"rank"`
	CommissionRate  decimal.Decimal `db:"commission_rate"`
	TotalReferrals  int             `db:"total_referrals"`
	TotalCommission decimal.Decimal `db:"total_commission"`
	Status          AffiliateStatus `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

// IsActive reports whether the profile can earn commission
func (a *Affiliate) IsActive() bool {
	return a.Status == AffiliateStatusActive
}

// Commission represents one commission payout triggered by one settled
// deposit intent. At most one Commission exists per intent (unique
// constraint on intent_id).
type Commission struct {
	ID        uuid.UUID       `db:"id"`
	UserID    string          `db:"user_id"`     // beneficiary (referrer)
	SourceID  string          `db:"referral_id"` // depositor
	IntentID  uuid.UUID       `db:"intent_id"`
	Amount    decimal.Decimal `db:"amount"`            // deposit amount
	Paid      decimal.Decimal `db:"commission_amount"` // floor(amount * rate)
	Rate      decimal.Decimal `db:"rate"`
	CreatedAt time.Time       `db:"created_at"`
}

// Rank is one tier of the affiliate program
type Rank struct {
	Name              string
	RequiredReferrals int
	CommissionRate    decimal.Decimal
}

// AffiliateRanks lists the tiers in ascending referral-count order.
// Rates are monotonically non-decreasing across the table.
var AffiliateRanks = []Rank{
	{Name: "Bronze", RequiredReferrals: 0, CommissionRate: decimal.NewFromFloat(0.03)},
	{Name: "Silver", RequiredReferrals: 10, CommissionRate: decimal.NewFromFloat(0.05)},
	{Name: "Gold", RequiredReferrals: 30, CommissionRate: decimal.NewFromFloat(0.07)},
	{Name: "Platinum", RequiredReferrals: 100, CommissionRate: decimal.NewFromFloat(0.10)},
	{Name: "Diamond", RequiredReferrals: 1000, CommissionRate: decimal.NewFromFloat(0.15)},
}

// RankForReferrals returns the highest rank whose threshold the given
// referral count meets. Idempotent: the same count always yields the
// same rank.
func RankForReferrals(count int) Rank {
	rank := AffiliateRanks[0]
	for _, r := range AffiliateRanks {
		if count >= r.RequiredReferrals {
			rank = r
		}
	}
	return rank
}

// NextRank returns the tier after the named rank, or nil at the top
func NextRank(name string) *Rank {
	for i, r := range AffiliateRanks {
		if r.Name == name && i < len(AffiliateRanks)-1 {
			next := AffiliateRanks[i+1]
			return &next
		}
	}
	return nil
}

// CommissionFor computes floor(amount * rate). Rounding is always down,
// never up.
func CommissionFor(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Floor()
}
