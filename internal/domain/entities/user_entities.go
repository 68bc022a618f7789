package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a Telegram account known to the storefront. Users are created
// lazily on first contact and never deleted. ReferredBy holds the referral
// code that attributed this user; once set it is never overwritten.
type User struct {
	ID         int64           `db:"id"`
	UserID     string          `db:"user_id"`
	Username   string          `db:"username"`
	Balance    decimal.Decimal `db:"balance"`
	Rank       string          `db:"rank"`
	ReferredBy *string         `db:"referred_by"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

// HasReferrer reports whether the user was attributed to a referral code
func (u *User) HasReferrer() bool {
	return u.ReferredBy != nil && *u.ReferredBy != ""
}
