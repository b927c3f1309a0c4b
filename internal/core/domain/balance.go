package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance is a user's holding of a single asset. There is at most one row
// per (UserID, Asset) and Amount is never negative.
type Balance struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	Asset           Asset           `json:"asset"`
	Amount          decimal.Decimal `json:"amount"`
	ExternalAddress *string         `json:"external_address,omitempty"` // crypto deposit address
	LastAuditHash   *string         `json:"-"`                          // Integrity chain head
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EmptyBalance is the unsaved zero balance reported for assets the user has
// never touched.
func EmptyBalance(userID uuid.UUID, asset Asset) *Balance {
	return &Balance{
		UserID: userID,
		Asset:  asset,
		Amount: decimal.Zero,
	}
}

// Covers reports whether the balance can absorb a debit of amount.
func (b *Balance) Covers(amount decimal.Decimal) bool {
	return b.Amount.GreaterThanOrEqual(amount)
}
