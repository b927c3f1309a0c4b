package domain

import (
	"time"

	"github.com/google/uuid"
)

// Idempotency scopes keep one client key from colliding across operations.
const (
	IdempotencyScopeCredit     = "credit"
	IdempotencyScopeDebit      = "debit"
	IdempotencyScopeTransfer   = "transfer"
	IdempotencyScopeDeposit    = "deposit"
	IdempotencyScopeWithdrawal = "withdrawal"
)

// PendingIdempotencyScope returns the scope for a pending request of kind k.
func PendingIdempotencyScope(k TransactionKind) string {
	if k.IsWithdrawal() {
		return IdempotencyScopeWithdrawal
	}
	return IdempotencyScopeDeposit
}

// IdempotencyLog stores the result of a keyed request so retries replay it
// instead of mutating balances twice.
type IdempotencyLog struct {
	Key           string    `json:"key"` // Format: "user_id:scope:client_key"
	TransactionID uuid.UUID `json:"transaction_id"`
	RequestHash   string    `json:"request_hash"`  // Fingerprint of the request that stored it
	ResponseJSON  []byte    `json:"response_json"` // Cached response to return
	CreatedAt     time.Time `json:"created_at"`
}

// Matches reports whether a request with fingerprint hash may replay l.
// Entries written without a fingerprint match any request.
func (l *IdempotencyLog) Matches(hash string) bool {
	return l.RequestHash == "" || l.RequestHash == hash
}

// BuildIdempotencyKey constructs the standard key format.
func BuildIdempotencyKey(userID uuid.UUID, scope, clientKey string) string {
	return userID.String() + ":" + scope + ":" + clientKey
}
