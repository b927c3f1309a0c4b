package service

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// genesisHash seeds the chain of a balance that has never moved.
const genesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Blake2bAuditHasher implements ports.AuditHasher. Each balance carries the
// head of a hash chain over every delta applied to it, so a row edited
// outside the ledger no longer matches a recomputation from its entries.
type Blake2bAuditHasher struct{}

// NewBlake2bAuditHasher creates a new audit hasher.
func NewBlake2bAuditHasher() *Blake2bAuditHasher {
	return &Blake2bAuditHasher{}
}

// Chain returns blake2b-256(prev|txID|delta|newAmount) as lowercase hex.
func (h *Blake2bAuditHasher) Chain(prev *string, txID uuid.UUID, delta, newAmount decimal.Decimal) string {
	head := genesisHash
	if prev != nil && *prev != "" {
		head = *prev
	}

	sum := blake2b.Sum256([]byte(head + "|" + txID.String() + "|" + delta.String() + "|" + newAmount.String()))
	return hex.EncodeToString(sum[:])
}

// requestFingerprint hashes the fields that decide what a keyed request
// does, so a reused idempotency key can be told apart from a retry.
func requestFingerprint(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
