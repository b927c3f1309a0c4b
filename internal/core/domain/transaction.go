package domain

import (
	"time"

	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind describes what moved a balance.
type TransactionKind string

const (
	KindFiatDeposit      TransactionKind = "FIAT_DEPOSIT"
	KindFiatWithdrawal   TransactionKind = "FIAT_WITHDRAWAL"
	KindCryptoDeposit    TransactionKind = "CRYPTO_DEPOSIT"
	KindCryptoWithdrawal TransactionKind = "CRYPTO_WITHDRAWAL"
	KindBuy              TransactionKind = "BUY"
	KindSell             TransactionKind = "SELL"
	KindTransferIn       TransactionKind = "TRANSFER_IN"
	KindTransferOut      TransactionKind = "TRANSFER_OUT"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusApproved TransactionStatus = "APPROVED"
	TransactionStatusRejected TransactionStatus = "REJECTED"
)

// Transaction is an append-only ledger entry. Amount is signed against the
// owning balance: credits positive, debits negative. Amount, Asset and
// BalanceID never change after insert.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	ReferenceID       string            `json:"reference_id"`
	UserID            uuid.UUID         `json:"user_id"`
	BalanceID         uuid.UUID         `json:"balance_id"`
	Asset             Asset             `json:"asset"`
	Kind              TransactionKind   `json:"kind"`
	Amount            decimal.Decimal   `json:"amount"`
	Status            TransactionStatus `json:"status"`
	Description       *string           `json:"description,omitempty"`
	Destination       *string           `json:"destination,omitempty"`
	Network           *string           `json:"network,omitempty"`
	ExternalReference *string           `json:"external_reference,omitempty"`
	BalanceAfter      *decimal.Decimal  `json:"balance_after,omitempty"`
	CounterpartID     *uuid.UUID        `json:"counterpart_id,omitempty"`
	OrderID           *uuid.UUID        `json:"order_id,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	ProcessedAt       *time.Time        `json:"processed_at,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// IsCredit reports whether the transaction adds to its balance.
func (t *Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// ParseKind validates s against the known kinds.
func ParseKind(s string) (TransactionKind, error) {
	k := TransactionKind(s)
	if !k.Valid() {
		return "", apperror.ErrInvalidKind("Unknown transaction kind " + s)
	}
	return k, nil
}

func (k TransactionKind) Valid() bool {
	switch k {
	case KindFiatDeposit, KindFiatWithdrawal, KindCryptoDeposit, KindCryptoWithdrawal,
		KindBuy, KindSell, KindTransferIn, KindTransferOut:
		return true
	}
	return false
}

func (k TransactionKind) IsDeposit() bool {
	return k == KindFiatDeposit || k == KindCryptoDeposit
}

func (k TransactionKind) IsWithdrawal() bool {
	return k == KindFiatWithdrawal || k == KindCryptoWithdrawal
}

func (k TransactionKind) IsTransfer() bool {
	return k == KindTransferIn || k == KindTransferOut
}

// MatchesAsset reports whether k may be booked against a. Fiat kinds need a
// fiat asset and crypto kinds a crypto asset; the rest are class-agnostic.
func (k TransactionKind) MatchesAsset(a Asset) bool {
	switch k {
	case KindFiatDeposit, KindFiatWithdrawal:
		return a.IsFiat()
	case KindCryptoDeposit, KindCryptoWithdrawal:
		return a.IsCrypto()
	}
	return a.Valid()
}

// ValidateCreditKind checks k for a standalone credit. Transfer legs are
// only produced by Transfer.
func ValidateCreditKind(k TransactionKind, a Asset) error {
	if !k.Valid() {
		return apperror.ErrInvalidKind("Unknown transaction kind " + string(k))
	}
	if k.IsWithdrawal() || k.IsTransfer() {
		return apperror.ErrInvalidKind(string(k) + " cannot be used for a credit")
	}
	if !k.MatchesAsset(a) {
		return apperror.ErrInvalidKind(string(k) + " does not apply to " + string(a))
	}
	return nil
}

// ValidateDebitKind is the debit counterpart of ValidateCreditKind.
func ValidateDebitKind(k TransactionKind, a Asset) error {
	if !k.Valid() {
		return apperror.ErrInvalidKind("Unknown transaction kind " + string(k))
	}
	if k.IsDeposit() || k.IsTransfer() {
		return apperror.ErrInvalidKind(string(k) + " cannot be used for a debit")
	}
	if !k.MatchesAsset(a) {
		return apperror.ErrInvalidKind(string(k) + " does not apply to " + string(a))
	}
	return nil
}

// PendingAmount returns the signed amount a pending deposit or withdrawal
// request will apply when approved.
func PendingAmount(k TransactionKind, a Asset, amount decimal.Decimal) (decimal.Decimal, error) {
	if !k.IsDeposit() && !k.IsWithdrawal() {
		return decimal.Zero, apperror.ErrInvalidKind("Pending requests must be deposits or withdrawals")
	}
	if !k.MatchesAsset(a) {
		return decimal.Zero, apperror.ErrInvalidKind(string(k) + " does not apply to " + string(a))
	}
	if k.IsWithdrawal() {
		return amount.Neg(), nil
	}
	return amount, nil
}

// Leg is one side of a paired movement such as a transfer or an order
// settlement.
type Leg struct {
	Asset Asset
	Delta decimal.Decimal
	Kind  TransactionKind
}

// TransferLegs returns the outgoing and incoming legs of moving amount from
// one asset to another.
func TransferLegs(from, to Asset, amount decimal.Decimal) (out Leg, in Leg) {
	return Leg{Asset: from, Delta: amount.Neg(), Kind: KindTransferOut},
		Leg{Asset: to, Delta: amount, Kind: KindTransferIn}
}
