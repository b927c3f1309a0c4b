package domain

import (
	"time"

	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
)

// PaymentMethodType distinguishes linked bank accounts from crypto wallets.
type PaymentMethodType string

const (
	PaymentMethodBankAccount  PaymentMethodType = "BANK_ACCOUNT"
	PaymentMethodCryptoWallet PaymentMethodType = "CRYPTO_WALLET"
)

func (t PaymentMethodType) Valid() bool {
	return t == PaymentMethodBankAccount || t == PaymentMethodCryptoWallet
}

// Accepts reports whether a payment method of type t can hold asset a.
func (t PaymentMethodType) Accepts(a Asset) bool {
	switch t {
	case PaymentMethodBankAccount:
		return a.IsFiat()
	case PaymentMethodCryptoWallet:
		return a.IsCrypto()
	}
	return false
}

type PaymentMethodStatus string

const (
	PaymentMethodStatusPending  PaymentMethodStatus = "PENDING"
	PaymentMethodStatusApproved PaymentMethodStatus = "APPROVED"
	PaymentMethodStatusRejected PaymentMethodStatus = "REJECTED"
)

// PaymentMethod is a withdrawal destination linked by a user. Details holds
// the IBAN or account number for bank accounts and the address for wallets.
type PaymentMethod struct {
	ID         uuid.UUID           `json:"id"`
	UserID     uuid.UUID           `json:"user_id"`
	Type       PaymentMethodType   `json:"type"`
	Label      string              `json:"label"`
	Asset      Asset               `json:"asset"`
	Details    string              `json:"details"`
	Network    *string             `json:"network,omitempty"`
	Status     PaymentMethodStatus `json:"status"`
	UnlinkedAt *time.Time          `json:"unlinked_at,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// IsLinked is false once the user has unlinked the method.
func (p *PaymentMethod) IsLinked() bool {
	return p.UnlinkedAt == nil
}

// CheckEditable returns an error unless the method may still be edited:
// it must be linked and awaiting review. Reviewed methods are final; a
// rejected one is resubmitted by linking it again.
func (p *PaymentMethod) CheckEditable() error {
	if !p.IsLinked() {
		return apperror.ErrPaymentMethodNotFound()
	}
	if p.Status != PaymentMethodStatusPending {
		return apperror.ErrImmutablePaymentMethod()
	}
	return nil
}
