package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCredit             AuditAction = "CREDIT"
	AuditActionDebit              AuditAction = "DEBIT"
	AuditActionTransfer           AuditAction = "TRANSFER"
	AuditActionDepositRequest     AuditAction = "DEPOSIT_REQUEST"
	AuditActionWithdrawalRequest  AuditAction = "WITHDRAWAL_REQUEST"
	AuditActionTransactionStatus  AuditAction = "TRANSACTION_STATUS"
	AuditActionOrderPlace         AuditAction = "ORDER_PLACE"
	AuditActionOrderCancel        AuditAction = "ORDER_CANCEL"
	AuditActionOrderStatus        AuditAction = "ORDER_STATUS"
	AuditActionPaymentMethodLink  AuditAction = "PAYMENT_METHOD_LINK"
	AuditActionPaymentMethodEdit  AuditAction = "PAYMENT_METHOD_UPDATE"
	AuditActionPaymentMethodDrop  AuditAction = "PAYMENT_METHOD_UNLINK"
	AuditActionPaymentMethodState AuditAction = "PAYMENT_METHOD_STATUS"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
