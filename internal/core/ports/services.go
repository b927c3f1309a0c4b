package ports

import (
	"context"
	"time"

	"custody-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReferenceGenerator mints transaction reference ids.
type ReferenceGenerator interface {
	Next(prefix string) (string, error)
}

// AuditHasher computes the per-balance integrity chain.
type AuditHasher interface {
	Chain(prev *string, txID uuid.UUID, delta, newAmount decimal.Decimal) string
}

// TokenService validates identity tokens issued by the auth service.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// Caller roles carried in identity tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// TokenClaims holds the parsed identity claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

// IsAdmin reports whether the caller may use admin routes.
func (c *TokenClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RequestLock claims an idempotency key while the request carrying it is
// being processed, so a concurrent retry is refused instead of racing.
type RequestLock interface {
	// Claim returns false when the key is already held. The token
	// identifies this claim to Release.
	Claim(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	// Release drops the claim only while it is still held under token.
	Release(ctx context.Context, key, token string) error
}

// AuditService records audit entries off the request path.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// --- Service Ports (Business Logic) ---

// LedgerService is the only component allowed to mutate balances. Every
// mutation is paired with exactly one transaction row per balance touched
// and both commit together.
type LedgerService interface {
	Credit(ctx context.Context, req CreditRequest) (*domain.Transaction, error)
	Debit(ctx context.Context, req DebitRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	RecordPendingTransaction(ctx context.Context, req PendingRequest) (*domain.Transaction, error)
	ApproveTransaction(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.Transaction, error)
	RejectTransaction(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*domain.Transaction, error)

	GetBalance(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error)
	ListBalances(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
	GetTransaction(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*domain.Transaction, error)
	GetTransactionByReference(ctx context.Context, referenceID string) (*domain.Transaction, error)
}

// CreditRequest holds validated input for a pre-authorized credit.
type CreditRequest struct {
	UserID         uuid.UUID
	Asset          domain.Asset
	Amount         decimal.Decimal
	Kind           domain.TransactionKind
	Description    *string
	IdempotencyKey string
}

// DebitRequest holds validated input for a pre-authorized debit.
type DebitRequest struct {
	UserID         uuid.UUID
	Asset          domain.Asset
	Amount         decimal.Decimal
	Kind           domain.TransactionKind
	Description    *string
	IdempotencyKey string
}

// TransferRequest moves Amount between two of the user's own balances.
type TransferRequest struct {
	UserID         uuid.UUID
	FromAsset      domain.Asset
	ToAsset        domain.Asset
	Amount         decimal.Decimal
	Description    *string
	IdempotencyKey string
}

// TransferResult holds both legs of a transfer.
type TransferResult struct {
	From *domain.Transaction `json:"from"`
	To   *domain.Transaction `json:"to"`
}

// PendingRequest is a user-initiated deposit or withdrawal awaiting
// external confirmation. Amount is unsigned; the kind decides the sign.
type PendingRequest struct {
	UserID            uuid.UUID
	Asset             domain.Asset
	Amount            decimal.Decimal
	Kind              domain.TransactionKind
	Destination       *string
	Network           *string
	ExternalReference *string
	Description       *string
	IdempotencyKey    string
}

// StatusService applies administrative status changes through the
// lifecycle rules of each entity.
type StatusService interface {
	TransitionTransaction(ctx context.Context, id uuid.UUID, target domain.TransactionStatus, actorID uuid.UUID) (*domain.Transaction, error)
	TransitionOrder(ctx context.Context, id uuid.UUID, target domain.OrderStatus, actorID uuid.UUID) (*domain.Order, error)
	TransitionPaymentMethod(ctx context.Context, id uuid.UUID, target domain.PaymentMethodStatus, actorID uuid.UUID) (*domain.PaymentMethod, error)
}

// OrderService manages buy/sell orders and their settlement.
type OrderService interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error)
	CompleteOrder(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*OrderSettlement, error)
	// CancelOrder cancels a pending order. Non-admin callers may only
	// cancel their own orders.
	CancelOrder(ctx context.Context, callerID uuid.UUID, id uuid.UUID, isAdmin bool) (*domain.Order, error)
	GetOrder(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
}

// PlaceOrderRequest holds validated input for a new order.
type PlaceOrderRequest struct {
	UserID       uuid.UUID
	Side         domain.OrderSide
	Asset        domain.Asset
	Currency     domain.Asset
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
}

// OrderSettlement is a completed order with its two ledger legs.
type OrderSettlement struct {
	Order  *domain.Order       `json:"order"`
	Debit  *domain.Transaction `json:"debit"`
	Credit *domain.Transaction `json:"credit"`
}

// PaymentMethodService manages linked withdrawal destinations.
type PaymentMethodService interface {
	Link(ctx context.Context, req LinkPaymentMethodRequest) (*domain.PaymentMethod, error)
	Update(ctx context.Context, req UpdatePaymentMethodRequest) (*domain.PaymentMethod, error)
	Unlink(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*domain.PaymentMethod, error)
	Review(ctx context.Context, id uuid.UUID, target domain.PaymentMethodStatus) (*domain.PaymentMethod, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.PaymentMethod, error)
}

// LinkPaymentMethodRequest holds validated input for linking a method.
type LinkPaymentMethodRequest struct {
	UserID  uuid.UUID
	Type    domain.PaymentMethodType
	Label   string
	Asset   domain.Asset
	Details string
	Network *string
}

// UpdatePaymentMethodRequest edits a not-yet-approved method.
type UpdatePaymentMethodRequest struct {
	UserID  uuid.UUID
	ID      uuid.UUID
	Label   string
	Details string
	Network *string
}

// ReportingService defines read-side reporting.
type ReportingService interface {
	ListTransactions(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	GetStats(ctx context.Context, userID uuid.UUID, asset *domain.Asset) (*TransactionStats, error)
	ReconcileBalance(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*Reconciliation, error)
}

// Reconciliation compares a balance with the sum of its approved entries.
type Reconciliation struct {
	UserID          uuid.UUID       `json:"user_id"`
	Asset           domain.Asset    `json:"asset"`
	BalanceAmount   decimal.Decimal `json:"balance_amount"`
	LedgerSum       decimal.Decimal `json:"ledger_sum"`
	Difference      decimal.Decimal `json:"difference"`
	ApprovedEntries int64           `json:"approved_entries"`
	Consistent      bool            `json:"consistent"`
}
