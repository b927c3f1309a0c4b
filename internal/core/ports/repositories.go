package ports

import (
	"context"
	"errors"
	"time"

	"custody-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	// ErrReferenceTaken is returned by TransactionRepository.Create when the
	// reference id is already in use. The caller regenerates and retries.
	ErrReferenceTaken = errors.New("reference id already exists")

	// ErrStatusChanged is returned by conditional status updates whose
	// expected current status no longer matches the stored row.
	ErrStatusChanged = errors.New("status changed concurrently")

	// ErrIdempotencyKeyExists is returned when another request already
	// stored a result under the same idempotency key.
	ErrIdempotencyKeyExists = errors.New("idempotency key already used")
)

// BalanceRepository defines persistence operations for balances.
// Methods accepting pgx.Tx run inside the caller's unit of work.
type BalanceRepository interface {
	// GetOrCreate returns the (user, asset) balance, inserting a zero row on
	// first access. Concurrent first access never creates two rows.
	GetOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error)
	// GetInTx reads the balance inside tx. Returns nil, nil when absent.
	GetInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error)
	// ApplyDelta adds delta to the amount in one conditional statement and
	// returns the updated row. Returns nil, nil when the row is missing or
	// the result would be negative.
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (*domain.Balance, error)
	SetAuditHash(ctx context.Context, tx pgx.Tx, id uuid.UUID, hash string) error
	// SetExternalAddressIfEmpty writes address only if none is recorded.
	// Reports whether the row was updated.
	SetExternalAddressIfEmpty(ctx context.Context, tx pgx.Tx, id uuid.UUID, address string) (bool, error)

	Get(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Balance, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error)
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	// Create inserts t. Returns ErrReferenceTaken on a reference collision.
	Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, referenceID string) (*domain.Transaction, error)
	// UpdateStatus persists t.Status, t.BalanceAfter and t.ProcessedAt if
	// the stored status still equals from. Returns ErrStatusChanged otherwise.
	UpdateStatus(ctx context.Context, tx pgx.Tx, t *domain.Transaction, from domain.TransactionStatus) error
	// Reporting queries
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	SumApproved(ctx context.Context, balanceID uuid.UUID) (decimal.Decimal, int64, error)
	GetStats(ctx context.Context, userID uuid.UUID, asset *domain.Asset) (*TransactionStats, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	UserID   uuid.UUID
	Asset    *domain.Asset
	Kind     *domain.TransactionKind
	Status   *domain.TransactionStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// TransactionStats aggregates a user's ledger activity.
type TransactionStats struct {
	TotalTransactions int64           `json:"total_transactions"`
	Pending           int64           `json:"pending"`
	Approved          int64           `json:"approved"`
	Rejected          int64           `json:"rejected"`
	TotalCredited     decimal.Decimal `json:"total_credited"` // Sum of approved positive amounts
	TotalDebited      decimal.Decimal `json:"total_debited"`  // Sum of approved negative amounts, as a positive number
}

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	// UpdateStatus moves the order from -> to. Returns ErrStatusChanged when
	// the stored status is no longer from.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.OrderStatus) error
	List(ctx context.Context, params OrderListParams) ([]domain.Order, int64, error)
}

// OrderListParams holds filter + pagination for listing orders.
type OrderListParams struct {
	UserID   uuid.UUID
	Status   *domain.OrderStatus
	Page     int
	PageSize int
}

// PaymentMethodRepository defines persistence for linked bank accounts and wallets.
type PaymentMethodRepository interface {
	Create(ctx context.Context, pm *domain.PaymentMethod) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PaymentMethod, error)
	// UpdateDetails writes label, details and network.
	UpdateDetails(ctx context.Context, tx pgx.Tx, pm *domain.PaymentMethod) error
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.PaymentMethodStatus) error
	Unlink(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID, includeUnlinked bool) ([]domain.PaymentMethod, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
