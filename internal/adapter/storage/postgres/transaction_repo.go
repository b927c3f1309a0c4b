package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, reference_id, user_id, balance_id, asset, kind, amount, status,
		description, destination, network, external_reference, balance_after, counterpart_id,
		order_id, created_at, processed_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction within a database transaction. A reference
// collision is reported as ports.ErrReferenceTaken without aborting tx.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (reference_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		t.ID, t.ReferenceID, t.UserID, t.BalanceID, string(t.Asset), string(t.Kind),
		t.Amount, string(t.Status), t.Description, t.Destination, t.Network,
		t.ExternalReference, t.BalanceAfter, t.CounterpartID, t.OrderID,
		t.CreatedAt, t.ProcessedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "transactions_reference_id_key") {
			return ports.ErrReferenceTaken
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrReferenceTaken
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks the transaction row for a status change.
// This MUST be called within a transaction.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// GetByReference fetches a transaction by its reference id.
func (r *TransactionRepo) GetByReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference_id = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, referenceID))
}

// UpdateStatus finalises a transaction. The status guard makes a second
// concurrent transition a no-op that surfaces as ports.ErrStatusChanged.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, t *domain.Transaction, from domain.TransactionStatus) error {
	query := `UPDATE transactions SET status = $1, balance_after = $2, processed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := tx.Exec(ctx, query, string(t.Status), t.BalanceAfter, t.ProcessedAt, t.ID, string(from))
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStatusChanged
	}
	return nil
}

// List fetches transactions with filtering and pagination.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
	args = append(args, params.UserID)
	argIdx++

	if params.Asset != nil {
		conditions = append(conditions, fmt.Sprintf("asset = $%d", argIdx))
		args = append(args, string(*params.Asset))
		argIdx++
	}
	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, string(*params.Kind))
		argIdx++
	}
	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*params.Status))
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		transactionColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransactionFields(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// SumApproved totals the approved entries booked against a balance.
func (r *TransactionRepo) SumApproved(ctx context.Context, balanceID uuid.UUID) (decimal.Decimal, int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM transactions
		WHERE balance_id = $1 AND status = 'APPROVED'`

	var sum decimal.Decimal
	var count int64
	if err := r.pool.QueryRow(ctx, query, balanceID).Scan(&sum, &count); err != nil {
		return decimal.Zero, 0, fmt.Errorf("sum approved transactions: %w", err)
	}
	return sum, count, nil
}

// GetStats aggregates a user's transactions, optionally for one asset.
func (r *TransactionRepo) GetStats(ctx context.Context, userID uuid.UUID, asset *domain.Asset) (*ports.TransactionStats, error) {
	args := []any{userID}
	condition := "user_id = $1"
	if asset != nil {
		condition += " AND asset = $2"
		args = append(args, string(*asset))
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'PENDING') AS pending,
		COUNT(*) FILTER (WHERE status = 'APPROVED') AS approved,
		COUNT(*) FILTER (WHERE status = 'REJECTED') AS rejected,
		COALESCE(SUM(amount) FILTER (WHERE status = 'APPROVED' AND amount > 0), 0) AS credited,
		COALESCE(-SUM(amount) FILTER (WHERE status = 'APPROVED' AND amount < 0), 0) AS debited
		FROM transactions WHERE %s`, condition)

	stats := &ports.TransactionStats{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.TotalTransactions, &stats.Pending, &stats.Approved, &stats.Rejected,
		&stats.TotalCredited, &stats.TotalDebited,
	)
	if err != nil {
		return nil, fmt.Errorf("get transaction stats: %w", err)
	}
	return stats, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t, err := scanTransactionFields(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func scanTransactionFields(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.ReferenceID, &t.UserID, &t.BalanceID, &t.Asset, &t.Kind,
		&t.Amount, &t.Status, &t.Description, &t.Destination, &t.Network,
		&t.ExternalReference, &t.BalanceAfter, &t.CounterpartID, &t.OrderID,
		&t.CreatedAt, &t.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}
