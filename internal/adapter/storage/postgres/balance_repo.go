package postgres

import (
	"context"
	"errors"
	"fmt"

	"custody-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const balanceColumns = `id, user_id, asset, amount, external_address, last_audit_hash, created_at, updated_at`

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct {
	pool Pool
}

// NewBalanceRepo creates a new BalanceRepo.
func NewBalanceRepo(pool Pool) *BalanceRepo {
	return &BalanceRepo{pool: pool}
}

// GetOrCreate inserts a zero balance unless one exists, then reads it back.
// A concurrent insert of the same (user, asset) makes ours a no-op and the
// read returns the winner's row.
func (r *BalanceRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	insert := `INSERT INTO balances (id, user_id, asset, amount, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())
		ON CONFLICT (user_id, asset) DO NOTHING`

	if _, err := tx.Exec(ctx, insert, uuid.New(), userID, string(asset)); err != nil {
		return nil, fmt.Errorf("ensure balance: %w", err)
	}

	b, err := r.GetInTx(ctx, tx, userID, asset)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("ensure balance: row for %s/%s missing after insert", userID, asset)
	}
	return b, nil
}

// GetInTx reads a balance inside a transaction without locking it.
func (r *BalanceRepo) GetInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 AND asset = $2`

	return scanBalance(tx.QueryRow(ctx, query, userID, string(asset)), "get balance in tx")
}

// ApplyDelta adds delta in a single conditional statement. The row lock taken
// by the UPDATE serialises concurrent mutations of the same balance and the
// bound is checked against the locked value. Returns nil, nil when the row
// is missing or the result would be negative.
func (r *BalanceRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (*domain.Balance, error) {
	query := `UPDATE balances SET amount = amount + $2, updated_at = NOW()
		WHERE id = $1 AND amount + $2 >= 0
		RETURNING ` + balanceColumns

	return scanBalance(tx.QueryRow(ctx, query, id, delta), "apply balance delta")
}

// SetAuditHash records the new head of the balance's integrity chain.
func (r *BalanceRepo) SetAuditHash(ctx context.Context, tx pgx.Tx, id uuid.UUID, hash string) error {
	tag, err := tx.Exec(ctx, `UPDATE balances SET last_audit_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("set audit hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("balance not found: %s", id)
	}
	return nil
}

// SetExternalAddressIfEmpty is first-write-wins: an existing address is
// never overwritten.
func (r *BalanceRepo) SetExternalAddressIfEmpty(ctx context.Context, tx pgx.Tx, id uuid.UUID, address string) (bool, error) {
	query := `UPDATE balances SET external_address = $2, updated_at = NOW()
		WHERE id = $1 AND external_address IS NULL`

	tag, err := tx.Exec(ctx, query, id, address)
	if err != nil {
		return false, fmt.Errorf("set external address: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get fetches a balance by owner and asset (non-locking read).
func (r *BalanceRepo) Get(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 AND asset = $2`

	return scanBalance(r.pool.QueryRow(ctx, query, userID, string(asset)), "get balance")
}

// GetByID fetches a balance by its UUID.
func (r *BalanceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE id = $1`

	return scanBalance(r.pool.QueryRow(ctx, query, id), "get balance by id")
}

// ListByUser returns every balance the user holds, ordered by asset.
func (r *BalanceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	query := `SELECT ` + balanceColumns + ` FROM balances WHERE user_id = $1 ORDER BY asset`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	var balances []domain.Balance
	for rows.Next() {
		var b domain.Balance
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.Asset, &b.Amount,
			&b.ExternalAddress, &b.LastAuditHash, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balance rows: %w", err)
	}
	return balances, nil
}

func scanBalance(row pgx.Row, op string) (*domain.Balance, error) {
	b := &domain.Balance{}
	err := row.Scan(
		&b.ID, &b.UserID, &b.Asset, &b.Amount,
		&b.ExternalAddress, &b.LastAuditHash, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return b, nil
}
