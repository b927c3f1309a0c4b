package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentMethodColumns = `id, user_id, type, label, asset, details, network, status,
		unlinked_at, created_at, updated_at`

// PaymentMethodRepo implements ports.PaymentMethodRepository.
type PaymentMethodRepo struct {
	pool Pool
}

// NewPaymentMethodRepo creates a new PaymentMethodRepo.
func NewPaymentMethodRepo(pool Pool) *PaymentMethodRepo {
	return &PaymentMethodRepo{pool: pool}
}

// Create inserts a new payment method.
func (r *PaymentMethodRepo) Create(ctx context.Context, pm *domain.PaymentMethod) error {
	query := `INSERT INTO payment_methods (` + paymentMethodColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		pm.ID, pm.UserID, string(pm.Type), pm.Label, string(pm.Asset), pm.Details,
		pm.Network, string(pm.Status), pm.UnlinkedAt, pm.CreatedAt, pm.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}

// GetByID fetches a payment method by UUID, linked or not.
func (r *PaymentMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = $1`

	return scanPaymentMethod(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate locks the payment method row.
// This MUST be called within a transaction.
func (r *PaymentMethodRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE id = $1 FOR UPDATE`

	return scanPaymentMethod(tx.QueryRow(ctx, query, id))
}

// UpdateDetails rewrites the editable fields of a pending, linked method.
func (r *PaymentMethodRepo) UpdateDetails(ctx context.Context, tx pgx.Tx, pm *domain.PaymentMethod) error {
	query := `UPDATE payment_methods SET label = $1, details = $2, network = $3, updated_at = $4
		WHERE id = $5 AND status = 'PENDING' AND unlinked_at IS NULL`

	tag, err := tx.Exec(ctx, query, pm.Label, pm.Details, pm.Network, pm.UpdatedAt, pm.ID)
	if err != nil {
		return fmt.Errorf("update payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStatusChanged
	}
	return nil
}

// UpdateStatus moves a payment method from one review status to another.
func (r *PaymentMethodRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.PaymentMethodStatus) error {
	query := `UPDATE payment_methods SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update payment method status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStatusChanged
	}
	return nil
}

// Unlink soft-deletes a payment method.
func (r *PaymentMethodRepo) Unlink(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	query := `UPDATE payment_methods SET unlinked_at = $1, updated_at = $1 WHERE id = $2 AND unlinked_at IS NULL`

	tag, err := tx.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("unlink payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrStatusChanged
	}
	return nil
}

// ListByUser returns the user's payment methods, newest first.
func (r *PaymentMethodRepo) ListByUser(ctx context.Context, userID uuid.UUID, includeUnlinked bool) ([]domain.PaymentMethod, error) {
	query := `SELECT ` + paymentMethodColumns + ` FROM payment_methods WHERE user_id = $1`
	if !includeUnlinked {
		query += ` AND unlinked_at IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		pm, err := scanPaymentMethodFields(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment method row: %w", err)
		}
		methods = append(methods, *pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment method rows: %w", err)
	}
	return methods, nil
}

func scanPaymentMethod(row pgx.Row) (*domain.PaymentMethod, error) {
	pm, err := scanPaymentMethodFields(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment method: %w", err)
	}
	return pm, nil
}

func scanPaymentMethodFields(row pgx.Row) (*domain.PaymentMethod, error) {
	pm := &domain.PaymentMethod{}
	err := row.Scan(
		&pm.ID, &pm.UserID, &pm.Type, &pm.Label, &pm.Asset, &pm.Details,
		&pm.Network, &pm.Status, &pm.UnlinkedAt, &pm.CreatedAt, &pm.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pm, nil
}
