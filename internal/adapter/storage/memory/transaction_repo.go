package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	s *Store

	// failOn, when set, makes Create fail for matching entries.
	failOn func(t *domain.Transaction) error
}

// NewTransactionRepo creates a TransactionRepo over s.
func NewTransactionRepo(s *Store) *TransactionRepo {
	return &TransactionRepo{s: s}
}

// FailCreateWhen installs a hook that can reject inserts. Tests use it to
// break a unit of work halfway through.
func (r *TransactionRepo) FailCreateWhen(fn func(t *domain.Transaction) error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.failOn = fn
}

// Create inserts t. Returns ports.ErrReferenceTaken on a reference collision.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.failOn != nil {
		if err := r.failOn(t); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	if _, taken := r.s.references[t.ReferenceID]; taken {
		return ports.ErrReferenceTaken
	}
	if _, ok := r.s.balances[t.BalanceID]; !ok {
		return fmt.Errorf("insert transaction: balance %s does not exist", t.BalanceID)
	}

	stored := *t
	r.s.transactions[t.ID] = &stored
	r.s.references[t.ReferenceID] = t.ID
	r.s.record(tx, func() {
		delete(r.s.transactions, stored.ID)
		delete(r.s.references, stored.ReferenceID)
	})
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.transactions[id]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

// GetByIDForUpdate reads the transaction inside tx.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

// GetByReference fetches a transaction by its reference id.
func (r *TransactionRepo) GetByReference(ctx context.Context, referenceID string) (*domain.Transaction, error) {
	r.s.mu.RLock()
	id, ok := r.s.references[referenceID]
	r.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// UpdateStatus finalises t if its stored status still equals from.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, t *domain.Transaction, from domain.TransactionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.transactions[t.ID]
	if !ok || stored.Status != from {
		return ports.ErrStatusChanged
	}
	prev := *stored
	stored.Status = t.Status
	stored.BalanceAfter = t.BalanceAfter
	stored.ProcessedAt = t.ProcessedAt
	r.s.record(tx, func() { *stored = prev })
	return nil
}

// List fetches transactions with filtering and pagination, newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Transaction
	for _, t := range r.s.transactions {
		if t.UserID != params.UserID {
			continue
		}
		if params.Asset != nil && t.Asset != *params.Asset {
			continue
		}
		if params.Kind != nil && t.Kind != *params.Kind {
			continue
		}
		if params.Status != nil && t.Status != *params.Status {
			continue
		}
		if params.From != nil && t.CreatedAt.Before(*params.From) {
			continue
		}
		if params.To != nil && t.CreatedAt.After(*params.To) {
			continue
		}
		result = append(result, *t)
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return page(result, params.Page, params.PageSize), int64(len(result)), nil
}

// SumApproved totals the approved entries booked against a balance.
func (r *TransactionRepo) SumApproved(ctx context.Context, balanceID uuid.UUID) (decimal.Decimal, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sum := decimal.Zero
	var count int64
	for _, t := range r.s.transactions {
		if t.BalanceID == balanceID && t.Status == domain.TransactionStatusApproved {
			sum = sum.Add(t.Amount)
			count++
		}
	}
	return sum, count, nil
}

// GetStats aggregates a user's transactions, optionally for one asset.
func (r *TransactionRepo) GetStats(ctx context.Context, userID uuid.UUID, asset *domain.Asset) (*ports.TransactionStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &ports.TransactionStats{TotalCredited: decimal.Zero, TotalDebited: decimal.Zero}
	for _, t := range r.s.transactions {
		if t.UserID != userID || (asset != nil && t.Asset != *asset) {
			continue
		}
		stats.TotalTransactions++
		switch t.Status {
		case domain.TransactionStatusPending:
			stats.Pending++
		case domain.TransactionStatusApproved:
			stats.Approved++
			if t.Amount.IsPositive() {
				stats.TotalCredited = stats.TotalCredited.Add(t.Amount)
			} else {
				stats.TotalDebited = stats.TotalDebited.Add(t.Amount.Neg())
			}
		case domain.TransactionStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}
