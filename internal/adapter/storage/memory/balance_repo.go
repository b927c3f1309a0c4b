package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"custody-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BalanceRepo implements ports.BalanceRepository.
type BalanceRepo struct {
	s *Store
}

// NewBalanceRepo creates a BalanceRepo over s.
func NewBalanceRepo(s *Store) *BalanceRepo {
	return &BalanceRepo{s: s}
}

// GetOrCreate returns the (user, asset) balance, inserting a zero row on first access.
func (r *BalanceRepo) GetOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := balanceKey{userID: userID, asset: asset}
	if id, ok := r.s.balanceIdx[key]; ok {
		b := *r.s.balances[id]
		return &b, nil
	}

	now := time.Now().UTC()
	b := &domain.Balance{
		ID:        uuid.New(),
		UserID:    userID,
		Asset:     asset,
		Amount:    decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.s.balances[b.ID] = b
	r.s.balanceIdx[key] = b.ID
	r.s.record(tx, func() {
		delete(r.s.balances, b.ID)
		delete(r.s.balanceIdx, key)
	})

	out := *b
	return &out, nil
}

// GetInTx reads the balance inside tx. Returns nil, nil when absent.
func (r *BalanceRepo) GetInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	return r.Get(ctx, userID, asset)
}

// ApplyDelta adds delta to the amount unless the result would be negative,
// in which case it returns nil, nil and leaves the row untouched.
func (r *BalanceRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) (*domain.Balance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.balances[id]
	if !ok {
		return nil, nil
	}
	next := b.Amount.Add(delta)
	if next.IsNegative() {
		return nil, nil
	}

	prevAmount, prevUpdated := b.Amount, b.UpdatedAt
	b.Amount = next
	b.UpdatedAt = time.Now().UTC()
	r.s.record(tx, func() {
		b.Amount = prevAmount
		b.UpdatedAt = prevUpdated
	})

	out := *b
	return &out, nil
}

// SetAuditHash records the head of the balance hash chain.
func (r *BalanceRepo) SetAuditHash(ctx context.Context, tx pgx.Tx, id uuid.UUID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.balances[id]
	if !ok {
		return fmt.Errorf("balance not found: %s", id)
	}
	prev := b.LastAuditHash
	b.LastAuditHash = &hash
	r.s.record(tx, func() { b.LastAuditHash = prev })
	return nil
}

// SetExternalAddressIfEmpty writes address only if none is recorded.
func (r *BalanceRepo) SetExternalAddressIfEmpty(ctx context.Context, tx pgx.Tx, id uuid.UUID, address string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.balances[id]
	if !ok || b.ExternalAddress != nil {
		return false, nil
	}
	b.ExternalAddress = &address
	r.s.record(tx, func() { b.ExternalAddress = nil })
	return true, nil
}

// Get fetches a balance by owner and asset.
func (r *BalanceRepo) Get(ctx context.Context, userID uuid.UUID, asset domain.Asset) (*domain.Balance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.balanceIdx[balanceKey{userID: userID, asset: asset}]
	if !ok {
		return nil, nil
	}
	b := *r.s.balances[id]
	return &b, nil
}

// GetByID fetches a balance by UUID.
func (r *BalanceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Balance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.balances[id]
	if !ok {
		return nil, nil
	}
	out := *b
	return &out, nil
}

// ListByUser returns the user's balances ordered by asset.
func (r *BalanceRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Balance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Balance
	for _, b := range r.s.balances {
		if b.UserID == userID {
			result = append(result, *b)
		}
	}
	slices.SortFunc(result, func(a, b domain.Balance) int {
		return strings.Compare(string(a.Asset), string(b.Asset))
	})
	return result, nil
}
