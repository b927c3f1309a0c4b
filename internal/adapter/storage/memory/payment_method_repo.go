package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PaymentMethodRepo implements ports.PaymentMethodRepository.
type PaymentMethodRepo struct {
	s *Store
}

// NewPaymentMethodRepo creates a PaymentMethodRepo over s.
func NewPaymentMethodRepo(s *Store) *PaymentMethodRepo {
	return &PaymentMethodRepo{s: s}
}

// Create inserts a new payment method.
func (r *PaymentMethodRepo) Create(ctx context.Context, pm *domain.PaymentMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.paymentMethods[pm.ID]; exists {
		return fmt.Errorf("insert payment method: duplicate id %s", pm.ID)
	}
	stored := *pm
	r.s.paymentMethods[pm.ID] = &stored
	return nil
}

// GetByID fetches a payment method by UUID, linked or not.
func (r *PaymentMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	pm, ok := r.s.paymentMethods[id]
	if !ok {
		return nil, nil
	}
	out := *pm
	return &out, nil
}

// GetByIDForUpdate reads the payment method inside tx.
func (r *PaymentMethodRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PaymentMethod, error) {
	return r.GetByID(ctx, id)
}

// UpdateDetails rewrites the editable fields of a pending, linked method.
func (r *PaymentMethodRepo) UpdateDetails(ctx context.Context, tx pgx.Tx, pm *domain.PaymentMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.paymentMethods[pm.ID]
	if !ok || stored.Status != domain.PaymentMethodStatusPending || stored.UnlinkedAt != nil {
		return ports.ErrStatusChanged
	}
	prev := *stored
	stored.Label = pm.Label
	stored.Details = pm.Details
	stored.Network = pm.Network
	stored.UpdatedAt = pm.UpdatedAt
	r.s.record(tx, func() { *stored = prev })
	return nil
}

// UpdateStatus moves a payment method from one review status to another.
func (r *PaymentMethodRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.PaymentMethodStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.paymentMethods[id]
	if !ok || stored.Status != from {
		return ports.ErrStatusChanged
	}
	prev := *stored
	stored.Status = to
	stored.UpdatedAt = time.Now().UTC()
	r.s.record(tx, func() { *stored = prev })
	return nil
}

// Unlink soft-deletes a payment method.
func (r *PaymentMethodRepo) Unlink(ctx context.Context, tx pgx.Tx, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.paymentMethods[id]
	if !ok || stored.UnlinkedAt != nil {
		return ports.ErrStatusChanged
	}
	prev := *stored
	stored.UnlinkedAt = &at
	stored.UpdatedAt = at
	r.s.record(tx, func() { *stored = prev })
	return nil
}

// ListByUser returns the user's payment methods, newest first.
func (r *PaymentMethodRepo) ListByUser(ctx context.Context, userID uuid.UUID, includeUnlinked bool) ([]domain.PaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.PaymentMethod
	for _, pm := range r.s.paymentMethods {
		if pm.UserID != userID || (!includeUnlinked && pm.UnlinkedAt != nil) {
			continue
		}
		result = append(result, *pm)
	}
	slices.SortFunc(result, func(a, b domain.PaymentMethod) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result, nil
}
