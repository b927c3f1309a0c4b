package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	s *Store
}

// NewOrderRepo creates an OrderRepo over s.
func NewOrderRepo(s *Store) *OrderRepo {
	return &OrderRepo{s: s}
}

// Create inserts a new order.
func (r *OrderRepo) Create(ctx context.Context, o *domain.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[o.ID]; exists {
		return fmt.Errorf("insert order: duplicate id %s", o.ID)
	}
	stored := *o
	r.s.orders[o.ID] = &stored
	return nil
}

// GetByID fetches an order by UUID.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, nil
	}
	out := *o
	return &out, nil
}

// GetByIDForUpdate reads the order inside tx. Units of work are already
// serialised, so no extra lock is taken.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

// UpdateStatus moves an order from one status to another.
func (r *OrderRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.OrderStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[id]
	if !ok || o.Status != from {
		return ports.ErrStatusChanged
	}
	prevStatus, prevUpdated := o.Status, o.UpdatedAt
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	r.s.record(tx, func() {
		o.Status = prevStatus
		o.UpdatedAt = prevUpdated
	})
	return nil
}

// List fetches a page of the user's orders, newest first.
func (r *OrderRepo) List(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []domain.Order
	for _, o := range r.s.orders {
		if o.UserID != params.UserID {
			continue
		}
		if params.Status != nil && o.Status != *params.Status {
			continue
		}
		result = append(result, *o)
	}
	slices.SortFunc(result, func(a, b domain.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return page(result, params.Page, params.PageSize), int64(len(result)), nil
}
