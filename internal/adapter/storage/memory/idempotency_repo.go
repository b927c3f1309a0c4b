package memory

import (
	"context"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	s *Store
}

// NewIdempotencyRepo creates an IdempotencyRepo over s.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo {
	return &IdempotencyRepo{s: s}
}

// Create stores log inside tx. Returns ports.ErrIdempotencyKeyExists when
// the key is taken.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.idempotency[log.Key]; exists {
		return ports.ErrIdempotencyKeyExists
	}
	stored := *log
	r.s.idempotency[log.Key] = &stored
	r.s.record(tx, func() { delete(r.s.idempotency, stored.Key) })
	return nil
}

// Get fetches an idempotency log by key.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	out := *l
	return &out, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates an AuditRepo over s.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

// Create appends an audit entry.
func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *log)
	return nil
}

// Entries returns a snapshot of the audit trail in insertion order.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.s.audit...)
}
