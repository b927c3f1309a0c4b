// Package memory is a process-local storage adapter. Units of work are
// serialised and every mutation made through a unit of work is undone on
// rollback, so services behave as they do against PostgreSQL.
package memory

import (
	"context"
	"errors"
	"sync"

	"custody-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errUnsupported = errors.New("memory: raw SQL is not supported")

type balanceKey struct {
	userID uuid.UUID
	asset  domain.Asset
}

// Store holds every table of the in-memory backend.
type Store struct {
	// sem admits one unit of work at a time.
	sem chan struct{}

	mu             sync.RWMutex
	balances       map[uuid.UUID]*domain.Balance
	balanceIdx     map[balanceKey]uuid.UUID
	transactions   map[uuid.UUID]*domain.Transaction
	references     map[string]uuid.UUID
	orders         map[uuid.UUID]*domain.Order
	paymentMethods map[uuid.UUID]*domain.PaymentMethod
	idempotency    map[string]*domain.IdempotencyLog
	audit          []domain.AuditLog
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sem:            make(chan struct{}, 1),
		balances:       make(map[uuid.UUID]*domain.Balance),
		balanceIdx:     make(map[balanceKey]uuid.UUID),
		transactions:   make(map[uuid.UUID]*domain.Transaction),
		references:     make(map[string]uuid.UUID),
		orders:         make(map[uuid.UUID]*domain.Order),
		paymentMethods: make(map[uuid.UUID]*domain.PaymentMethod),
		idempotency:    make(map[string]*domain.IdempotencyLog),
	}
}

// record registers undo to run if tx rolls back. Must be called with s.mu held.
func (s *Store) record(tx pgx.Tx, undo func()) {
	if mt, ok := tx.(*memTx); ok {
		mt.undo = append(mt.undo, undo)
	}
}

// Transactor implements ports.DBTransactor for the in-memory store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a Transactor over store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin waits for any running unit of work to finish, then starts a new one.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	select {
	case t.store.sem <- struct{}{}:
		return &memTx{store: t.store}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// memTx is the pgx.Tx handed to repositories. Only Commit and Rollback do
// real work; the SQL methods exist to satisfy the interface.
type memTx struct {
	store  *Store
	undo   []func()
	closed bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.undo = nil
	<-t.store.sem
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()

	t.undo = nil
	<-t.store.sem
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errUnsupported }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errUnsupported
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errUnsupported
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), errUnsupported
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errUnsupported
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// HealthCheck implements ports.HealthChecker. The store is always reachable.
type HealthCheck struct{}

// NewHealthCheck creates the memory backend health check.
func NewHealthCheck() *HealthCheck { return &HealthCheck{} }

// Ping only fails when ctx is done.
func (h *HealthCheck) Ping(ctx context.Context) error { return ctx.Err() }

// Name identifies the backend in health output.
func (h *HealthCheck) Name() string { return "memory" }

func page[T any](items []T, pageNum, pageSize int) []T {
	if pageNum < 1 || pageSize < 1 {
		return items
	}
	start := (pageNum - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
