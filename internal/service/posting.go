package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// poster books signed legs against a user's balances inside the caller's
// unit of work. It is shared by the ledger and order settlement so both
// obey the same balance discipline.
type poster struct {
	balances ports.BalanceRepository
	txns     ports.TransactionRepository
	refs     ports.ReferenceGenerator
	hasher   ports.AuditHasher
	attempts int
}

// postingMeta carries the optional fields copied onto every booked entry.
type postingMeta struct {
	Description *string
	OrderID     *uuid.UUID
}

// post applies every leg and appends one APPROVED transaction per leg, in
// leg order. Two legs are linked through CounterpartID. Deltas are applied
// in ascending balance-id order so concurrent multi-leg postings cannot
// deadlock on each other's rows.
func (p *poster) post(ctx context.Context, dbTx pgx.Tx, userID uuid.UUID, legs []domain.Leg, meta postingMeta) ([]*domain.Transaction, error) {
	now := time.Now().UTC()

	balances := make([]*domain.Balance, len(legs))
	for i, leg := range legs {
		b, err := p.resolve(ctx, dbTx, userID, leg)
		if err != nil {
			return nil, err
		}
		balances[i] = b
	}

	txns := make([]*domain.Transaction, len(legs))
	for i, leg := range legs {
		txns[i] = &domain.Transaction{
			ID:          uuid.New(),
			UserID:      userID,
			BalanceID:   balances[i].ID,
			Asset:       leg.Asset,
			Kind:        leg.Kind,
			Amount:      leg.Delta,
			Status:      domain.TransactionStatusApproved,
			Description: meta.Description,
			OrderID:     meta.OrderID,
			CreatedAt:   now,
			ProcessedAt: &now,
		}
	}
	if len(txns) == 2 {
		txns[0].CounterpartID = &txns[1].ID
		txns[1].CounterpartID = &txns[0].ID
	}

	order := make([]int, len(legs))
	for i := range order {
		order[i] = i
	}
	slices.SortFunc(order, func(a, b int) int {
		return strings.Compare(balances[a].ID.String(), balances[b].ID.String())
	})

	for _, i := range order {
		if err := p.apply(ctx, dbTx, balances[i], txns[i]); err != nil {
			return nil, err
		}
	}
	for _, t := range txns {
		if err := p.insert(ctx, dbTx, t); err != nil {
			return nil, err
		}
	}
	return txns, nil
}

// resolve finds the balance a leg acts on. Credits create the row lazily;
// a debit against a missing row is a debit against zero.
func (p *poster) resolve(ctx context.Context, dbTx pgx.Tx, userID uuid.UUID, leg domain.Leg) (*domain.Balance, error) {
	if leg.Delta.IsNegative() {
		b, err := p.balances.GetInTx(ctx, dbTx, userID, leg.Asset)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("read balance: %w", err))
		}
		if b == nil {
			return nil, apperror.ErrInsufficientBalance("0", leg.Delta.Neg().String())
		}
		return b, nil
	}

	b, err := p.balances.GetOrCreate(ctx, dbTx, userID, leg.Asset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ensure balance: %w", err))
	}
	return b, nil
}

// apply adds t.Amount to b and advances the balance's audit chain. On
// success t.BalanceAfter holds the new amount.
func (p *poster) apply(ctx context.Context, dbTx pgx.Tx, b *domain.Balance, t *domain.Transaction) error {
	after, err := p.balances.ApplyDelta(ctx, dbTx, b.ID, t.Amount)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("apply delta: %w", err))
	}
	if after == nil {
		available := b.Amount
		if current, err := p.balances.GetInTx(ctx, dbTx, b.UserID, b.Asset); err == nil && current != nil {
			available = current.Amount
		}
		return apperror.ErrInsufficientBalance(available.String(), t.Amount.Neg().String())
	}

	hash := p.hasher.Chain(after.LastAuditHash, t.ID, t.Amount, after.Amount)
	if err := p.balances.SetAuditHash(ctx, dbTx, after.ID, hash); err != nil {
		return apperror.InternalError(fmt.Errorf("advance audit chain: %w", err))
	}

	amount := after.Amount
	t.BalanceAfter = &amount
	return nil
}

// insert assigns a fresh reference id and appends t, regenerating the
// reference if it collides.
func (p *poster) insert(ctx context.Context, dbTx pgx.Tx, t *domain.Transaction) error {
	for attempt := 1; ; attempt++ {
		ref, err := p.refs.Next(string(t.Asset))
		if err != nil {
			return apperror.InternalError(fmt.Errorf("generate reference: %w", err))
		}
		t.ReferenceID = ref

		err = p.txns.Create(ctx, dbTx, t)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrReferenceTaken) {
			return apperror.InternalError(fmt.Errorf("create transaction: %w", err))
		}
		if attempt >= p.attempts {
			return apperror.ErrDuplicateReference(err)
		}
	}
}
