package service

import (
	"context"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// StatusServiceImpl implements ports.StatusService. It is the single entry
// point for administrative status changes and routes each legal target to
// the service owning the side effects.
type StatusServiceImpl struct {
	ledger    ports.LedgerService
	orders    ports.OrderService
	methods   ports.PaymentMethodService
	txns      ports.TransactionRepository
	orderRepo ports.OrderRepository
	log       zerolog.Logger
}

// NewStatusService creates a new StatusServiceImpl.
func NewStatusService(
	ledger ports.LedgerService,
	orders ports.OrderService,
	methods ports.PaymentMethodService,
	txns ports.TransactionRepository,
	orderRepo ports.OrderRepository,
	log zerolog.Logger,
) *StatusServiceImpl {
	return &StatusServiceImpl{
		ledger:    ledger,
		orders:    orders,
		methods:   methods,
		txns:      txns,
		orderRepo: orderRepo,
		log:       log,
	}
}

// TransitionTransaction approves or rejects a pending transaction.
func (s *StatusServiceImpl) TransitionTransaction(ctx context.Context, id uuid.UUID, target domain.TransactionStatus, actorID uuid.UUID) (*domain.Transaction, error) {
	switch target {
	case domain.TransactionStatusApproved:
		return s.ledger.ApproveTransaction(ctx, id, actorID)
	case domain.TransactionStatusRejected:
		return s.ledger.RejectTransaction(ctx, id, actorID)
	}

	t, err := s.txns.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if t == nil {
		return nil, apperror.ErrTransactionNotFound()
	}
	if err := t.Status.CheckTransition(target); err != nil {
		s.log.Warn().Str("tx_id", id.String()).Str("from", string(t.Status)).Str("to", string(target)).Msg("transition refused")
		return nil, err
	}
	// every successor of PENDING is handled above
	return nil, apperror.ErrIllegalTransition(string(t.Status), string(target))
}

// TransitionOrder completes or cancels a pending order.
func (s *StatusServiceImpl) TransitionOrder(ctx context.Context, id uuid.UUID, target domain.OrderStatus, actorID uuid.UUID) (*domain.Order, error) {
	switch target {
	case domain.OrderStatusCompleted:
		settlement, err := s.orders.CompleteOrder(ctx, id, actorID)
		if err != nil {
			return nil, err
		}
		return settlement.Order, nil
	case domain.OrderStatusCancelled:
		return s.orders.CancelOrder(ctx, actorID, id, true)
	}

	o, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if o == nil {
		return nil, apperror.ErrOrderNotFound()
	}
	if err := o.Status.CheckTransition(target); err != nil {
		s.log.Warn().Str("order_id", id.String()).Str("from", string(o.Status)).Str("to", string(target)).Msg("transition refused")
		return nil, err
	}
	return nil, apperror.ErrIllegalTransition(string(o.Status), string(target))
}

// TransitionPaymentMethod reviews a pending payment method.
func (s *StatusServiceImpl) TransitionPaymentMethod(ctx context.Context, id uuid.UUID, target domain.PaymentMethodStatus, actorID uuid.UUID) (*domain.PaymentMethod, error) {
	pm, err := s.methods.Review(ctx, id, target)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("payment_method_id", id.String()).
		Str("actor_id", actorID.String()).
		Str("status", string(target)).
		Msg("payment method status changed")
	return pm, nil
}
