package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"custody-ledger/config"
	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orders     ports.OrderRepository
	balances   ports.BalanceRepository
	transactor ports.DBTransactor
	poster     *poster
	log        zerolog.Logger
}

// NewOrderService creates a new OrderServiceImpl. Settlement books its legs
// through the same posting rules as the ledger.
func NewOrderService(orders ports.OrderRepository, deps LedgerDeps, cfg config.LedgerConfig, log zerolog.Logger) *OrderServiceImpl {
	attempts := cfg.ReferenceAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &OrderServiceImpl{
		orders:     orders,
		balances:   deps.Balances,
		transactor: deps.Transactor,
		poster: &poster{
			balances: deps.Balances,
			txns:     deps.Transactions,
			refs:     deps.References,
			hasher:   deps.Hasher,
			attempts: attempts,
		},
		log: log,
	}
}

// PlaceOrder records a PENDING order. The funding check is advisory: the
// binding check happens when the order completes.
func (s *OrderServiceImpl) PlaceOrder(ctx context.Context, req ports.PlaceOrderRequest) (*domain.Order, error) {
	if !req.Side.Valid() {
		return nil, apperror.Validation("side must be BUY or SELL")
	}
	if !req.Asset.Valid() {
		return nil, apperror.ErrInvalidAsset(string(req.Asset))
	}
	if !req.Currency.Valid() {
		return nil, apperror.ErrInvalidAsset(string(req.Currency))
	}
	if !req.Asset.IsCrypto() || !req.Currency.IsFiat() {
		return nil, apperror.ErrAssetMismatch()
	}
	if err := domain.ValidateAmount(req.Asset, req.Quantity); err != nil {
		return nil, err
	}
	if !req.PricePerUnit.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	total := domain.OrderTotal(req.Quantity, req.PricePerUnit, req.Currency)
	if !total.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:           uuid.New(),
		UserID:       req.UserID,
		Side:         req.Side,
		Asset:        req.Asset,
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		TotalAmount:  total,
		Currency:     req.Currency,
		Status:       domain.OrderStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	fundingAsset, needed := order.Funding()
	b, err := s.balances.Get(ctx, req.UserID, fundingAsset)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read funding balance: %w", err))
	}
	if b == nil {
		b = domain.EmptyBalance(req.UserID, fundingAsset)
	}
	if !b.Covers(needed) {
		return nil, apperror.ErrInsufficientBalance(b.Amount.String(), needed.String())
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create order: %w", err))
	}

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("side", string(order.Side)).
		Str("asset", string(order.Asset)).
		Str("quantity", order.Quantity.String()).
		Str("total", order.TotalAmount.String()).
		Msg("order placed")
	return order, nil
}

// CompleteOrder settles a pending order: both legs and the status change
// commit together or not at all.
func (s *OrderServiceImpl) CompleteOrder(ctx context.Context, id uuid.UUID, actorID uuid.UUID) (*ports.OrderSettlement, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orders.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrOrderNotFound()
	}
	if err := order.Status.CheckTransition(domain.OrderStatusCompleted); err != nil {
		return nil, err
	}

	out, in := order.SettlementLegs()
	posted, err := s.poster.post(ctx, dbTx, order.UserID, []domain.Leg{out, in}, postingMeta{OrderID: &order.ID})
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, dbTx, order.ID, order.Status, domain.OrderStatusCompleted); err != nil {
		return nil, orderStatusError(err)
	}

	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	order.Status = domain.OrderStatusCompleted
	order.UpdatedAt = time.Now().UTC()

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("actor_id", actorID.String()).
		Str("debit_tx_id", posted[0].ID.String()).
		Str("credit_tx_id", posted[1].ID.String()).
		Msg("order completed")
	return &ports.OrderSettlement{Order: order, Debit: posted[0], Credit: posted[1]}, nil
}

// CancelOrder cancels a pending order. Balances are never touched.
func (s *OrderServiceImpl) CancelOrder(ctx context.Context, callerID uuid.UUID, id uuid.UUID, isAdmin bool) (*domain.Order, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orders.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock order: %w", err))
	}
	if order == nil || (!isAdmin && order.UserID != callerID) {
		return nil, apperror.ErrOrderNotFound()
	}
	if err := order.Status.CheckTransition(domain.OrderStatusCancelled); err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, dbTx, order.ID, order.Status, domain.OrderStatusCancelled); err != nil {
		return nil, orderStatusError(err)
	}
	if err := dbTx.Commit(context.WithoutCancel(ctx)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("actor_id", callerID.String()).
		Bool("admin", isAdmin).
		Msg("order cancelled")
	return order, nil
}

// GetOrder returns one of the user's orders.
func (s *OrderServiceImpl) GetOrder(ctx context.Context, userID uuid.UUID, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if order == nil || order.UserID != userID {
		return nil, apperror.ErrOrderNotFound()
	}
	return order, nil
}

// ListOrders returns a page of the user's orders.
func (s *OrderServiceImpl) ListOrders(ctx context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	orders, total, err := s.orders.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, total, nil
}

func orderStatusError(err error) error {
	if errors.Is(err, ports.ErrStatusChanged) {
		return apperror.ErrIllegalTransitionMsg("Order status changed concurrently")
	}
	return apperror.InternalError(fmt.Errorf("update order status: %w", err))
}
