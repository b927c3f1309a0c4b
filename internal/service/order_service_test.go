package service

import (
	"context"
	"errors"
	"testing"

	"custody-ledger/internal/adapter/storage/memory"
	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"
	"custody-ledger/pkg/refid"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderEnv struct {
	*ledgerEnv
	orders *OrderServiceImpl
	repo   *memory.OrderRepo
}

func newOrderEnv(t *testing.T) *orderEnv {
	t.Helper()
	env := newLedgerEnv(t)
	repo := memory.NewOrderRepo(env.store)
	orders := NewOrderService(repo, LedgerDeps{
		Balances:     env.balances,
		Transactions: env.txns,
		Transactor:   memory.NewTransactor(env.store),
		References:   refid.New(),
		Hasher:       NewBlake2bAuditHasher(),
	}, testLedgerConfig, zerolog.Nop())
	return &orderEnv{ledgerEnv: env, orders: orders, repo: repo}
}

func (e *orderEnv) place(t *testing.T, userID uuid.UUID, side domain.OrderSide, qty, price string) *domain.Order {
	t.Helper()
	o, err := e.orders.PlaceOrder(context.Background(), ports.PlaceOrderRequest{
		UserID: userID, Side: side, Asset: domain.AssetBTC, Currency: domain.AssetUSD,
		Quantity: dec(qty), PricePerUnit: dec(price),
	})
	require.NoError(t, err)
	return o
}

func TestOrderService_PlaceOrder(t *testing.T) {
	env := newOrderEnv(t)
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "1000")

	o := env.place(t, userID, domain.OrderSideBuy, "0.015", "30000.333")
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(dec("450")), "total %s", o.TotalAmount)

	// placing an order never moves money
	assert.True(t, env.amount(t, userID, domain.AssetUSD).Equal(dec("1000")))
}

func TestOrderService_PlaceOrder_Validation(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name string
		req  ports.PlaceOrderRequest
		code string
	}{
		{"bad side", ports.PlaceOrderRequest{UserID: userID, Side: "HOLD", Asset: domain.AssetBTC, Currency: domain.AssetUSD, Quantity: dec("1"), PricePerUnit: dec("1")}, apperror.CodeValidation},
		{"fiat asset", ports.PlaceOrderRequest{UserID: userID, Side: domain.OrderSideBuy, Asset: domain.AssetEUR, Currency: domain.AssetUSD, Quantity: dec("1"), PricePerUnit: dec("1")}, apperror.CodeAssetMismatch},
		{"crypto currency", ports.PlaceOrderRequest{UserID: userID, Side: domain.OrderSideBuy, Asset: domain.AssetBTC, Currency: domain.AssetETH, Quantity: dec("1"), PricePerUnit: dec("1")}, apperror.CodeAssetMismatch},
		{"zero quantity", ports.PlaceOrderRequest{UserID: userID, Side: domain.OrderSideBuy, Asset: domain.AssetBTC, Currency: domain.AssetUSD, Quantity: dec("0"), PricePerUnit: dec("1")}, apperror.CodeInvalidAmount},
		{"negative price", ports.PlaceOrderRequest{UserID: userID, Side: domain.OrderSideBuy, Asset: domain.AssetBTC, Currency: domain.AssetUSD, Quantity: dec("1"), PricePerUnit: dec("-1")}, apperror.CodeInvalidAmount},
		{"total rounds to zero", ports.PlaceOrderRequest{UserID: userID, Side: domain.OrderSideBuy, Asset: domain.AssetBTC, Currency: domain.AssetUSD, Quantity: dec("0.00000001"), PricePerUnit: dec("1")}, apperror.CodeInvalidAmount},
		{"unfunded buy", ports.PlaceOrderRequest{UserID: userID, Side: domain.OrderSideBuy, Asset: domain.AssetBTC, Currency: domain.AssetUSD, Quantity: dec("1"), PricePerUnit: dec("10")}, apperror.CodeInsufficient},
		{"unfunded sell", ports.PlaceOrderRequest{UserID: userID, Side: domain.OrderSideSell, Asset: domain.AssetBTC, Currency: domain.AssetUSD, Quantity: dec("1"), PricePerUnit: dec("10")}, apperror.CodeInsufficient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.orders.PlaceOrder(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestOrderService_CompleteBuy(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "1000")
	o := env.place(t, userID, domain.OrderSideBuy, "0.5", "1000")

	settlement, err := env.orders.CompleteOrder(ctx, o.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, settlement.Order.Status)

	assert.Equal(t, domain.KindBuy, settlement.Debit.Kind)
	assert.Equal(t, domain.AssetUSD, settlement.Debit.Asset)
	assert.True(t, settlement.Debit.Amount.Equal(dec("-500")))
	assert.Equal(t, domain.AssetBTC, settlement.Credit.Asset)
	assert.True(t, settlement.Credit.Amount.Equal(dec("0.5")))
	require.NotNil(t, settlement.Debit.OrderID)
	assert.Equal(t, o.ID, *settlement.Debit.OrderID)
	assert.Equal(t, settlement.Credit.ID, *settlement.Debit.CounterpartID)

	assert.True(t, env.amount(t, userID, domain.AssetUSD).Equal(dec("500")))
	assert.True(t, env.amount(t, userID, domain.AssetBTC).Equal(dec("0.5")))

	// terminal
	_, err = env.orders.CompleteOrder(ctx, o.ID, uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition))
	_, err = env.orders.CancelOrder(ctx, userID, o.ID, false)
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition))
	assert.True(t, env.amount(t, userID, domain.AssetBTC).Equal(dec("0.5")))
}

func TestOrderService_CompleteSell(t *testing.T) {
	env := newOrderEnv(t)
	userID := uuid.New()
	env.credit(t, userID, domain.AssetBTC, "2")
	o := env.place(t, userID, domain.OrderSideSell, "1.25", "20000")

	settlement, err := env.orders.CompleteOrder(context.Background(), o.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.KindSell, settlement.Debit.Kind)
	assert.True(t, env.amount(t, userID, domain.AssetBTC).Equal(dec("0.75")))
	assert.True(t, env.amount(t, userID, domain.AssetUSD).Equal(dec("25000")))
}

func TestOrderService_CompleteUnfundedStaysPending(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "100")
	o := env.place(t, userID, domain.OrderSideBuy, "1", "100")

	_, err := env.svc.Debit(ctx, ports.DebitRequest{
		UserID: userID, Asset: domain.AssetUSD, Amount: dec("1"), Kind: domain.KindFiatWithdrawal,
	})
	require.NoError(t, err)

	_, err = env.orders.CompleteOrder(ctx, o.ID, uuid.New())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficient))

	stored, err := env.orders.GetOrder(ctx, userID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
	assert.True(t, env.amount(t, userID, domain.AssetBTC).IsZero())
}

func TestOrderService_SettlementFailureRollsBack(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "100")
	o := env.place(t, userID, domain.OrderSideBuy, "0.001", "1000")

	env.txns.FailCreateWhen(func(txn *domain.Transaction) error {
		if txn.Asset == domain.AssetBTC {
			return errors.New("induced failure")
		}
		return nil
	})

	_, err := env.orders.CompleteOrder(ctx, o.ID, uuid.New())
	require.Error(t, err)

	assert.True(t, env.amount(t, userID, domain.AssetUSD).Equal(dec("100")))
	stored, err := env.orders.GetOrder(ctx, userID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, stored.Status)
}

func TestOrderService_CancelOrder(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "100")
	o := env.place(t, userID, domain.OrderSideBuy, "0.001", "1000")

	_, err := env.orders.CancelOrder(ctx, uuid.New(), o.ID, false)
	assert.True(t, apperror.HasCode(err, apperror.CodeOrderNotFound), "other users cannot cancel")

	cancelled, err := env.orders.CancelOrder(ctx, userID, o.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	_, err = env.orders.CompleteOrder(ctx, o.ID, uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition))
	assert.True(t, env.amount(t, userID, domain.AssetUSD).Equal(dec("100")))
}

func TestOrderService_AdminCancel(t *testing.T) {
	env := newOrderEnv(t)
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "100")
	o := env.place(t, userID, domain.OrderSideBuy, "0.001", "1000")

	cancelled, err := env.orders.CancelOrder(context.Background(), uuid.New(), o.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
}

func TestOrderService_GetAndList(t *testing.T) {
	env := newOrderEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "100")
	first := env.place(t, userID, domain.OrderSideBuy, "0.001", "1000")
	env.place(t, userID, domain.OrderSideBuy, "0.002", "1000")
	_, err := env.orders.CancelOrder(ctx, userID, first.ID, false)
	require.NoError(t, err)

	_, err = env.orders.GetOrder(ctx, uuid.New(), first.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeOrderNotFound))

	all, total, err := env.orders.ListOrders(ctx, ports.OrderListParams{UserID: userID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	pending := domain.OrderStatusPending
	open, total, err := env.orders.ListOrders(ctx, ports.OrderListParams{UserID: userID, Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, open, 1)
	assert.NotEqual(t, first.ID, open[0].ID)
}
