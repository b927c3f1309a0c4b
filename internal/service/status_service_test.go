package service

import (
	"context"
	"testing"

	"custody-ledger/internal/adapter/storage/memory"
	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/internal/core/ports/mocks"
	"custody-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type statusEnv struct {
	*orderEnv
	methods *PaymentMethodServiceImpl
	status  *StatusServiceImpl
}

func newStatusEnv(t *testing.T) *statusEnv {
	t.Helper()
	env := newOrderEnv(t)
	methods := NewPaymentMethodService(memory.NewPaymentMethodRepo(env.store), memory.NewTransactor(env.store), zerolog.Nop())
	return &statusEnv{
		orderEnv: env,
		methods:  methods,
		status:   NewStatusService(env.svc, env.orders, methods, env.txns, env.repo, zerolog.Nop()),
	}
}

func TestStatusService_TransactionLifecycle(t *testing.T) {
	env := newStatusEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	adminID := uuid.New()

	pending, err := env.svc.RecordPendingTransaction(ctx, ports.PendingRequest{
		UserID: userID, Asset: domain.AssetETH, Amount: dec("1.5"), Kind: domain.KindCryptoDeposit,
	})
	require.NoError(t, err)

	_, err = env.status.TransitionTransaction(ctx, pending.ID, domain.TransactionStatusPending, adminID)
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition), "same-state transition")

	_, err = env.status.TransitionTransaction(ctx, pending.ID, "SETTLED", adminID)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	approved, err := env.status.TransitionTransaction(ctx, pending.ID, domain.TransactionStatusApproved, adminID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusApproved, approved.Status)
	assert.True(t, env.amount(t, userID, domain.AssetETH).Equal(dec("1.5")))

	for _, target := range []domain.TransactionStatus{
		domain.TransactionStatusPending,
		domain.TransactionStatusApproved,
		domain.TransactionStatusRejected,
	} {
		_, err := env.status.TransitionTransaction(ctx, pending.ID, target, adminID)
		assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition), "target %s", target)
	}
	assert.True(t, env.amount(t, userID, domain.AssetETH).Equal(dec("1.5")))

	_, err = env.status.TransitionTransaction(ctx, uuid.New(), domain.TransactionStatusPending, adminID)
	assert.True(t, apperror.HasCode(err, apperror.CodeTxNotFound))
}

func TestStatusService_OrderLifecycle(t *testing.T) {
	env := newStatusEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "100")
	o := env.place(t, userID, domain.OrderSideBuy, "0.01", "1000")

	completed, err := env.status.TransitionOrder(ctx, o.ID, domain.OrderStatusCompleted, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, completed.Status)

	_, err = env.status.TransitionOrder(ctx, o.ID, domain.OrderStatusPending, uuid.New())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition))
	assert.Contains(t, err.Error(), "cannot revert a completed order to pending")

	_, err = env.status.TransitionOrder(ctx, o.ID, domain.OrderStatusCancelled, uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition))

	assert.True(t, env.amount(t, userID, domain.AssetUSD).Equal(dec("90")))
	assert.True(t, env.amount(t, userID, domain.AssetBTC).Equal(dec("0.01")))
}

func TestStatusService_OrderCancelByAdmin(t *testing.T) {
	env := newStatusEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	env.credit(t, userID, domain.AssetUSD, "100")
	o := env.place(t, userID, domain.OrderSideBuy, "0.01", "1000")

	cancelled, err := env.status.TransitionOrder(ctx, o.ID, domain.OrderStatusCancelled, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	_, err = env.status.TransitionOrder(ctx, o.ID, domain.OrderStatusCompleted, uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition))
	assert.True(t, env.amount(t, userID, domain.AssetUSD).Equal(dec("100")))
}

func TestStatusService_PaymentMethodLifecycle(t *testing.T) {
	env := newStatusEnv(t)
	ctx := context.Background()
	pm := linkBank(t, env.methods, uuid.New())

	rejected, err := env.status.TransitionPaymentMethod(ctx, pm.ID, domain.PaymentMethodStatusRejected, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodStatusRejected, rejected.Status)

	_, err = env.status.TransitionPaymentMethod(ctx, pm.ID, domain.PaymentMethodStatusApproved, uuid.New())
	assert.True(t, apperror.HasCode(err, apperror.CodeIllegalTransition))
}

func TestStatusService_DelegatesToLedger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ledger := mocks.NewMockLedgerService(ctrl)
	svc := NewStatusService(ledger, mocks.NewMockOrderService(ctrl), mocks.NewMockPaymentMethodService(ctrl),
		mocks.NewMockTransactionRepository(ctrl), mocks.NewMockOrderRepository(ctrl), zerolog.Nop())

	id, actor := uuid.New(), uuid.New()
	want := &domain.Transaction{ID: id, Status: domain.TransactionStatusRejected}
	ledger.EXPECT().RejectTransaction(gomock.Any(), id, actor).Return(want, nil)

	got, err := svc.TransitionTransaction(context.Background(), id, domain.TransactionStatusRejected, actor)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
