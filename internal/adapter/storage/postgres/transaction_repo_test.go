package postgres

import (
	"context"
	"testing"
	"time"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestTransaction(userID, balanceID uuid.UUID) *domain.Transaction {
	now := time.Now().UTC().Truncate(time.Microsecond)
	after := decimal.RequireFromString("150.25")
	return &domain.Transaction{
		ID:           uuid.New(),
		ReferenceID:  "CR-20261018-01JAB3K9Z0000000000000001",
		UserID:       userID,
		BalanceID:    balanceID,
		Asset:        domain.AssetUSD,
		Kind:         domain.KindFiatDeposit,
		Amount:       decimal.RequireFromString("50.25"),
		Status:       domain.TransactionStatusApproved,
		Description:  strPtr("salary"),
		BalanceAfter: &after,
		CreatedAt:    now,
		ProcessedAt:  &now,
	}
}

func txColumns() []string {
	return []string{"id", "reference_id", "user_id", "balance_id", "asset", "kind", "amount", "status",
		"description", "destination", "network", "external_reference", "balance_after", "counterpart_id",
		"order_id", "created_at", "processed_at"}
}

func txRow(t *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(txColumns()).AddRow(
		t.ID, t.ReferenceID, t.UserID, t.BalanceID, t.Asset, t.Kind,
		t.Amount, t.Status, t.Description, t.Destination, t.Network,
		t.ExternalReference, t.BalanceAfter, t.CounterpartID, t.OrderID,
		t.CreatedAt, t.ProcessedAt,
	)
}

func txInsertArgs(t *domain.Transaction) []any {
	return []any{
		t.ID, t.ReferenceID, t.UserID, t.BalanceID, string(t.Asset), string(t.Kind),
		t.Amount, string(t.Status), t.Description, t.Destination, t.Network,
		t.ExternalReference, t.BalanceAfter, t.CounterpartID, t.OrderID,
		t.CreatedAt, t.ProcessedAt,
	}
}

func TestTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txInsertArgs(txn)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_ReferenceTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txInsertArgs(txn)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txInsertArgs(txn)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "transactions_reference_id_key"})

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Create(context.Background(), dbTx, txn), ports.ErrReferenceTaken)
	assert.ErrorIs(t, repo.Create(context.Background(), dbTx, txn), ports.ErrReferenceTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Create_OtherConstraint(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txInsertArgs(txn)...).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "transactions_balance_id_fkey"})

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, txn)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrReferenceTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(txRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, domain.KindFiatDeposit, result.Kind)
	assert.True(t, txn.Amount.Equal(result.Amount))
	require.NotNil(t, result.BalanceAfter)
	assert.True(t, txn.BalanceAfter.Equal(*result.BalanceAfter))
	assert.Equal(t, "salary", *result.Description)
	assert.Nil(t, result.CounterpartID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(txColumns()))

	result, err := repo.GetByID(context.Background(), id)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())
	txn.Status = domain.TransactionStatusPending
	txn.BalanceAfter = nil
	txn.ProcessedAt = nil

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id = .+ FOR UPDATE").
		WithArgs(txn.ID).
		WillReturnRows(txRow(txn))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), dbTx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, result.Status)
	assert.Nil(t, result.BalanceAfter)
	assert.Nil(t, result.ProcessedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE reference_id").
		WithArgs(txn.ReferenceID).
		WillReturnRows(txRow(txn))

	result, err := repo.GetByReference(context.Background(), txn.ReferenceID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ReferenceID, result.ReferenceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs("APPROVED", txn.BalanceAfter, txn.ProcessedAt, txn.ID, "PENDING").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), dbTx, txn, domain.TransactionStatusPending)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_UpdateStatus_Changed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), uuid.New())
	txn.Status = domain.TransactionStatusRejected

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transactions SET status").
		WithArgs("REJECTED", txn.BalanceAfter, txn.ProcessedAt, txn.ID, "PENDING").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateStatus(context.Background(), dbTx, txn, domain.TransactionStatusPending)
	assert.ErrorIs(t, err, ports.ErrStatusChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()
	txn := newTestTransaction(userID, uuid.New())
	asset := domain.AssetUSD
	status := domain.TransactionStatusApproved

	mock.ExpectQuery("SELECT COUNT.+ FROM transactions WHERE user_id = .+ AND asset = .+ AND status").
		WithArgs(userID, "USD", "APPROVED").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(21)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE .+ ORDER BY created_at DESC").
		WithArgs(userID, "USD", "APPROVED", 20, 20).
		WillReturnRows(txRow(txn))

	txns, total, err := repo.List(context.Background(), ports.TransactionListParams{
		UserID:   userID,
		Asset:    &asset,
		Status:   &status,
		Page:     2,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(21), total)
	require.Len(t, txns, 1)
	assert.Equal(t, txn.ID, txns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumApproved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	balanceID := uuid.New()
	sum := decimal.RequireFromString("99.99")

	mock.ExpectQuery("SELECT COALESCE.+ FROM transactions").
		WithArgs(balanceID).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(sum, int64(4)))

	got, count, err := repo.SumApproved(context.Background(), balanceID)
	require.NoError(t, err)
	assert.True(t, sum.Equal(got))
	assert.Equal(t, int64(4), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	userID := uuid.New()
	asset := domain.AssetBTC

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE user_id").
		WithArgs(userID, "BTC").
		WillReturnRows(pgxmock.NewRows(
			[]string{"total", "pending", "approved", "rejected", "credited", "debited"},
		).AddRow(int64(10), int64(2), int64(7), int64(1),
			decimal.RequireFromString("1.5"), decimal.RequireFromString("0.25")))

	stats, err := repo.GetStats(context.Background(), userID, &asset)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, int64(10), stats.TotalTransactions)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(7), stats.Approved)
	assert.Equal(t, int64(1), stats.Rejected)
	assert.Equal(t, "1.5", stats.TotalCredited.String())
	assert.Equal(t, "0.25", stats.TotalDebited.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
