package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/internal/core/ports/mocks"
	"custody-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

type testAPI struct {
	router    *gin.Engine
	ledger    *mocks.MockLedgerService
	status    *mocks.MockStatusService
	orders    *mocks.MockOrderService
	methods   *mocks.MockPaymentMethodService
	reporting *mocks.MockReportingService
	userID    uuid.UUID
	adminID   uuid.UUID
}

func newTestAPI(t *testing.T) *testAPI {
	ctrl := gomock.NewController(t)
	api := &testAPI{
		ledger:    mocks.NewMockLedgerService(ctrl),
		status:    mocks.NewMockStatusService(ctrl),
		orders:    mocks.NewMockOrderService(ctrl),
		methods:   mocks.NewMockPaymentMethodService(ctrl),
		reporting: mocks.NewMockReportingService(ctrl),
		userID:    uuid.New(),
		adminID:   uuid.New(),
	}

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate(userToken).Return(&ports.TokenClaims{UserID: api.userID, Role: ports.RoleUser}, nil).AnyTimes()
	tokens.EXPECT().Validate(adminToken).Return(&ports.TokenClaims{UserID: api.adminID, Role: ports.RoleAdmin}, nil).AnyTimes()
	tokens.EXPECT().Validate(gomock.Any()).Return(nil, errors.New("invalid token")).AnyTimes()

	api.router = SetupRouter(RouterDeps{
		LedgerSvc:        api.ledger,
		StatusSvc:        api.status,
		OrderSvc:         api.orders,
		PaymentMethodSvc: api.methods,
		ReportingSvc:     api.reporting,
		TokenSvc:         tokens,
		Logger:           zerolog.Nop(),
	})
	return api
}

func (a *testAPI) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func sampleTransaction(userID uuid.UUID, asset domain.Asset, kind domain.TransactionKind, amount string, status domain.TransactionStatus) *domain.Transaction {
	return &domain.Transaction{
		ID:          uuid.New(),
		ReferenceID: "TXN-" + string(asset) + "-1700000000-01HF0000000000000000000000",
		UserID:      userID,
		BalanceID:   uuid.New(),
		Asset:       asset,
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
		Status:      status,
		CreatedAt:   time.Now(),
	}
}

// --- Identity ---

func TestRoutes_RequireToken(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/balances", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/api/v1/balances", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperror.CodeInvalidToken, errorCode(t, w))
}

func TestAdminRoutes_ForbiddenForUsers(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/admin/credits", userToken, map[string]string{
		"user_id": uuid.NewString(), "asset": "USD", "amount": "10", "kind": "FIAT_DEPOSIT",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperror.CodeForbidden, errorCode(t, w))
}

// --- Balances ---

func TestListBalances(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().ListBalances(gomock.Any(), api.userID).Return([]domain.Balance{
		{ID: uuid.New(), UserID: api.userID, Asset: domain.AssetBTC, Amount: decimal.RequireFromString("0.5"), UpdatedAt: time.Now()},
		{ID: uuid.New(), UserID: api.userID, Asset: domain.AssetUSD, Amount: decimal.RequireFromString("100.25"), UpdatedAt: time.Now()},
	}, nil)

	w := api.do(http.MethodGet, "/api/v1/balances", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "BTC", resp.Data[0]["asset"])
	assert.Equal(t, "CRYPTO", resp.Data[0]["class"])
	assert.Equal(t, "0.5", resp.Data[0]["amount"])
	assert.Equal(t, "100.25", resp.Data[1]["amount"])
}

func TestGetBalance_NormalisesAsset(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().GetBalance(gomock.Any(), api.userID, domain.AssetEUR).
		Return(domain.EmptyBalance(api.userID, domain.AssetEUR), nil)

	w := api.do(http.MethodGet, "/api/v1/balances/eur", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "EUR", data["asset"])
	assert.Equal(t, "0", data["amount"])
	assert.NotContains(t, data, "updated_at")
}

func TestGetBalance_UnknownAsset(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/balances/DOGE", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeInvalidAsset, errorCode(t, w))
}

// --- Deposits / withdrawals / transfers ---

func TestDeposit_CryptoKindAndIdempotencyKey(t *testing.T) {
	api := newTestAPI(t)
	tx := sampleTransaction(api.userID, domain.AssetBTC, domain.KindCryptoDeposit, "0.25", domain.TransactionStatusPending)

	api.ledger.EXPECT().RecordPendingTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.PendingRequest) (*domain.Transaction, error) {
			assert.Equal(t, api.userID, req.UserID)
			assert.Equal(t, domain.AssetBTC, req.Asset)
			assert.Equal(t, domain.KindCryptoDeposit, req.Kind)
			assert.True(t, req.Amount.Equal(decimal.RequireFromString("0.25")))
			assert.Equal(t, "dep-001", req.IdempotencyKey)
			require.NotNil(t, req.Destination)
			assert.Equal(t, "bc1qexample", *req.Destination)
			return tx, nil
		})

	w := api.do(http.MethodPost, "/api/v1/deposits", userToken, map[string]string{
		"asset": "btc", "amount": "0.25", "destination": " bc1qexample ",
	}, "Idempotency-Key", "dep-001")

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "PENDING", data["status"])
	assert.Equal(t, "CRYPTO_DEPOSIT", data["kind"])
	assert.Equal(t, tx.ReferenceID, data["reference_id"])
}

func TestDeposit_FiatKind(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().RecordPendingTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.PendingRequest) (*domain.Transaction, error) {
			assert.Equal(t, domain.KindFiatDeposit, req.Kind)
			assert.Empty(t, req.IdempotencyKey)
			return sampleTransaction(api.userID, domain.AssetAED, req.Kind, "500", domain.TransactionStatusPending), nil
		})

	w := api.do(http.MethodPost, "/api/v1/deposits", userToken, map[string]string{"asset": "AED", "amount": "500"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestDeposit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]string
		headers  []string
		wantCode string
	}{
		{"missing amount", map[string]string{"asset": "USD"}, nil, apperror.CodeValidation},
		{"zero amount", map[string]string{"asset": "USD", "amount": "0"}, nil, apperror.CodeValidation},
		{"unknown asset", map[string]string{"asset": "XYZ", "amount": "1"}, nil, apperror.CodeValidation},
		{"too many places", map[string]string{"asset": "USD", "amount": "1.001"}, nil, apperror.CodeValidation},
		{"bad idempotency key", map[string]string{"asset": "USD", "amount": "1"}, []string{"Idempotency-Key", "has space"}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t)
			w := api.do(http.MethodPost, "/api/v1/deposits", userToken, tt.body, tt.headers...)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestWithdraw_InsufficientBalance(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().RecordPendingTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.PendingRequest) (*domain.Transaction, error) {
			assert.Equal(t, domain.KindFiatWithdrawal, req.Kind)
			return nil, apperror.ErrInsufficientBalance("10", "50")
		})

	w := api.do(http.MethodPost, "/api/v1/withdrawals", userToken, map[string]string{
		"asset": "USD", "amount": "50", "destination": "AE070331234567890123456",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInsufficient, errorCode(t, w))
}

func TestWithdraw_RequiresDestination(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/withdrawals", userToken, map[string]string{"asset": "USD", "amount": "50"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransfer_Success(t *testing.T) {
	api := newTestAPI(t)
	out := sampleTransaction(api.userID, domain.AssetUSD, domain.KindTransferOut, "-25", domain.TransactionStatusApproved)
	in := sampleTransaction(api.userID, domain.AssetEUR, domain.KindTransferIn, "25", domain.TransactionStatusApproved)
	out.CounterpartID, in.CounterpartID = &in.ID, &out.ID

	api.ledger.EXPECT().Transfer(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
			assert.Equal(t, domain.AssetUSD, req.FromAsset)
			assert.Equal(t, domain.AssetEUR, req.ToAsset)
			return &ports.TransferResult{From: out, To: in}, nil
		})

	w := api.do(http.MethodPost, "/api/v1/transfers", userToken, map[string]string{
		"from_asset": "USD", "to_asset": "EUR", "amount": "25",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	from := data["from"].(map[string]interface{})
	to := data["to"].(map[string]interface{})
	assert.Equal(t, "-25", from["amount"])
	assert.Equal(t, in.ID.String(), from["counterpart_id"])
	assert.Equal(t, "TRANSFER_IN", to["kind"])
}

func TestTransfer_SameAsset(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().Transfer(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrAssetMismatch())

	w := api.do(http.MethodPost, "/api/v1/transfers", userToken, map[string]string{
		"from_asset": "USD", "to_asset": "USD", "amount": "25",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeAssetMismatch, errorCode(t, w))
}

// --- Transactions ---

func TestListTransactions_Filters(t *testing.T) {
	api := newTestAPI(t)
	api.reporting.EXPECT().ListTransactions(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, api.userID, params.UserID)
			require.NotNil(t, params.Asset)
			assert.Equal(t, domain.AssetBTC, *params.Asset)
			require.NotNil(t, params.Status)
			assert.Equal(t, domain.TransactionStatusApproved, *params.Status)
			require.NotNil(t, params.From)
			assert.Nil(t, params.To)
			assert.Equal(t, 2, params.Page)
			assert.Equal(t, 5, params.PageSize)
			return []domain.Transaction{
				*sampleTransaction(api.userID, domain.AssetBTC, domain.KindBuy, "0.1", domain.TransactionStatusApproved),
			}, 6, nil
		})

	w := api.do(http.MethodGet, "/api/v1/transactions?asset=btc&status=APPROVED&from=2024-01-01T00:00:00Z&page=2&page_size=5", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(6), data["total"])
	assert.Equal(t, float64(2), data["page"])
	assert.Len(t, data["items"], 1)
}

func TestListTransactions_InvalidFilters(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodGet, "/api/v1/transactions?status=DONE", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/transactions?kind=GIFT", userToken, nil)
	assert.Equal(t, apperror.CodeInvalidKind, errorCode(t, w))

	w = api.do(http.MethodGet, "/api/v1/transactions?from=yesterday", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTransaction(t *testing.T) {
	api := newTestAPI(t)
	tx := sampleTransaction(api.userID, domain.AssetUSD, domain.KindFiatDeposit, "10", domain.TransactionStatusApproved)
	api.ledger.EXPECT().GetTransaction(gomock.Any(), api.userID, tx.ID).Return(tx, nil)

	w := api.do(http.MethodGet, "/api/v1/transactions/"+tx.ID.String(), userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tx.ID.String(), decodeData(t, w)["id"])
}

func TestGetTransaction_NotFoundAndBadID(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.ledger.EXPECT().GetTransaction(gomock.Any(), api.userID, id).Return(nil, apperror.ErrTransactionNotFound())

	w := api.do(http.MethodGet, "/api/v1/transactions/"+id.String(), userToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/v1/transactions/not-a-uuid", userToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats(t *testing.T) {
	api := newTestAPI(t)
	api.reporting.EXPECT().GetStats(gomock.Any(), api.userID, gomock.Nil()).Return(&ports.TransactionStats{
		TotalTransactions: 3, Approved: 2, Pending: 1,
		TotalCredited: decimal.NewFromInt(100), TotalDebited: decimal.NewFromInt(40),
	}, nil)

	w := api.do(http.MethodGet, "/api/v1/transactions/stats", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decodeData(t, w)["total_transactions"])
}

// --- Orders ---

func TestPlaceOrder(t *testing.T) {
	api := newTestAPI(t)
	api.orders.EXPECT().PlaceOrder(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.PlaceOrderRequest) (*domain.Order, error) {
			assert.Equal(t, domain.OrderSideBuy, req.Side)
			assert.Equal(t, domain.AssetBTC, req.Asset)
			assert.Equal(t, domain.AssetUSD, req.Currency)
			total := domain.OrderTotal(req.Quantity, req.PricePerUnit, req.Currency)
			return &domain.Order{
				ID: uuid.New(), UserID: req.UserID, Side: req.Side, Asset: req.Asset, Currency: req.Currency,
				Quantity: req.Quantity, PricePerUnit: req.PricePerUnit, TotalAmount: total,
				Status: domain.OrderStatusPending, CreatedAt: time.Now(), UpdatedAt: time.Now(),
			}, nil
		})

	w := api.do(http.MethodPost, "/api/v1/orders", userToken, map[string]string{
		"side": "BUY", "asset": "BTC", "currency": "USD", "quantity": "0.5", "price_per_unit": "30000.125",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "15000.06", data["total_amount"])
	assert.Equal(t, "PENDING", data["status"])
}

func TestPlaceOrder_InvalidSide(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/orders", userToken, map[string]string{
		"side": "HOLD", "asset": "BTC", "currency": "USD", "quantity": "1", "price_per_unit": "1",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrders(t *testing.T) {
	api := newTestAPI(t)
	api.orders.EXPECT().ListOrders(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, params ports.OrderListParams) ([]domain.Order, int64, error) {
			require.NotNil(t, params.Status)
			assert.Equal(t, domain.OrderStatusPending, *params.Status)
			assert.Equal(t, 1, params.Page)
			assert.Equal(t, defaultPageSize, params.PageSize)
			return nil, 0, nil
		})

	w := api.do(http.MethodGet, "/api/v1/orders?status=PENDING", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, []interface{}{}, data["items"])
}

func TestCancelOrder_PassesRole(t *testing.T) {
	api := newTestAPI(t)
	orderID := uuid.New()
	api.orders.EXPECT().CancelOrder(gomock.Any(), api.userID, orderID, false).Return(&domain.Order{
		ID: orderID, Status: domain.OrderStatusCancelled, Quantity: decimal.NewFromInt(1),
	}, nil)
	api.orders.EXPECT().CancelOrder(gomock.Any(), api.adminID, orderID, true).Return(nil,
		apperror.ErrIllegalTransition("CANCELLED", "CANCELLED"))

	w := api.do(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "CANCELLED", decodeData(t, w)["status"])

	w = api.do(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/cancel", adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeIllegalTransition, errorCode(t, w))
}

// --- Payment methods ---

func TestLinkPaymentMethod(t *testing.T) {
	api := newTestAPI(t)
	api.methods.EXPECT().Link(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.LinkPaymentMethodRequest) (*domain.PaymentMethod, error) {
			assert.Equal(t, domain.PaymentMethodBankAccount, req.Type)
			assert.Equal(t, "Salary", req.Label)
			return &domain.PaymentMethod{
				ID: uuid.New(), UserID: req.UserID, Type: req.Type, Label: req.Label, Asset: req.Asset,
				Details: req.Details, Status: domain.PaymentMethodStatusPending, CreatedAt: time.Now(),
			}, nil
		})

	w := api.do(http.MethodPost, "/api/v1/payment-methods", userToken, map[string]string{
		"type": "BANK_ACCOUNT", "label": " Salary ", "asset": "AED", "details": "AE070331234567890123456",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "PENDING", decodeData(t, w)["status"])
}

func TestUpdatePaymentMethod_Immutable(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.methods.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.UpdatePaymentMethodRequest) (*domain.PaymentMethod, error) {
			assert.Equal(t, id, req.ID)
			assert.Equal(t, api.userID, req.UserID)
			return nil, apperror.ErrImmutablePaymentMethod()
		})

	w := api.do(http.MethodPut, "/api/v1/payment-methods/"+id.String(), userToken, map[string]string{
		"label": "New", "details": "AE070331234567890123456",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeImmutableMethod, errorCode(t, w))
}

func TestUnlinkAndListPaymentMethods(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	now := time.Now()
	api.methods.EXPECT().Unlink(gomock.Any(), api.userID, id).Return(&domain.PaymentMethod{
		ID: id, Type: domain.PaymentMethodCryptoWallet, Asset: domain.AssetETH,
		Status: domain.PaymentMethodStatusApproved, UnlinkedAt: &now, CreatedAt: now,
	}, nil)
	api.methods.EXPECT().List(gomock.Any(), api.userID).Return(nil, nil)

	w := api.do(http.MethodDelete, "/api/v1/payment-methods/"+id.String(), userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/v1/payment-methods", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, w, "data")))
}

func mustField(t *testing.T, w *httptest.ResponseRecorder, field string) json.RawMessage {
	t.Helper()
	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp[field]
}

// --- Admin ---

func TestAdminCredit(t *testing.T) {
	api := newTestAPI(t)
	target := uuid.New()
	api.ledger.EXPECT().Credit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CreditRequest) (*domain.Transaction, error) {
			assert.Equal(t, target, req.UserID)
			assert.Equal(t, domain.KindFiatDeposit, req.Kind)
			assert.Equal(t, "credit-1", req.IdempotencyKey)
			return sampleTransaction(target, domain.AssetUSD, req.Kind, "100", domain.TransactionStatusApproved), nil
		})

	w := api.do(http.MethodPost, "/api/v1/admin/credits", adminToken, map[string]string{
		"user_id": target.String(), "asset": "USD", "amount": "100", "kind": "FIAT_DEPOSIT",
	}, "Idempotency-Key", "credit-1")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "APPROVED", decodeData(t, w)["status"])
}

func TestAdminCredit_UnknownKind(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/admin/credits", adminToken, map[string]string{
		"user_id": uuid.NewString(), "asset": "USD", "amount": "100", "kind": "GIFT",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeInvalidKind, errorCode(t, w))
}

func TestAdminDebit_Insufficient(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.EXPECT().Debit(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientBalance("100", "150"))

	w := api.do(http.MethodPost, "/api/v1/admin/debits", adminToken, map[string]string{
		"user_id": uuid.NewString(), "asset": "USD", "amount": "150", "kind": "FIAT_WITHDRAWAL",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdminTransactionStatus(t *testing.T) {
	api := newTestAPI(t)
	tx := sampleTransaction(api.userID, domain.AssetUSD, domain.KindFiatDeposit, "10", domain.TransactionStatusApproved)
	api.status.EXPECT().TransitionTransaction(gomock.Any(), tx.ID, domain.TransactionStatusApproved, api.adminID).Return(tx, nil)

	w := api.do(http.MethodPost, "/api/v1/admin/transactions/"+tx.ID.String()+"/status", adminToken,
		map[string]string{"status": "APPROVED"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "APPROVED", decodeData(t, w)["status"])
}

func TestAdminTransactionStatus_Terminal(t *testing.T) {
	api := newTestAPI(t)
	id := uuid.New()
	api.status.EXPECT().TransitionTransaction(gomock.Any(), id, domain.TransactionStatusPending, api.adminID).
		Return(nil, apperror.ErrIllegalTransition("APPROVED", "PENDING"))

	w := api.do(http.MethodPost, "/api/v1/admin/transactions/"+id.String()+"/status", adminToken,
		map[string]string{"status": "PENDING"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAdminOrderAndPaymentMethodStatus(t *testing.T) {
	api := newTestAPI(t)
	orderID, methodID := uuid.New(), uuid.New()
	api.status.EXPECT().TransitionOrder(gomock.Any(), orderID, domain.OrderStatusCompleted, api.adminID).
		Return(&domain.Order{ID: orderID, Status: domain.OrderStatusCompleted}, nil)
	api.status.EXPECT().TransitionPaymentMethod(gomock.Any(), methodID, domain.PaymentMethodStatusRejected, api.adminID).
		Return(&domain.PaymentMethod{ID: methodID, Status: domain.PaymentMethodStatusRejected}, nil)

	w := api.do(http.MethodPost, "/api/v1/admin/orders/"+orderID.String()+"/status", adminToken,
		map[string]string{"status": "COMPLETED"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "COMPLETED", decodeData(t, w)["status"])

	w = api.do(http.MethodPost, "/api/v1/admin/payment-methods/"+methodID.String()+"/status", adminToken,
		map[string]string{"status": "REJECTED"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "REJECTED", decodeData(t, w)["status"])
}

func TestAdminStatus_MissingBody(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(http.MethodPost, "/api/v1/admin/orders/"+uuid.NewString()+"/status", adminToken, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminTransactionByReference(t *testing.T) {
	api := newTestAPI(t)
	tx := sampleTransaction(api.userID, domain.AssetUSD, domain.KindFiatDeposit, "10", domain.TransactionStatusApproved)
	api.ledger.EXPECT().GetTransactionByReference(gomock.Any(), tx.ReferenceID).Return(tx, nil)

	w := api.do(http.MethodGet, "/api/v1/admin/transactions/by-reference/"+tx.ReferenceID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tx.ID.String(), decodeData(t, w)["id"])
}

func TestAdminReconcile(t *testing.T) {
	api := newTestAPI(t)
	target := uuid.New()
	api.reporting.EXPECT().ReconcileBalance(gomock.Any(), target, domain.AssetBTC).Return(&ports.Reconciliation{
		UserID: target, Asset: domain.AssetBTC,
		BalanceAmount: decimal.RequireFromString("1.5"), LedgerSum: decimal.RequireFromString("1.5"),
		Difference: decimal.Zero, ApprovedEntries: 3, Consistent: true,
	}, nil)

	w := api.do(http.MethodGet, "/api/v1/admin/balances/"+target.String()+"/btc/reconcile", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, true, data["consistent"])
	assert.Equal(t, float64(3), data["approved_entries"])
}

// --- Health ---

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(_ context.Context) error { return f.err }
func (f fakeChecker) Name() string                 { return f.name }

func TestHealthCheck(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthCheck(fakeChecker{name: "postgresql"}, fakeChecker{name: "redis", err: errors.New("dial tcp: refused")}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["postgresql"].(map[string]interface{})["status"])
	assert.Equal(t, "unhealthy", deps["redis"].(map[string]interface{})["status"])
}

func TestHealthCheck_AllHealthy(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthCheck(fakeChecker{name: "memory"}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
