package handler

import (
	"time"

	"custody-ledger/internal/adapter/http/dto"
	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"
	"custody-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// LedgerHandler serves the caller's balances and transactions.
type LedgerHandler struct {
	ledger    ports.LedgerService
	reporting ports.ReportingService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger ports.LedgerService, reporting ports.ReportingService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, reporting: reporting}
}

// ListBalances handles GET /api/v1/balances.
func (h *LedgerHandler) ListBalances(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	balances, err := h.ledger.ListBalances(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.BalanceResponse, 0, len(balances))
	for i := range balances {
		items = append(items, toBalanceResponse(&balances[i]))
	}
	response.OK(c, items)
}

// GetBalance handles GET /api/v1/balances/:asset. Assets the caller never
// used report a zero amount.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	asset, err := domain.ParseAsset(c.Param("asset"))
	if err != nil {
		response.Error(c, err)
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID, asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toBalanceResponse(balance))
}

// Deposit handles POST /api/v1/deposits. The deposit stays PENDING until an
// admin approves it.
func (h *LedgerHandler) Deposit(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.DepositRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	key, err := idempotencyKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	asset, err := domain.ParseAsset(req.Asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	amount, err := parseAmount(asset, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	kind := domain.KindFiatDeposit
	if asset.IsCrypto() {
		kind = domain.KindCryptoDeposit
	}

	tx, err := h.ledger.RecordPendingTransaction(c.Request.Context(), ports.PendingRequest{
		UserID:            userID,
		Asset:             asset,
		Amount:            amount,
		Kind:              kind,
		Destination:       req.Destination,
		Network:           req.Network,
		ExternalReference: req.ExternalReference,
		Description:       req.Description,
		IdempotencyKey:    key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTransactionResponse(tx))
}

// Withdraw handles POST /api/v1/withdrawals.
func (h *LedgerHandler) Withdraw(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.WithdrawalRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	key, err := idempotencyKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	asset, err := domain.ParseAsset(req.Asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	amount, err := parseAmount(asset, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	kind := domain.KindFiatWithdrawal
	if asset.IsCrypto() {
		kind = domain.KindCryptoWithdrawal
	}

	tx, err := h.ledger.RecordPendingTransaction(c.Request.Context(), ports.PendingRequest{
		UserID:         userID,
		Asset:          asset,
		Amount:         amount,
		Kind:           kind,
		Destination:    &req.Destination,
		Network:        req.Network,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTransactionResponse(tx))
}

// Transfer handles POST /api/v1/transfers.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	key, err := idempotencyKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	from, err := domain.ParseAsset(req.FromAsset)
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := domain.ParseAsset(req.ToAsset)
	if err != nil {
		response.Error(c, err)
		return
	}
	amount, err := parseAmount(from, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.ledger.Transfer(c.Request.Context(), ports.TransferRequest{
		UserID:         userID,
		FromAsset:      from,
		ToAsset:        to,
		Amount:         amount,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.TransferResponse{
		From: toTransactionResponse(result.From),
		To:   toTransactionResponse(result.To),
	})
}

// ListTransactions handles GET /api/v1/transactions.
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	page, pageSize := pageParams(q.Page, q.PageSize)

	params := ports.TransactionListParams{
		UserID:   userID,
		Page:     page,
		PageSize: pageSize,
	}
	if q.Asset != "" {
		asset, err := domain.ParseAsset(q.Asset)
		if err != nil {
			response.Error(c, err)
			return
		}
		params.Asset = &asset
	}
	if q.Kind != "" {
		kind, err := domain.ParseKind(q.Kind)
		if err != nil {
			response.Error(c, err)
			return
		}
		params.Kind = &kind
	}
	if q.Status != "" {
		status := domain.TransactionStatus(q.Status)
		if !status.Valid() {
			response.Error(c, apperror.Validation("Unknown transaction status "+q.Status))
			return
		}
		params.Status = &status
	}
	if q.From != "" {
		from, _ := time.Parse(time.RFC3339, q.From)
		params.From = &from
	}
	if q.To != "" {
		to, _ := time.Parse(time.RFC3339, q.To)
		params.To = &to
	}

	txns, total, err := h.reporting.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}
	response.Paginated(c, items, total, page, pageSize)
}

// GetTransaction handles GET /api/v1/transactions/:id.
func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	tx, err := h.ledger.GetTransaction(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTransactionResponse(tx))
}

// GetStats handles GET /api/v1/transactions/stats.
func (h *LedgerHandler) GetStats(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var asset *domain.Asset
	if raw := c.Query("asset"); raw != "" {
		a, err := domain.ParseAsset(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		asset = &a
	}

	stats, err := h.reporting.GetStats(c.Request.Context(), userID, asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

func toBalanceResponse(b *domain.Balance) dto.BalanceResponse {
	resp := dto.BalanceResponse{
		Asset:           string(b.Asset),
		Class:           string(b.Asset.Class()),
		Amount:          b.Amount.String(),
		ExternalAddress: b.ExternalAddress,
	}
	if !b.UpdatedAt.IsZero() {
		s := formatTime(b.UpdatedAt)
		resp.UpdatedAt = &s
	}
	return resp
}

// toTransactionResponse converts domain.Transaction to DTO.
func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:                tx.ID.String(),
		ReferenceID:       tx.ReferenceID,
		Asset:             string(tx.Asset),
		Kind:              string(tx.Kind),
		Amount:            tx.Amount.String(),
		Status:            string(tx.Status),
		Description:       tx.Description,
		Destination:       tx.Destination,
		Network:           tx.Network,
		ExternalReference: tx.ExternalReference,
		CounterpartID:     uuidPtrString(tx.CounterpartID),
		OrderID:           uuidPtrString(tx.OrderID),
		CreatedAt:         formatTime(tx.CreatedAt),
		ProcessedAt:       formatTimePtr(tx.ProcessedAt),
	}
	if tx.BalanceAfter != nil {
		s := tx.BalanceAfter.String()
		resp.BalanceAfter = &s
	}
	return resp
}
