package handler

import (
	"custody-ledger/internal/adapter/http/dto"
	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"
	"custody-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AdminHandler exposes operator actions: pre-authorised credits and debits,
// status changes and reconciliation.
type AdminHandler struct {
	ledger    ports.LedgerService
	status    ports.StatusService
	reporting ports.ReportingService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ledger ports.LedgerService, status ports.StatusService, reporting ports.ReportingService) *AdminHandler {
	return &AdminHandler{ledger: ledger, status: status, reporting: reporting}
}

// Credit handles POST /api/v1/admin/credits.
func (h *AdminHandler) Credit(c *gin.Context) {
	var req dto.CreditRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	key, err := idempotencyKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	userID, asset, kind, err := parseMovement(req.UserID, req.Asset, req.Kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	amount, err := parseAmount(asset, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	tx, err := h.ledger.Credit(c.Request.Context(), ports.CreditRequest{
		UserID:         userID,
		Asset:          asset,
		Amount:         amount,
		Kind:           kind,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTransactionResponse(tx))
}

// Debit handles POST /api/v1/admin/debits.
func (h *AdminHandler) Debit(c *gin.Context) {
	var req dto.DebitRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	key, err := idempotencyKey(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	userID, asset, kind, err := parseMovement(req.UserID, req.Asset, req.Kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	amount, err := parseAmount(asset, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	tx, err := h.ledger.Debit(c.Request.Context(), ports.DebitRequest{
		UserID:         userID,
		Asset:          asset,
		Amount:         amount,
		Kind:           kind,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTransactionResponse(tx))
}

// TransactionStatus handles POST /api/v1/admin/transactions/:id/status.
func (h *AdminHandler) TransactionStatus(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		return
	}
	id, target, ok := h.statusRequest(c)
	if !ok {
		return
	}

	tx, err := h.status.TransitionTransaction(c.Request.Context(), id, domain.TransactionStatus(target), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTransactionResponse(tx))
}

// OrderStatus handles POST /api/v1/admin/orders/:id/status.
func (h *AdminHandler) OrderStatus(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		return
	}
	id, target, ok := h.statusRequest(c)
	if !ok {
		return
	}

	order, err := h.status.TransitionOrder(c.Request.Context(), id, domain.OrderStatus(target), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderResponse(order))
}

// PaymentMethodStatus handles POST /api/v1/admin/payment-methods/:id/status.
func (h *AdminHandler) PaymentMethodStatus(c *gin.Context) {
	actorID, ok := callerID(c)
	if !ok {
		return
	}
	id, target, ok := h.statusRequest(c)
	if !ok {
		return
	}

	pm, err := h.status.TransitionPaymentMethod(c.Request.Context(), id, domain.PaymentMethodStatus(target), actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toPaymentMethodResponse(pm))
}

// TransactionByReference handles GET /api/v1/admin/transactions/by-reference/:ref.
func (h *AdminHandler) TransactionByReference(c *gin.Context) {
	tx, err := h.ledger.GetTransactionByReference(c.Request.Context(), c.Param("ref"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTransactionResponse(tx))
}

// Reconcile handles GET /api/v1/admin/balances/:userId/:asset/reconcile.
func (h *AdminHandler) Reconcile(c *gin.Context) {
	userID, err := paramUUID(c, "userId")
	if err != nil {
		response.Error(c, err)
		return
	}
	asset, err := domain.ParseAsset(c.Param("asset"))
	if err != nil {
		response.Error(c, err)
		return
	}

	rec, err := h.reporting.ReconcileBalance(c.Request.Context(), userID, asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rec)
}

func (h *AdminHandler) statusRequest(c *gin.Context) (uuid.UUID, string, bool) {
	id, err := paramUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, "", false
	}
	var req dto.StatusRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return uuid.Nil, "", false
	}
	return id, req.Status, true
}

func parseMovement(rawUser, rawAsset, rawKind string) (uuid.UUID, domain.Asset, domain.TransactionKind, error) {
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return uuid.Nil, "", "", apperror.Validation("Invalid user_id")
	}
	asset, err := domain.ParseAsset(rawAsset)
	if err != nil {
		return uuid.Nil, "", "", err
	}
	kind, err := domain.ParseKind(rawKind)
	if err != nil {
		return uuid.Nil, "", "", err
	}
	return userID, asset, kind, nil
}
