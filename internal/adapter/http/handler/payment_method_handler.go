package handler

import (
	"custody-ledger/internal/adapter/http/dto"
	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentMethodHandler manages the caller's linked bank accounts and wallets.
type PaymentMethodHandler struct {
	methods ports.PaymentMethodService
}

// NewPaymentMethodHandler creates a new PaymentMethodHandler.
func NewPaymentMethodHandler(methods ports.PaymentMethodService) *PaymentMethodHandler {
	return &PaymentMethodHandler{methods: methods}
}

// Link handles POST /api/v1/payment-methods.
func (h *PaymentMethodHandler) Link(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.LinkPaymentMethodRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	asset, err := domain.ParseAsset(req.Asset)
	if err != nil {
		response.Error(c, err)
		return
	}

	pm, err := h.methods.Link(c.Request.Context(), ports.LinkPaymentMethodRequest{
		UserID:  userID,
		Type:    domain.PaymentMethodType(req.Type),
		Label:   req.Label,
		Asset:   asset,
		Details: req.Details,
		Network: req.Network,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toPaymentMethodResponse(pm))
}

// List handles GET /api/v1/payment-methods.
func (h *PaymentMethodHandler) List(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	methods, err := h.methods.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.PaymentMethodResponse, 0, len(methods))
	for i := range methods {
		items = append(items, toPaymentMethodResponse(&methods[i]))
	}
	response.OK(c, items)
}

// Update handles PUT /api/v1/payment-methods/:id.
func (h *PaymentMethodHandler) Update(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	var req dto.UpdatePaymentMethodRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	pm, err := h.methods.Update(c.Request.Context(), ports.UpdatePaymentMethodRequest{
		UserID:  userID,
		ID:      id,
		Label:   req.Label,
		Details: req.Details,
		Network: req.Network,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toPaymentMethodResponse(pm))
}

// Unlink handles DELETE /api/v1/payment-methods/:id.
func (h *PaymentMethodHandler) Unlink(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	pm, err := h.methods.Unlink(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toPaymentMethodResponse(pm))
}

func toPaymentMethodResponse(pm *domain.PaymentMethod) dto.PaymentMethodResponse {
	return dto.PaymentMethodResponse{
		ID:        pm.ID.String(),
		Type:      string(pm.Type),
		Label:     pm.Label,
		Asset:     string(pm.Asset),
		Details:   pm.Details,
		Network:   pm.Network,
		Status:    string(pm.Status),
		CreatedAt: formatTime(pm.CreatedAt),
	}
}
