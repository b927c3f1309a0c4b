package handler

import (
	"custody-ledger/internal/adapter/http/dto"
	"custody-ledger/internal/adapter/http/middleware"
	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"
	"custody-ledger/pkg/apperror"
	"custody-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderHandler handles the caller's buy and sell orders.
type OrderHandler struct {
	orders ports.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orders ports.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// PlaceOrder handles POST /api/v1/orders.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.PlaceOrderRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}
	asset, err := domain.ParseAsset(req.Asset)
	if err != nil {
		response.Error(c, err)
		return
	}
	currency, err := domain.ParseAsset(req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}
	quantity, err := parseAmount(asset, req.Quantity)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Unit prices may carry more places than the currency; the total is
	// rounded to the currency's precision.
	price, err := decimal.NewFromString(req.PricePerUnit)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), ports.PlaceOrderRequest{
		UserID:       userID,
		Side:         domain.OrderSide(req.Side),
		Asset:        asset,
		Currency:     currency,
		Quantity:     quantity,
		PricePerUnit: price,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toOrderResponse(order))
}

// ListOrders handles GET /api/v1/orders.
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var q dto.OrderListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	page, pageSize := pageParams(q.Page, q.PageSize)

	params := ports.OrderListParams{UserID: userID, Page: page, PageSize: pageSize}
	if q.Status != "" {
		status := domain.OrderStatus(q.Status)
		params.Status = &status
	}

	orders, total, err := h.orders.ListOrders(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	response.Paginated(c, items, total, page, pageSize)
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderResponse(order))
}

// CancelOrder handles POST /api/v1/orders/:id/cancel.
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	id, err := paramUUID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), userID, id, middleware.IsAdmin(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderResponse(order))
}

func toOrderResponse(o *domain.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:           o.ID.String(),
		Side:         string(o.Side),
		Asset:        string(o.Asset),
		Currency:     string(o.Currency),
		Quantity:     o.Quantity.String(),
		PricePerUnit: o.PricePerUnit.String(),
		TotalAmount:  o.TotalAmount.String(),
		Status:       string(o.Status),
		CreatedAt:    formatTime(o.CreatedAt),
		UpdatedAt:    formatTime(o.UpdatedAt),
	}
}
