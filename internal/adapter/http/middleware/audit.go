package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"custody-ledger/internal/core/domain"
	"custody-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes is keyed by method and the registered route pattern.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/deposits":                         {domain.AuditActionDepositRequest, "transaction"},
	"POST /api/v1/withdrawals":                      {domain.AuditActionWithdrawalRequest, "transaction"},
	"POST /api/v1/transfers":                        {domain.AuditActionTransfer, "transaction"},
	"POST /api/v1/orders":                           {domain.AuditActionOrderPlace, "order"},
	"POST /api/v1/orders/:id/cancel":                {domain.AuditActionOrderCancel, "order"},
	"POST /api/v1/payment-methods":                  {domain.AuditActionPaymentMethodLink, "payment_method"},
	"PUT /api/v1/payment-methods/:id":               {domain.AuditActionPaymentMethodEdit, "payment_method"},
	"DELETE /api/v1/payment-methods/:id":            {domain.AuditActionPaymentMethodDrop, "payment_method"},
	"POST /api/v1/admin/credits":                    {domain.AuditActionCredit, "transaction"},
	"POST /api/v1/admin/debits":                     {domain.AuditActionDebit, "transaction"},
	"POST /api/v1/admin/transactions/:id/status":    {domain.AuditActionTransactionStatus, "transaction"},
	"POST /api/v1/admin/orders/:id/status":          {domain.AuditActionOrderStatus, "order"},
	"POST /api/v1/admin/payment-methods/:id/status": {domain.AuditActionPaymentMethodState, "payment_method"},
}

// AuditLog creates an audit middleware that records successful write
// operations against the route they matched.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var actorID *uuid.UUID
		if id := UserID(c); id != uuid.Nil {
			actorID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      actorID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}
