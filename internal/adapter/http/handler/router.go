package handler

import (
	"custody-ledger/internal/adapter/http/middleware"
	"custody-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	LedgerSvc        ports.LedgerService
	StatusSvc        ports.StatusService
	OrderSvc         ports.OrderService
	PaymentMethodSvc ports.PaymentMethodService
	ReportingSvc     ports.ReportingService
	TokenSvc         ports.TokenService
	RateLimitStore   middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	AuditSvc         ports.AuditService // nil = audit logging disabled
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: pings every configured dependency)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	reads, writes := rl("reads"), rl("writes")

	v1 := r.Group("/api/v1", middleware.Identity(deps.TokenSvc, deps.Logger))

	ledgerHandler := NewLedgerHandler(deps.LedgerSvc, deps.ReportingSvc)
	v1.GET("/balances", reads, ledgerHandler.ListBalances)
	v1.GET("/balances/:asset", reads, ledgerHandler.GetBalance)
	v1.POST("/deposits", writes, ledgerHandler.Deposit)
	v1.POST("/withdrawals", writes, ledgerHandler.Withdraw)
	v1.POST("/transfers", writes, ledgerHandler.Transfer)

	transactions := v1.Group("/transactions")
	{
		transactions.GET("", reads, ledgerHandler.ListTransactions)
		transactions.GET("/stats", reads, ledgerHandler.GetStats)
		transactions.GET("/:id", reads, ledgerHandler.GetTransaction)
	}

	orderHandler := NewOrderHandler(deps.OrderSvc)
	orders := v1.Group("/orders")
	{
		orders.POST("", writes, orderHandler.PlaceOrder)
		orders.GET("", reads, orderHandler.ListOrders)
		orders.GET("/:id", reads, orderHandler.GetOrder)
		orders.POST("/:id/cancel", writes, orderHandler.CancelOrder)
	}

	methodHandler := NewPaymentMethodHandler(deps.PaymentMethodSvc)
	methods := v1.Group("/payment-methods")
	{
		methods.POST("", writes, methodHandler.Link)
		methods.GET("", reads, methodHandler.List)
		methods.PUT("/:id", writes, methodHandler.Update)
		methods.DELETE("/:id", writes, methodHandler.Unlink)
	}

	// --- Operator routes ---
	adminHandler := NewAdminHandler(deps.LedgerSvc, deps.StatusSvc, deps.ReportingSvc)
	admin := v1.Group("/admin", middleware.RequireAdmin(), rl("admin"))
	{
		admin.POST("/credits", adminHandler.Credit)
		admin.POST("/debits", adminHandler.Debit)
		admin.GET("/transactions/by-reference/:ref", adminHandler.TransactionByReference)
		admin.POST("/transactions/:id/status", adminHandler.TransactionStatus)
		admin.POST("/orders/:id/status", adminHandler.OrderStatus)
		admin.POST("/payment-methods/:id/status", adminHandler.PaymentMethodStatus)
		admin.GET("/balances/:userId/:asset/reconcile", adminHandler.Reconcile)
	}

	return r
}
