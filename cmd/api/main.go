package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"custody-ledger/config"
	httpHandler "custody-ledger/internal/adapter/http/handler"
	"custody-ledger/internal/adapter/http/middleware"
	memStorage "custody-ledger/internal/adapter/storage/memory"
	pgStorage "custody-ledger/internal/adapter/storage/postgres"
	redisStorage "custody-ledger/internal/adapter/storage/redis"
	"custody-ledger/internal/core/ports"
	"custody-ledger/internal/service"
	"custody-ledger/pkg/logger"
	"custody-ledger/pkg/refid"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// storage bundles the repositories and optional Redis-backed helpers of one
// persistence driver.
type storage struct {
	balances    ports.BalanceRepository
	txns        ports.TransactionRepository
	orders      ports.OrderRepository
	methods     ports.PaymentMethodRepository
	idempotency ports.IdempotencyRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	idempCache  ports.IdempotencyCache
	lock        ports.RequestLock
	rateLimit   middleware.RateLimitStore
	health      []ports.HealthChecker
	closers     []func()
}

func (s *storage) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting custody ledger")

	if cfg.Auth.Secret == "" {
		log.Fatal().Msg("auth.secret must be set (LEDGER_AUTH_SECRET)")
	}

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise storage")
	}
	defer store.close()

	ledgerDeps := service.LedgerDeps{
		Balances:     store.balances,
		Transactions: store.txns,
		Idempotency:  store.idempotency,
		IdempCache:   store.idempCache,
		Lock:         store.lock,
		Transactor:   store.transactor,
		References:   refid.New(),
		Hasher:       service.NewBlake2bAuditHasher(),
	}

	ledgerSvc := service.NewLedgerService(ledgerDeps, cfg.Ledger, log)
	orderSvc := service.NewOrderService(store.orders, ledgerDeps, cfg.Ledger, log)
	methodSvc := service.NewPaymentMethodService(store.methods, store.transactor, log)
	statusSvc := service.NewStatusService(ledgerSvc, orderSvc, methodSvc, store.txns, store.orders, log)
	reportingSvc := service.NewReportingService(store.txns, store.balances)
	auditSvc := service.NewAuditService(store.audit, log)
	tokenSvc := service.NewJWTTokenService(cfg.Auth.Secret, cfg.Auth.Issuer)

	deps := httpHandler.RouterDeps{
		LedgerSvc:        ledgerSvc,
		StatusSvc:        statusSvc,
		OrderSvc:         orderSvc,
		PaymentMethodSvc: methodSvc,
		ReportingSvc:     reportingSvc,
		TokenSvc:         tokenSvc,
		HealthCheckers:   store.health,
		AuditSvc:         auditSvc,
		Logger:           log,
	}
	if cfg.RateLimit.Enabled && store.rateLimit != nil {
		deps.RateLimitStore = store.rateLimit
	}

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := httpHandler.SetupRouter(deps)

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Warn().Msg("in-memory storage selected: state is lost on exit")
		mem := memStorage.NewStore()
		return &storage{
			balances:    memStorage.NewBalanceRepo(mem),
			txns:        memStorage.NewTransactionRepo(mem),
			orders:      memStorage.NewOrderRepo(mem),
			methods:     memStorage.NewPaymentMethodRepo(mem),
			idempotency: memStorage.NewIdempotencyRepo(mem),
			audit:       memStorage.NewAuditRepo(mem),
			transactor:  memStorage.NewTransactor(mem),
			health:      []ports.HealthChecker{memStorage.NewHealthCheck()},
		}, nil
	case "postgres", "":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	log.Info().Msg("Redis connected")

	return &storage{
		balances:    pgStorage.NewBalanceRepo(pool),
		txns:        pgStorage.NewTransactionRepo(pool),
		orders:      pgStorage.NewOrderRepo(pool),
		methods:     pgStorage.NewPaymentMethodRepo(pool),
		idempotency: pgStorage.NewIdempotencyRepo(pool),
		audit:       pgStorage.NewAuditRepo(pool),
		transactor:  pgStorage.NewTransactor(pool),
		idempCache:  redisStorage.NewIdempotencyCache(rdb),
		lock:        redisStorage.NewRequestLock(rdb),
		rateLimit:   redisStorage.NewRateLimitStore(rdb),
		health: []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
		},
		closers: []func(){pool.Close, func() { _ = rdb.Close() }},
	}, nil
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	}
	return gin.ReleaseMode
}
