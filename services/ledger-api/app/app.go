package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/banksys/balance-ledger/pkg/cache"
	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/ledger"
	middleware "github.com/banksys/balance-ledger/pkg/middlewares"
	"github.com/banksys/balance-ledger/pkg/queue"
	"github.com/banksys/balance-ledger/pkg/repositories"
	"github.com/banksys/balance-ledger/services/ledger-api/configs"
	"github.com/banksys/balance-ledger/services/ledger-api/internal/handlers"
	"github.com/banksys/balance-ledger/services/ledger-api/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewApp wires dependencies, builds the Gin engine, and returns an *http.Server and a cleanup func.
// It reads configuration from environment variables via configs.Load.
func NewApp(ctx context.Context, logger *zap.Logger) (*http.Server, func(), error) {
	// Load config
	cfg, err := configs.Load(logger)
	if err != nil {
		return nil, nil, err
	}

	// Initialize postgres db
	dbConfig := database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		ReadDSNs:   []string{cfg.ReadDbAddr},
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	}
	db, disconnect, err := database.New(ctx, logger, dbConfig)
	if err != nil {
		return nil, nil, err
	}

	// Run migrations on primary
	if err := database.RunMigrations(logger, cfg.PrimaryDbAddr); err != nil {
		disconnect()
		return nil, nil, err
	}

	// Redis holds the ledger hashes, both queues and the history cache.
	redisClient, redisCloser, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr})
	if err != nil {
		disconnect()
		return nil, nil, err
	}

	// Setup dependencies
	accountRepo := repositories.NewAccountRepository()
	txRepo := repositories.NewTransactionRepository()
	ledgerStore := ledger.NewRedisStore(redisClient)
	logQueue := queue.NewRedisQueue(redisClient, pkg.TransactionLogQueue)
	syncQueue := queue.NewRedisQueue(redisClient, pkg.BalanceSyncQueue)
	historyCache := cache.NewRedisHistoryCache(redisClient)
	limiter := pkg.NewDistributedLimiter(redisClient, "global:mutation_rate",
		cfg.MutationRateLimit, cfg.MutationRateBurst, time.Minute, logger)

	accountService := services.NewAccountService(services.AccountServiceConfig{
		Logger:      logger,
		DB:          db,
		AccountRepo: accountRepo,
		Ledger:      ledgerStore,
	})
	transactionService := services.NewTransactionService(services.TransactionServiceConfig{
		Logger:       logger,
		Cnf:          cfg,
		DB:           db,
		Ledger:       ledgerStore,
		LogQueue:     logQueue,
		SyncQueue:    syncQueue,
		HistoryCache: historyCache,
		AccountRepo:  accountRepo,
		TxRepo:       txRepo,
	})

	baseHandler := handlers.NewBaseHandler(logger)
	accountHandler := handlers.NewAccountHandler(logger, accountService, transactionService, limiter)

	// Router
	r := gin.Default()

	api := r.Group("/api/v1")
	api.Use(middleware.TraceID())
	api.Use(middleware.Metrics())

	accountHandler.RegisterRoutes(api)
	baseHandler.RegisterRoutes(r)

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	cleanup := func() {
		redisCloser()
		disconnect()
	}

	return srv, cleanup, nil
}
