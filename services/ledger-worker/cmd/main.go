package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/banksys/balance-ledger/pkg/cache"
	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/locker"
	"github.com/banksys/balance-ledger/pkg/queue"
	"github.com/banksys/balance-ledger/pkg/repositories"
	"github.com/banksys/balance-ledger/services/ledger-worker/configs"
	"github.com/banksys/balance-ledger/services/ledger-worker/internal/observability"
	"github.com/banksys/balance-ledger/services/ledger-worker/internal/services"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// main initializes and runs the ledger worker: the batch flush scheduler and
// the balance reconciliation scheduler, plus a metrics endpoint.
func main() {
	_ = godotenv.Load() // Optional .env for local development

	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync() // Ensure all buffered logs are flushed on exit

	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed_to_load_config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL database connection
	db, disconnect, err := database.New(ctx, logger, database.Config{
		PrimaryDSN: cfg.PrimaryDbAddr,
		ReadDSNs:   []string{cfg.ReadDbAddr},
		MaxConns:   cfg.MaxDbCons,
		MinConns:   cfg.MinDbCons,
	})
	if err != nil {
		logger.Fatal("failed_to_initialize_database", zap.Error(err))
	}
	defer disconnect()

	// Redis holds the ledger, both queues and the scheduler leases.
	redisClient, redisCloser, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Fatal("failed_to_initialize_redis", zap.Error(err))
	}
	defer redisCloser()

	logQueue := queue.NewRedisQueue(redisClient, pkg.TransactionLogQueue)
	deadLetter := queue.NewRedisQueue(redisClient, pkg.TransactionDeadLetterQueue)
	syncQueue := queue.NewRedisQueue(redisClient, pkg.BalanceSyncQueue)

	flushService := services.NewFlushService(services.FlushConfig{
		Logger:     logger,
		DB:         db,
		LogQueue:   logQueue,
		DeadLetter: deadLetter,
		TxRepo:     repositories.NewTransactionRepository(),
		MaxBatch:   cfg.MaxFlushBatch,
	})
	syncService := services.NewSyncService(services.SyncConfig{
		Logger:      logger,
		DB:          db,
		SyncQueue:   syncQueue,
		AccountRepo: repositories.NewAccountRepository(),
		MaxBatch:    cfg.MaxSyncBatch,
	})

	scheduler := services.NewScheduler(ctx, logger, locker.NewRedisLocker(redisClient), cfg.LockTTL)
	if err := scheduler.Register("transaction_flush", cfg.FlushInterval, flushService.Tick); err != nil {
		logger.Fatal("failed_to_register_flush_scheduler", zap.Error(err))
	}
	if err := scheduler.Register("balance_sync", cfg.SyncInterval, syncService.Tick); err != nil {
		logger.Fatal("failed_to_register_sync_scheduler", zap.Error(err))
	}
	// Dead-letter depth is observability only; entries are replayed manually.
	if err := scheduler.Register("dead_letter_depth", 15*time.Second, func(ctx context.Context) error {
		depth, err := deadLetter.Len(ctx)
		if err != nil {
			return err
		}
		observability.DeadLetterDepth.Set(float64(depth))
		return nil
	}); err != nil {
		logger.Fatal("failed_to_register_depth_probe", zap.Error(err))
	}
	stopScheduler := scheduler.Start()

	// Metrics endpoint
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_failed", zap.Error(err))
		}
	}()

	// Handle graceful shutdown on SIGINT or SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	osSignal := <-sigChan
	logger.Info("received_shutdown_signal", zap.String("signal", osSignal.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	cancel()
	stopScheduler()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("service_shutdown_completed")
}
