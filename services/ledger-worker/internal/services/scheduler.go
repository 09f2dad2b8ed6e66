package services

import (
	"context"
	"fmt"
	"time"

	"github.com/banksys/balance-ledger/pkg/locker"
	"github.com/banksys/balance-ledger/services/ledger-worker/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs named jobs on fixed intervals, each guarded by a
// cluster-wide lease so at most one worker replica executes a given job per
// tick. Queue pops are destructive; two concurrent runners would
// double-process.
type Scheduler struct {
	logger  *zap.Logger
	locker  locker.Locker
	lockTTL time.Duration
	cron    *cron.Cron
	ctx     context.Context
}

func NewScheduler(ctx context.Context, logger *zap.Logger, l locker.Locker, lockTTL time.Duration) *Scheduler {
	return &Scheduler{
		logger:  logger,
		locker:  l,
		lockTTL: lockTTL,
		cron:    cron.New(),
		ctx:     ctx,
	}
}

// Register schedules job under name at the given interval.
func (s *Scheduler) Register(name string, interval time.Duration, job func(ctx context.Context) error) error {
	spec := fmt.Sprintf("@every %s", interval)
	_, err := s.cron.AddFunc(spec, func() {
		s.runOnce(name, job)
	})
	return err
}

func (s *Scheduler) runOnce(name string, job func(ctx context.Context) error) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	release, ok, err := s.locker.Acquire(s.ctx, "scheduler:"+name, s.lockTTL)
	if err != nil {
		s.logger.Error("scheduler_lock_error", zap.String("scheduler", name), zap.Error(err))
		return
	}
	if !ok {
		observability.TicksSkipped.WithLabelValues(name).Inc()
		return
	}
	defer release()

	if err := job(s.ctx); err != nil {
		s.logger.Error("scheduler_tick_failed", zap.String("scheduler", name), zap.Error(err))
	}
}

// Start begins ticking and returns a closer that waits for in-flight jobs.
func (s *Scheduler) Start() func() {
	s.cron.Start()
	s.logger.Info("scheduler_started")
	return func() {
		stopCtx := s.cron.Stop()
		<-stopCtx.Done()
		s.logger.Info("scheduler_stopped")
	}
}
