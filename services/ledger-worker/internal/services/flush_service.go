package services

import (
	"context"
	"time"

	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/models"
	"github.com/banksys/balance-ledger/pkg/queue"
	"github.com/banksys/balance-ledger/pkg/repositories"
	"github.com/banksys/balance-ledger/pkg/views"
	"github.com/banksys/balance-ledger/services/ledger-worker/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransactionFlusher drains the transaction-log queue into the durable
// store, one bounded bulk insert per tick.
type TransactionFlusher interface {
	Tick(ctx context.Context) error
	// Replay moves up to max dead-letter entries back onto the log queue
	// for the next tick to pick up. Invoked manually by an operator; there
	// is no automatic retry.
	Replay(ctx context.Context, max int) (int, error)
}

type FlushConfig struct {
	Logger     *zap.Logger
	DB         *database.DB
	LogQueue   queue.Queue
	DeadLetter queue.Queue
	TxRepo     repositories.TransactionRepository
	MaxBatch   int
}

type FlushService struct {
	FlushConfig
}

func NewFlushService(cfg FlushConfig) *FlushService {
	return &FlushService{cfg}
}

// Tick pops up to MaxBatch entries and bulk-inserts them. Popping is
// destructive: a crash between pop and insert loses the popped entries
// (accepted at-most-once boundary). A failed insert moves every popped
// payload, byte-for-byte, onto the dead-letter list instead.
func (s *FlushService) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		observability.FlushDuration.Observe(time.Since(start).Seconds())
	}()

	payloads, err := s.LogQueue.PopBatch(ctx, s.MaxBatch)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return nil
	}

	now := time.Now()
	records := make([]models.TransactionRecord, 0, len(payloads))
	decoded := make([][]byte, 0, len(payloads))
	for _, payload := range payloads {
		entry, err := views.DecodeTransactionLogEntry(payload)
		if err != nil {
			// Malformed entries go straight to the dead-letter list
			// rather than poisoning the batch.
			s.toDeadLetter(ctx, payload, "decode_error")
			s.Logger.Error("transaction_log_decode_failed", zap.Error(err))
			continue
		}
		accountID, err := uuid.Parse(entry.AccountID)
		if err != nil {
			s.toDeadLetter(ctx, payload, "decode_error")
			continue
		}
		records = append(records, models.TransactionRecord{
			AccountID: accountID,
			Type:      entry.Type,
			Amount:    entry.Amount,
			Balance:   entry.Balance,
			CreatedAt: now,
		})
		decoded = append(decoded, payload)
	}
	if len(records) == 0 {
		return nil
	}

	if err := s.TxRepo.BulkInsert(ctx, s.DB, records); err != nil {
		observability.FlushFailures.Inc()
		s.Logger.Error("transaction_batch_insert_failed",
			zap.Int("batch_size", len(records)),
			zap.Error(err))
		for _, payload := range decoded {
			s.toDeadLetter(ctx, payload, "insert_error")
		}
		return nil // failure is isolated to the pipeline, not propagated
	}

	observability.FlushedRecords.Add(float64(len(records)))
	s.Logger.Info("transaction_batch_flushed", zap.Int("batch_size", len(records)))
	return nil
}

func (s *FlushService) Replay(ctx context.Context, max int) (int, error) {
	payloads, err := s.DeadLetter.PopBatch(ctx, max)
	if err != nil {
		return 0, err
	}
	for _, payload := range payloads {
		if err := s.LogQueue.Push(ctx, payload); err != nil {
			// Put it back so nothing is lost mid-replay.
			_ = s.DeadLetter.Push(ctx, payload)
			return 0, err
		}
	}
	return len(payloads), nil
}

func (s *FlushService) toDeadLetter(ctx context.Context, payload []byte, reason string) {
	if err := s.DeadLetter.Push(ctx, payload); err != nil {
		// Nothing left to do but log: the entry is lost.
		s.Logger.Error("dead_letter_push_failed", zap.Error(err))
		return
	}
	observability.DeadLettered.WithLabelValues(reason).Inc()
}
