package services

import (
	"context"

	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/queue"
	"github.com/banksys/balance-ledger/pkg/repositories"
	"github.com/banksys/balance-ledger/pkg/views"
	"github.com/banksys/balance-ledger/services/ledger-worker/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BalanceReconciler drains the balance-sync queue into the durable account
// replica. Convergence does not depend on ordering: snapshots are deduped
// per account by highest opId, and the repository's lastOpId guard discards
// anything stale.
type BalanceReconciler interface {
	Tick(ctx context.Context) error
}

type SyncConfig struct {
	Logger      *zap.Logger
	DB          *database.DB
	SyncQueue   queue.Queue
	AccountRepo repositories.AccountRepository
	MaxBatch    int
}

type SyncService struct {
	SyncConfig
}

func NewSyncService(cfg SyncConfig) *SyncService {
	return &SyncService{cfg}
}

func (s *SyncService) Tick(ctx context.Context) error {
	payloads, err := s.SyncQueue.PopBatch(ctx, s.MaxBatch)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return nil
	}

	// Keep only the highest opId per account. A newer snapshot supersedes
	// older ones, so malformed or dropped entries cost nothing.
	latest := make(map[string]views.BalanceSyncEntry)
	for _, payload := range payloads {
		entry, err := views.DecodeBalanceSyncEntry(payload)
		if err != nil {
			observability.MalformedSyncEntries.Inc()
			s.Logger.Error("balance_sync_decode_failed", zap.Error(err))
			continue
		}
		if existing, ok := latest[entry.AccountID]; !ok || entry.OpID > existing.OpID {
			latest[entry.AccountID] = entry
		}
	}

	for _, entry := range latest {
		accountID, err := uuid.Parse(entry.AccountID)
		if err != nil {
			observability.MalformedSyncEntries.Inc()
			continue
		}
		updated, err := s.AccountRepo.SyncBalance(ctx, s.DB, accountID, entry.Balance, entry.OpID)
		if err != nil {
			// The next snapshot for this account will carry a higher
			// opId and catch the replica up.
			s.Logger.Error("balance_sync_update_failed",
				zap.String("account_id", entry.AccountID),
				zap.Int64("op_id", entry.OpID),
				zap.Error(err))
			continue
		}
		if !updated {
			// Stale snapshot: the replica already carries a newer opId.
			observability.StaleSnapshots.Inc()
			continue
		}
		observability.SyncedAccounts.Inc()
		s.Logger.Info("balance_synced",
			zap.String("account_id", entry.AccountID),
			zap.Int64("balance", entry.Balance),
			zap.Int64("op_id", entry.OpID))
	}
	return nil
}
