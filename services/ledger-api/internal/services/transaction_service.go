package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/banksys/balance-ledger/pkg/cache"
	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/ledger"
	"github.com/banksys/balance-ledger/pkg/money"
	"github.com/banksys/balance-ledger/pkg/queue"
	"github.com/banksys/balance-ledger/pkg/repositories"
	qviews "github.com/banksys/balance-ledger/pkg/views"
	"github.com/banksys/balance-ledger/services/ledger-api/configs"
	apiviews "github.com/banksys/balance-ledger/services/ledger-api/internal/views"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TransactionService is the mutation and history surface of the ledger core.
type TransactionService interface {
	Deposit(ctx context.Context, traceID string, accountID uuid.UUID, amount string) (apiviews.MutationResult, error)
	Withdraw(ctx context.Context, traceID string, accountID uuid.UUID, amount string) (apiviews.MutationResult, error)
	History(ctx context.Context, traceID string, accountID uuid.UUID, startDate, endDate string) ([]apiviews.TransactionView, error)
}

type TransactionServiceConfig struct {
	Logger       *zap.Logger
	Cnf          *configs.Config
	DB           *database.DB
	Ledger       ledger.Store
	LogQueue     queue.Queue
	SyncQueue    queue.Queue
	HistoryCache cache.HistoryCache
	AccountRepo  repositories.AccountRepository
	TxRepo       repositories.TransactionRepository
}

type TransactionServiceImpl struct {
	TransactionServiceConfig
}

func NewTransactionService(cfg TransactionServiceConfig) TransactionService {
	return &TransactionServiceImpl{cfg}
}

func (s *TransactionServiceImpl) Deposit(ctx context.Context, traceID string, accountID uuid.UUID, amount string) (apiviews.MutationResult, error) {
	return s.applyMutation(ctx, traceID, accountID, amount, pkg.TransactionDeposit)
}

func (s *TransactionServiceImpl) Withdraw(ctx context.Context, traceID string, accountID uuid.UUID, amount string) (apiviews.MutationResult, error) {
	return s.applyMutation(ctx, traceID, accountID, amount, pkg.TransactionWithdraw)
}

// applyMutation is the single mutation path: validate the amount, run the
// atomic ledger operation (seeding cold accounts from the durable store),
// then enqueue the transaction-log and balance-sync entries fire-and-forget
// and invalidate the history cache. Queue or cache failures never fail the
// caller; the mutation already succeeded against the ledger.
func (s *TransactionServiceImpl) applyMutation(ctx context.Context, traceID string, accountID uuid.UUID, amount string, txType pkg.TransactionType) (apiviews.MutationResult, error) {
	minor, err := money.ParseAmount(amount)
	if err != nil {
		return apiviews.MutationResult{}, pkg.NewAppError(pkg.ErrInvalidAmountCode, "invalid amount", err)
	}
	delta := minor
	if txType == pkg.TransactionWithdraw {
		delta = -minor
	}

	m, err := s.applyDelta(ctx, traceID, accountID, delta)
	if err != nil {
		return apiviews.MutationResult{}, err
	}

	s.enqueue(ctx, traceID, qviews.TransactionLogEntry{
		AccountID: accountID.String(),
		Type:      txType,
		Amount:    minor,
		Balance:   m.Balance,
	}, qviews.BalanceSyncEntry{
		AccountID: accountID.String(),
		OpID:      m.OpID,
		Balance:   m.Balance,
	})

	if err := s.HistoryCache.InvalidateAccount(ctx, accountID.String()); err != nil {
		s.Logger.Warn("history_cache_invalidation_failed",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.AccountId, accountID.String()),
			zap.Error(err))
	}

	s.Logger.Info("mutation_applied",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.AccountId, accountID.String()),
		zap.String("type", string(txType)),
		zap.Int64("amount", minor),
		zap.Int64("balance", m.Balance),
		zap.Int64("op_id", m.OpID))

	return apiviews.MutationResult{
		AccountID: accountID.String(),
		Balance:   money.FormatMinorUnits(m.Balance),
		OpID:      m.OpID,
	}, nil
}

// applyDelta runs the atomic mutation, read-through seeding cold accounts.
func (s *TransactionServiceImpl) applyDelta(ctx context.Context, traceID string, accountID uuid.UUID, delta int64) (ledger.Mutation, error) {
	m, err := s.Ledger.ApplyDelta(ctx, accountID.String(), delta)
	if errors.Is(err, ledger.ErrNotSeeded) {
		account, findErr := s.AccountRepo.FindById(ctx, s.DB, accountID)
		if findErr != nil {
			if errors.Is(findErr, pgx.ErrNoRows) {
				return ledger.Mutation{}, pkg.NewAppError(pkg.ErrAccountNotFoundCode, "account not found", pkg.ErrAccountNotFound)
			}
			return ledger.Mutation{}, pkg.HandleSQLError(traceID, s.Logger, findErr)
		}
		if seedErr := s.Ledger.Seed(ctx, accountID.String(), account.Balance, account.LastOpID); seedErr != nil {
			return ledger.Mutation{}, pkg.NewAppError(pkg.ErrServerCode, "ledger seed failed", seedErr)
		}
		m, err = s.Ledger.ApplyDelta(ctx, accountID.String(), delta)
	}
	if errors.Is(err, pkg.ErrInsufficientFunds) {
		return ledger.Mutation{}, pkg.NewAppError(pkg.ErrInsufficientFundsCode, "insufficient balance", err)
	}
	if err != nil {
		return ledger.Mutation{}, pkg.NewAppError(pkg.ErrServerCode, "ledger mutation failed", err)
	}
	return m, nil
}

// enqueue pushes both queue entries; failures are logged, never surfaced.
func (s *TransactionServiceImpl) enqueue(ctx context.Context, traceID string, logEntry qviews.TransactionLogEntry, syncEntry qviews.BalanceSyncEntry) {
	if payload, err := logEntry.Encode(); err == nil {
		if err := s.LogQueue.Push(ctx, payload); err != nil {
			s.Logger.Error("transaction_log_enqueue_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
		}
	}
	if payload, err := syncEntry.Encode(); err == nil {
		if err := s.SyncQueue.Push(ctx, payload); err != nil {
			s.Logger.Error("balance_sync_enqueue_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
		}
	}
}

const dateLayout = "2006-01-02"

func (s *TransactionServiceImpl) History(ctx context.Context, traceID string, accountID uuid.UUID, startDate, endDate string) ([]apiviews.TransactionView, error) {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid start date", err)
	}
	end, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, pkg.NewAppError(pkg.ErrInvalidInputCode, "invalid end date", err)
	}
	// The end date is inclusive: cover the whole day.
	end = end.Add(24*time.Hour - time.Nanosecond)

	key := cache.HistoryKey(accountID.String(), startDate, endDate)
	if cached, ok, err := s.HistoryCache.Get(ctx, key); err == nil && ok {
		var result []apiviews.TransactionView
		if err := json.Unmarshal(cached, &result); err == nil {
			return result, nil
		}
	} else if err != nil {
		s.Logger.Warn("history_cache_read_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
	}

	records, err := s.TxRepo.FindByAccountAndRange(ctx, s.DB, accountID, start, end)
	if err != nil {
		return nil, pkg.HandleSQLError(traceID, s.Logger, err)
	}

	result := make([]apiviews.TransactionView, 0, len(records))
	for _, r := range records {
		result = append(result, apiviews.TransactionView{
			ID:        r.ID,
			Type:      string(r.Type),
			Amount:    money.FormatMinorUnits(r.Amount),
			Balance:   money.FormatMinorUnits(r.Balance),
			CreatedAt: r.CreatedAt.Format(time.DateTime),
		})
	}

	if len(result) > 0 {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.HistoryCache.Set(ctx, key, payload, s.Cnf.HistoryCacheTTL); err != nil {
				s.Logger.Warn("history_cache_write_failed", zap.String(pkg.TraceId, traceID), zap.Error(err))
			}
		}
	}
	return result, nil
}
