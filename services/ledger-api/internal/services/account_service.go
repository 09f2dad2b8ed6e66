package services

import (
	"context"
	"errors"
	"time"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/ledger"
	"github.com/banksys/balance-ledger/pkg/models"
	"github.com/banksys/balance-ledger/pkg/repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type AccountService interface {
	// Register creates a fresh account with balance 0 and opId 0.
	Register(ctx context.Context, traceID string) (uuid.UUID, error)
	// GetBalance reads the ledger first and falls back to the durable
	// store for cold accounts, seeding the ledger on the way back.
	GetBalance(ctx context.Context, traceID string, accountID uuid.UUID) (int64, error)
}

type AccountServiceConfig struct {
	Logger      *zap.Logger
	DB          *database.DB
	AccountRepo repositories.AccountRepository
	Ledger      ledger.Store
}

type AccountServiceImpl struct {
	AccountServiceConfig
}

func NewAccountService(cfg AccountServiceConfig) AccountService {
	return &AccountServiceImpl{cfg}
}

func (s *AccountServiceImpl) Register(ctx context.Context, traceID string) (uuid.UUID, error) {
	now := time.Now()
	account := models.Account{
		ID:        uuid.New(),
		Balance:   0,
		LastOpID:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.DB.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.AccountRepo.Create(ctx, tx, account)
	})
	if err != nil {
		return uuid.Nil, pkg.HandleSQLError(traceID, s.Logger, err)
	}

	// Warm the ledger so the first mutation needs no read-through.
	if err := s.Ledger.Seed(ctx, account.ID.String(), 0, 0); err != nil {
		s.Logger.Warn("ledger_seed_failed_on_register",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.AccountId, account.ID.String()),
			zap.Error(err))
	}

	s.Logger.Info("account_registered",
		zap.String(pkg.TraceId, traceID),
		zap.String(pkg.AccountId, account.ID.String()))
	return account.ID, nil
}

func (s *AccountServiceImpl) GetBalance(ctx context.Context, traceID string, accountID uuid.UUID) (int64, error) {
	m, ok, err := s.Ledger.Balance(ctx, accountID.String())
	if err != nil {
		return 0, pkg.NewAppError(pkg.ErrServerCode, "ledger read failed", err)
	}
	if ok {
		return m.Balance, nil
	}

	// Cold account: fall back to the durable replica and seed the ledger.
	account, err := s.AccountRepo.FindById(ctx, s.DB, accountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, pkg.NewAppError(pkg.ErrAccountNotFoundCode, "account not found", pkg.ErrAccountNotFound)
		}
		return 0, pkg.HandleSQLError(traceID, s.Logger, err)
	}
	if err := s.Ledger.Seed(ctx, accountID.String(), account.Balance, account.LastOpID); err != nil {
		s.Logger.Warn("ledger_seed_failed_on_read",
			zap.String(pkg.TraceId, traceID),
			zap.String(pkg.AccountId, accountID.String()),
			zap.Error(err))
	}
	return account.Balance, nil
}
