package repositories

import (
	"context"
	"fmt"

	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines the interface for the durable account replica.
type AccountRepository interface {
	// Create inserts a fresh account row (balance 0, lastOpId 0).
	Create(ctx context.Context, tx pgx.Tx, account models.Account) error
	// FindById finds an account by ID; pgx.ErrNoRows when absent.
	FindById(ctx context.Context, db *database.DB, accountID uuid.UUID) (models.Account, error)
	// SyncBalance conditionally advances the durable replica: the update
	// applies only when opID exceeds the stored last_op_id. Returns false
	// when the snapshot was stale and silently discarded.
	SyncBalance(ctx context.Context, db *database.DB, accountID uuid.UUID, balance, opID int64) (bool, error)
}

type AccountRepositoryImpl struct {
}

func NewAccountRepository() AccountRepository {
	return &AccountRepositoryImpl{}
}

func (a AccountRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, account models.Account) error {
	_, err := tx.Exec(ctx, `INSERT INTO accounts (id, balance, last_op_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		account.ID, account.Balance, account.LastOpID, account.CreatedAt, account.UpdatedAt)
	return err
}

func (a AccountRepositoryImpl) FindById(ctx context.Context, db *database.DB, accountID uuid.UUID) (models.Account, error) {
	if accountID == uuid.Nil {
		return models.Account{}, fmt.Errorf("invalid account ID: %s", accountID.String())
	}
	var account models.Account
	err := db.QueryRow(ctx, `SELECT id, balance, last_op_id, created_at, updated_at FROM accounts WHERE id = $1`, accountID).Scan(
		&account.ID, &account.Balance, &account.LastOpID, &account.CreatedAt, &account.UpdatedAt)
	return account, err
}

// SyncBalance is the convergence guard of the reconciliation scheduler: a
// snapshot only lands when its opId is newer than what the row already
// carries, so batches may apply in any order.
func (a AccountRepositoryImpl) SyncBalance(ctx context.Context, db *database.DB, accountID uuid.UUID, balance, opID int64) (bool, error) {
	tag, err := db.Exec(ctx, `UPDATE accounts
		SET balance = $2, last_op_id = $3, updated_at = now()
		WHERE id = $1 AND last_op_id < $3`,
		accountID, balance, opID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
