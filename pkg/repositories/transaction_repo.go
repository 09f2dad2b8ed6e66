package repositories

import (
	"context"
	"time"

	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepository persists and queries the immutable transaction log.
type TransactionRepository interface {
	// BulkInsert writes a whole flush batch in one round trip.
	BulkInsert(ctx context.Context, db *database.DB, records []models.TransactionRecord) error
	// FindByAccountAndRange returns records inside [start, end], newest first.
	FindByAccountAndRange(ctx context.Context, db *database.DB, accountID uuid.UUID, start, end time.Time) ([]models.TransactionRecord, error)
}

type TransactionRepositoryImpl struct {
}

func NewTransactionRepository() TransactionRepository {
	return &TransactionRepositoryImpl{}
}

func (t TransactionRepositoryImpl) BulkInsert(ctx context.Context, db *database.DB, records []models.TransactionRecord) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{r.AccountID, string(r.Type), r.Amount, r.Balance, r.CreatedAt})
	}
	_, err := db.CopyFrom(ctx,
		pgx.Identifier{"transactions"},
		[]string{"account_id", "type", "amount", "balance", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (t TransactionRepositoryImpl) FindByAccountAndRange(ctx context.Context, db *database.DB, accountID uuid.UUID, start, end time.Time) ([]models.TransactionRecord, error) {
	rows, err := db.Query(ctx, `SELECT id, account_id, type, amount, balance, created_at
		FROM transactions
		WHERE account_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC`,
		accountID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		var r models.TransactionRecord
		if err = rows.Scan(&r.ID, &r.AccountID, &r.Type, &r.Amount, &r.Balance, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
