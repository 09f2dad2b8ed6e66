package models

import (
	"time"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/google/uuid"
)

// TransactionRecord maps to table `transactions`. Rows are append-only:
// created in bulk by the flush scheduler, never updated or deleted.
type TransactionRecord struct {
	ID        int64
	AccountID uuid.UUID
	Type      pkg.TransactionType
	Amount    int64 // minor units
	Balance   int64 // balance after the mutation, minor units
	CreatedAt time.Time
}
