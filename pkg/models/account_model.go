package models

import (
	"time"

	"github.com/google/uuid"
)

// Account maps to table `accounts`. The row is a lagging replica of the
// ledger: Balance/LastOpID only move forward, driven by the reconciliation
// scheduler, and are read back when a cold account seeds the ledger.
type Account struct {
	ID        uuid.UUID
	Balance   int64 // minor units
	LastOpID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
