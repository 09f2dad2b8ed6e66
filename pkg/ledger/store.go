// Package ledger holds the authoritative in-memory balance store. Each
// account is a (balance, opId) pair; every mutation runs as one indivisible
// store-side operation, which is the only synchronization point for
// concurrent deposits and withdrawals.
package ledger

import (
	"context"
	"errors"
)

// ErrNotSeeded is returned by ApplyDelta when the account has no ledger
// entry yet. The caller is expected to seed from the durable store and
// retry; it is distinct from an account that does not exist at all.
var ErrNotSeeded = errors.New("account not seeded in ledger")

// Mutation is the result of a successful ApplyDelta: the new balance in
// minor units and the opId assigned atomically with it.
type Mutation struct {
	Balance int64
	OpID    int64
}

// Store is the ledger contract. Implementations must guarantee that
// ApplyDelta is linearizable per account: the balance check, the write and
// the opId increment happen as one atomic unit.
type Store interface {
	// ApplyDelta applies a signed delta (positive deposit, negative
	// withdraw). It fails with pkg.ErrInsufficientFunds when the result
	// would be negative, leaving balance and opId untouched, and with
	// ErrNotSeeded when the account is cold.
	ApplyDelta(ctx context.Context, accountID string, delta int64) (Mutation, error)

	// Seed installs (balance, opId) for a cold account. It is a no-op when
	// the account already has a ledger entry, so a stale durable snapshot
	// can never overwrite live state.
	Seed(ctx context.Context, accountID string, balance, opID int64) error

	// Balance returns the current ledger state; ok is false when the
	// account is cold.
	Balance(ctx context.Context, accountID string) (Mutation, bool, error)
}
