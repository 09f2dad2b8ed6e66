package ledger

import (
	"context"
	"sync"

	"github.com/banksys/balance-ledger/pkg"
)

type memoryEntry struct {
	balance int64
	opID    int64
}

// MemoryStore is an in-process Store used by tests and single-process runs.
// A single mutex makes every operation indivisible, mirroring the
// serial-script semantics of the Redis implementation.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*memoryEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) ApplyDelta(ctx context.Context, accountID string, delta int64) (Mutation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.accounts[accountID]
	if !ok {
		return Mutation{}, ErrNotSeeded
	}
	if entry.balance+delta < 0 {
		return Mutation{}, pkg.ErrInsufficientFunds
	}
	entry.balance += delta
	entry.opID++
	return Mutation{Balance: entry.balance, OpID: entry.opID}, nil
}

func (s *MemoryStore) Seed(ctx context.Context, accountID string, balance, opID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[accountID]; ok {
		return nil
	}
	s.accounts[accountID] = &memoryEntry{balance: balance, opID: opID}
	return nil
}

func (s *MemoryStore) Balance(ctx context.Context, accountID string) (Mutation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.accounts[accountID]
	if !ok {
		return Mutation{}, false, nil
	}
	return Mutation{Balance: entry.balance, OpID: entry.opID}, true, nil
}

var _ Store = (*MemoryStore)(nil)
