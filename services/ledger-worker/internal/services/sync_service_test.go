package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/models"
	"github.com/banksys/balance-ledger/pkg/queue"
	"github.com/banksys/balance-ledger/pkg/views"
	"github.com/banksys/balance-ledger/services/ledger-worker/internal/services"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAccountRepo mirrors the durable replica's last_op_id guard in memory.
type fakeAccountRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]models.Account
	syncCall int
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{rows: make(map[uuid.UUID]models.Account)}
}

func (f *fakeAccountRepo) Create(ctx context.Context, tx pgx.Tx, account models.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[account.ID] = account
	return nil
}

func (f *fakeAccountRepo) FindById(ctx context.Context, db *database.DB, accountID uuid.UUID) (models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.rows[accountID]
	if !ok {
		return models.Account{}, pgx.ErrNoRows
	}
	return account, nil
}

func (f *fakeAccountRepo) SyncBalance(ctx context.Context, db *database.DB, accountID uuid.UUID, balance, opID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCall++
	row := f.rows[accountID]
	if row.LastOpID >= opID {
		return false, nil
	}
	row.ID = accountID
	row.Balance = balance
	row.LastOpID = opID
	f.rows[accountID] = row
	return true, nil
}

func newSyncFixture(repo *fakeAccountRepo, maxBatch int) (*services.SyncService, *queue.MemoryQueue) {
	syncQueue := queue.NewMemoryQueue()
	svc := services.NewSyncService(services.SyncConfig{
		Logger:      zap.NewNop(),
		SyncQueue:   syncQueue,
		AccountRepo: repo,
		MaxBatch:    maxBatch,
	})
	return svc, syncQueue
}

func pushSyncEntries(t *testing.T, q *queue.MemoryQueue, entries ...views.BalanceSyncEntry) {
	t.Helper()
	for _, e := range entries {
		payload, err := e.Encode()
		require.NoError(t, err)
		require.NoError(t, q.Push(context.Background(), payload))
	}
}

func TestSyncTick_DedupesByHighestOpID(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	svc, syncQueue := newSyncFixture(repo, 1000)

	accountID := uuid.New()
	pushSyncEntries(t, syncQueue,
		views.BalanceSyncEntry{AccountID: accountID.String(), OpID: 3, Balance: 500},
		views.BalanceSyncEntry{AccountID: accountID.String(), OpID: 2, Balance: 300},
	)

	require.NoError(t, svc.Tick(ctx))

	row := repo.rows[accountID]
	assert.Equal(t, int64(500), row.Balance)
	assert.Equal(t, int64(3), row.LastOpID)
	assert.Equal(t, 1, repo.syncCall, "stale snapshot should be collapsed before hitting the store")
}

func TestSyncTick_StaleSnapshotAcrossTicksDiscarded(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	svc, syncQueue := newSyncFixture(repo, 1000)

	accountID := uuid.New()
	pushSyncEntries(t, syncQueue, views.BalanceSyncEntry{AccountID: accountID.String(), OpID: 5, Balance: 900})
	require.NoError(t, svc.Tick(ctx))

	// An older snapshot arriving in a later batch must not rewind the row.
	pushSyncEntries(t, syncQueue, views.BalanceSyncEntry{AccountID: accountID.String(), OpID: 4, Balance: 100})
	require.NoError(t, svc.Tick(ctx))

	row := repo.rows[accountID]
	assert.Equal(t, int64(900), row.Balance)
	assert.Equal(t, int64(5), row.LastOpID)
}

func TestSyncTick_ConvergesRegardlessOfOrder(t *testing.T) {
	accountID := uuid.New()
	orders := [][]views.BalanceSyncEntry{
		{
			{AccountID: accountID.String(), OpID: 1, Balance: 100},
			{AccountID: accountID.String(), OpID: 2, Balance: 250},
			{AccountID: accountID.String(), OpID: 3, Balance: 175},
		},
		{
			{AccountID: accountID.String(), OpID: 3, Balance: 175},
			{AccountID: accountID.String(), OpID: 1, Balance: 100},
			{AccountID: accountID.String(), OpID: 2, Balance: 250},
		},
	}

	for _, order := range orders {
		repo := newFakeAccountRepo()
		svc, syncQueue := newSyncFixture(repo, 1000)
		for _, entry := range order {
			pushSyncEntries(t, syncQueue, entry)
			require.NoError(t, svc.Tick(context.Background()))
		}
		row := repo.rows[accountID]
		assert.Equal(t, int64(175), row.Balance)
		assert.Equal(t, int64(3), row.LastOpID)
	}
}

func TestSyncTick_MultipleAccountsInOneBatch(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	svc, syncQueue := newSyncFixture(repo, 1000)

	first, second := uuid.New(), uuid.New()
	pushSyncEntries(t, syncQueue,
		views.BalanceSyncEntry{AccountID: first.String(), OpID: 1, Balance: 100},
		views.BalanceSyncEntry{AccountID: second.String(), OpID: 7, Balance: 4200},
		views.BalanceSyncEntry{AccountID: first.String(), OpID: 2, Balance: 150},
	)

	require.NoError(t, svc.Tick(ctx))

	assert.Equal(t, int64(150), repo.rows[first].Balance)
	assert.Equal(t, int64(2), repo.rows[first].LastOpID)
	assert.Equal(t, int64(4200), repo.rows[second].Balance)
	assert.Equal(t, int64(7), repo.rows[second].LastOpID)
}

func TestSyncTick_MalformedEntryDropped(t *testing.T) {
	ctx := context.Background()
	repo := newFakeAccountRepo()
	svc, syncQueue := newSyncFixture(repo, 1000)

	require.NoError(t, syncQueue.Push(ctx, []byte(`not json`)))
	accountID := uuid.New()
	pushSyncEntries(t, syncQueue, views.BalanceSyncEntry{AccountID: accountID.String(), OpID: 1, Balance: 100})

	require.NoError(t, svc.Tick(ctx))

	assert.Equal(t, int64(100), repo.rows[accountID].Balance)
	n, err := syncQueue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
