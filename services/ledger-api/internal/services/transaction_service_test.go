package services_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/banksys/balance-ledger/pkg"
	"github.com/banksys/balance-ledger/pkg/database"
	"github.com/banksys/balance-ledger/pkg/ledger"
	"github.com/banksys/balance-ledger/pkg/models"
	"github.com/banksys/balance-ledger/pkg/queue"
	qviews "github.com/banksys/balance-ledger/pkg/views"
	"github.com/banksys/balance-ledger/services/ledger-api/configs"
	"github.com/banksys/balance-ledger/services/ledger-api/internal/services"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeAccountRepo is an in-memory durable replica for service tests.
type fakeAccountRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]models.Account
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

// fakeTxRepo serves canned history rows and records nothing durable.
type fakeTxRepo struct {
	records []models.TransactionRecord
	queries int
}

func (f *fakeTxRepo) BulkInsert(ctx context.Context, db *database.DB, records []models.TransactionRecord) error {
	return nil
}

func (f *fakeTxRepo) FindByAccountAndRange(ctx context.Context, db *database.DB, accountID uuid.UUID, start, end time.Time) ([]models.TransactionRecord, error) {
	f.queries++
	out := make([]models.TransactionRecord, 0)
	for _, r := range f.records {
		if r.AccountID == accountID && !r.CreatedAt.Before(start) && !r.CreatedAt.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeHistoryCache is a map-backed cache that records invalidations.
type fakeHistoryCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newFakeHistoryCache() *fakeHistoryCache {
	return &fakeHistoryCache{entries: make(map[string][]byte)}
}

func (f *fakeHistoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.entries[key]
	return value, ok, nil
}

func (f *fakeHistoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func (f *fakeHistoryCache) InvalidateAccount(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, accountID)
	f.entries = make(map[string][]byte)
	return nil
}

type txFixture struct {
	svc          services.TransactionService
	store        *ledger.MemoryStore
	logQueue     *queue.MemoryQueue
	syncQueue    *queue.MemoryQueue
	historyCache *fakeHistoryCache
	accountRepo  *fakeAccountRepo
	txRepo       *fakeTxRepo
}

func newTxFixture() *txFixture {
	f := &txFixture{
		store:        ledger.NewMemoryStore(),
		logQueue:     queue.NewMemoryQueue(),
		syncQueue:    queue.NewMemoryQueue(),
		historyCache: newFakeHistoryCache(),
		accountRepo:  newFakeAccountRepo(),
		txRepo:       &fakeTxRepo{},
	}
	f.svc = services.NewTransactionService(services.TransactionServiceConfig{
		Logger:       zap.NewNop(),
		Cnf:          &configs.Config{HistoryCacheTTL: time.Hour},
		Ledger:       f.store,
		LogQueue:     f.logQueue,
		SyncQueue:    f.syncQueue,
		HistoryCache: f.historyCache,
		AccountRepo:  f.accountRepo,
		TxRepo:       f.txRepo,
	})
	return f
}

func appErrorCode(t *testing.T, err error) pkg.ErrorCode {
	t.Helper()
	var appErr pkg.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestDepositThenOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()
	accountID := uuid.New()
	require.NoError(t, f.store.Seed(ctx, accountID.String(), 0, 0))

	result, err := f.svc.Deposit(ctx, "trace-1", accountID, "15.00")
	require.NoError(t, err)
	assert.Equal(t, "15.00", result.Balance)
	assert.Equal(t, int64(1), result.OpID)

	// Overdraw is rejected synchronously; balance and opId stay put.
	_, err = f.svc.Withdraw(ctx, "trace-2", accountID, "20.00")
	require.Error(t, err)
	assert.Equal(t, pkg.ErrInsufficientFundsCode, appErrorCode(t, err))
	assert.ErrorIs(t, err, pkg.ErrInsufficientFunds)

	m, ok, err := f.store.Balance(ctx, accountID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1500), m.Balance)
	assert.Equal(t, int64(1), m.OpID)

	// Only the successful deposit reached the queues.
	n, err := f.logQueue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = f.syncQueue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMutationEnqueuesBothEntries(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()
	accountID := uuid.New()
	require.NoError(t, f.store.Seed(ctx, accountID.String(), 0, 0))

	_, err := f.svc.Deposit(ctx, "trace-1", accountID, "12.34")
	require.NoError(t, err)

	logPayloads, err := f.logQueue.PopBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logPayloads, 1)
	logEntry, err := qviews.DecodeTransactionLogEntry(logPayloads[0])
	require.NoError(t, err)
	assert.Equal(t, accountID.String(), logEntry.AccountID)
	assert.Equal(t, pkg.TransactionDeposit, logEntry.Type)
	assert.Equal(t, int64(1234), logEntry.Amount)
	assert.Equal(t, int64(1234), logEntry.Balance)

	syncPayloads, err := f.syncQueue.PopBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, syncPayloads, 1)
	syncEntry, err := qviews.DecodeBalanceSyncEntry(syncPayloads[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1), syncEntry.OpID)
	assert.Equal(t, int64(1234), syncEntry.Balance)

	assert.Equal(t, []string{accountID.String()}, f.historyCache.invalidated)
}

func TestMutationRejectsInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()
	accountID := uuid.New()
	require.NoError(t, f.store.Seed(ctx, accountID.String(), 0, 0))

	for _, amount := range []string{"12.345", "0", "-5", "abc", ""} {
		_, err := f.svc.Deposit(ctx, "trace-1", accountID, amount)
		require.Error(t, err, "amount %q", amount)
		assert.Equal(t, pkg.ErrInvalidAmountCode, appErrorCode(t, err))
	}

	// Nothing was enqueued and the ledger never moved.
	n, err := f.logQueue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	m, ok, err := f.store.Balance(ctx, accountID.String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Zero(t, m.OpID)
}

func TestMutationSeedsColdAccountFromDurableStore(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()
	accountID := uuid.New()
	f.accountRepo.rows[accountID] = models.Account{ID: accountID, Balance: 777, LastOpID: 4}

	// The ledger is cold; the mutation reads through, seeds, and retries.
	result, err := f.svc.Withdraw(ctx, "trace-1", accountID, "7.00")
	require.NoError(t, err)
	assert.Equal(t, "0.77", result.Balance)
	assert.Equal(t, int64(5), result.OpID)
}

func TestMutationUnknownAccount(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()

	_, err := f.svc.Deposit(ctx, "trace-1", uuid.New(), "1.00")
	require.Error(t, err)
	assert.Equal(t, pkg.ErrAccountNotFoundCode, appErrorCode(t, err))
}

func TestHistoryQueriesThenCaches(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()
	accountID := uuid.New()
	created, _ := time.Parse("2006-01-02", "2026-03-10")
	f.txRepo.records = []models.TransactionRecord{
		{ID: 1, AccountID: accountID, Type: pkg.TransactionDeposit, Amount: 1500, Balance: 1500, CreatedAt: created},
	}

	first, err := f.svc.History(ctx, "trace-1", accountID, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "15.00", first[0].Amount)
	assert.Equal(t, "deposit", first[0].Type)
	assert.Equal(t, 1, f.txRepo.queries)

	// The second read is served from cache without touching the store.
	second, err := f.svc.History(ctx, "trace-2", accountID, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.txRepo.queries)
}

func TestHistoryEndDateIsInclusive(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()
	accountID := uuid.New()
	endOfDay, _ := time.Parse(time.RFC3339, "2026-03-31T23:59:00Z")
	f.txRepo.records = []models.TransactionRecord{
		{ID: 1, AccountID: accountID, Type: pkg.TransactionDeposit, Amount: 100, Balance: 100, CreatedAt: endOfDay},
	}

	result, err := f.svc.History(ctx, "trace-1", accountID, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

func TestHistoryRejectsBadDates(t *testing.T) {
	f := newTxFixture()
	_, err := f.svc.History(context.Background(), "trace-1", uuid.New(), "03/01/2026", "2026-03-31")
	require.Error(t, err)
	assert.Equal(t, pkg.ErrInvalidInputCode, appErrorCode(t, err))
}

func TestHistoryCachePayloadRoundTrips(t *testing.T) {
	ctx := context.Background()
	f := newTxFixture()
	accountID := uuid.New()
	created, _ := time.Parse("2006-01-02", "2026-03-10")
	f.txRepo.records = []models.TransactionRecord{
		{ID: 1, AccountID: accountID, Type: pkg.TransactionWithdraw, Amount: 250, Balance: 750, CreatedAt: created},
	}

	result, err := f.svc.History(ctx, "trace-1", accountID, "2026-03-01", "2026-03-31")
	require.NoError(t, err)

	f.historyCache.mu.Lock()
	require.Len(t, f.historyCache.entries, 1)
	var cached []byte
	for _, v := range f.historyCache.entries {
		cached = v
	}
	f.historyCache.mu.Unlock()

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(cached, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "2.50", decoded[0]["amount"])
	assert.Equal(t, result[0].Balance, decoded[0]["balance"])
}
