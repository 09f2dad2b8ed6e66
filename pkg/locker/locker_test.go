package locker_test

import (
	"context"
	"testing"
	"time"

	"github.com/banksys/balance-ledger/pkg/locker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	l := locker.NewMemoryLocker()

	release, ok, err := l.Acquire(ctx, "scheduler:flush", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// Second runner is refused while the lease is held.
	_, ok, err = l.Acquire(ctx, "scheduler:flush", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Different scheduler name is an independent lease.
	_, ok, err = l.Acquire(ctx, "scheduler:sync", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	release()
	_, ok, err = l.Acquire(ctx, "scheduler:flush", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
