package migrator

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T, ctx context.Context) (*Lock, *Lock) {
	t.Helper()

	mig, _ := newTestMigrator(t, ctx, nil)
	require.NoError(t, mig.Bootstrap(ctx))

	logger := slog.New(slog.DiscardHandler)

	return NewLock(mig.db, testTables.Lock, logger),
		NewLock(mig.db, testTables.Lock, logger)
}

func TestLockAcquireRelease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l1, l2 := newTestLock(t, ctx)
	assert.NotEqual(t, l1.Owner(), l2.Owner())

	require.NoError(t, l1.Acquire(ctx, 0, 0))
	assert.True(t, l1.Held())

	require.NoError(t, l1.Release(ctx))
	assert.False(t, l1.Held())

	// Releasing an already-released lock is a no-op.
	require.NoError(t, l1.Release(ctx))

	// The lock can be taken again by a different handle.
	require.NoError(t, l2.Acquire(ctx, 0, 0))
	require.NoError(t, l2.Release(ctx))
}

func TestLockContention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l1, l2 := newTestLock(t, ctx)

	require.NoError(t, l1.Acquire(ctx, 0, 0))

	err := l2.Acquire(ctx, 30*time.Millisecond, 10*time.Millisecond)
	var lterr LockTimeoutError
	require.ErrorAs(t, err, &lterr)
	assert.Equal(t, 30*time.Millisecond, lterr.Timeout)
	assert.False(t, l2.Held())

	// A foreign release does not remove the holder's row.
	require.NoError(t, l2.Release(ctx))
	err = l2.Acquire(ctx, 0, 10*time.Millisecond)
	require.ErrorAs(t, err, &lterr)

	// Once the holder releases, the waiter succeeds within its timeout.
	require.NoError(t, l1.Release(ctx))
	require.NoError(t, l2.Acquire(ctx, time.Second, 10*time.Millisecond))
	assert.True(t, l2.Held())
}

func TestLockAcquireNegativeTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l1, l2 := newTestLock(t, ctx)

	require.NoError(t, l1.Acquire(ctx, 0, 0))

	// A negative timeout behaves like zero: one attempt, no poll loop.
	start := time.Now()
	err := l2.Acquire(ctx, -time.Hour, 10*time.Millisecond)
	var lterr LockTimeoutError
	require.ErrorAs(t, err, &lterr)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, l2.Held())
}

func TestLockBreak(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	l1, l2 := newTestLock(t, ctx)

	require.NoError(t, l1.Acquire(ctx, 0, 0))

	// Break removes the row regardless of owner.
	require.NoError(t, l2.Break(ctx))
	require.NoError(t, l2.Acquire(ctx, 0, 0))
	assert.True(t, l2.Held())
}
