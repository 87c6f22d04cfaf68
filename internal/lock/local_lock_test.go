package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockAcquireRelease(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	lease, err := l.TryAcquire(ctx, "seat:1", 100*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NotNil(t, lease)
	assert.Equal(t, "seat:1", lease.Key)
	assert.NotEmpty(t, lease.Owner)

	require.NoError(t, l.Release(ctx, lease))

	// Released, so a second acquire succeeds immediately.
	lease2, err := l.TryAcquire(ctx, "seat:1", 100*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, lease2))
}

func TestLocalLockContention(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	lease, err := l.TryAcquire(ctx, "seat:1", 50*time.Millisecond, time.Second)
	require.NoError(t, err)

	// Holder is alive, second caller times out within the wait bound.
	_, err = l.TryAcquire(ctx, "seat:1", 50*time.Millisecond, time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	// A different key is unaffected.
	other, err := l.TryAcquire(ctx, "seat:2", 50*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, other))

	require.NoError(t, l.Release(ctx, lease))
}

func TestLocalLockWaitsForRelease(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	lease, err := l.TryAcquire(ctx, "seat:1", 50*time.Millisecond, time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(80 * time.Millisecond)
		_ = l.Release(ctx, lease)
	}()

	// Wait bound is generous enough to observe the release.
	lease2, err := l.TryAcquire(ctx, "seat:1", 500*time.Millisecond, time.Second)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, lease2))
}

func TestLocalLockExpiredLeaseIsTakeable(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	stale, err := l.TryAcquire(ctx, "seat:1", 50*time.Millisecond, 30*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	// The lease expired, so a new caller takes over.
	fresh, err := l.TryAcquire(ctx, "seat:1", 50*time.Millisecond, time.Second)
	require.NoError(t, err)

	// The stale holder cannot release what it no longer owns.
	assert.ErrorIs(t, l.Release(ctx, stale), ErrNotOwned)
	require.NoError(t, l.Release(ctx, fresh))
}

func TestLocalLockReleaseWrongOwner(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	lease, err := l.TryAcquire(ctx, "seat:1", 50*time.Millisecond, time.Second)
	require.NoError(t, err)

	forged := &Lease{Key: "seat:1", Owner: "not-the-owner"}
	assert.ErrorIs(t, l.Release(ctx, forged), ErrNotOwned)

	require.NoError(t, l.Release(ctx, lease))
}

func TestLocalLockMutualExclusion(t *testing.T) {
	l := NewLocalLock()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := l.TryAcquire(ctx, "seat:9", 2*time.Second, time.Second)
			if err != nil {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			_ = l.Release(ctx, lease)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen, "critical section must never be shared")
}
