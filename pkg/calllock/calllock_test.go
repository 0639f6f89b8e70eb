package calllock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukex/ivrflow/pkg/calllock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_SerializesSameKey(t *testing.T) {
	t.Parallel()

	locker := calllock.New()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		wg      sync.WaitGroup
	)

	for range 20 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			unlock, err := locker.Lock(ctx, "CA1")
			if !assert.NoError(t, err) {
				return
			}
			defer unlock()

			mu.Lock()
			running++
			if running > maxSeen {
				maxSeen = running
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locker.Len())
}

func TestLocker_DifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	locker := calllock.New()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "CA1")
	require.NoError(t, err)

	defer unlockA()

	timeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()

	unlockB, err := locker.Lock(timeout, "CA2")
	require.NoError(t, err)
	unlockB()
}

func TestLocker_ContextCancelled(t *testing.T) {
	t.Parallel()

	locker := calllock.New()

	unlock, err := locker.Lock(context.Background(), "CA1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "CA1")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()

	assert.Equal(t, 0, locker.Len())
}
