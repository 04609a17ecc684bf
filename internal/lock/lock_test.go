package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("second acquire fails until release", func(t *testing.T) {
		l := NewMemoryLocker()

		ok, err := l.Acquire(ctx, "contribution:m1:100", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = l.Acquire(ctx, "contribution:m1:100", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, l.Release(ctx, "contribution:m1:100"))

		ok, err = l.Acquire(ctx, "contribution:m1:100", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("reservation expires", func(t *testing.T) {
		l := NewMemoryLocker()
		now := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
		l.now = func() time.Time { return now }

		ok, _ := l.Acquire(ctx, "k", time.Minute)
		assert.True(t, ok)

		now = now.Add(2 * time.Minute)
		ok, _ = l.Acquire(ctx, "k", time.Minute)
		assert.True(t, ok, "expired reservation should be reclaimable")
	})

	t.Run("exactly one concurrent winner", func(t *testing.T) {
		l := NewMemoryLocker()
		var winners int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := l.Acquire(ctx, "shared", time.Minute); ok {
					atomic.AddInt32(&winners, 1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners)
	})
}

// TestRedisLocker runs against a real Redis when AJO_TEST_REDIS_ADDR is set.
func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("AJO_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AJO_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	l := NewRedisLockerWithClient(client, "ajo:test:"+uuid.NewString()+":")
	defer l.Close()

	ok, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "k"))
	ok, err = l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx, "k"))
}
