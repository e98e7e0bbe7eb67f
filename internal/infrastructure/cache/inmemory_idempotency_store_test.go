package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdempotencyStore(t *testing.T) *InMemoryIdempotencyStore {
	t.Helper()
	store := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInMemoryIdempotencyStore_MarkProcessed(t *testing.T) {
	store := newTestIdempotencyStore(t)
	ctx := context.Background()

	t.Run("first delivery wins", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "evt-stock-adjusted-001", time.Hour)
		require.NoError(t, err)
		assert.True(t, isNew)
	})

	t.Run("redelivery is flagged as duplicate", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "evt-stock-allocated-002", time.Hour)
		require.NoError(t, err)
		require.True(t, isNew)

		isNew, err = store.MarkProcessed(ctx, "evt-stock-allocated-002", time.Hour)
		require.NoError(t, err)
		assert.False(t, isNew)
	})

	t.Run("expired entry can be processed again", func(t *testing.T) {
		isNew, err := store.MarkProcessed(ctx, "evt-transfer-003", 10*time.Millisecond)
		require.NoError(t, err)
		require.True(t, isNew)

		time.Sleep(20 * time.Millisecond)

		isNew, err = store.MarkProcessed(ctx, "evt-transfer-003", 10*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, isNew)
	})
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := newTestIdempotencyStore(t)
	ctx := context.Background()

	t.Run("unknown event", func(t *testing.T) {
		processed, err := store.IsProcessed(ctx, "evt-never-seen")
		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("recorded event", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "evt-snapshot-taken", time.Hour)
		require.NoError(t, err)

		processed, err := store.IsProcessed(ctx, "evt-snapshot-taken")
		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("expired event reads as unprocessed", func(t *testing.T) {
		_, err := store.MarkProcessed(ctx, "evt-short-ttl", 10*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(20 * time.Millisecond)

		processed, err := store.IsProcessed(ctx, "evt-short-ttl")
		require.NoError(t, err)
		assert.False(t, processed)
	})
}

func TestInMemoryIdempotencyStore_Size(t *testing.T) {
	store := newTestIdempotencyStore(t)
	ctx := context.Background()

	assert.Equal(t, 0, store.Size())

	_, _ = store.MarkProcessed(ctx, "evt-a", time.Hour)
	_, _ = store.MarkProcessed(ctx, "evt-b", time.Hour)
	assert.Equal(t, 2, store.Size())

	// duplicates do not grow the store
	_, _ = store.MarkProcessed(ctx, "evt-a", time.Hour)
	assert.Equal(t, 2, store.Size())
}

func TestInMemoryIdempotencyStore_Cleanup(t *testing.T) {
	store := newTestIdempotencyStore(t)
	ctx := context.Background()

	_, _ = store.MarkProcessed(ctx, "evt-expiring-1", 10*time.Millisecond)
	_, _ = store.MarkProcessed(ctx, "evt-expiring-2", 10*time.Millisecond)
	_, _ = store.MarkProcessed(ctx, "evt-durable", time.Hour)
	require.Equal(t, 3, store.Size())

	time.Sleep(20 * time.Millisecond)
	store.cleanup()

	assert.Equal(t, 1, store.Size())

	processed, err := store.IsProcessed(ctx, "evt-durable")
	require.NoError(t, err)
	assert.True(t, processed)

	processed, err = store.IsProcessed(ctx, "evt-expiring-1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestInMemoryIdempotencyStore_ConcurrentMark(t *testing.T) {
	store := newTestIdempotencyStore(t)
	ctx := context.Background()

	const workers = 100
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		newCount int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			isNew, err := store.MarkProcessed(ctx, "evt-contended", time.Hour)
			if err != nil {
				return
			}
			if isNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, newCount, "one delivery wins, the rest are duplicates")
}

func TestInMemoryIdempotencyStore_ConcurrentDistinctEvents(t *testing.T) {
	store := newTestIdempotencyStore(t)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = store.MarkProcessed(ctx, fmt.Sprintf("evt-%d", n), time.Hour)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, workers, store.Size())
}

func TestInMemoryIdempotencyStore_Close(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "close is idempotent")
}
