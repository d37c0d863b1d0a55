package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"punishment-bridge/cache"
	"punishment-bridge/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTest(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)

	c := cache.NewWithClient(client, model.RedisConfig{}, zap.NewNop())
	t.Cleanup(func() {
		c.Close()
		mr.Close()
	})
	return c, mr
}

func TestGetSetDelete(t *testing.T) {
	c, _ := setupTest(t)
	ctx := context.Background()

	_, ok := c.Get(ctx, cache.NamespacePlayerThread, "id-1")
	assert.False(t, ok)

	c.Set(ctx, cache.NamespacePlayerThread, "id-1", "thread-123")
	got, ok := c.Get(ctx, cache.NamespacePlayerThread, "id-1")
	assert.True(t, ok)
	assert.Equal(t, "thread-123", got)

	// Namespaces do not bleed into each other.
	_, ok = c.Get(ctx, cache.NamespaceModeratorThread, "id-1")
	assert.False(t, ok)

	c.Delete(ctx, cache.NamespacePlayerThread, "id-1")
	_, ok = c.Get(ctx, cache.NamespacePlayerThread, "id-1")
	assert.False(t, ok)
}

func TestDisabledClientDegrades(t *testing.T) {
	c := cache.Disabled(zap.NewNop())
	ctx := context.Background()

	c.Set(ctx, cache.NamespacePlayerThread, "id-1", "thread-123")
	_, ok := c.Get(ctx, cache.NamespacePlayerThread, "id-1")
	assert.False(t, ok)

	// Locks always admit the caller so workflows proceed unguarded.
	release, ok := c.AcquireLock(ctx, "some-lock", time.Second)
	assert.True(t, ok)
	release()

	// The stats gate is always open without Redis.
	assert.True(t, c.ShouldRefreshStats(ctx, "player:x", time.Minute))
	assert.True(t, c.ShouldRefreshStats(ctx, "player:x", time.Minute))

	c.Enqueue(ctx, cache.Action{Kind: cache.ActionDeleteMessage})
	_, ok = c.Dequeue(ctx)
	assert.False(t, ok)
	assert.Equal(t, 0, c.QueueLen(ctx))
}

func TestLockMutualExclusion(t *testing.T) {
	c, _ := setupTest(t)
	ctx := context.Background()

	release1, ok := c.AcquireLock(ctx, "thread-create:player:x", 0)
	require.True(t, ok)

	_, ok = c.AcquireLock(ctx, "thread-create:player:x", 0)
	assert.False(t, ok)

	// A different key is unaffected.
	release2, ok := c.AcquireLock(ctx, "thread-create:player:y", 0)
	assert.True(t, ok)
	release2()

	release1()
	release3, ok := c.AcquireLock(ctx, "thread-create:player:x", 0)
	assert.True(t, ok)
	release3()
}

func TestLockWaitsForRelease(t *testing.T) {
	c, _ := setupTest(t)
	ctx := context.Background()

	release, ok := c.AcquireLock(ctx, "stats-update:player:x", 0)
	require.True(t, ok)

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := false
	go func() {
		defer wg.Done()
		r, ok := c.AcquireLock(ctx, "stats-update:player:x", 2*time.Second)
		if ok {
			acquired = true
			r()
		}
	}()

	time.Sleep(200 * time.Millisecond)
	release()
	wg.Wait()
	assert.True(t, acquired)
}

func TestShouldRefreshStatsThrottles(t *testing.T) {
	c, mr := setupTest(t)
	ctx := context.Background()

	assert.True(t, c.ShouldRefreshStats(ctx, "player:x", time.Minute))
	assert.False(t, c.ShouldRefreshStats(ctx, "player:x", time.Minute))
	assert.True(t, c.ShouldRefreshStats(ctx, "player:y", time.Minute))

	mr.FastForward(2 * time.Minute)
	assert.True(t, c.ShouldRefreshStats(ctx, "player:x", time.Minute))
}

func TestQueueOrdering(t *testing.T) {
	c, _ := setupTest(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	c.Enqueue(ctx, cache.Action{Kind: cache.ActionDeleteMessage, ChannelID: "c1", MessageID: "m1", QueuedAt: now})
	c.Enqueue(ctx, cache.Action{Kind: cache.ActionDeleteMessage, ChannelID: "c1", MessageID: "m2", QueuedAt: now})
	assert.Equal(t, 2, c.QueueLen(ctx))

	first, ok := c.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "m1", first.MessageID)

	// Requeue puts the action back at the consuming end.
	c.Requeue(ctx, first)
	again, ok := c.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "m1", again.MessageID)

	second, ok := c.Dequeue(ctx)
	require.True(t, ok)
	assert.Equal(t, "m2", second.MessageID)

	_, ok = c.Dequeue(ctx)
	assert.False(t, ok)
}
