// ABOUTME: Tests for cache keys and the memory backend.
// ABOUTME: Validates TTL expiry, size-bounded eviction, invalidation and concurrency safety.

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("media_search", json.RawMessage(`{"query": "alien"}`))
	b := Key("media_search", json.RawMessage(`{"query":"alien"}`))
	c := Key("media_search", json.RawMessage(`{"query":"aliens"}`))
	d := Key("library_list", json.RawMessage(`{"query":"alien"}`))

	assert.Equal(t, a, b, "whitespace must not change the key")
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Contains(t, a, "media_search:")
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(Config{}))

	c := New(Config{TTL: time.Minute})
	require.NotNil(t, c)
	defer c.Close()
	_, ok := c.(*Memory)
	assert.True(t, ok)

	r := New(Config{TTL: time.Minute, RedisAddr: "localhost:6379"})
	_, ok = r.(*Redis)
	assert.True(t, ok)
	_ = r.Close()
}

func TestMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("set then get", func(t *testing.T) {
		c := NewMemory(5*time.Minute, 10)
		defer c.Close()

		_, ok, err := c.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, c.Set(ctx, "k", json.RawMessage(`{"status":"success"}`)))
		v, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"status":"success"}`, string(v))
	})

	t.Run("entries expire after the ttl", func(t *testing.T) {
		c := NewMemory(time.Minute, 10)
		defer c.Close()
		now := time.Unix(1_700_000_000, 0)
		c.now = func() time.Time { return now }

		require.NoError(t, c.Set(ctx, "k", json.RawMessage(`1`)))
		now = now.Add(59 * time.Second)
		_, ok, _ := c.Get(ctx, "k")
		assert.True(t, ok)

		now = now.Add(time.Second)
		_, ok, _ = c.Get(ctx, "k")
		assert.False(t, ok)

		c.runCleanup()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("evicts the oldest entry at capacity", func(t *testing.T) {
		c := NewMemory(time.Hour, 2)
		defer c.Close()

		require.NoError(t, c.Set(ctx, "a", json.RawMessage(`1`)))
		require.NoError(t, c.Set(ctx, "b", json.RawMessage(`2`)))
		require.NoError(t, c.Set(ctx, "a", json.RawMessage(`3`)))
		require.NoError(t, c.Set(ctx, "c", json.RawMessage(`4`)))

		_, ok, _ := c.Get(ctx, "b")
		assert.False(t, ok, "b was oldest after a was refreshed")
		v, ok, _ := c.Get(ctx, "a")
		assert.True(t, ok)
		assert.Equal(t, "3", string(v))
		assert.Equal(t, 2, c.Len())
	})

	t.Run("invalidate drops everything", func(t *testing.T) {
		c := NewMemory(time.Hour, 10)
		defer c.Close()
		require.NoError(t, c.Set(ctx, "a", json.RawMessage(`1`)))
		require.NoError(t, c.Invalidate(ctx))
		assert.Equal(t, 0, c.Len())
		require.NoError(t, c.Set(ctx, "b", json.RawMessage(`2`)))
		assert.Equal(t, 1, c.Len())
	})

	t.Run("close is idempotent", func(t *testing.T) {
		c := NewMemory(time.Hour, 10)
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())
	})

	t.Run("concurrent access", func(t *testing.T) {
		c := NewMemory(time.Hour, 50)
		defer c.Close()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("k%d", i%7)
				_ = c.Set(ctx, key, json.RawMessage(`1`))
				_, _, _ = c.Get(ctx, key)
				if i%5 == 0 {
					_ = c.Invalidate(ctx)
				}
			}(i)
		}
		wg.Wait()
		assert.LessOrEqual(t, c.Len(), 50)
	})
}
