// ABOUTME: Integration test for the redis backend against a live server.
// ABOUTME: Skipped unless PLEX_MCP_TEST_REDIS names a reachable address.

package cache

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis(t *testing.T) {
	addr := os.Getenv("PLEX_MCP_TEST_REDIS")
	if addr == "" {
		t.Skip("PLEX_MCP_TEST_REDIS not set")
	}
	ctx := context.Background()

	r := NewRedis(Config{TTL: time.Minute, RedisAddr: addr, Prefix: "plex-mcp-test:"})
	defer r.Close()
	require.NoError(t, r.Ping(ctx))
	require.NoError(t, r.Invalidate(ctx))

	_, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "k", json.RawMessage(`{"status":"success"}`)))
	v, ok, err := r.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"status":"success"}`, string(v))

	require.NoError(t, r.Invalidate(ctx))
	_, ok, err = r.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
