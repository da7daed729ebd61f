// ABOUTME: Tests for the router: lookup, argument validation, caching and auditing.
// ABOUTME: Uses fake echo tools and the in-memory cache backend.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/plex-mcp-server/internal/cache"
	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/tier"
)

type routerFixture struct {
	router *Router
	reads  atomic.Int32
	writes atomic.Int32
	audit  *recordingAudit
	cache  *cache.Memory
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{audit: &recordingAudit{}, cache: cache.NewMemory(time.Minute, 100)}
	t.Cleanup(func() { f.cache.Close() })

	reg := NewRegistry(testLogger(), tier.Delete)
	reg.RegisterBuiltinPack(&BuiltinPack{
		ID: "builtin:test",
		Tools: []*BuiltinTool{
			fakeTool("echo_read", tier.Read, &f.reads),
			fakeTool("echo_write", tier.Write, &f.writes),
			{
				Definition: &ToolDefinition{Name: "boom", Tier: tier.Write},
				Handler: func(context.Context, json.RawMessage) (json.RawMessage, error) {
					return nil, errors.New("handler exploded")
				},
			},
		},
	})
	f.router = NewRouter(RouterConfig{
		Registry: reg,
		Logger:   testLogger(),
		Cache:    f.cache,
		Audit:    f.audit,
	})
	return f
}

func TestRouterCall(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown tool", func(t *testing.T) {
		f := newRouterFixture(t)
		_, err := f.router.Call(ctx, "nope", nil)
		assert.ErrorIs(t, err, ErrToolNotFound)
		assert.Contains(t, err.Error(), "nope")
		assert.False(t, f.router.HasTool("nope"))
		assert.Nil(t, f.router.GetToolDefinition("nope"))
	})

	t.Run("invalid arguments", func(t *testing.T) {
		f := newRouterFixture(t)
		_, err := f.router.Call(ctx, "echo_read", json.RawMessage(`{"count":3}`))
		assert.ErrorIs(t, err, ErrInvalidArguments)

		_, err = f.router.Call(ctx, "echo_read", json.RawMessage(`{"text":5}`))
		assert.ErrorIs(t, err, ErrInvalidArguments)
		assert.Equal(t, int32(0), f.reads.Load())
	})

	t.Run("success envelope", func(t *testing.T) {
		f := newRouterFixture(t)
		res, err := f.router.Call(ctx, "echo_read", json.RawMessage(`{"text":"hi"}`))
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.JSONEq(t, `{"status":"success","text":"hi"}`, string(res.Output))
	})

	t.Run("domain errors stay inside the envelope", func(t *testing.T) {
		f := newRouterFixture(t)
		res, err := f.router.Call(ctx, "echo_read", json.RawMessage(`{"text":"missing"}`))
		require.NoError(t, err)
		assert.Equal(t, envelope.StatusError, envelope.StatusOf(res.Output))
	})

	t.Run("handler errors become error envelopes", func(t *testing.T) {
		f := newRouterFixture(t)
		res, err := f.router.Call(ctx, "boom", nil)
		require.NoError(t, err)
		status, msg := envelope.Summarize(res.Output)
		assert.Equal(t, envelope.StatusError, status)
		assert.Contains(t, msg, "handler exploded")
	})
}

func TestRouterCache(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture(t)

	_, err := f.router.Call(ctx, "echo_read", json.RawMessage(`{"text":"a"}`))
	require.NoError(t, err)
	res, err := f.router.Call(ctx, "echo_read", json.RawMessage(`{ "text": "a" }`))
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, int32(1), f.reads.Load())

	// failures are not cached
	_, _ = f.router.Call(ctx, "echo_read", json.RawMessage(`{"text":"missing"}`))
	_, _ = f.router.Call(ctx, "echo_read", json.RawMessage(`{"text":"missing"}`))
	assert.Equal(t, int32(3), f.reads.Load())

	// a mutation drops cached reads
	_, err = f.router.Call(ctx, "echo_write", json.RawMessage(`{"text":"w"}`))
	require.NoError(t, err)
	res, err = f.router.Call(ctx, "echo_read", json.RawMessage(`{"text":"a"}`))
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, int32(4), f.reads.Load())
}

func TestRouterAudit(t *testing.T) {
	ctx := WithSessionID(context.Background(), "session-1")
	f := newRouterFixture(t)

	_, err := f.router.Call(ctx, "echo_read", json.RawMessage(`{"text":"r"}`))
	require.NoError(t, err)
	_, err = f.router.Call(ctx, "echo_write", json.RawMessage(`{"text":"w"}`))
	require.NoError(t, err)
	_, err = f.router.Call(ctx, "boom", nil)
	require.NoError(t, err)

	calls := f.audit.all()
	require.Len(t, calls, 2, "read calls are not audited")
	assert.Equal(t, "echo_write", calls[0].Tool)
	assert.Equal(t, "write", calls[0].Tier)
	assert.Equal(t, envelope.StatusSuccess, calls[0].Status)
	assert.Equal(t, "session-1", calls[0].SessionID)
	assert.JSONEq(t, `{"text":"w"}`, string(calls[0].Arguments))
	assert.Equal(t, "boom", calls[1].Tool)
	assert.Equal(t, envelope.StatusError, calls[1].Status)
	assert.JSONEq(t, `{}`, string(calls[1].Arguments))
}

func TestRouterTimeout(t *testing.T) {
	reg := NewRegistry(testLogger(), tier.Read)
	reg.RegisterBuiltinPack(&BuiltinPack{
		ID: "builtin:slow",
		Tools: []*BuiltinTool{{
			Definition: &ToolDefinition{Name: "slow", Tier: tier.Read},
			Handler: envelope.Wrap("waiting", func(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
		}},
	})
	router := NewRouter(RouterConfig{Registry: reg, Logger: testLogger(), Timeout: 20 * time.Millisecond})

	res, err := router.Call(context.Background(), "slow", nil)
	require.NoError(t, err)
	status, msg := envelope.Summarize(res.Output)
	assert.Equal(t, envelope.StatusError, status)
	assert.Contains(t, msg, "Error waiting")
}

type lookupInput struct {
	MediaTitle  string `json:"media_title" jsonschema:"title to look up"`
	LibraryName string `json:"library_name,omitempty" jsonschema:"optional library"`
}

func TestRouterOptionalArguments(t *testing.T) {
	var got []lookupInput
	reg := NewRegistry(testLogger(), tier.Read)
	reg.RegisterBuiltinPack(&BuiltinPack{
		ID: "builtin:lookup",
		Tools: []*BuiltinTool{{
			Definition: &ToolDefinition{Name: "lookup", Tier: tier.Read, InputSchema: SchemaFor[lookupInput]()},
			Handler: envelope.Wrap("looking up", func(_ context.Context, input json.RawMessage) (envelope.Envelope, error) {
				var in lookupInput
				if err := json.Unmarshal(input, &in); err != nil {
					return nil, err
				}
				got = append(got, in)
				return envelope.Success(map[string]any{"title": in.MediaTitle}), nil
			}),
		}},
	})
	router := NewRouter(RouterConfig{Registry: reg, Logger: testLogger()})
	ctx := context.Background()

	assert.NotContains(t, string(SchemaFor[lookupInput]()), "additionalProperties")

	t.Run("null optional argument", func(t *testing.T) {
		res, err := router.Call(ctx, "lookup", json.RawMessage(`{"media_title":"x","library_name":null}`))
		require.NoError(t, err)
		assert.Equal(t, envelope.StatusSuccess, envelope.StatusOf(res.Output))
	})

	t.Run("undeclared keys are ignored", func(t *testing.T) {
		res, err := router.Call(ctx, "lookup", json.RawMessage(`{"media_title":"Alien","extra":1}`))
		require.NoError(t, err)
		assert.Equal(t, envelope.StatusSuccess, envelope.StatusOf(res.Output))
	})

	t.Run("null required argument is still missing", func(t *testing.T) {
		_, err := router.Call(ctx, "lookup", json.RawMessage(`{"media_title":null}`))
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	t.Run("non-object arguments", func(t *testing.T) {
		_, err := router.Call(ctx, "lookup", json.RawMessage(`["Alien"]`))
		assert.ErrorIs(t, err, ErrInvalidArguments)
	})

	require.Len(t, got, 2)
	assert.Equal(t, lookupInput{MediaTitle: "x"}, got[0])
	assert.Equal(t, "Alien", got[1].MediaTitle)
}

func TestRouterNoCache(t *testing.T) {
	var live atomic.Int32
	c := cache.NewMemory(time.Minute, 100)
	t.Cleanup(func() { c.Close() })

	tool := fakeTool("live_state", tier.Read, &live)
	tool.Definition.NoCache = true
	reg := NewRegistry(testLogger(), tier.Read)
	reg.RegisterBuiltinPack(&BuiltinPack{ID: "builtin:live", Tools: []*BuiltinTool{tool}})
	router := NewRouter(RouterConfig{Registry: reg, Logger: testLogger(), Cache: c})

	for range 3 {
		res, err := router.Call(context.Background(), "live_state", json.RawMessage(`{"text":"now"}`))
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.Equal(t, int32(3), live.Load())
}
