// ABOUTME: Tests for the connection manager: lazy probe, staleness and retry after failure.
// ABOUTME: Uses the plextest fake server and an injectable clock.

package plex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/plex-mcp-server/internal/plex/plextest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, endpoint, token string, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{URL: endpoint, Token: token, Now: clock.Now})
	require.NoError(t, err)
	return m
}

func probes(fake *plextest.Server) int {
	return fake.Count(http.MethodGet, "/library/sections")
}

func TestNewManagerRequiresURLAndToken(t *testing.T) {
	_, err := NewManager(ManagerConfig{Token: "x"})
	assert.Error(t, err)

	_, err = NewManager(ManagerConfig{URL: "http://localhost:32400"})
	assert.Error(t, err)
}

func TestAcquire(t *testing.T) {
	ctx := context.Background()

	t.Run("probes lazily and reuses the handle within the window", func(t *testing.T) {
		fake := plextest.New(t)
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		m := newTestManager(t, fake.URL, plextest.Token, clock)

		assert.Equal(t, 0, probes(fake), "no traffic before first acquire")

		first, err := m.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, plextest.MachineID, first.MachineIdentifier())
		assert.Equal(t, "Fake Plex", first.Identity().FriendlyName)

		for i := 0; i < 5; i++ {
			clock.Advance(5 * time.Minute)
			srv, err := m.Acquire(ctx)
			require.NoError(t, err)
			assert.Same(t, first, srv)
		}
		assert.Equal(t, 1, fake.Count(http.MethodGet, "/"))
		assert.Equal(t, 1, probes(fake))
	})

	t.Run("exactly at the threshold the handle is still fresh", func(t *testing.T) {
		fake := plextest.New(t)
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		m := newTestManager(t, fake.URL, plextest.Token, clock)

		_, err := m.Acquire(ctx)
		require.NoError(t, err)
		clock.Advance(StaleAfter)
		_, err = m.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, probes(fake))
	})

	t.Run("re-establishes exactly once after the window elapses", func(t *testing.T) {
		fake := plextest.New(t)
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		m := newTestManager(t, fake.URL, plextest.Token, clock)

		first, err := m.Acquire(ctx)
		require.NoError(t, err)

		clock.Advance(StaleAfter + time.Second)
		second, err := m.Acquire(ctx)
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		assert.Equal(t, 2, probes(fake))

		third, err := m.Acquire(ctx)
		require.NoError(t, err)
		assert.Same(t, second, third)
		assert.Equal(t, 2, probes(fake))
	})

	t.Run("failed probe leaves no handle and the next call retries", func(t *testing.T) {
		fake := plextest.New(t)
		fake.Status(http.MethodGet, "/library/sections", http.StatusInternalServerError)
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		m := newTestManager(t, fake.URL, plextest.Token, clock)

		srv, err := m.Acquire(ctx)
		require.Error(t, err)
		assert.Nil(t, srv)

		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Equal(t, fake.URL, connErr.Endpoint)
		assert.Contains(t, err.Error(), "failed to connect to Plex server at "+fake.URL)

		m.mu.Lock()
		assert.Nil(t, m.server)
		assert.True(t, m.lastConnect.IsZero())
		m.mu.Unlock()

		fake.Sections(map[string]any{"key": "1", "type": "movie", "title": "Movies"})
		srv, err = m.Acquire(ctx)
		require.NoError(t, err)
		assert.NotNil(t, srv)
		assert.Equal(t, 2, probes(fake))
	})

	t.Run("rejected token is a connection error", func(t *testing.T) {
		fake := plextest.New(t)
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		m := newTestManager(t, fake.URL, "wrong-token", clock)

		_, err := m.Acquire(ctx)
		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	})

	t.Run("unreachable endpoint mentions the endpoint", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		endpoint := dead.URL
		dead.Close()

		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		m := newTestManager(t, endpoint, plextest.Token, clock)

		_, err := m.Acquire(ctx)
		var connErr *ConnectionError
		require.True(t, errors.As(err, &connErr))
		assert.Contains(t, err.Error(), endpoint)
	})

	t.Run("concurrent acquires all receive a handle", func(t *testing.T) {
		fake := plextest.New(t)
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		m := newTestManager(t, fake.URL, plextest.Token, clock)

		var wg sync.WaitGroup
		results := make([]*Server, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				srv, err := m.Acquire(ctx)
				assert.NoError(t, err)
				results[i] = srv
			}(i)
		}
		wg.Wait()

		for _, srv := range results {
			assert.NotNil(t, srv)
		}
		assert.GreaterOrEqual(t, probes(fake), 1)
		assert.LessOrEqual(t, probes(fake), len(results))
	})
}
