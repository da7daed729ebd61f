// ABOUTME: Shared helpers for pack tests: a fake-backed manager and a tool invoker.
// ABOUTME: Replies are decoded into maps so tests can assert on envelope fields.

package builtins

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/plex/plextest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestManager starts a fake Plex server (which also answers plex.tv
// routes) and a manager pointed at it.
func newTestManager(t *testing.T) (*plextest.Server, *plex.Manager) {
	t.Helper()
	fake := plextest.New(t)
	return fake, managerFor(t, fake)
}

// managerFor points a manager at an already configured fake.
func managerFor(t *testing.T, fake *plextest.Server) *plex.Manager {
	t.Helper()
	mgr, err := plex.NewManager(plex.ManagerConfig{
		URL:       fake.URL,
		Token:     plextest.Token,
		PlexTVURL: fake.URL,
		Logger:    testLogger(),
	})
	require.NoError(t, err)
	return mgr
}

func findHandler(pack *packs.BuiltinPack, name string) packs.ToolHandler {
	for _, tool := range pack.Tools {
		if tool.Definition.Name == name {
			return tool.Handler
		}
	}
	return nil
}

// invoke runs a tool and decodes its envelope.
func invoke(t *testing.T, pack *packs.BuiltinPack, name, args string) map[string]any {
	t.Helper()
	handler := findHandler(pack, name)
	require.NotNil(t, handler, "tool %s not in pack %s", name, pack.ID)
	out, err := handler(context.Background(), json.RawMessage(args))
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(out, &env), string(out))
	return env
}

// searchHits answers the server-wide searches with the given items: the
// library search as scored results, the hub search as one hub per run of
// items sharing a type, so both keep the given order.
func searchHits(fake *plextest.Server, items ...map[string]any) {
	results := make([]map[string]any, 0, len(items))
	var hubs []map[string]any
	for _, it := range items {
		results = append(results, map[string]any{"score": 1.0, "Metadata": it})
		typ, _ := it["type"].(string)
		if n := len(hubs); n > 0 && hubs[n-1]["type"] == typ {
			hubs[n-1]["Metadata"] = append(hubs[n-1]["Metadata"].([]map[string]any), it)
			continue
		}
		hubs = append(hubs, map[string]any{"hubIdentifier": typ, "type": typ, "Metadata": []map[string]any{it}})
	}
	fake.Container("GET", "/library/search", map[string]any{"SearchResult": results})
	fake.Container("GET", "/hubs/search", map[string]any{"Hub": hubs})
}
