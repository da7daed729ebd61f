// ABOUTME: Shared helpers for packs tests: fake tools and a recording audit log.
// ABOUTME: Keeps registry and router tests free of Plex dependencies.

package packs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/store"
	"github.com/2389/plex-mcp-server/internal/tier"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type echoInput struct {
	Text  string `json:"text" jsonschema:"text to echo"`
	Count int    `json:"count,omitempty" jsonschema:"optional repeat count"`
}

// fakeTool builds a tool that echoes its input in a success envelope and
// counts invocations.
func fakeTool(name string, t tier.Tier, calls *atomic.Int32) *BuiltinTool {
	return &BuiltinTool{
		Definition: &ToolDefinition{
			Name:        name,
			Description: "echo " + name,
			InputSchema: SchemaFor[echoInput](),
			Tier:        t,
		},
		Handler: envelope.Wrap("echoing", func(_ context.Context, input json.RawMessage) (envelope.Envelope, error) {
			if calls != nil {
				calls.Add(1)
			}
			var in echoInput
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, err
			}
			if in.Text == "missing" {
				return nil, envelope.NotFound("No media found matching '%s'", in.Text)
			}
			return envelope.Success(map[string]any{"text": in.Text}), nil
		}),
	}
}

type recordingAudit struct {
	mu    sync.Mutex
	calls []store.ToolCall
}

func (a *recordingAudit) RecordToolCall(_ context.Context, c *store.ToolCall) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, *c)
	return nil
}

func (a *recordingAudit) all() []store.ToolCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]store.ToolCall(nil), a.calls...)
}
