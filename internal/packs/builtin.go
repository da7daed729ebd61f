// ABOUTME: Tool definitions, handlers and packs that execute in-process.
// ABOUTME: Each tool declares the minimum trust tier required to expose it.

package packs

import (
	"context"
	"encoding/json"

	"github.com/2389/plex-mcp-server/internal/tier"
)

// ToolHandler executes a tool. It receives the tool arguments as JSON and
// returns the rendered reply.
type ToolHandler func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// ToolDefinition describes a tool to the calling agent.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Tier        tier.Tier

	// NoCache keeps the replies of a read tool out of the result cache, for
	// tools reporting live state or writing local files.
	NoCache bool
}

// ReadOnly reports whether the tool only observes server state.
func (d *ToolDefinition) ReadOnly() bool {
	return d.Tier == tier.Read
}

// BuiltinTool is a tool that executes in the server process.
type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a named group of tools, one per functional module.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID for registry lookup.
type builtinEntry struct {
	Tool   *BuiltinTool
	PackID string
}
