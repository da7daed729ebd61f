// ABOUTME: Thread-safe registry of builtin tool packs, filtered by trust tier.
// ABOUTME: Duplicate names replace the earlier entry in place; listing keeps registration order.

package packs

import (
	"log/slog"
	"sync"

	"github.com/2389/plex-mcp-server/internal/tier"
)

// Registry is the dispatch surface: a name-keyed table of the tools exposed
// at the configured tier.
type Registry struct {
	mu       sync.RWMutex
	tier     tier.Tier
	order    []string                 // registration order of tool names
	builtins map[string]*builtinEntry // builtin tool name -> builtin entry
	logger   *slog.Logger
}

// NewRegistry creates a Registry exposing tools allowed at the configured tier.
func NewRegistry(logger *slog.Logger, configured tier.Tier) *Registry {
	return &Registry{
		tier:     configured,
		builtins: make(map[string]*builtinEntry),
		logger:   logger,
	}
}

// Tier returns the configured tier.
func (r *Registry) Tier() tier.Tier {
	return r.tier
}

// RegisterBuiltinPack adds every tool of the pack whose required tier is
// allowed by the configured tier and returns how many were added. A name that
// is already registered is replaced in place without error.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	skipped := 0
	for _, tool := range pack.Tools {
		def := tool.Definition
		if !r.tier.Allows(def.Tier) {
			skipped++
			continue
		}
		if prev, exists := r.builtins[def.Name]; exists {
			r.logger.Warn("tool re-registered, replacing previous entry",
				"tool_name", def.Name,
				"previous_pack", prev.PackID,
				"pack_id", pack.ID,
			)
		} else {
			r.order = append(r.order, def.Name)
		}
		r.builtins[def.Name] = &builtinEntry{Tool: tool, PackID: pack.ID}
		added++
	}

	r.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", added,
		"filtered_out", skipped,
		"tier", r.tier.String(),
	)

	return added
}

// GetBuiltinTool returns a builtin tool by name, or nil if not found.
func (r *Registry) GetBuiltinTool(name string) *BuiltinTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.builtins[name]; ok {
		return entry.Tool
	}
	return nil
}

// IsBuiltin returns true if the tool name is registered.
func (r *Registry) IsBuiltin(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builtins[name]
	return ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []*BuiltinTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*BuiltinTool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.builtins[name].Tool)
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// BuiltinPackInfo contains information about a registered builtin pack for display.
type BuiltinPackInfo struct {
	ID    string
	Tools []*BuiltinTool
}

// ListBuiltinPacks returns the registered packs in the order their first tool
// was registered.
func (r *Registry) ListBuiltinPacks() []BuiltinPackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index := make(map[string]int)
	var result []BuiltinPackInfo
	for _, name := range r.order {
		entry := r.builtins[name]
		i, ok := index[entry.PackID]
		if !ok {
			i = len(result)
			index[entry.PackID] = i
			result = append(result, BuiltinPackInfo{ID: entry.PackID})
		}
		result[i].Tools = append(result[i].Tools, entry.Tool)
	}
	return result
}

// Close clears the registry. This should be called during graceful shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.builtins)
	r.order = nil
	r.builtins = make(map[string]*builtinEntry)

	r.logger.Info("registry closed", "builtins_cleared", count)
}
