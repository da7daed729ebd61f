// ABOUTME: Registers the full tool catalogue with a registry.
// ABOUTME: The registry's tier decides which of these tools become callable.

package builtins

import (
	"log/slog"

	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
)

// Packs returns every tool pack, in catalogue order.
func Packs(mgr *plex.Manager, logger *slog.Logger, defaultUsername string) []*packs.BuiltinPack {
	return []*packs.BuiltinPack{
		LibraryPack(mgr, logger),
		MediaPack(mgr, logger),
		PlaylistPack(mgr, logger),
		CollectionPack(mgr, logger),
		ServerPack(mgr, logger),
		SessionsPack(mgr, logger),
		UserPack(mgr, logger, defaultUsername),
		ClientPack(mgr, logger),
	}
}

// RegisterAll registers every pack with reg and returns how many tools were
// exposed at the registry's tier.
func RegisterAll(reg *packs.Registry, mgr *plex.Manager, logger *slog.Logger, defaultUsername string) int {
	n := 0
	for _, p := range Packs(mgr, logger, defaultUsername) {
		n += reg.RegisterBuiltinPack(p)
	}
	return n
}
