// ABOUTME: Library pack: list sections, statistics, contents, refresh, scan and empty trash.
// ABOUTME: Counts use zero-size container queries so large libraries are not fetched.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// LibraryPack creates the library pack.
func LibraryPack(mgr *plex.Manager, logger *slog.Logger) *packs.BuiltinPack {
	h := &libraryHandlers{mgr: mgr, logger: logger}
	return &packs.BuiltinPack{
		ID: "builtin:library",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "library_list",
					Description: "List all libraries on the Plex server",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("listing libraries", h.List),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "library_get_stats",
					Description: "Get item counts for every library",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting library stats", h.Stats),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "library_get_details",
					Description: "Get details about one library",
					InputSchema: packs.SchemaFor[libraryNameInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting library details", h.Details),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "library_get_recently_added",
					Description: "List recently added media, optionally for one library",
					InputSchema: packs.SchemaFor[recentlyAddedInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting recently added media", h.RecentlyAdded),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "library_get_contents",
					Description: "List the contents of a library, paged",
					InputSchema: packs.SchemaFor[libraryContentsInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting library contents", h.Contents),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "library_refresh",
					Description: "Refresh one library, or all libraries when no name is given",
					InputSchema: packs.SchemaFor[optionalLibraryInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("refreshing library", h.Refresh),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "library_scan",
					Description: "Scan a library, optionally limited to one folder",
					InputSchema: packs.SchemaFor[libraryScanInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("scanning library", h.Scan),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "library_empty_trash",
					Description: "Remove items whose files no longer exist from a library",
					InputSchema: packs.SchemaFor[libraryNameInput](),
					Tier:        tier.Delete,
				},
				Handler: envelope.Wrap("emptying library trash", h.EmptyTrash),
			},
		},
	}
}

type libraryHandlers struct {
	mgr    *plex.Manager
	logger *slog.Logger
}

type libraryNameInput struct {
	LibraryName string `json:"library_name" jsonschema:"name of the library"`
}

type optionalLibraryInput struct {
	LibraryName string `json:"library_name,omitempty" jsonschema:"name of the library"`
}

type recentlyAddedInput struct {
	Count       int    `json:"count,omitempty" jsonschema:"number of items to return (default 50)"`
	LibraryName string `json:"library_name,omitempty" jsonschema:"limit to this library"`
}

type libraryContentsInput struct {
	LibraryName string `json:"library_name" jsonschema:"name of the library"`
	ContentType string `json:"content_type,omitempty" jsonschema:"item type to list, such as movie, show, episode, artist, album or track"`
	Unwatched   bool   `json:"unwatched,omitempty" jsonschema:"only unwatched items"`
	Offset      int    `json:"offset,omitempty" jsonschema:"index of the first item (default 0)"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of items (default 50)"`
}

type libraryScanInput struct {
	LibraryName string `json:"library_name" jsonschema:"name of the library"`
	Path        string `json:"path,omitempty" jsonschema:"folder inside the library to scan"`
}

func describeSection(sec plex.Directory) map[string]any {
	locations := make([]string, 0, len(sec.Location))
	for _, l := range sec.Location {
		locations = append(locations, l.Path)
	}
	return map[string]any{
		"title":      sec.Title,
		"key":        sec.Key,
		"type":       sec.Type,
		"agent":      sec.Agent,
		"scanner":    sec.Scanner,
		"language":   sec.Language,
		"locations":  locations,
		"updated_at": timestamp(sec.UpdatedAt),
		"scanned_at": timestamp(sec.ScannedAt),
		"refreshing": bool(sec.Refreshing),
	}
}

func (h *libraryHandlers) List(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := srv.Sections(ctx)
	if err != nil {
		return nil, err
	}
	libs := make([]map[string]any, 0, len(sections))
	for _, sec := range sections {
		libs = append(libs, describeSection(sec))
	}
	return envelope.Success(map[string]any{
		"message":   fmt.Sprintf("Found %d libraries", len(libs)),
		"count":     len(libs),
		"libraries": libs,
	}), nil
}

// sectionCounts returns the per-type counts shown for a section.
func sectionCounts(ctx context.Context, srv *plex.Server, sec plex.Directory) (map[string]int, error) {
	var types []string
	switch sec.Type {
	case "movie":
		types = []string{"movie"}
	case "show":
		types = []string{"show", "season", "episode"}
	case "artist":
		types = []string{"artist", "album", "track"}
	case "photo":
		types = []string{"photo"}
	}
	counts := make(map[string]int, len(types))
	for _, t := range types {
		n, err := srv.SectionCount(ctx, sec.Key, t)
		if err != nil {
			return nil, err
		}
		counts[t] = n
	}
	if len(types) == 0 {
		n, err := srv.SectionCount(ctx, sec.Key, "")
		if err != nil {
			return nil, err
		}
		counts["item"] = n
	}
	return counts, nil
}

func (h *libraryHandlers) Stats(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := srv.Sections(ctx)
	if err != nil {
		return nil, err
	}
	totals := map[string]int{}
	libs := make([]map[string]any, 0, len(sections))
	for _, sec := range sections {
		counts, err := sectionCounts(ctx, srv, sec)
		if err != nil {
			return nil, err
		}
		for k, v := range counts {
			totals[k] += v
		}
		libs = append(libs, map[string]any{
			"title":  sec.Title,
			"type":   sec.Type,
			"counts": counts,
		})
	}
	return envelope.Success(map[string]any{
		"server_name": srv.Identity().FriendlyName,
		"libraries":   libs,
		"totals":      totals,
	}), nil
}

func (h *libraryHandlers) Details(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[libraryNameInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sec, err := section(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	counts, err := sectionCounts(ctx, srv, *sec)
	if err != nil {
		return nil, err
	}
	details := describeSection(*sec)
	details["uuid"] = sec.UUID
	details["created_at"] = timestamp(sec.CreatedAt)
	details["counts"] = counts
	return envelope.Success(map[string]any{"library": details}), nil
}

func (h *libraryHandlers) RecentlyAdded(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[recentlyAddedInput](input)
	if err != nil {
		return nil, err
	}
	if in.Count <= 0 {
		in.Count = 50
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	key, err := sectionKey(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	items, err := srv.RecentlyAdded(ctx, key, in.Count)
	if err != nil {
		return nil, err
	}
	if len(items) > in.Count {
		items = items[:in.Count]
	}
	return envelope.Success(map[string]any{
		"count": len(items),
		"items": summaries(items),
	}), nil
}

func (h *libraryHandlers) Contents(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[libraryContentsInput](input)
	if err != nil {
		return nil, err
	}
	if in.ContentType != "" {
		if _, ok := plex.TypeNumber(in.ContentType); !ok {
			return nil, envelope.Invalid("Unknown content_type '%s'", in.ContentType)
		}
	}
	if in.Limit <= 0 {
		in.Limit = 50
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sec, err := section(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	items, total, err := srv.SectionItems(ctx, sec.Key, plex.ItemQuery{
		Type:      in.ContentType,
		Unwatched: in.Unwatched,
		Offset:    in.Offset,
		Limit:     in.Limit,
	})
	if err != nil {
		return nil, err
	}
	return envelope.Success(map[string]any{
		"library":     sec.Title,
		"total_count": total,
		"offset":      in.Offset,
		"limit":       in.Limit,
		"count":       len(items),
		"items":       summaries(items),
	}), nil
}

func (h *libraryHandlers) Refresh(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[optionalLibraryInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if in.LibraryName == "" {
		if err := srv.RefreshSection(ctx, ""); err != nil {
			return nil, err
		}
		return envelope.Message("Refreshing all libraries"), nil
	}
	sec, err := section(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	if err := srv.RefreshSection(ctx, sec.Key); err != nil {
		return nil, err
	}
	h.logger.Info("library refresh requested", "library", sec.Title)
	return envelope.Message("Refreshing library '%s'", sec.Title), nil
}

func (h *libraryHandlers) Scan(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[libraryScanInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sec, err := section(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	if err := srv.ScanSectionPath(ctx, sec.Key, in.Path); err != nil {
		return nil, err
	}
	if in.Path != "" {
		return envelope.Message("Scanning '%s' in library '%s'", in.Path, sec.Title), nil
	}
	return envelope.Message("Scanning library '%s'", sec.Title), nil
}

func (h *libraryHandlers) EmptyTrash(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[libraryNameInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sec, err := section(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	if err := srv.EmptyTrash(ctx, sec.Key); err != nil {
		return nil, err
	}
	return envelope.Message("Emptied trash for library '%s'", sec.Title), nil
}
