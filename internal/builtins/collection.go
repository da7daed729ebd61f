// ABOUTME: Collection pack: list, inspect, create, edit, membership and deletion.
// ABOUTME: Collections live in movie and show libraries and are edited like library items.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// CollectionPack creates the collection pack.
func CollectionPack(mgr *plex.Manager, logger *slog.Logger) *packs.BuiltinPack {
	h := &collectionHandlers{mgr: mgr, logger: logger}
	return &packs.BuiltinPack{
		ID: "builtin:collection",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "collection_list",
					Description: "List collections in a library, or in every movie and show library",
					InputSchema: packs.SchemaFor[optionalLibraryInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("listing collections", h.List),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "collection_get_contents",
					Description: "List the items of a collection",
					InputSchema: packs.SchemaFor[collectionRef](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting collection contents", h.Contents),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "collection_create",
					Description: "Create a collection in a library",
					InputSchema: packs.SchemaFor[collectionCreateInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("creating collection", h.Create),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "collection_add_to",
					Description: "Add items to a collection",
					InputSchema: packs.SchemaFor[collectionItemsInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("adding items to collection", h.AddTo),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "collection_edit",
					Description: "Edit the title, summary, sort title or content rating of a collection",
					InputSchema: packs.SchemaFor[collectionEditInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("editing collection", h.Edit),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "collection_remove_from",
					Description: "Remove items from a collection",
					InputSchema: packs.SchemaFor[collectionItemsInput](),
					Tier:        tier.Delete,
				},
				Handler: envelope.Wrap("removing items from collection", h.RemoveFrom),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "collection_delete",
					Description: "Delete a collection (its items stay in the library)",
					InputSchema: packs.SchemaFor[collectionRef](),
					Tier:        tier.Delete,
				},
				Handler: envelope.Wrap("deleting collection", h.Delete),
			},
		},
	}
}

type collectionHandlers struct {
	mgr    *plex.Manager
	logger *slog.Logger
}

type collectionRef struct {
	CollectionTitle string `json:"collection_title,omitempty" jsonschema:"title of the collection (optional if collection_id is provided)"`
	CollectionID    int64  `json:"collection_id,omitempty" jsonschema:"rating key of the collection (optional if collection_title is provided)"`
	LibraryName     string `json:"library_name,omitempty" jsonschema:"library holding the collection"`
}

type collectionCreateInput struct {
	CollectionTitle string   `json:"collection_title" jsonschema:"title of the new collection"`
	LibraryName     string   `json:"library_name" jsonschema:"library to create the collection in"`
	ItemTitles      []string `json:"item_titles,omitempty" jsonschema:"media titles to include"`
	ItemIDs         []int64  `json:"item_ids,omitempty" jsonschema:"rating keys to include"`
	Summary         string   `json:"summary,omitempty" jsonschema:"collection description"`
}

type collectionItemsInput struct {
	CollectionTitle string   `json:"collection_title,omitempty" jsonschema:"title of the collection (optional if collection_id is provided)"`
	CollectionID    int64    `json:"collection_id,omitempty" jsonschema:"rating key of the collection (optional if collection_title is provided)"`
	LibraryName     string   `json:"library_name,omitempty" jsonschema:"library holding the collection"`
	ItemTitles      []string `json:"item_titles,omitempty" jsonschema:"media titles"`
	ItemIDs         []int64  `json:"item_ids,omitempty" jsonschema:"rating keys"`
}

func (in collectionItemsInput) ref() collectionRef {
	return collectionRef{CollectionTitle: in.CollectionTitle, CollectionID: in.CollectionID, LibraryName: in.LibraryName}
}

type collectionEditInput struct {
	CollectionTitle  string  `json:"collection_title,omitempty" jsonschema:"title of the collection (optional if collection_id is provided)"`
	CollectionID     int64   `json:"collection_id,omitempty" jsonschema:"rating key of the collection (optional if collection_title is provided)"`
	LibraryName      string  `json:"library_name,omitempty" jsonschema:"library holding the collection"`
	NewTitle         *string `json:"new_title,omitempty" jsonschema:"new title"`
	NewSummary       *string `json:"new_summary,omitempty" jsonschema:"new summary"`
	NewSortTitle     *string `json:"new_sort_title,omitempty" jsonschema:"new sort title"`
	NewContentRating *string `json:"new_content_rating,omitempty" jsonschema:"new content rating"`
}

func (in collectionEditInput) ref() collectionRef {
	return collectionRef{CollectionTitle: in.CollectionTitle, CollectionID: in.CollectionID, LibraryName: in.LibraryName}
}

// collectionSections returns the named section, or every movie and show
// section when name is empty.
func collectionSections(ctx context.Context, srv *plex.Server, name string) ([]plex.Directory, error) {
	if name != "" {
		sec, err := section(ctx, srv, name)
		if err != nil {
			return nil, err
		}
		return []plex.Directory{*sec}, nil
	}
	all, err := srv.Sections(ctx)
	if err != nil {
		return nil, err
	}
	var out []plex.Directory
	for _, s := range all {
		if s.Type == "movie" || s.Type == "show" {
			out = append(out, s)
		}
	}
	return out, nil
}

type collectionMatch struct {
	item    plex.Metadata
	library string
}

// findCollection resolves a collection reference.
func findCollection(ctx context.Context, srv *plex.Server, ref collectionRef) (*plex.Metadata, error) {
	if ref.CollectionID == 0 && ref.CollectionTitle == "" {
		return nil, envelope.Invalid("Either collection_id or collection_title must be provided")
	}
	if ref.CollectionID != 0 {
		return fetchByID(ctx, srv, ref.CollectionID, "Collection")
	}
	sections, err := collectionSections(ctx, srv, ref.LibraryName)
	if err != nil {
		return nil, err
	}
	var matches []collectionMatch
	for _, sec := range sections {
		cols, err := srv.Collections(ctx, sec.Key)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			if strings.EqualFold(c.Title, ref.CollectionTitle) {
				matches = append(matches, collectionMatch{item: c, library: sec.Title})
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, envelope.NotFound("Collection '%s' not found", ref.CollectionTitle)
	case 1:
		return &matches[0].item, nil
	}
	cands := make([]envelope.Candidate, 0, len(matches))
	for _, m := range matches {
		cands = append(cands, envelope.Candidate{
			Title:     m.item.Title,
			Type:      "collection",
			RatingKey: int64(m.item.RatingKey),
			Extra:     map[string]any{"library": m.library, "item_count": m.item.ChildCount},
		})
	}
	return nil, &envelope.AmbiguousError{
		Message:    fmt.Sprintf("Multiple collections found with title '%s'. Please specify collection_id or library_name.", ref.CollectionTitle),
		Count:      len(matches),
		Candidates: cands,
	}
}

func (h *collectionHandlers) List(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[optionalLibraryInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := collectionSections(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for _, sec := range sections {
		cols, err := srv.Collections(ctx, sec.Key)
		if err != nil {
			return nil, err
		}
		for _, c := range cols {
			out = append(out, map[string]any{
				"title":      c.Title,
				"rating_key": int64(c.RatingKey),
				"summary":    c.Summary,
				"item_count": c.ChildCount,
				"library":    sec.Title,
				"smart":      bool(c.Smart),
			})
		}
	}
	return envelope.Success(map[string]any{"count": len(out), "collections": out}), nil
}

func (h *collectionHandlers) Contents(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[collectionRef](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	col, err := findCollection(ctx, srv, in)
	if err != nil {
		return nil, err
	}
	items, err := srv.CollectionItems(ctx, int64(col.RatingKey))
	if err != nil {
		return nil, err
	}
	return envelope.Success(map[string]any{
		"title":      col.Title,
		"rating_key": int64(col.RatingKey),
		"summary":    col.Summary,
		"item_count": len(items),
		"items":      summaries(items),
	}), nil
}

func (h *collectionHandlers) Create(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[collectionCreateInput](input)
	if err != nil {
		return nil, err
	}
	if in.LibraryName == "" {
		return nil, envelope.Invalid("library_name must be provided")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sec, err := section(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	items, err := resolveItems(ctx, srv, in.ItemTitles, in.ItemIDs, in.LibraryName)
	if err != nil {
		return nil, err
	}
	col, err := srv.CreateCollection(ctx, sec.Key, in.CollectionTitle, items)
	if err != nil {
		return nil, err
	}
	if in.Summary != "" {
		col.Type = "collection"
		if col.SectionID == 0 {
			col.SectionID = sectionID(sec.Key)
		}
		edits := url.Values{}
		plex.SetField(edits, "summary", in.Summary)
		if err := srv.EditItem(ctx, col, edits); err != nil {
			return nil, err
		}
	}
	h.logger.Info("collection created", "title", in.CollectionTitle, "library", sec.Title, "items", len(items))
	return envelope.Success(map[string]any{
		"message":    fmt.Sprintf("Collection '%s' created successfully with %d items", in.CollectionTitle, len(items)),
		"title":      col.Title,
		"rating_key": int64(col.RatingKey),
		"library":    sec.Title,
		"item_count": len(items),
	}), nil
}

func sectionID(key string) plex.FlexInt {
	var id plex.FlexInt
	_ = id.UnmarshalText([]byte(key))
	return id
}

func (h *collectionHandlers) AddTo(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[collectionItemsInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	col, err := findCollection(ctx, srv, in.ref())
	if err != nil {
		return nil, err
	}
	items, err := resolveItems(ctx, srv, in.ItemTitles, in.ItemIDs, in.LibraryName)
	if err != nil {
		return nil, err
	}
	members, err := srv.CollectionItems(ctx, int64(col.RatingKey))
	if err != nil {
		return nil, err
	}
	var fresh []plex.Metadata
	for _, it := range items {
		if !slices.ContainsFunc(members, func(m plex.Metadata) bool { return m.RatingKey == it.RatingKey }) {
			fresh = append(fresh, it)
		}
	}
	if len(fresh) == 0 {
		return envelope.NoChanges(fmt.Sprintf("All items are already in collection '%s'", col.Title)), nil
	}
	if err := srv.AddCollectionItems(ctx, int64(col.RatingKey), fresh); err != nil {
		return nil, err
	}
	return envelope.Message("Added %d items to collection '%s'", len(fresh), col.Title), nil
}

func (h *collectionHandlers) Edit(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[collectionEditInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	col, err := findCollection(ctx, srv, in.ref())
	if err != nil {
		return nil, err
	}

	edits := url.Values{}
	var changes []string
	if in.NewTitle != nil && *in.NewTitle != col.Title {
		plex.SetField(edits, "title", *in.NewTitle)
		changes = append(changes, fmt.Sprintf("title to '%s'", *in.NewTitle))
	}
	if in.NewSummary != nil && *in.NewSummary != col.Summary {
		plex.SetField(edits, "summary", *in.NewSummary)
		changes = append(changes, "summary")
	}
	if in.NewSortTitle != nil && *in.NewSortTitle != col.TitleSort {
		plex.SetField(edits, "titleSort", *in.NewSortTitle)
		changes = append(changes, fmt.Sprintf("sort title to '%s'", *in.NewSortTitle))
	}
	if in.NewContentRating != nil && *in.NewContentRating != col.ContentRating {
		plex.SetField(edits, "contentRating", *in.NewContentRating)
		changes = append(changes, fmt.Sprintf("content rating to '%s'", *in.NewContentRating))
	}
	if len(changes) == 0 {
		return envelope.NoChanges("No changes made to the collection"), nil
	}
	target := *col
	target.Type = "collection"
	if err := srv.EditItem(ctx, &target, edits); err != nil {
		return nil, err
	}
	title := col.Title
	if in.NewTitle != nil {
		title = *in.NewTitle
	}
	return envelope.Success(map[string]any{
		"message": fmt.Sprintf("Successfully updated collection '%s'", title),
		"changes": changes,
		"title":   title,
	}), nil
}

func (h *collectionHandlers) RemoveFrom(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[collectionItemsInput](input)
	if err != nil {
		return nil, err
	}
	if len(in.ItemTitles) == 0 {
		return nil, envelope.Invalid("item_titles must be provided")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	col, err := findCollection(ctx, srv, in.ref())
	if err != nil {
		return nil, err
	}
	members, err := srv.CollectionItems(ctx, int64(col.RatingKey))
	if err != nil {
		return nil, err
	}
	var remove []int64
	for _, title := range in.ItemTitles {
		idx := slices.IndexFunc(members, func(m plex.Metadata) bool { return strings.EqualFold(m.Title, title) })
		if idx < 0 {
			return nil, envelope.NotFound("Item '%s' not found in collection", title)
		}
		remove = append(remove, int64(members[idx].RatingKey))
	}
	for _, key := range remove {
		if err := srv.RemoveCollectionItem(ctx, int64(col.RatingKey), key); err != nil {
			return nil, err
		}
	}
	return envelope.Message("Removed %d items from collection '%s'", len(remove), col.Title), nil
}

func (h *collectionHandlers) Delete(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[collectionRef](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	col, err := findCollection(ctx, srv, in)
	if err != nil {
		return nil, err
	}
	if err := srv.DeleteCollection(ctx, int64(col.RatingKey)); err != nil {
		return nil, err
	}
	h.logger.Warn("collection deleted", "title", col.Title, "rating_key", int64(col.RatingKey))
	return envelope.Message("Collection '%s' deleted successfully", col.Title), nil
}
