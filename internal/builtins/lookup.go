// ABOUTME: Shared lookups used by every pack: sections, items by id or title, candidates.
// ABOUTME: Converts plex not-found errors into the user-facing messages tools reply with.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/plex"
)

// decode unmarshals tool arguments into T.
func decode[T any](input json.RawMessage) (T, error) {
	var in T
	if len(input) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return in, envelope.Invalid("invalid input: %v", err)
	}
	return in, nil
}

// section finds a library section by title.
func section(ctx context.Context, srv *plex.Server, name string) (*plex.Directory, error) {
	sec, err := srv.SectionByTitle(ctx, name)
	if errors.Is(err, plex.ErrNotFound) {
		return nil, envelope.NotFound("Library '%s' not found", name)
	}
	return sec, err
}

// sectionKey resolves an optional library name to its section key.
func sectionKey(ctx context.Context, srv *plex.Server, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	sec, err := section(ctx, srv, name)
	if err != nil {
		return "", err
	}
	return sec.Key, nil
}

// searchTitle searches one library, or the hubs of every library, for title.
func searchTitle(ctx context.Context, srv *plex.Server, title, library string) ([]plex.Metadata, error) {
	var items []plex.Metadata
	if library != "" {
		sec, err := section(ctx, srv, library)
		if err != nil {
			return nil, err
		}
		items, err = srv.SearchSection(ctx, sec.Key, title, "")
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		items, err = srv.SearchHubs(ctx, title, plex.SearchLimit)
		if err != nil {
			return nil, err
		}
	}
	return preferExact(items, title), nil
}

// preferExact narrows items to exact case-insensitive title matches when
// there are any.
func preferExact(items []plex.Metadata, title string) []plex.Metadata {
	var exact []plex.Metadata
	for _, it := range items {
		if strings.EqualFold(it.Title, title) {
			exact = append(exact, it)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return items
}

// fetchByID loads an item, reporting a missing id as "<kind> with ID '<id>' not found".
func fetchByID(ctx context.Context, srv *plex.Server, id int64, kind string) (*plex.Metadata, error) {
	item, err := srv.FetchItem(ctx, id)
	if errors.Is(err, plex.ErrNotFound) {
		return nil, envelope.NotFound("%s with ID '%d' not found", kind, id)
	}
	return item, err
}

// resolveMedia finds one media item by id or title. hint completes the
// multiple_results message, for example "Please be more specific or use media_id."
func resolveMedia(ctx context.Context, srv *plex.Server, id int64, title, library, hint string) (*plex.Metadata, error) {
	if id == 0 && title == "" {
		return nil, envelope.Invalid("Either media_id or media_title must be provided")
	}
	if id != 0 {
		return fetchByID(ctx, srv, id, "Media")
	}
	items, err := searchTitle(ctx, srv, title, library)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, envelope.NotFound("No media found matching '%s'", title)
	case 1:
		return &items[0], nil
	default:
		return nil, ambiguous("Multiple items found matching '"+title+"'. "+hint, items)
	}
}

// firstMatch returns the best match for title, used when building playlists
// and collections from a list of titles.
func firstMatch(ctx context.Context, srv *plex.Server, title, library string) (*plex.Metadata, error) {
	items, err := searchTitle(ctx, srv, title, library)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, envelope.NotFound("Item '%s' not found", title)
	}
	return &items[0], nil
}

// resolveItems turns item titles or ids into library items. Exactly one of
// the two lists may be set.
func resolveItems(ctx context.Context, srv *plex.Server, titles []string, ids []int64, library string) ([]plex.Metadata, error) {
	if len(titles) == 0 && len(ids) == 0 {
		return nil, envelope.Invalid("Either item_titles or item_ids must be provided")
	}
	if len(titles) > 0 && len(ids) > 0 {
		return nil, envelope.Invalid("Provide either item_titles or item_ids, not both")
	}
	items := make([]plex.Metadata, 0, len(titles)+len(ids))
	for _, id := range ids {
		item, err := fetchByID(ctx, srv, id, "Item")
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	for _, title := range titles {
		item, err := firstMatch(ctx, srv, title, library)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

func candidate(m plex.Metadata) envelope.Candidate {
	c := envelope.Candidate{
		Title:     m.Title,
		Type:      m.Type,
		RatingKey: int64(m.RatingKey),
		Year:      m.Year,
	}
	if m.Type == "episode" {
		c.Extra = map[string]any{
			"show":    orDefault(m.GrandparentTitle, "Unknown Show"),
			"season":  m.ParentIndex,
			"episode": m.Index,
		}
	}
	return c
}

func ambiguous(message string, items []plex.Metadata) error {
	cands := make([]envelope.Candidate, 0, min(len(items), envelope.MaxCandidates))
	for i, it := range items {
		if i == envelope.MaxCandidates {
			break
		}
		cands = append(cands, candidate(it))
	}
	return &envelope.AmbiguousError{Message: message, Count: len(items), Candidates: cands}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// timestamp renders a Plex epoch as "2006-01-02 15:04:05" UTC, or nil when unset.
func timestamp(epoch int64) any {
	if epoch == 0 {
		return nil
	}
	return time.Unix(epoch, 0).UTC().Format(time.DateTime)
}

func tagNames(tags []plex.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Tag)
	}
	return out
}

// itemSummary is the compact form used in listings.
func itemSummary(m plex.Metadata) map[string]any {
	out := map[string]any{
		"title":      m.Title,
		"type":       m.Type,
		"rating_key": int64(m.RatingKey),
	}
	if m.Year != 0 {
		out["year"] = m.Year
	}
	if m.AddedAt != 0 {
		out["added_at"] = timestamp(m.AddedAt)
	}
	if m.SectionTitle != "" {
		out["library"] = m.SectionTitle
	}
	switch m.Type {
	case "episode":
		out["show_title"] = m.GrandparentTitle
		out["season_number"] = m.ParentIndex
		out["episode_number"] = m.Index
	case "season":
		out["show_title"] = m.ParentTitle
		out["season_number"] = m.Index
	case "track":
		out["artist"] = m.GrandparentTitle
		out["album"] = m.ParentTitle
		out["track_number"] = m.Index
	case "album":
		out["artist"] = m.ParentTitle
	}
	if m.Duration != 0 {
		out["duration"] = m.Duration
	}
	if m.ViewCount != 0 {
		out["view_count"] = m.ViewCount
	}
	return out
}

func summaries(items []plex.Metadata) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		out = append(out, itemSummary(it))
	}
	return out
}
