// ABOUTME: Playlist pack: list, inspect, create, edit, posters, copying, membership, deletion.
// ABOUTME: Playlists are found by rating key or by exact case-insensitive title.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// PlaylistPack creates the playlist pack.
func PlaylistPack(mgr *plex.Manager, logger *slog.Logger) *packs.BuiltinPack {
	h := &playlistHandlers{mgr: mgr, logger: logger}
	return &packs.BuiltinPack{
		ID: "builtin:playlist",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_list",
					Description: "List playlists, optionally for one library or content type",
					InputSchema: packs.SchemaFor[playlistListInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("listing playlists", h.List),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_get_contents",
					Description: "List the items of a playlist",
					InputSchema: packs.SchemaFor[playlistRef](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting playlist contents", h.Contents),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_create",
					Description: "Create a playlist from media titles",
					InputSchema: packs.SchemaFor[playlistCreateInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("creating playlist", h.Create),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_edit",
					Description: "Change the title or summary of a playlist",
					InputSchema: packs.SchemaFor[playlistEditInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("editing playlist", h.Edit),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_upload_poster",
					Description: "Set a playlist poster from a URL or a local file",
					InputSchema: packs.SchemaFor[playlistPosterInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("uploading playlist poster", h.UploadPoster),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_copy_to_user",
					Description: "Copy a playlist to a shared user",
					InputSchema: packs.SchemaFor[playlistCopyInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("copying playlist", h.CopyToUser),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_add_to",
					Description: "Add items to a playlist",
					InputSchema: packs.SchemaFor[playlistAddInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("adding items to playlist", h.AddTo),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_remove_from",
					Description: "Remove items from a playlist",
					InputSchema: packs.SchemaFor[playlistRemoveInput](),
					Tier:        tier.Delete,
				},
				Handler: envelope.Wrap("removing items from playlist", h.RemoveFrom),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "playlist_delete",
					Description: "Delete a playlist",
					InputSchema: packs.SchemaFor[playlistRef](),
					Tier:        tier.Delete,
				},
				Handler: envelope.Wrap("deleting playlist", h.Delete),
			},
		},
	}
}

type playlistHandlers struct {
	mgr    *plex.Manager
	logger *slog.Logger
}

type playlistRef struct {
	PlaylistTitle string `json:"playlist_title,omitempty" jsonschema:"title of the playlist (optional if playlist_id is provided)"`
	PlaylistID    int64  `json:"playlist_id,omitempty" jsonschema:"rating key of the playlist (optional if playlist_title is provided)"`
}

type playlistListInput struct {
	LibraryName string `json:"library_name,omitempty" jsonschema:"only playlists of this library"`
	ContentType string `json:"content_type,omitempty" jsonschema:"audio, video or photo"`
}

type playlistCreateInput struct {
	PlaylistTitle string   `json:"playlist_title" jsonschema:"title of the new playlist"`
	ItemTitles    []string `json:"item_titles" jsonschema:"media titles to include"`
	LibraryName   string   `json:"library_name,omitempty" jsonschema:"library to search items in"`
	Summary       string   `json:"summary,omitempty" jsonschema:"playlist description"`
}

type playlistEditInput struct {
	PlaylistTitle string  `json:"playlist_title,omitempty" jsonschema:"title of the playlist (optional if playlist_id is provided)"`
	PlaylistID    int64   `json:"playlist_id,omitempty" jsonschema:"rating key of the playlist (optional if playlist_title is provided)"`
	NewTitle      *string `json:"new_title,omitempty" jsonschema:"new title"`
	NewSummary    *string `json:"new_summary,omitempty" jsonschema:"new summary"`
}

type playlistPosterInput struct {
	PlaylistTitle  string `json:"playlist_title,omitempty" jsonschema:"title of the playlist (optional if playlist_id is provided)"`
	PlaylistID     int64  `json:"playlist_id,omitempty" jsonschema:"rating key of the playlist (optional if playlist_title is provided)"`
	PosterURL      string `json:"poster_url,omitempty" jsonschema:"image URL"`
	PosterFilepath string `json:"poster_filepath,omitempty" jsonschema:"local image file"`
}

type playlistCopyInput struct {
	PlaylistTitle string `json:"playlist_title,omitempty" jsonschema:"title of the playlist (optional if playlist_id is provided)"`
	PlaylistID    int64  `json:"playlist_id,omitempty" jsonschema:"rating key of the playlist (optional if playlist_title is provided)"`
	Username      string `json:"username" jsonschema:"user to copy the playlist to"`
}

type playlistAddInput struct {
	PlaylistTitle string   `json:"playlist_title,omitempty" jsonschema:"title of the playlist (optional if playlist_id is provided)"`
	PlaylistID    int64    `json:"playlist_id,omitempty" jsonschema:"rating key of the playlist (optional if playlist_title is provided)"`
	ItemTitles    []string `json:"item_titles,omitempty" jsonschema:"media titles to add"`
	ItemIDs       []int64  `json:"item_ids,omitempty" jsonschema:"rating keys to add"`
}

type playlistRemoveInput struct {
	PlaylistTitle string   `json:"playlist_title,omitempty" jsonschema:"title of the playlist (optional if playlist_id is provided)"`
	PlaylistID    int64    `json:"playlist_id,omitempty" jsonschema:"rating key of the playlist (optional if playlist_title is provided)"`
	ItemTitles    []string `json:"item_titles" jsonschema:"titles of the entries to remove"`
}

func (in playlistEditInput) ref() playlistRef {
	return playlistRef{PlaylistTitle: in.PlaylistTitle, PlaylistID: in.PlaylistID}
}

func (in playlistPosterInput) ref() playlistRef {
	return playlistRef{PlaylistTitle: in.PlaylistTitle, PlaylistID: in.PlaylistID}
}

func (in playlistCopyInput) ref() playlistRef {
	return playlistRef{PlaylistTitle: in.PlaylistTitle, PlaylistID: in.PlaylistID}
}

func (in playlistAddInput) ref() playlistRef {
	return playlistRef{PlaylistTitle: in.PlaylistTitle, PlaylistID: in.PlaylistID}
}

func (in playlistRemoveInput) ref() playlistRef {
	return playlistRef{PlaylistTitle: in.PlaylistTitle, PlaylistID: in.PlaylistID}
}

var playlistTypes = []string{"audio", "video", "photo"}

// findPlaylist resolves a playlist reference.
func findPlaylist(ctx context.Context, srv *plex.Server, ref playlistRef) (*plex.Metadata, error) {
	if ref.PlaylistID == 0 && ref.PlaylistTitle == "" {
		return nil, envelope.Invalid("Either playlist_id or playlist_title must be provided")
	}
	if ref.PlaylistID != 0 {
		item, err := srv.FetchItem(ctx, ref.PlaylistID)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, plex.ErrNotFound) {
			return nil, err
		}
		all, err := srv.Playlists(ctx, "", "")
		if err != nil {
			return nil, err
		}
		for i := range all {
			if int64(all[i].RatingKey) == ref.PlaylistID {
				return &all[i], nil
			}
		}
		return nil, envelope.NotFound("Playlist with ID '%d' not found", ref.PlaylistID)
	}

	all, err := srv.Playlists(ctx, "", "")
	if err != nil {
		return nil, err
	}
	var matches []plex.Metadata
	for _, p := range all {
		if strings.EqualFold(p.Title, ref.PlaylistTitle) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, envelope.NotFound("No playlist found with title '%s'", ref.PlaylistTitle)
	case 1:
		return &matches[0], nil
	}
	cands := make([]envelope.Candidate, 0, len(matches))
	for _, p := range matches {
		cands = append(cands, envelope.Candidate{
			Title:     p.Title,
			Type:      p.PlaylistType,
			RatingKey: int64(p.RatingKey),
			Extra:     map[string]any{"item_count": p.LeafCount},
		})
	}
	return nil, &envelope.AmbiguousError{
		Message:    "Multiple playlists found with that title. Please use playlist_id instead.",
		Count:      len(matches),
		Candidates: cands,
	}
}

func playlistSummary(p plex.Metadata) map[string]any {
	var duration any
	if p.Duration != 0 {
		duration = p.Duration
	}
	return map[string]any{
		"title":      p.Title,
		"key":        p.Key,
		"ratingKey":  int64(p.RatingKey),
		"type":       p.PlaylistType,
		"summary":    p.Summary,
		"duration":   duration,
		"item_count": p.LeafCount,
	}
}

func (h *playlistHandlers) List(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistListInput](input)
	if err != nil {
		return nil, err
	}
	contentType := strings.ToLower(in.ContentType)
	if contentType != "" && !slices.Contains(playlistTypes, contentType) {
		return nil, envelope.Invalid("Invalid content type. Valid types are: %s", strings.Join(playlistTypes, ", "))
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	key, err := sectionKey(ctx, srv, in.LibraryName)
	if err != nil {
		return nil, err
	}
	lists, err := srv.Playlists(ctx, contentType, key)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(lists))
	for _, p := range lists {
		out = append(out, playlistSummary(p))
	}
	return envelope.Success(map[string]any{"count": len(out), "playlists": out}), nil
}

func (h *playlistHandlers) Contents(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistRef](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := findPlaylist(ctx, srv, in)
	if err != nil {
		return nil, err
	}
	entries, err := srv.PlaylistItems(ctx, int64(pl.RatingKey))
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		info := map[string]any{
			"title":     e.Title,
			"ratingKey": int64(e.RatingKey),
			"type":      e.Type,
			"year":      e.Year,
			"duration":  e.Duration,
		}
		switch e.Type {
		case "track":
			info["artist"] = e.GrandparentTitle
			info["album"] = e.ParentTitle
		case "episode":
			info["series"] = e.GrandparentTitle
			info["season"] = e.ParentTitle
		}
		items = append(items, info)
	}
	return envelope.Success(map[string]any{
		"title":      pl.Title,
		"ratingKey":  int64(pl.RatingKey),
		"type":       pl.PlaylistType,
		"summary":    pl.Summary,
		"duration":   pl.Duration,
		"item_count": len(items),
		"items":      items,
	}), nil
}

func (h *playlistHandlers) Create(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistCreateInput](input)
	if err != nil {
		return nil, err
	}
	if len(in.ItemTitles) == 0 {
		return nil, envelope.Invalid("No items found for the playlist")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	items, err := resolveItems(ctx, srv, in.ItemTitles, nil, in.LibraryName)
	if err != nil {
		return nil, err
	}
	pl, err := srv.CreatePlaylist(ctx, in.PlaylistTitle, items)
	if err != nil {
		return nil, err
	}
	if in.Summary != "" {
		if err := srv.EditPlaylist(ctx, int64(pl.RatingKey), nil, &in.Summary); err != nil {
			return nil, err
		}
	}
	h.logger.Info("playlist created", "title", in.PlaylistTitle, "items", len(items))
	return envelope.Success(map[string]any{
		"message": fmt.Sprintf("Playlist '%s' created successfully", in.PlaylistTitle),
		"data": map[string]any{
			"title":      pl.Title,
			"key":        pl.Key,
			"ratingKey":  int64(pl.RatingKey),
			"item_count": len(items),
		},
	}), nil
}

func (h *playlistHandlers) Edit(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistEditInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := findPlaylist(ctx, srv, in.ref())
	if err != nil {
		return nil, err
	}

	var title, summary *string
	var changes []string
	if in.NewTitle != nil && *in.NewTitle != pl.Title {
		title = in.NewTitle
		changes = append(changes, fmt.Sprintf("title from '%s' to '%s'", pl.Title, *in.NewTitle))
	}
	if in.NewSummary != nil && *in.NewSummary != pl.Summary {
		summary = in.NewSummary
		changes = append(changes, "summary")
	}
	if len(changes) == 0 {
		return envelope.NoChanges("No changes made to the playlist"), nil
	}
	if err := srv.EditPlaylist(ctx, int64(pl.RatingKey), title, summary); err != nil {
		return nil, err
	}
	newTitle := pl.Title
	if title != nil {
		newTitle = *title
	}
	return envelope.Success(map[string]any{
		"message": fmt.Sprintf("Playlist updated: %s", strings.Join(changes, ", ")),
		"changes": changes,
		"title":   newTitle,
	}), nil
}

func (h *playlistHandlers) UploadPoster(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistPosterInput](input)
	if err != nil {
		return nil, err
	}
	if in.PlaylistID == 0 && in.PlaylistTitle == "" {
		return nil, envelope.Invalid("Either playlist_id or playlist_title must be provided")
	}
	if in.PosterURL == "" && in.PosterFilepath == "" {
		return nil, envelope.Invalid("Either poster_url or poster_filepath must be provided")
	}
	if in.PosterURL != "" && in.PosterFilepath != "" {
		return nil, envelope.Invalid("Provide either poster_url or poster_filepath, not both")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := findPlaylist(ctx, srv, in.ref())
	if err != nil {
		return nil, err
	}

	var data []byte
	if in.PosterURL != "" {
		img, err := srv.DownloadImage(ctx, in.PosterURL)
		if err != nil {
			return nil, fmt.Errorf("downloading poster: %w", err)
		}
		data = img.Data
	} else {
		data, err = os.ReadFile(in.PosterFilepath)
		if err != nil {
			return nil, envelope.NotFound("Poster file not found: %s", in.PosterFilepath)
		}
	}
	if err := srv.UploadArtworkData(ctx, int64(pl.RatingKey), plex.Posters, data); err != nil {
		return nil, err
	}
	return envelope.Message("Poster uploaded successfully for playlist '%s'", pl.Title), nil
}

func (h *playlistHandlers) CopyToUser(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistCopyInput](input)
	if err != nil {
		return nil, err
	}
	if in.PlaylistID == 0 && in.PlaylistTitle == "" {
		return nil, envelope.Invalid("Either playlist_id or playlist_title must be provided")
	}
	if in.Username == "" {
		return nil, envelope.Invalid("Username must be provided")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := findPlaylist(ctx, srv, in.ref())
	if err != nil {
		return nil, err
	}
	token, err := srv.UserToken(ctx, in.Username)
	if errors.Is(err, plex.ErrNotFound) {
		return nil, envelope.NotFound("User '%s' not found", in.Username)
	}
	if err != nil {
		return nil, err
	}
	items, err := srv.PlaylistItems(ctx, int64(pl.RatingKey))
	if err != nil {
		return nil, err
	}
	if _, err := srv.AsToken(token).CreatePlaylist(ctx, pl.Title, items); err != nil {
		return nil, err
	}
	h.logger.Info("playlist copied", "title", pl.Title, "user", in.Username)
	return envelope.Message("Playlist '%s' copied to user '%s' successfully", pl.Title, in.Username), nil
}

func (h *playlistHandlers) AddTo(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistAddInput](input)
	if err != nil {
		return nil, err
	}
	if in.PlaylistID == 0 && in.PlaylistTitle == "" {
		return nil, envelope.Invalid("Either playlist_id or playlist_title must be provided")
	}
	if len(in.ItemTitles) == 0 && len(in.ItemIDs) == 0 {
		return nil, envelope.Invalid("Either item_titles or item_ids must be provided")
	}
	if len(in.ItemTitles) > 0 && len(in.ItemIDs) > 0 {
		return nil, envelope.Invalid("Provide either item_titles or item_ids, not both")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := findPlaylist(ctx, srv, in.ref())
	if err != nil {
		return nil, err
	}
	items, err := resolveItems(ctx, srv, in.ItemTitles, in.ItemIDs, "")
	if err != nil {
		return nil, err
	}
	if err := srv.AddPlaylistItems(ctx, int64(pl.RatingKey), items); err != nil {
		return nil, err
	}
	return envelope.Message("Added %d items to playlist '%s'", len(items), pl.Title), nil
}

func (h *playlistHandlers) RemoveFrom(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistRemoveInput](input)
	if err != nil {
		return nil, err
	}
	if in.PlaylistID == 0 && in.PlaylistTitle == "" {
		return nil, envelope.Invalid("Either playlist_id or playlist_title must be provided")
	}
	if len(in.ItemTitles) == 0 {
		return nil, envelope.Invalid("item_titles must be provided")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := findPlaylist(ctx, srv, in.ref())
	if err != nil {
		return nil, err
	}
	entries, err := srv.PlaylistItems(ctx, int64(pl.RatingKey))
	if err != nil {
		return nil, err
	}

	var remove []int64
	for _, title := range in.ItemTitles {
		idx := slices.IndexFunc(entries, func(e plex.Metadata) bool { return strings.EqualFold(e.Title, title) })
		if idx < 0 {
			return nil, envelope.NotFound("Item '%s' not found in playlist", title)
		}
		remove = append(remove, int64(entries[idx].PlaylistItemID))
	}
	for _, id := range remove {
		if err := srv.RemovePlaylistItem(ctx, int64(pl.RatingKey), id); err != nil {
			return nil, err
		}
	}
	return envelope.Message("Removed %d items from playlist '%s'", len(remove), pl.Title), nil
}

func (h *playlistHandlers) Delete(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[playlistRef](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	pl, err := findPlaylist(ctx, srv, in)
	if err != nil {
		return nil, err
	}
	if err := srv.DeletePlaylist(ctx, int64(pl.RatingKey)); err != nil {
		return nil, err
	}
	h.logger.Warn("playlist deleted", "title", pl.Title, "rating_key", int64(pl.RatingKey))
	return envelope.Message("Playlist '%s' deleted successfully", pl.Title), nil
}
