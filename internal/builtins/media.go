// ABOUTME: Media pack: search, details, metadata edits, artwork and deletion.
// ABOUTME: Edits send only changed fields; artwork images are sniffed with mimetype.

package builtins

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// MediaPack creates the media pack.
func MediaPack(mgr *plex.Manager, logger *slog.Logger) *packs.BuiltinPack {
	h := &mediaHandlers{mgr: mgr, logger: logger}
	return &packs.BuiltinPack{
		ID: "builtin:media",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "media_search",
					Description: "Search for media across all libraries",
					InputSchema: packs.SchemaFor[searchInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("searching for media", h.Search),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "media_get_details",
					Description: "Get detailed information about a specific media item",
					InputSchema: packs.SchemaFor[mediaRef](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting media details", h.Details),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "media_get_artwork",
					Description: "Get the poster or background image of a media item",
					InputSchema: packs.SchemaFor[getArtworkInput](),
					Tier:        tier.Read,
					NoCache:     true,
				},
				Handler: envelope.Wrap("getting media artwork", h.GetArtwork),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "media_list_available_artwork",
					Description: "List the poster or background choices available for a media item",
					InputSchema: packs.SchemaFor[listArtworkInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("listing available artwork", h.ListArtwork),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "media_edit_metadata",
					Description: "Edit metadata for a media item",
					InputSchema: packs.SchemaFor[editMetadataInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("editing media metadata", h.EditMetadata),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "media_set_artwork",
					Description: "Set the poster or background of a media item from a file or URL",
					InputSchema: packs.SchemaFor[setArtworkInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("setting media artwork", h.SetArtwork),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "media_delete",
					Description: "Delete a media item from Plex (removes it from the library and deletes its files)",
					InputSchema: packs.SchemaFor[mediaRef](),
					Tier:        tier.Delete,
				},
				Handler: envelope.Wrap("deleting media", h.Delete),
			},
		},
	}
}

type mediaHandlers struct {
	mgr    *plex.Manager
	logger *slog.Logger
}

type searchInput struct {
	Query       string `json:"query" jsonschema:"search term"`
	ContentType string `json:"content_type,omitempty" jsonschema:"movie, show, episode, track, album, artist, or comma-separated search buckets such as movies,music,tv"`
}

type mediaRef struct {
	MediaTitle  string `json:"media_title,omitempty" jsonschema:"title of the media (optional if media_id is provided)"`
	MediaID     int64  `json:"media_id,omitempty" jsonschema:"rating key of the media (optional if media_title is provided)"`
	LibraryName string `json:"library_name,omitempty" jsonschema:"library to search in"`
}

type getArtworkInput struct {
	MediaTitle  string `json:"media_title,omitempty" jsonschema:"title of the media (optional if media_id is provided)"`
	MediaID     int64  `json:"media_id,omitempty" jsonschema:"rating key of the media (optional if media_title is provided)"`
	LibraryName string `json:"library_name,omitempty" jsonschema:"library to search in"`
	ArtType     string `json:"art_type,omitempty" jsonschema:"poster (default), art or background"`
	SaveToFile  bool   `json:"save_to_file,omitempty" jsonschema:"save the image to a file instead of returning it"`
	OutputPath  string `json:"output_path,omitempty" jsonschema:"file to save the image to"`
}

type listArtworkInput struct {
	MediaTitle  string `json:"media_title,omitempty" jsonschema:"title of the media (optional if media_id is provided)"`
	MediaID     int64  `json:"media_id,omitempty" jsonschema:"rating key of the media (optional if media_title is provided)"`
	LibraryName string `json:"library_name,omitempty" jsonschema:"library to search in"`
	ArtType     string `json:"art_type,omitempty" jsonschema:"poster (default), art or background"`
}

type editMetadataInput struct {
	MediaTitle       string   `json:"media_title" jsonschema:"title of the media to edit"`
	LibraryName      string   `json:"library_name,omitempty" jsonschema:"library containing the media"`
	NewTitle         *string  `json:"new_title,omitempty" jsonschema:"new title"`
	NewSummary       *string  `json:"new_summary,omitempty" jsonschema:"new summary"`
	NewYear          *int     `json:"new_year,omitempty" jsonschema:"new release year"`
	NewRating        *float64 `json:"new_rating,omitempty" jsonschema:"new rating (0-10)"`
	NewContentRating *string  `json:"new_content_rating,omitempty" jsonschema:"new content rating such as PG-13"`
	NewStudio        *string  `json:"new_studio,omitempty" jsonschema:"new studio"`
	NewTagline       *string  `json:"new_tagline,omitempty" jsonschema:"new tagline"`
	NewSortTitle     *string  `json:"new_sort_title,omitempty" jsonschema:"new sort title"`
	NewOriginalTitle *string  `json:"new_original_title,omitempty" jsonschema:"new original title"`
	NewGenres        []string `json:"new_genres,omitempty" jsonschema:"replace all genres"`
	AddGenres        []string `json:"add_genres,omitempty" jsonschema:"genres to add"`
	RemoveGenres     []string `json:"remove_genres,omitempty" jsonschema:"genres to remove"`
	NewLabels        []string `json:"new_labels,omitempty" jsonschema:"replace all labels"`
	AddLabels        []string `json:"add_labels,omitempty" jsonschema:"labels to add"`
	RemoveLabels     []string `json:"remove_labels,omitempty" jsonschema:"labels to remove"`
}

type setArtworkInput struct {
	MediaTitle     string `json:"media_title" jsonschema:"title of the media"`
	LibraryName    string `json:"library_name,omitempty" jsonschema:"library containing the media"`
	PosterPath     string `json:"poster_path,omitempty" jsonschema:"local poster image file"`
	PosterURL      string `json:"poster_url,omitempty" jsonschema:"poster image URL"`
	BackgroundPath string `json:"background_path,omitempty" jsonschema:"local background image file"`
	BackgroundURL  string `json:"background_url,omitempty" jsonschema:"background image URL"`
}

// searchBuckets maps item types to the searchTypes bucket that holds them.
var searchBuckets = map[string]string{
	"movie":   "movies",
	"show":    "tv",
	"episode": "tv",
	"track":   "music",
	"album":   "music",
	"artist":  "music",
}

var bucketNames = []string{"movies", "tv", "music", "people", "other"}

// searchPlan turns a content_type argument into the searchTypes parameter and
// the exact item type results must have ("" for no filtering).
func searchPlan(contentType string) (searchTypes, filter string) {
	switch {
	case contentType == "":
		return "", ""
	case strings.Contains(contentType, ","):
		return contentType, ""
	case searchBuckets[contentType] != "":
		return searchBuckets[contentType], contentType
	case slices.Contains(bucketNames, contentType):
		return contentType, ""
	default:
		return "", contentType
	}
}

// searchTypeOrder is the display order of result groups.
var searchTypeOrder = []string{"track", "album", "artist", "movie", "show", "season", "episode"}

func formatSearchHit(m plex.Metadata) map[string]any {
	out := map[string]any{
		"title":      orDefault(m.Title, "Unknown"),
		"type":       m.Type,
		"rating_key": int64(m.RatingKey),
	}
	switch m.Type {
	case "movie":
		out["year"] = m.Year
		out["rating"] = m.Rating
		out["summary"] = m.Summary
	case "show":
		out["year"] = m.Year
		out["summary"] = m.Summary
	case "season":
		out["show_title"] = orDefault(m.ParentTitle, "Unknown Show")
		out["season_number"] = m.Index
	case "episode":
		out["show_title"] = orDefault(m.GrandparentTitle, "Unknown Show")
		out["season_number"] = m.ParentIndex
		out["episode_number"] = m.Index
	case "track":
		out["artist"] = orDefault(m.GrandparentTitle, "Unknown Artist")
		out["album"] = orDefault(m.ParentTitle, "Unknown Album")
		out["track_number"] = m.Index
		out["duration"] = m.Duration
		out["library"] = m.SectionTitle
	case "album":
		out["artist"] = orDefault(m.ParentTitle, "Unknown Artist")
		out["year"] = m.ParentYear
		out["library"] = m.SectionTitle
	case "artist":
		out["art"] = m.Art
		out["thumb"] = m.Thumb
		out["library"] = m.SectionTitle
	}
	if len(m.Media) > 0 {
		media := m.Media[0]
		switch m.Type {
		case "movie", "show", "episode":
			out["resolution"] = media.VideoResolution
			out["container"] = media.Container
			out["codec"] = media.VideoCodec
		case "track":
			out["audio_codec"] = media.AudioCodec
			out["bitrate"] = media.Bitrate
			out["container"] = media.Container
		}
	}
	if m.Type == "track" {
		if m.Thumb != "" {
			out["thumb"] = m.Thumb
		}
		if m.ParentThumb != "" {
			out["album_thumb"] = m.ParentThumb
		}
		if m.GrandparentThumb != "" {
			out["artist_thumb"] = m.GrandparentThumb
		}
		if m.Art != "" {
			out["art"] = m.Art
		}
	}
	return out
}

func (h *mediaHandlers) Search(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[searchInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	searchTypes, filter := searchPlan(in.ContentType)
	hits, err := srv.SearchLibrary(ctx, in.Query, searchTypes)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return envelope.Success(map[string]any{
			"message": fmt.Sprintf("No results found for '%s'.", in.Query),
			"count":   0,
			"results": []any{},
		}), nil
	}

	groups := map[string][]map[string]any{}
	var seen []string
	total := 0
	for _, hit := range hits {
		if filter != "" && hit.Type != filter {
			continue
		}
		if _, ok := groups[hit.Type]; !ok {
			seen = append(seen, hit.Type)
		}
		groups[hit.Type] = append(groups[hit.Type], formatSearchHit(hit))
		total++
	}

	// results_by_type keeps a fixed type order, so it is built as ordered JSON.
	ordered := make([]string, 0, len(seen))
	for _, t := range searchTypeOrder {
		if _, ok := groups[t]; ok {
			ordered = append(ordered, t)
		}
	}
	for _, t := range seen {
		if !slices.Contains(ordered, t) {
			ordered = append(ordered, t)
		}
	}

	var contentType any
	if in.ContentType != "" {
		contentType = in.ContentType
	}
	return envelope.Success(map[string]any{
		"message":         fmt.Sprintf("Found %d results for '%s'", total, in.Query),
		"query":           in.Query,
		"content_type":    contentType,
		"total_count":     total,
		"results_by_type": orderedGroups{order: ordered, groups: groups},
	}), nil
}

// orderedGroups marshals as a JSON object whose keys follow order.
type orderedGroups struct {
	order  []string
	groups map[string][]map[string]any
}

func (o orderedGroups) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range o.order {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(o.groups[k])
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (h *mediaHandlers) Details(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[mediaRef](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	item, err := resolveMedia(ctx, srv, in.MediaID, in.MediaTitle, in.LibraryName,
		"Please specify a media_id or use a more specific title.")
	if err != nil {
		return nil, err
	}
	// search hits are partial; load the full item
	if in.MediaID == 0 {
		if full, err := srv.FetchItem(ctx, int64(item.RatingKey)); err == nil {
			item = full
		}
	}
	return envelope.Success(map[string]any{"details": mediaDetails(*item)}), nil
}

func actors(roles []plex.Tag) []map[string]string {
	out := make([]map[string]string, 0, min(len(roles), 10))
	for i, r := range roles {
		if i == 10 {
			break
		}
		out = append(out, map[string]string{"name": r.Tag, "role": r.Role})
	}
	return out
}

func mediaDetails(m plex.Metadata) map[string]any {
	d := map[string]any{
		"title":          orDefault(m.Title, "Unknown"),
		"type":           m.Type,
		"rating_key":     int64(m.RatingKey),
		"summary":        m.Summary,
		"year":           m.Year,
		"added_at":       timestamp(m.AddedAt),
		"updated_at":     timestamp(m.UpdatedAt),
		"duration":       m.Duration,
		"view_count":     m.ViewCount,
		"last_viewed_at": timestamp(m.LastViewedAt),
	}
	switch m.Type {
	case "movie":
		d["content_rating"] = m.ContentRating
		d["rating"] = m.Rating
		d["studio"] = m.Studio
		d["tagline"] = m.Tagline
		d["directors"] = tagNames(m.Director)
		d["writers"] = tagNames(m.Writer)
		d["actors"] = actors(m.Role)
		d["genres"] = tagNames(m.Genre)
		d["countries"] = tagNames(m.Country)
	case "show":
		d["content_rating"] = m.ContentRating
		d["rating"] = m.Rating
		d["studio"] = m.Studio
		d["season_count"] = m.ChildCount
		d["episode_count"] = m.LeafCount
		d["viewed_episode_count"] = m.ViewedLeafCount
		d["genres"] = tagNames(m.Genre)
		d["actors"] = actors(m.Role)
	case "episode":
		d["show_title"] = orDefault(m.GrandparentTitle, "Unknown Show")
		d["season_title"] = orDefault(m.ParentTitle, "Unknown Season")
		d["season_number"] = m.ParentIndex
		d["episode_number"] = m.Index
		d["content_rating"] = m.ContentRating
		d["rating"] = m.Rating
		d["directors"] = tagNames(m.Director)
		d["writers"] = tagNames(m.Writer)
	case "track":
		d["artist"] = orDefault(m.GrandparentTitle, "Unknown Artist")
		d["album"] = orDefault(m.ParentTitle, "Unknown Album")
		d["track_number"] = m.Index
		d["disc_number"] = m.ParentIndex
		d["skip_count"] = m.SkipCount
		d["play_count"] = m.ViewCount
	case "album":
		d["artist"] = orDefault(m.ParentTitle, "Unknown Artist")
		d["track_count"] = m.LeafCount
		d["genres"] = tagNames(m.Genre)
	case "artist":
		d["album_count"] = m.ChildCount
		d["track_count"] = m.LeafCount
		d["genres"] = tagNames(m.Genre)
		d["similar_artists"] = tagNames(m.Similar)
	}

	if len(m.Media) > 0 {
		files := make([]map[string]any, 0, len(m.Media))
		for _, media := range m.Media {
			info := map[string]any{
				"id":        int64(media.ID),
				"duration":  media.Duration,
				"bitrate":   media.Bitrate,
				"container": media.Container,
			}
			var size int64
			for _, p := range media.Part {
				size += p.Size
			}
			info["size"] = size
			switch m.Type {
			case "movie", "show", "episode":
				info["video_codec"] = media.VideoCodec
				info["video_resolution"] = media.VideoResolution
				info["video_frame_rate"] = media.VideoFrameRate
				info["aspect_ratio"] = media.AspectRatio
				info["audio_codec"] = media.AudioCodec
				info["audio_channels"] = media.AudioChannels
			case "track":
				info["audio_codec"] = media.AudioCodec
				info["audio_channels"] = media.AudioChannels
			}
			if len(media.Part) > 0 {
				parts := make([]map[string]any, 0, len(media.Part))
				for _, p := range media.Part {
					parts = append(parts, map[string]any{
						"id":        int64(p.ID),
						"file":      p.File,
						"size":      p.Size,
						"duration":  p.Duration,
						"container": p.Container,
					})
				}
				info["parts"] = parts
			}
			files = append(files, info)
		}
		d["media_files"] = files
	}
	return d
}

// artKind validates art_type and returns the artwork kind it selects.
func artKind(artType string) (plex.ArtKind, error) {
	switch artType {
	case "poster":
		return plex.Posters, nil
	case "art", "background":
		return plex.Arts, nil
	default:
		return "", envelope.Invalid("art_type must be 'poster', 'art', or 'background'")
	}
}

// resolveStrict is resolveMedia for the artwork tools, which refuse ambiguous
// titles instead of listing candidates.
func resolveStrict(ctx context.Context, srv *plex.Server, id int64, title, library string) (*plex.Metadata, error) {
	item, err := resolveMedia(ctx, srv, id, title, library, "")
	var amb *envelope.AmbiguousError
	if errors.As(err, &amb) {
		return nil, envelope.Invalid("Multiple items found matching '%s'. Please use media_id for specific selection.", title)
	}
	return item, err
}

// safeFilename keeps letters, digits, spaces, dashes and underscores.
func safeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func (h *mediaHandlers) GetArtwork(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[getArtworkInput](input)
	if err != nil {
		return nil, err
	}
	if in.MediaID == 0 && in.MediaTitle == "" {
		return nil, envelope.Invalid("Either media_id or media_title must be provided")
	}
	if in.ArtType == "" {
		in.ArtType = "poster"
	}
	kind, err := artKind(in.ArtType)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	item, err := resolveStrict(ctx, srv, in.MediaID, in.MediaTitle, in.LibraryName)
	if err != nil {
		return nil, err
	}

	path := item.Thumb
	if kind == plex.Arts {
		path = item.Art
	}
	if path == "" {
		return nil, envelope.NotFound("No %s artwork available for this media item", in.ArtType)
	}
	img, err := srv.FetchImage(ctx, path)
	if err != nil {
		return nil, err
	}

	if in.SaveToFile {
		out := in.OutputPath
		if out == "" {
			out = safeFilename(item.Title) + "_" + in.ArtType + img.Extension
		}
		if err := os.WriteFile(out, img.Data, 0o644); err != nil {
			return nil, err
		}
		h.logger.Info("artwork saved", "title", item.Title, "path", out, "bytes", len(img.Data))
		return envelope.Success(map[string]any{
			"message":   fmt.Sprintf("Artwork saved to '%s'", out),
			"title":     item.Title,
			"art_type":  in.ArtType,
			"file_path": out,
			"file_size": len(img.Data),
		}), nil
	}

	return envelope.Success(map[string]any{
		"title":        item.Title,
		"art_type":     in.ArtType,
		"content_type": img.ContentType,
		"size":         len(img.Data),
		"data":         base64.StdEncoding.EncodeToString(img.Data),
		"url":          srv.ImageURL(path),
	}), nil
}

func (h *mediaHandlers) ListArtwork(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[listArtworkInput](input)
	if err != nil {
		return nil, err
	}
	if in.MediaID == 0 && in.MediaTitle == "" {
		return nil, envelope.Invalid("Either media_id or media_title must be provided")
	}
	if in.ArtType == "" {
		in.ArtType = "poster"
	}
	kind, err := artKind(in.ArtType)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	item, err := resolveStrict(ctx, srv, in.MediaID, in.MediaTitle, in.LibraryName)
	if err != nil {
		return nil, err
	}
	arts, err := srv.Artwork(ctx, int64(item.RatingKey), kind)
	if err != nil {
		return nil, err
	}
	available := make([]map[string]any, 0, len(arts))
	for _, a := range arts {
		info := map[string]any{
			"key":       a.Key,
			"ratingKey": a.RatingKey,
			"selected":  bool(a.Selected),
			"provider":  orDefault(a.Provider, "unknown"),
		}
		if a.Thumb != "" {
			info["thumb_url"] = srv.ImageURL(a.Thumb)
		}
		available = append(available, info)
	}
	return envelope.Success(map[string]any{
		"title":             orDefault(item.Title, "Unknown"),
		"type":              item.Type,
		"art_type":          in.ArtType,
		"available_count":   len(available),
		"available_artwork": available,
	}), nil
}

// tagEdit applies replace/add/remove requests for one tag field and returns
// the change descriptions.
func tagEdit(edits url.Values, field, plural string, current, replace, add, remove []string) []string {
	var changes []string
	if replace != nil {
		var drop []string
		for _, c := range current {
			if !slices.Contains(replace, c) {
				drop = append(drop, c)
			}
		}
		if len(drop) > 0 {
			plex.RemoveTags(edits, field, drop)
		}
		if len(replace) > 0 {
			plex.AddTags(edits, field, replace)
		}
		return append(changes, plural+" completely replaced")
	}
	if len(add) > 0 {
		var fresh []string
		for _, a := range add {
			if !slices.Contains(current, a) {
				fresh = append(fresh, a)
			}
		}
		if len(fresh) > 0 {
			plex.AddTags(edits, field, fresh)
		}
		changes = append(changes, "added "+plural+": "+strings.Join(add, ", "))
	}
	if len(remove) > 0 {
		var present []string
		for _, r := range remove {
			if slices.Contains(current, r) {
				present = append(present, r)
			}
		}
		if len(present) > 0 {
			plex.RemoveTags(edits, field, present)
		}
		changes = append(changes, "removed "+plural+": "+strings.Join(remove, ", "))
	}
	return changes
}

func (h *mediaHandlers) EditMetadata(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[editMetadataInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	found, err := resolveMedia(ctx, srv, 0, in.MediaTitle, in.LibraryName,
		"Please be more specific or use media_id.")
	if err != nil {
		return nil, err
	}
	item, err := fetchByID(ctx, srv, int64(found.RatingKey), "Media")
	if err != nil {
		return nil, err
	}

	edits := url.Values{}
	var changes []string
	setString := func(v *string, current, field, change string) {
		if v != nil && *v != current {
			plex.SetField(edits, field, *v)
			changes = append(changes, change)
		}
	}
	if in.NewTitle != nil && *in.NewTitle != item.Title {
		plex.SetField(edits, "title", *in.NewTitle)
		changes = append(changes, fmt.Sprintf("title to '%s'", *in.NewTitle))
	}
	setString(in.NewSummary, item.Summary, "summary", "summary")
	if in.NewYear != nil && *in.NewYear != item.Year {
		plex.SetField(edits, "year", strconv.Itoa(*in.NewYear))
		changes = append(changes, fmt.Sprintf("year to %d", *in.NewYear))
	}
	if in.NewRating != nil && *in.NewRating != item.Rating {
		plex.SetField(edits, "rating", strconv.FormatFloat(*in.NewRating, 'f', -1, 64))
		changes = append(changes, fmt.Sprintf("rating to %v", *in.NewRating))
	}
	if in.NewContentRating != nil {
		setString(in.NewContentRating, item.ContentRating, "contentRating", fmt.Sprintf("content rating to '%s'", *in.NewContentRating))
	}
	if in.NewStudio != nil {
		setString(in.NewStudio, item.Studio, "studio", fmt.Sprintf("studio to '%s'", *in.NewStudio))
	}
	setString(in.NewTagline, item.Tagline, "tagline", "tagline")
	if in.NewSortTitle != nil {
		setString(in.NewSortTitle, item.TitleSort, "titleSort", fmt.Sprintf("sort title to '%s'", *in.NewSortTitle))
	}
	if in.NewOriginalTitle != nil {
		setString(in.NewOriginalTitle, item.OriginalTitle, "originalTitle", fmt.Sprintf("original title to '%s'", *in.NewOriginalTitle))
	}

	changes = append(changes, tagEdit(edits, "genre", "genres", tagNames(item.Genre), in.NewGenres, in.AddGenres, in.RemoveGenres)...)
	changes = append(changes, tagEdit(edits, "label", "labels", tagNames(item.Label), in.NewLabels, in.AddLabels, in.RemoveLabels)...)

	if len(changes) == 0 {
		return envelope.NoChanges("No changes made to the media item"), nil
	}
	if len(edits) > 0 {
		if err := srv.EditItem(ctx, item, edits); err != nil {
			return nil, err
		}
	}

	title := item.Title
	if in.NewTitle != nil {
		title = *in.NewTitle
	}
	return envelope.Success(map[string]any{
		"message": fmt.Sprintf("Successfully updated '%s'", title),
		"changes": changes,
		"title":   title,
		"type":    item.Type,
	}), nil
}

func (h *mediaHandlers) SetArtwork(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[setArtworkInput](input)
	if err != nil {
		return nil, err
	}
	if in.PosterPath == "" && in.PosterURL == "" && in.BackgroundPath == "" && in.BackgroundURL == "" {
		return nil, envelope.Invalid("At least one artwork source must be provided (poster_path, poster_url, background_path, or background_url)")
	}
	var poster, background []byte
	if in.PosterPath != "" {
		if poster, err = os.ReadFile(in.PosterPath); err != nil {
			return nil, envelope.NotFound("Poster file not found: %s", in.PosterPath)
		}
	}
	if in.BackgroundPath != "" {
		if background, err = os.ReadFile(in.BackgroundPath); err != nil {
			return nil, envelope.NotFound("Background file not found: %s", in.BackgroundPath)
		}
	}

	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	item, err := resolveMedia(ctx, srv, 0, in.MediaTitle, in.LibraryName, "Please be more specific.")
	if err != nil {
		return nil, err
	}
	id := int64(item.RatingKey)

	var changes []string
	switch {
	case poster != nil:
		if err := srv.UploadArtworkData(ctx, id, plex.Posters, poster); err != nil {
			return nil, err
		}
		changes = append(changes, "poster (from file)")
	case in.PosterURL != "":
		if err := srv.UploadArtworkURL(ctx, id, plex.Posters, in.PosterURL); err != nil {
			return nil, err
		}
		changes = append(changes, "poster (from URL)")
	}
	switch {
	case background != nil:
		if err := srv.UploadArtworkData(ctx, id, plex.Arts, background); err != nil {
			return nil, err
		}
		changes = append(changes, "background art (from file)")
	case in.BackgroundURL != "":
		if err := srv.UploadArtworkURL(ctx, id, plex.Arts, in.BackgroundURL); err != nil {
			return nil, err
		}
		changes = append(changes, "background art (from URL)")
	}

	return envelope.Success(map[string]any{
		"message": fmt.Sprintf("Successfully updated artwork for '%s'", item.Title),
		"changes": changes,
		"title":   item.Title,
		"type":    item.Type,
	}), nil
}

func (h *mediaHandlers) Delete(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[mediaRef](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	item, err := resolveMedia(ctx, srv, in.MediaID, in.MediaTitle, in.LibraryName,
		"Please be more specific or use media_id.")
	if err != nil {
		return nil, err
	}
	if err := srv.DeleteItem(ctx, int64(item.RatingKey)); err != nil {
		return nil, err
	}
	title := orDefault(item.Title, "Unknown")
	h.logger.Warn("media deleted", "title", title, "rating_key", int64(item.RatingKey))
	return envelope.Success(map[string]any{
		"message":       fmt.Sprintf("Successfully deleted '%s' (%s)", title, item.Type),
		"deleted_title": title,
		"deleted_type":  item.Type,
	}), nil
}
