// ABOUTME: Client pack: player discovery, timelines, playback start, remote control and navigation.
// ABOUTME: Commands go through the server, addressed to the player by machine identifier.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// ClientPack creates the client pack.
func ClientPack(mgr *plex.Manager, logger *slog.Logger) *packs.BuiltinPack {
	h := &clientHandlers{mgr: mgr, logger: logger}
	return &packs.BuiltinPack{
		ID: "builtin:client",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "client_list",
					Description: "List the players the server can see",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("listing clients", h.List),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "client_get_details",
					Description: "Get details of one player",
					InputSchema: packs.SchemaFor[clientInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting client details", h.Details),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "client_get_timelines",
					Description: "Get the playback state of a player",
					InputSchema: packs.SchemaFor[clientInput](),
					Tier:        tier.Read,
					NoCache:     true,
				},
				Handler: envelope.Wrap("getting client timelines", h.Timelines),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "client_get_active",
					Description: "List the players that are currently playing something",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
					NoCache:     true,
				},
				Handler: envelope.Wrap("getting active clients", h.Active),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "client_start_playback",
					Description: "Start playing a media item on a player",
					InputSchema: packs.SchemaFor[startPlaybackInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("starting playback", h.StartPlayback),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "client_control_playback",
					Description: "Pause, resume, stop, skip, seek or change volume on a player",
					InputSchema: packs.SchemaFor[controlInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("controlling playback", h.ControlPlayback),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "client_navigate",
					Description: "Send a navigation key press to a player",
					InputSchema: packs.SchemaFor[navigateInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("navigating client", h.Navigate),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "client_set_streams",
					Description: "Select the audio, subtitle or video stream a player uses",
					InputSchema: packs.SchemaFor[streamsInput](),
					Tier:        tier.Write,
				},
				Handler: envelope.Wrap("setting client streams", h.SetStreams),
			},
		},
	}
}

type clientHandlers struct {
	mgr    *plex.Manager
	logger *slog.Logger
}

type clientInput struct {
	ClientName string `json:"client_name" jsonschema:"player name or machine identifier"`
}

type startPlaybackInput struct {
	ClientName  string `json:"client_name" jsonschema:"player name or machine identifier"`
	MediaTitle  string `json:"media_title,omitempty" jsonschema:"title of the media (optional if media_id is provided)"`
	MediaID     int64  `json:"media_id,omitempty" jsonschema:"rating key of the media (optional if media_title is provided)"`
	LibraryName string `json:"library_name,omitempty" jsonschema:"library to search in"`
	Offset      int64  `json:"offset,omitempty" jsonschema:"start position in milliseconds"`
}

type controlInput struct {
	ClientName string `json:"client_name" jsonschema:"player name or machine identifier"`
	Action     string `json:"action" jsonschema:"play, pause, stop, skipNext, skipPrevious, stepForward, stepBack, seekTo, setVolume, setRepeat or setShuffle"`
	Parameter  *int64 `json:"parameter,omitempty" jsonschema:"offset in ms for seekTo, 0-100 for setVolume, mode for setRepeat/setShuffle"`
	MediaType  string `json:"media_type,omitempty" jsonschema:"video (default), music or photo"`
}

type navigateInput struct {
	ClientName string `json:"client_name" jsonschema:"player name or machine identifier"`
	Action     string `json:"action" jsonschema:"moveUp, moveDown, moveLeft, moveRight, select, back, home, contextMenu, toggleOSD, pageUp or pageDown"`
}

type streamsInput struct {
	ClientName       string `json:"client_name" jsonschema:"player name or machine identifier"`
	AudioStreamID    *int64 `json:"audio_stream_id,omitempty" jsonschema:"audio stream id"`
	SubtitleStreamID *int64 `json:"subtitle_stream_id,omitempty" jsonschema:"subtitle stream id (0 turns subtitles off)"`
	VideoStreamID    *int64 `json:"video_stream_id,omitempty" jsonschema:"video stream id"`
	MediaType        string `json:"media_type,omitempty" jsonschema:"video (default), music or photo"`
}

var (
	playbackActions   = []string{"play", "pause", "stop", "skipNext", "skipPrevious", "stepForward", "stepBack", "seekTo", "setVolume", "setRepeat", "setShuffle"}
	parameterActions  = []string{"seekTo", "setVolume", "setRepeat", "setShuffle"}
	navigationActions = []string{"moveUp", "moveDown", "moveLeft", "moveRight", "select", "back", "home", "contextMenu", "toggleOSD", "pageUp", "pageDown"}
	mediaTypes        = []string{"video", "music", "photo"}
)

// findClient matches a player by name or machine identifier.
func findClient(ctx context.Context, srv *plex.Server, name string) (*plex.Device, error) {
	if name == "" {
		return nil, envelope.Invalid("client_name must be provided")
	}
	clients, err := srv.Clients(ctx)
	if err != nil {
		return nil, err
	}
	for i, c := range clients {
		if strings.EqualFold(c.Name, name) || c.MachineIdentifier == name {
			return &clients[i], nil
		}
	}
	return nil, envelope.NotFound("Client '%s' not found", name)
}

func clientInfo(c plex.Device) map[string]any {
	var capabilities []string
	if c.ProtocolCapabilities != "" {
		capabilities = strings.Split(c.ProtocolCapabilities, ",")
	}
	return map[string]any{
		"name":                  c.Name,
		"product":               c.Product,
		"platform":              c.Platform,
		"device_class":          c.DeviceClass,
		"version":               c.Version,
		"machine_identifier":    c.MachineIdentifier,
		"address":               c.Address,
		"port":                  c.Port,
		"protocol":              c.Protocol,
		"protocol_capabilities": capabilities,
	}
}

func mediaType(t string) (string, error) {
	t = orDefault(t, "video")
	if !slices.Contains(mediaTypes, t) {
		return "", envelope.Invalid("Invalid media_type '%s'. Valid types are: %s", t, strings.Join(mediaTypes, ", "))
	}
	return t, nil
}

func (h *clientHandlers) List(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := srv.Clients(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientInfo(c))
	}
	msg := fmt.Sprintf("Found %d clients", len(out))
	if len(out) == 0 {
		msg = "No clients connected to the server"
	}
	return envelope.Success(map[string]any{"message": msg, "count": len(out), "clients": out}), nil
}

func (h *clientHandlers) Details(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[clientInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c, err := findClient(ctx, srv, in.ClientName)
	if err != nil {
		return nil, err
	}
	return envelope.Success(map[string]any{"client": clientInfo(*c)}), nil
}

func (h *clientHandlers) Timelines(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[clientInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c, err := findClient(ctx, srv, in.ClientName)
	if err != nil {
		return nil, err
	}
	timelines, err := srv.Timelines(ctx, *c)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(timelines))
	for _, t := range timelines {
		entry := map[string]any{
			"type":  t.Type,
			"state": t.State,
		}
		if t.State != "stopped" {
			entry["time"] = t.Time
			entry["duration"] = t.Duration
			entry["rating_key"] = int64(t.RatingKey)
			entry["volume"] = t.Volume
			entry["shuffle"] = t.Shuffle
			entry["repeat"] = t.Repeat
			if t.Controllable != "" {
				entry["controllable"] = strings.Split(t.Controllable, ",")
			}
		}
		out = append(out, entry)
	}
	return envelope.Success(map[string]any{
		"client":    c.Name,
		"timelines": out,
	}), nil
}

func (h *clientHandlers) Active(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := srv.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for _, s := range sessions {
		if s.Player == nil {
			continue
		}
		entry := map[string]any{
			"name":               s.Player.Title,
			"product":            s.Player.Product,
			"platform":           s.Player.Platform,
			"device":             s.Player.Device,
			"machine_identifier": s.Player.MachineIdentifier,
			"state":              s.Player.State,
			"address":            s.Player.Address,
			"media":              itemSummary(s),
		}
		if s.User != nil {
			entry["user"] = s.User.Title
		}
		out = append(out, entry)
	}
	msg := fmt.Sprintf("Found %d active clients", len(out))
	if len(out) == 0 {
		msg = "No active clients"
	}
	return envelope.Success(map[string]any{"message": msg, "count": len(out), "clients": out}), nil
}

func (h *clientHandlers) StartPlayback(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[startPlaybackInput](input)
	if err != nil {
		return nil, err
	}
	if in.MediaID == 0 && in.MediaTitle == "" {
		return nil, envelope.Invalid("Either media_id or media_title must be provided")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c, err := findClient(ctx, srv, in.ClientName)
	if err != nil {
		return nil, err
	}
	item, err := resolveMedia(ctx, srv, in.MediaID, in.MediaTitle, in.LibraryName,
		"Please specify a media_id or use a more specific title.")
	if err != nil {
		return nil, err
	}
	queueID, err := srv.CreatePlayQueue(ctx, *item)
	if err != nil {
		return nil, err
	}

	params, err := serverParams(srv)
	if err != nil {
		return nil, err
	}
	params.Set("key", "/library/metadata/"+item.RatingKey.String())
	params.Set("offset", strconv.FormatInt(in.Offset, 10))
	params.Set("containerKey", "/playQueues/"+strconv.FormatInt(queueID, 10)+"?own=1")
	params.Set("type", plexMediaType(item.Type))
	if err := srv.PlayerCommand(ctx, *c, "playback/playMedia", params); err != nil {
		return nil, err
	}
	h.logger.Info("playback started", "client", c.Name, "title", item.Title)
	return envelope.Success(map[string]any{
		"message":    fmt.Sprintf("Started playback of '%s' on '%s'", item.Title, c.Name),
		"client":     c.Name,
		"title":      item.Title,
		"type":       item.Type,
		"rating_key": int64(item.RatingKey),
		"offset":     in.Offset,
	}), nil
}

// serverParams describes this server to a player so it can fetch media.
func serverParams(srv *plex.Server) (url.Values, error) {
	u, err := url.Parse(srv.BaseURL())
	if err != nil {
		return nil, fmt.Errorf("parsing server url: %w", err)
	}
	host, port := u.Hostname(), u.Port()
	if port == "" {
		port = "32400"
		if u.Scheme == "https" {
			port = "443"
		}
	}
	params := url.Values{}
	params.Set("machineIdentifier", srv.MachineIdentifier())
	params.Set("address", host)
	params.Set("port", port)
	params.Set("protocol", u.Scheme)
	return params, nil
}

// plexMediaType maps an item type to the player media type.
func plexMediaType(itemType string) string {
	switch plex.PlaylistTypeFor(itemType) {
	case "audio":
		return "music"
	case "photo":
		return "photo"
	default:
		return "video"
	}
}

func (h *clientHandlers) ControlPlayback(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[controlInput](input)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(playbackActions, in.Action) {
		return nil, envelope.Invalid("Invalid action '%s'. Valid actions are: %s", in.Action, strings.Join(playbackActions, ", "))
	}
	mt, err := mediaType(in.MediaType)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("type", mt)
	if slices.Contains(parameterActions, in.Action) {
		if in.Parameter == nil {
			return nil, envelope.Invalid("Action '%s' requires a parameter", in.Action)
		}
		p := *in.Parameter
		switch in.Action {
		case "seekTo":
			params.Set("offset", strconv.FormatInt(p, 10))
		case "setVolume":
			if p < 0 || p > 100 {
				return nil, envelope.Invalid("Volume must be between 0 and 100")
			}
			params.Set("volume", strconv.FormatInt(p, 10))
		case "setRepeat":
			params.Set("repeat", strconv.FormatInt(p, 10))
		case "setShuffle":
			params.Set("shuffle", strconv.FormatInt(p, 10))
		}
	}

	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c, err := findClient(ctx, srv, in.ClientName)
	if err != nil {
		return nil, err
	}
	command := "playback/" + in.Action
	switch in.Action {
	case "setVolume", "setRepeat", "setShuffle":
		command = "playback/setParameters"
	}
	if err := srv.PlayerCommand(ctx, *c, command, params); err != nil {
		return nil, err
	}
	return envelope.Success(map[string]any{
		"message":    fmt.Sprintf("Sent '%s' to '%s'", in.Action, c.Name),
		"client":     c.Name,
		"action":     in.Action,
		"media_type": mt,
	}), nil
}

func (h *clientHandlers) Navigate(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[navigateInput](input)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(navigationActions, in.Action) {
		return nil, envelope.Invalid("Invalid action '%s'. Valid actions are: %s", in.Action, strings.Join(navigationActions, ", "))
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c, err := findClient(ctx, srv, in.ClientName)
	if err != nil {
		return nil, err
	}
	if err := srv.PlayerCommand(ctx, *c, "navigation/"+in.Action, nil); err != nil {
		return nil, err
	}
	return envelope.Message("Sent '%s' to '%s'", in.Action, c.Name), nil
}

func (h *clientHandlers) SetStreams(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[streamsInput](input)
	if err != nil {
		return nil, err
	}
	mt, err := mediaType(in.MediaType)
	if err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("type", mt)
	var changes []string
	set := func(v *int64, key, label string) {
		if v != nil {
			params.Set(key, strconv.FormatInt(*v, 10))
			changes = append(changes, fmt.Sprintf("%s stream %d", label, *v))
		}
	}
	set(in.AudioStreamID, "audioStreamID", "audio")
	set(in.SubtitleStreamID, "subtitleStreamID", "subtitle")
	set(in.VideoStreamID, "videoStreamID", "video")
	if len(changes) == 0 {
		return nil, envelope.Invalid("At least one of audio_stream_id, subtitle_stream_id or video_stream_id must be provided")
	}

	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	c, err := findClient(ctx, srv, in.ClientName)
	if err != nil {
		return nil, err
	}
	if err := srv.PlayerCommand(ctx, *c, "playback/setStreams", params); err != nil {
		return nil, err
	}
	return envelope.Success(map[string]any{
		"message": fmt.Sprintf("Set %s on '%s'", strings.Join(changes, ", "), c.Name),
		"client":  c.Name,
		"changes": changes,
	}), nil
}
