// ABOUTME: Session pack: active playback sessions, playback history and termination.
// ABOUTME: History rows name the account that watched by joining /accounts.

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

// DefaultTerminateReason is shown to viewers when no reason is given.
const DefaultTerminateReason = "Your playback session was stopped by the server administrator."

// SessionsPack creates the session pack.
func SessionsPack(mgr *plex.Manager, logger *slog.Logger) *packs.BuiltinPack {
	h := &sessionHandlers{mgr: mgr, logger: logger}
	return &packs.BuiltinPack{
		ID: "builtin:sessions",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "sessions_get_active",
					Description: "List the playback sessions currently active on the server",
					InputSchema: packs.EmptySchema,
					Tier:        tier.Read,
					NoCache:     true,
				},
				Handler: envelope.Wrap("getting active sessions", h.Active),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "sessions_get_media_playback_history",
					Description: "Get the playback history of a media item, a library or the whole server",
					InputSchema: packs.SchemaFor[historyInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting playback history", h.History),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "sessions_terminate",
					Description: "Stop an active playback session",
					InputSchema: packs.SchemaFor[terminateInput](),
					Tier:        tier.Delete,
				},
				Handler: envelope.Wrap("terminating session", h.Terminate),
			},
		},
	}
}

type sessionHandlers struct {
	mgr    *plex.Manager
	logger *slog.Logger
}

type historyInput struct {
	MediaTitle  string `json:"media_title,omitempty" jsonschema:"title of the media"`
	MediaID     int64  `json:"media_id,omitempty" jsonschema:"rating key of the media"`
	LibraryName string `json:"library_name,omitempty" jsonschema:"library to search in or to list history for"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of entries (default 50)"`
}

type terminateInput struct {
	SessionID string `json:"session_id" jsonschema:"session id as reported by sessions_get_active"`
	Reason    string `json:"reason,omitempty" jsonschema:"message shown to the viewer"`
}

func sessionInfo(m plex.Metadata) map[string]any {
	info := itemSummary(m)
	info["session_key"] = m.SessionKey
	if m.Session != nil {
		info["session_id"] = m.Session.ID
		info["bandwidth"] = m.Session.Bandwidth
		info["location"] = m.Session.Location
	}
	if m.User != nil {
		info["user"] = m.User.Title
	}
	if m.Player != nil {
		info["player"] = map[string]any{
			"title":    m.Player.Title,
			"device":   m.Player.Device,
			"product":  m.Player.Product,
			"platform": m.Player.Platform,
			"state":    m.Player.State,
			"address":  m.Player.Address,
			"local":    bool(m.Player.Local),
		}
	}
	if m.Duration > 0 {
		info["progress_percent"] = float64(m.ViewOffset*1000/m.Duration) / 10
	}
	if t := m.TranscodeSession; t != nil {
		info["transcoding"] = map[string]any{
			"video_decision": t.VideoDecision,
			"audio_decision": t.AudioDecision,
			"progress":       t.Progress,
			"speed":          t.Speed,
			"throttled":      bool(t.Throttled),
			"container":      t.Container,
			"video_codec":    t.VideoCodec,
			"audio_codec":    t.AudioCodec,
		}
	} else {
		info["transcoding"] = nil
	}
	return info
}

func (h *sessionHandlers) Active(ctx context.Context, _ json.RawMessage) (envelope.Envelope, error) {
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := srv.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(sessions))
	transcodes := 0
	for _, s := range sessions {
		out = append(out, sessionInfo(s))
		if s.TranscodeSession != nil {
			transcodes++
		}
	}
	msg := fmt.Sprintf("Found %d active sessions", len(out))
	if len(out) == 0 {
		msg = "No active sessions"
	}
	return envelope.Success(map[string]any{
		"message":           msg,
		"count":             len(out),
		"transcode_count":   transcodes,
		"direct_play_count": len(out) - transcodes,
		"sessions":          out,
	}), nil
}

func (h *sessionHandlers) History(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[historyInput](input)
	if err != nil {
		return nil, err
	}
	if in.Limit <= 0 {
		in.Limit = 50
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	filter := plex.HistoryFilter{Limit: in.Limit}
	var media *plex.Metadata
	if in.MediaID != 0 || in.MediaTitle != "" {
		media, err = resolveMedia(ctx, srv, in.MediaID, in.MediaTitle, in.LibraryName,
			"Please specify a media_id or use a more specific title.")
		if err != nil {
			return nil, err
		}
		filter.RatingKey = int64(media.RatingKey)
	} else if in.LibraryName != "" {
		if filter.SectionID, err = sectionKey(ctx, srv, in.LibraryName); err != nil {
			return nil, err
		}
	}

	entries, err := srv.History(ctx, filter)
	if err != nil {
		return nil, err
	}
	accounts, err := srv.Accounts(ctx)
	if err != nil {
		h.logger.Debug("accounts unavailable, history rows keep ids", "error", err)
	}
	names := map[int64]string{}
	for _, a := range accounts {
		names[int64(a.ID)] = a.Name
	}

	rows := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		row := itemSummary(e)
		row["viewed_at"] = timestamp(e.ViewedAt)
		row["account_id"] = int64(e.AccountID)
		row["account"] = orDefault(names[int64(e.AccountID)], "Unknown")
		row["device_id"] = int64(e.DeviceID)
		rows = append(rows, row)
	}

	out := map[string]any{"count": len(rows), "history": rows}
	if media != nil {
		out["media"] = itemSummary(*media)
	}
	if in.LibraryName != "" {
		out["library"] = in.LibraryName
	}
	return envelope.Success(out), nil
}

func (h *sessionHandlers) Terminate(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[terminateInput](input)
	if err != nil {
		return nil, err
	}
	if in.SessionID == "" {
		return nil, envelope.Invalid("session_id must be provided")
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := srv.ActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	var target *plex.Metadata
	for i := range sessions {
		s := sessions[i]
		if (s.Session != nil && s.Session.ID == in.SessionID) || s.SessionKey == in.SessionID {
			target = &sessions[i]
			break
		}
	}
	if target == nil {
		return nil, envelope.NotFound("No active session with ID '%s'", in.SessionID)
	}
	id := in.SessionID
	if target.Session != nil && target.Session.ID != "" {
		id = target.Session.ID
	}
	reason := orDefault(in.Reason, DefaultTerminateReason)
	if err := srv.TerminateSession(ctx, id, reason); err != nil {
		return nil, err
	}
	user := ""
	if target.User != nil {
		user = target.User.Title
	}
	h.logger.Warn("session terminated", "session", id, "title", target.Title, "user", user)
	return envelope.Success(map[string]any{
		"message": fmt.Sprintf("Session '%s' terminated", id),
		"title":   target.Title,
		"user":    user,
		"reason":  reason,
	}), nil
}
