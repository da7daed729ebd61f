// ABOUTME: User pack: plex.tv users, on-deck items, watch history and viewing statistics.
// ABOUTME: Acting for a shared user swaps in that user's server token.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// ownerAccountID is the server-local account id of the server owner.
const ownerAccountID = 1

// UserPack creates the user pack. defaultUsername, when set, stands in for
// an omitted username argument.
func UserPack(mgr *plex.Manager, logger *slog.Logger, defaultUsername string) *packs.BuiltinPack {
	return userPack(mgr, logger, defaultUsername, time.Now)
}

func userPack(mgr *plex.Manager, logger *slog.Logger, defaultUsername string, now func() time.Time) *packs.BuiltinPack {
	h := &userHandlers{mgr: mgr, logger: logger, defaultUsername: defaultUsername, now: now}
	return &packs.BuiltinPack{
		ID: "builtin:user",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:        "user_search_users",
					Description: "Search the server owner and the users the server is shared with",
					InputSchema: packs.SchemaFor[userSearchInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("searching users", h.Search),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "user_get_info",
					Description: "Get account details for a user (the owner when no username is given)",
					InputSchema: packs.SchemaFor[usernameInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting user info", h.Info),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "user_get_on_deck",
					Description: "Get the continue-watching items of a user",
					InputSchema: packs.SchemaFor[onDeckInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting on deck items", h.OnDeck),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "user_get_watch_history",
					Description: "Get what a user watched recently",
					InputSchema: packs.SchemaFor[watchHistoryInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting watch history", h.WatchHistory),
			},
			{
				Definition: &packs.ToolDefinition{
					Name:        "user_get_statistics",
					Description: "Summarize a user's viewing over the last days",
					InputSchema: packs.SchemaFor[statisticsInput](),
					Tier:        tier.Read,
				},
				Handler: envelope.Wrap("getting user statistics", h.Statistics),
			},
		},
	}
}

type userHandlers struct {
	mgr             *plex.Manager
	logger          *slog.Logger
	defaultUsername string
	now             func() time.Time
}

type userSearchInput struct {
	SearchTerm string `json:"search_term,omitempty" jsonschema:"text to match against username, name or email"`
}

type usernameInput struct {
	Username string `json:"username,omitempty" jsonschema:"plex.tv username or email"`
}

type onDeckInput struct {
	Username string `json:"username,omitempty" jsonschema:"plex.tv username or email"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of items (default 20)"`
}

type watchHistoryInput struct {
	Username    string `json:"username,omitempty" jsonschema:"plex.tv username or email"`
	Limit       int    `json:"limit,omitempty" jsonschema:"maximum number of entries (default 20)"`
	ContentType string `json:"content_type,omitempty" jsonschema:"only entries of this type, such as movie, episode or track"`
}

type statisticsInput struct {
	Username string `json:"username,omitempty" jsonschema:"plex.tv username or email"`
	Days     int    `json:"days,omitempty" jsonschema:"number of days to cover (default 30)"`
}

// viewer is a resolved username.
type viewer struct {
	name      string
	owner     bool
	accountID int64
}

func isOwner(acct *plex.PlexAccount, username string) bool {
	return username == "" ||
		strings.EqualFold(acct.Username, username) ||
		strings.EqualFold(acct.Title, username) ||
		strings.EqualFold(acct.Email, username)
}

// resolveViewer maps a username (or the configured default, or the owner) to
// its server-local account.
func (h *userHandlers) resolveViewer(ctx context.Context, srv *plex.Server, username string) (*viewer, error) {
	username = orDefault(username, h.defaultUsername)
	acct, err := srv.Account(ctx)
	if err != nil {
		return nil, err
	}
	if isOwner(acct, username) {
		return &viewer{name: orDefault(acct.Username, acct.Title), owner: true, accountID: ownerAccountID}, nil
	}
	accounts, err := srv.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Name, username) {
			return &viewer{name: a.Name, accountID: int64(a.ID)}, nil
		}
	}
	return nil, envelope.NotFound("User '%s' not found", username)
}

// serverFor returns a handle acting as v.
func (h *userHandlers) serverFor(ctx context.Context, srv *plex.Server, v *viewer) (*plex.Server, error) {
	if v.owner {
		return srv, nil
	}
	token, err := srv.UserToken(ctx, v.name)
	if errors.Is(err, plex.ErrNotFound) {
		return nil, envelope.NotFound("User '%s' not found", v.name)
	}
	if err != nil {
		return nil, err
	}
	return srv.AsToken(token), nil
}

func (h *userHandlers) Search(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[userSearchInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	acct, err := srv.Account(ctx)
	if err != nil {
		return nil, err
	}
	friends, err := srv.Friends(ctx)
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(in.SearchTerm)
	matches := func(fields ...string) bool {
		if term == "" {
			return true
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), term) {
				return true
			}
		}
		return false
	}

	users := []map[string]any{}
	if matches(acct.Username, acct.Title, acct.Email) {
		users = append(users, map[string]any{
			"id":       acct.ID,
			"username": acct.Username,
			"title":    acct.Title,
			"email":    acct.Email,
			"role":     "owner",
		})
	}
	for _, f := range friends {
		if !matches(f.Username, f.Title, f.Email) {
			continue
		}
		role := "friend"
		if f.Home {
			role = "home"
		}
		users = append(users, map[string]any{
			"id":         f.ID,
			"username":   f.Name(),
			"title":      f.Title,
			"email":      f.Email,
			"role":       role,
			"restricted": f.Restricted,
			"status":     f.Status,
		})
	}

	msg := fmt.Sprintf("Found %d users", len(users))
	if in.SearchTerm != "" {
		msg = fmt.Sprintf("Found %d users matching '%s'", len(users), in.SearchTerm)
	}
	return envelope.Success(map[string]any{"message": msg, "count": len(users), "users": users}), nil
}

func (h *userHandlers) Info(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[usernameInput](input)
	if err != nil {
		return nil, err
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	username := orDefault(in.Username, h.defaultUsername)
	acct, err := srv.Account(ctx)
	if err != nil {
		return nil, err
	}
	if isOwner(acct, username) {
		return envelope.Success(map[string]any{
			"id":        acct.ID,
			"uuid":      acct.UUID,
			"username":  acct.Username,
			"title":     acct.Title,
			"email":     acct.Email,
			"thumb":     acct.Thumb,
			"joined_at": timestamp(acct.JoinedAt),
			"role":      "owner",
			"subscription": map[string]any{
				"active": acct.Subscription.Active,
				"status": acct.Subscription.Status,
				"plan":   acct.Subscription.Plan,
			},
		}), nil
	}

	friends, err := srv.Friends(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range friends {
		if strings.EqualFold(f.Username, username) || strings.EqualFold(f.Title, username) || strings.EqualFold(f.Email, username) {
			role := "friend"
			if f.Home {
				role = "home"
			}
			return envelope.Success(map[string]any{
				"id":         f.ID,
				"uuid":       f.UUID,
				"username":   f.Name(),
				"title":      f.Title,
				"email":      f.Email,
				"thumb":      f.Thumb,
				"role":       role,
				"restricted": f.Restricted,
				"status":     f.Status,
			}), nil
		}
	}
	return nil, envelope.NotFound("User '%s' not found", username)
}

func (h *userHandlers) OnDeck(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[onDeckInput](input)
	if err != nil {
		return nil, err
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	v, err := h.resolveViewer(ctx, srv, in.Username)
	if err != nil {
		return nil, err
	}
	as, err := h.serverFor(ctx, srv, v)
	if err != nil {
		return nil, err
	}
	items, err := as.OnDeck(ctx, in.Limit)
	if err != nil {
		return nil, err
	}
	if len(items) > in.Limit {
		items = items[:in.Limit]
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		s := itemSummary(it)
		if it.Duration > 0 {
			s["progress_percent"] = float64(it.ViewOffset*1000/it.Duration) / 10
		}
		out = append(out, s)
	}
	return envelope.Success(map[string]any{
		"username": v.name,
		"count":    len(out),
		"items":    out,
	}), nil
}

func (h *userHandlers) WatchHistory(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[watchHistoryInput](input)
	if err != nil {
		return nil, err
	}
	if in.Limit <= 0 {
		in.Limit = 20
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	v, err := h.resolveViewer(ctx, srv, in.Username)
	if err != nil {
		return nil, err
	}

	fetch := in.Limit
	if in.ContentType != "" {
		// filtering happens after the fetch, so ask for more rows
		fetch = in.Limit * 5
	}
	entries, err := srv.History(ctx, plex.HistoryFilter{AccountID: v.accountID, Limit: fetch})
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, min(len(entries), in.Limit))
	for _, e := range entries {
		if in.ContentType != "" && e.Type != in.ContentType {
			continue
		}
		row := itemSummary(e)
		row["viewed_at"] = timestamp(e.ViewedAt)
		rows = append(rows, row)
		if len(rows) == in.Limit {
			break
		}
	}
	return envelope.Success(map[string]any{
		"username": v.name,
		"count":    len(rows),
		"history":  rows,
	}), nil
}

func (h *userHandlers) Statistics(ctx context.Context, input json.RawMessage) (envelope.Envelope, error) {
	in, err := decode[statisticsInput](input)
	if err != nil {
		return nil, err
	}
	if in.Days <= 0 {
		in.Days = 30
	}
	srv, err := h.mgr.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	v, err := h.resolveViewer(ctx, srv, in.Username)
	if err != nil {
		return nil, err
	}
	since := h.now().AddDate(0, 0, -in.Days)
	entries, err := srv.History(ctx, plex.HistoryFilter{AccountID: v.accountID, Since: since})
	if err != nil {
		return nil, err
	}

	byType := map[string]int{}
	titles := map[string]int{}
	var watched int64
	for _, e := range entries {
		byType[e.Type]++
		watched += e.Duration
		name := e.Title
		if e.Type == "episode" && e.GrandparentTitle != "" {
			name = e.GrandparentTitle
		}
		titles[name]++
	}

	type count struct {
		Title string `json:"title"`
		Plays int    `json:"plays"`
	}
	top := make([]count, 0, len(titles))
	for t, n := range titles {
		top = append(top, count{Title: t, Plays: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Plays != top[j].Plays {
			return top[i].Plays > top[j].Plays
		}
		return top[i].Title < top[j].Title
	})
	if len(top) > 5 {
		top = top[:5]
	}

	return envelope.Success(map[string]any{
		"username":         v.name,
		"days":             in.Days,
		"since":            since.UTC().Format(time.DateTime),
		"total_plays":      len(entries),
		"plays_by_type":    byType,
		"watch_time_ms":    watched,
		"watch_time_hours": float64(watched/36000) / 100,
		"top_titles":       top,
	}), nil
}
