// ABOUTME: Session endpoints: active sessions, playback history, accounts, termination.
// ABOUTME: History is filtered server-side by item, account, section and date.

package plex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ActiveSessions lists what is playing right now.
func (s *Server) ActiveSessions(ctx context.Context) ([]Metadata, error) {
	mc, err := s.get(ctx, "/status/sessions", nil)
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// HistoryFilter narrows a playback history query. Zero fields are ignored.
type HistoryFilter struct {
	RatingKey int64
	AccountID int64
	SectionID string
	Since     time.Time
	Limit     int
}

// History lists watched entries, newest first.
func (s *Server) History(ctx context.Context, f HistoryFilter) ([]Metadata, error) {
	query := url.Values{}
	query.Set("sort", "viewedAt:desc")
	if f.RatingKey != 0 {
		query.Set("metadataItemID", strconv.FormatInt(f.RatingKey, 10))
	}
	if f.AccountID != 0 {
		query.Set("accountID", strconv.FormatInt(f.AccountID, 10))
	}
	if f.SectionID != "" {
		query.Set("librarySectionID", f.SectionID)
	}
	if !f.Since.IsZero() {
		query.Set("viewedAt>", strconv.FormatInt(f.Since.Unix(), 10))
	}
	mc, err := s.get(ctx, "/status/sessions/history/all", page(query, 0, f.Limit))
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// Accounts lists the server-local accounts history entries refer to.
func (s *Server) Accounts(ctx context.Context) ([]Account, error) {
	mc, err := s.get(ctx, "/accounts", nil)
	if err != nil {
		return nil, err
	}
	return mc.Account, nil
}

// TerminateSession stops a playing session, showing reason to the viewer.
func (s *Server) TerminateSession(ctx context.Context, sessionID, reason string) error {
	query := url.Values{}
	query.Set("sessionId", sessionID)
	if reason != "" {
		query.Set("reason", reason)
	}
	return s.send(ctx, http.MethodGet, "/status/sessions/terminate", query)
}
