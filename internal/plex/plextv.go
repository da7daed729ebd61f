// ABOUTME: plex.tv account endpoints: owner account, friends and shared-server tokens.
// ABOUTME: shared_servers only speaks XML, so it is decoded with encoding/xml.

package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
)

// PlexAccount is the plex.tv account owning the token.
type PlexAccount struct {
	ID           int64        `json:"id"`
	UUID         string       `json:"uuid"`
	Username     string       `json:"username"`
	Title        string       `json:"title"`
	Email        string       `json:"email"`
	Thumb        string       `json:"thumb"`
	JoinedAt     int64        `json:"joinedAt"`
	Subscription Subscription `json:"subscription"`
}

// Subscription is the Plex Pass state of an account.
type Subscription struct {
	Active bool   `json:"active"`
	Status string `json:"status"`
	Plan   string `json:"plan"`
}

// Friend is a plex.tv user the owner shares with.
type Friend struct {
	ID         int64  `json:"id"`
	UUID       string `json:"uuid"`
	Username   string `json:"username"`
	Title      string `json:"title"`
	Email      string `json:"email"`
	Thumb      string `json:"thumb"`
	Restricted bool   `json:"restricted"`
	Home       bool   `json:"home"`
	Status     string `json:"status"`
}

// Name returns the username, falling back to the display title.
func (f Friend) Name() string {
	if f.Username != "" {
		return f.Username
	}
	return f.Title
}

// SharedServer is one user's access grant to this server.
type SharedServer struct {
	ID          FlexInt `xml:"id,attr"`
	UserID      FlexInt `xml:"userID,attr"`
	Username    string  `xml:"username,attr"`
	Email       string  `xml:"email,attr"`
	Name        string  `xml:"name,attr"`
	AccessToken string  `xml:"accessToken,attr"`
}

// Account returns the plex.tv account owning the token.
func (s *Server) Account(ctx context.Context) (*PlexAccount, error) {
	var acct PlexAccount
	if err := s.decode(ctx, http.MethodGet, s.tvURL+"/api/v2/user", nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Friends lists the users the owner shares with.
func (s *Server) Friends(ctx context.Context) ([]Friend, error) {
	var friends []Friend
	if err := s.decode(ctx, http.MethodGet, s.tvURL+"/api/v2/friends", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// SharedServers lists the access grants to this server, including the
// per-user tokens needed to act as those users.
func (s *Server) SharedServers(ctx context.Context) ([]SharedServer, error) {
	if s.identity.MachineIdentifier == "" {
		return nil, ErrNoMachineIdentifier
	}
	data, err := s.raw(ctx, http.MethodGet, s.tvURL+"/api/servers/"+s.identity.MachineIdentifier+"/shared_servers", nil, nil)
	if err != nil {
		return nil, err
	}
	var doc struct {
		SharedServer []SharedServer `xml:"SharedServer"`
	}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding shared servers: %w", err)
	}
	return doc.SharedServer, nil
}

// UserToken returns the server access token of a shared user, matched by
// username or email, case-insensitively.
func (s *Server) UserToken(ctx context.Context, username string) (string, error) {
	shared, err := s.SharedServers(ctx)
	if err != nil {
		return "", err
	}
	for _, ss := range shared {
		if strings.EqualFold(ss.Username, username) || strings.EqualFold(ss.Email, username) {
			return ss.AccessToken, nil
		}
	}
	return "", fmt.Errorf("user %q: %w", username, ErrNotFound)
}
