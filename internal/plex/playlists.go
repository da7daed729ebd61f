// ABOUTME: Playlist endpoints: list, items, create, edit, add, remove and delete.
// ABOUTME: Items are referenced by server:// URIs built from the machine identifier.

package plex

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

func playlistPath(id int64) string {
	return "/playlists/" + strconv.FormatInt(id, 10)
}

// Playlists lists playlists. playlistType (audio, video, photo) and sectionKey
// are optional filters.
func (s *Server) Playlists(ctx context.Context, playlistType, sectionKey string) ([]Metadata, error) {
	query := url.Values{}
	if playlistType != "" {
		query.Set("playlistType", playlistType)
	}
	if sectionKey != "" {
		query.Set("sectionID", sectionKey)
	}
	mc, err := s.get(ctx, "/playlists", query)
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// PlaylistItems lists the entries of a playlist. Each entry carries its
// PlaylistItemID, which removal needs.
func (s *Server) PlaylistItems(ctx context.Context, id int64) ([]Metadata, error) {
	mc, err := s.get(ctx, playlistPath(id)+"/items", nil)
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// CreatePlaylist creates a regular playlist holding items. The playlist type
// follows the first item.
func (s *Server) CreatePlaylist(ctx context.Context, title string, items []Metadata) (*Metadata, error) {
	if len(items) == 0 {
		return nil, errors.New("a playlist needs at least one item")
	}
	uri, err := s.libraryURI(items)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("type", PlaylistTypeFor(items[0].Type))
	query.Set("title", title)
	query.Set("smart", "0")
	query.Set("uri", uri)

	mc, err := s.container(ctx, http.MethodPost, "/playlists", query)
	if err != nil {
		return nil, err
	}
	if len(mc.Metadata) == 0 {
		return nil, errors.New("server returned no playlist")
	}
	return &mc.Metadata[0], nil
}

// EditPlaylist changes title and/or summary. Nil values are left unchanged.
func (s *Server) EditPlaylist(ctx context.Context, id int64, title, summary *string) error {
	query := url.Values{}
	if title != nil {
		query.Set("title", *title)
	}
	if summary != nil {
		query.Set("summary", *summary)
	}
	return s.send(ctx, http.MethodPut, playlistPath(id), query)
}

// AddPlaylistItems appends items to a playlist.
func (s *Server) AddPlaylistItems(ctx context.Context, id int64, items []Metadata) error {
	uri, err := s.libraryURI(items)
	if err != nil {
		return err
	}
	query := url.Values{}
	query.Set("uri", uri)
	return s.send(ctx, http.MethodPut, playlistPath(id)+"/items", query)
}

// RemovePlaylistItem removes one playlist entry by its playlist item id.
func (s *Server) RemovePlaylistItem(ctx context.Context, id int64, playlistItemID int64) error {
	return s.send(ctx, http.MethodDelete, playlistPath(id)+"/items/"+strconv.FormatInt(playlistItemID, 10), nil)
}

// DeletePlaylist removes a playlist.
func (s *Server) DeletePlaylist(ctx context.Context, id int64) error {
	return s.send(ctx, http.MethodDelete, playlistPath(id), nil)
}
