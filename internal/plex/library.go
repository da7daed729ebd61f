// ABOUTME: Library endpoints: server identity, sections, listings and search.
// ABOUTME: Section lookup by title is case-insensitive and returns ErrNotFound on miss.

package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SearchLimit is the number of hits requested from the library search.
const SearchLimit = 100

func (s *Server) fetchIdentity(ctx context.Context) (Identity, error) {
	mc, err := s.get(ctx, "/", nil)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		FriendlyName:                  mc.FriendlyName,
		MachineIdentifier:             mc.MachineIdentifier,
		Version:                       mc.Version,
		Platform:                      mc.Platform,
		PlatformVersion:               mc.PlatformVersion,
		MyPlex:                        bool(mc.MyPlex),
		MyPlexUsername:                mc.MyPlexUsername,
		MyPlexSubscription:            bool(mc.MyPlexSubscription),
		TranscoderActiveVideoSessions: mc.TranscoderActiveVideoSessions,
		UpdatedAt:                     mc.UpdatedAt,
	}, nil
}

// RefreshIdentity re-reads the server root, for live counters such as the
// number of active transcodes.
func (s *Server) RefreshIdentity(ctx context.Context) (Identity, error) {
	return s.fetchIdentity(ctx)
}

// Sections lists the library sections.
func (s *Server) Sections(ctx context.Context) ([]Directory, error) {
	mc, err := s.get(ctx, "/library/sections", nil)
	if err != nil {
		return nil, err
	}
	return mc.Directory, nil
}

// SectionByTitle finds a section by case-insensitive title.
func (s *Server) SectionByTitle(ctx context.Context, title string) (*Directory, error) {
	sections, err := s.Sections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		if strings.EqualFold(sections[i].Title, title) {
			return &sections[i], nil
		}
	}
	return nil, fmt.Errorf("library %q: %w", title, ErrNotFound)
}

// ItemQuery filters a section listing.
type ItemQuery struct {
	Type      string
	Unwatched bool
	Title     string
	Offset    int
	Limit     int
}

// SectionItems lists the items of a section. The returned total is the size
// of the whole listing, not just the page.
func (s *Server) SectionItems(ctx context.Context, sectionKey string, q ItemQuery) ([]Metadata, int, error) {
	query := url.Values{}
	if q.Type != "" {
		n, ok := TypeNumber(q.Type)
		if !ok {
			return nil, 0, fmt.Errorf("unknown item type %q", q.Type)
		}
		query.Set("type", strconv.Itoa(n))
	}
	if q.Unwatched {
		query.Set("unwatched", "1")
	}
	if q.Title != "" {
		query.Set("title", q.Title)
	}
	mc, err := s.get(ctx, "/library/sections/"+url.PathEscape(sectionKey)+"/all", page(query, q.Offset, q.Limit))
	if err != nil {
		return nil, 0, err
	}
	total := mc.TotalSize
	if total == 0 {
		total = mc.Size
	}
	return mc.Metadata, total, nil
}

// SectionCount returns how many items of the given type a section holds
// without fetching them.
func (s *Server) SectionCount(ctx context.Context, sectionKey, itemType string) (int, error) {
	query := url.Values{}
	if itemType != "" {
		n, ok := TypeNumber(itemType)
		if !ok {
			return 0, fmt.Errorf("unknown item type %q", itemType)
		}
		query.Set("type", strconv.Itoa(n))
	}
	query.Set("X-Plex-Container-Start", "0")
	query.Set("X-Plex-Container-Size", "0")
	mc, err := s.get(ctx, "/library/sections/"+url.PathEscape(sectionKey)+"/all", query)
	if err != nil {
		return 0, err
	}
	if mc.TotalSize > 0 {
		return mc.TotalSize, nil
	}
	return mc.Size, nil
}

// SearchSection lists section items whose title contains the given text.
func (s *Server) SearchSection(ctx context.Context, sectionKey, title, itemType string) ([]Metadata, error) {
	items, _, err := s.SectionItems(ctx, sectionKey, ItemQuery{Title: title, Type: itemType})
	return items, err
}

// RecentlyAdded lists recently added items, optionally for one section.
func (s *Server) RecentlyAdded(ctx context.Context, sectionKey string, limit int) ([]Metadata, error) {
	path := "/library/recentlyAdded"
	if sectionKey != "" {
		path = "/library/sections/" + url.PathEscape(sectionKey) + "/recentlyAdded"
	}
	mc, err := s.get(ctx, path, page(nil, 0, limit))
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// OnDeck lists the continue-watching items of the token's user.
func (s *Server) OnDeck(ctx context.Context, limit int) ([]Metadata, error) {
	mc, err := s.get(ctx, "/library/onDeck", page(nil, 0, limit))
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// RefreshSection asks the server to rescan a section. An empty key refreshes
// every section.
func (s *Server) RefreshSection(ctx context.Context, sectionKey string) error {
	if sectionKey == "" {
		return s.send(ctx, http.MethodGet, "/library/sections/all/refresh", nil)
	}
	return s.send(ctx, http.MethodGet, "/library/sections/"+url.PathEscape(sectionKey)+"/refresh", nil)
}

// ScanSectionPath scans one folder of a section.
func (s *Server) ScanSectionPath(ctx context.Context, sectionKey, path string) error {
	query := url.Values{}
	if path != "" {
		query.Set("path", path)
	}
	return s.send(ctx, http.MethodGet, "/library/sections/"+url.PathEscape(sectionKey)+"/refresh", query)
}

// EmptyTrash removes items whose files are gone from a section.
func (s *Server) EmptyTrash(ctx context.Context, sectionKey string) error {
	return s.send(ctx, http.MethodPut, "/library/sections/"+url.PathEscape(sectionKey)+"/emptyTrash", nil)
}

// SearchLibrary runs the server-wide library search. searchTypes may be empty
// or a comma-separated list of buckets such as "movies,tv".
func (s *Server) SearchLibrary(ctx context.Context, query, searchTypes string) ([]Metadata, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(SearchLimit))
	params.Set("includeCollections", "1")
	params.Set("includeExternalMedia", "1")
	if searchTypes != "" {
		params.Set("searchTypes", searchTypes)
	}

	mc, err := s.get(ctx, "/library/search", params)
	if err != nil {
		return nil, err
	}
	items := make([]Metadata, 0, len(mc.SearchResult))
	for _, hit := range mc.SearchResult {
		if hit.Metadata != nil {
			items = append(items, *hit.Metadata)
		}
	}
	return items, nil
}

// SearchHubs runs the hub search across all libraries and flattens the hubs.
func (s *Server) SearchHubs(ctx context.Context, query string, limit int) ([]Metadata, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("includeCollections", "1")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	mc, err := s.get(ctx, "/hubs/search", params)
	if err != nil {
		return nil, err
	}
	var items []Metadata
	for _, hub := range mc.Hub {
		items = append(items, hub.Metadata...)
	}
	return items, nil
}
