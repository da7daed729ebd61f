// ABOUTME: Collection endpoints: list per section, children, create, add, remove, delete.
// ABOUTME: Collection edits reuse EditItem since collections are library items.

package plex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func collectionPath(id int64) string {
	return "/library/collections/" + strconv.FormatInt(id, 10)
}

// Collections lists the collections of a section.
func (s *Server) Collections(ctx context.Context, sectionKey string) ([]Metadata, error) {
	mc, err := s.get(ctx, "/library/sections/"+url.PathEscape(sectionKey)+"/collections", nil)
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// CollectionItems lists the members of a collection.
func (s *Server) CollectionItems(ctx context.Context, id int64) ([]Metadata, error) {
	mc, err := s.get(ctx, collectionPath(id)+"/children", nil)
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// CreateCollection creates a regular collection in a section holding items.
func (s *Server) CreateCollection(ctx context.Context, sectionKey, title string, items []Metadata) (*Metadata, error) {
	if len(items) == 0 {
		return nil, errors.New("a collection needs at least one item")
	}
	n, ok := TypeNumber(items[0].Type)
	if !ok {
		return nil, fmt.Errorf("cannot collect items of type %q", items[0].Type)
	}
	uri, err := s.libraryURI(items)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("type", strconv.Itoa(n))
	query.Set("title", title)
	query.Set("smart", "0")
	query.Set("sectionId", sectionKey)
	query.Set("uri", uri)

	mc, err := s.container(ctx, http.MethodPost, "/library/collections", query)
	if err != nil {
		return nil, err
	}
	if len(mc.Metadata) == 0 {
		return nil, errors.New("server returned no collection")
	}
	return &mc.Metadata[0], nil
}

// AddCollectionItems adds items to a collection.
func (s *Server) AddCollectionItems(ctx context.Context, id int64, items []Metadata) error {
	uri, err := s.libraryURI(items)
	if err != nil {
		return err
	}
	query := url.Values{}
	query.Set("uri", uri)
	return s.send(ctx, http.MethodPut, collectionPath(id)+"/items", query)
}

// RemoveCollectionItem removes one member from a collection.
func (s *Server) RemoveCollectionItem(ctx context.Context, id, ratingKey int64) error {
	return s.send(ctx, http.MethodDelete, collectionPath(id)+"/items/"+strconv.FormatInt(ratingKey, 10), nil)
}

// DeleteCollection removes a collection. Its members stay in the library.
func (s *Server) DeleteCollection(ctx context.Context, id int64) error {
	return s.send(ctx, http.MethodDelete, collectionPath(id), nil)
}
