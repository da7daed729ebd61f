// ABOUTME: Metadata item endpoints: fetch, edit, delete and artwork.
// ABOUTME: Images are sniffed with mimetype to pick content type and extension.

package plex

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ArtKind selects posters or background art.
type ArtKind string

const (
	// Posters is the poster (thumb) artwork.
	Posters ArtKind = "posters"
	// Arts is the background (art) artwork.
	Arts ArtKind = "arts"
)

func metadataPath(ratingKey int64) string {
	return "/library/metadata/" + strconv.FormatInt(ratingKey, 10)
}

// FetchItem loads one item by rating key.
func (s *Server) FetchItem(ctx context.Context, ratingKey int64) (*Metadata, error) {
	mc, err := s.get(ctx, metadataPath(ratingKey), nil)
	if err != nil {
		return nil, err
	}
	if len(mc.Metadata) == 0 {
		return nil, fmt.Errorf("item %d: %w", ratingKey, ErrNotFound)
	}
	return &mc.Metadata[0], nil
}

// Children lists the direct children of an item, such as the seasons of a show.
func (s *Server) Children(ctx context.Context, ratingKey int64) ([]Metadata, error) {
	mc, err := s.get(ctx, metadataPath(ratingKey)+"/children", nil)
	if err != nil {
		return nil, err
	}
	return mc.Metadata, nil
}

// SetField records a locked field edit, for example SetField(q, "title", "Alien").
func SetField(edits url.Values, field, value string) {
	edits.Set(field+".value", value)
	edits.Set(field+".locked", "1")
}

// AddTags records tags to add to a tag field such as "genre" or "label".
func AddTags(edits url.Values, field string, tags []string) {
	for i, tag := range tags {
		edits.Set(fmt.Sprintf("%s[%d].tag.tag", field, i), tag)
	}
	edits.Set(field+".locked", "1")
}

// RemoveTags records tags to remove from a tag field.
func RemoveTags(edits url.Values, field string, tags []string) {
	quoted := make([]string, 0, len(tags))
	for _, tag := range tags {
		quoted = append(quoted, url.QueryEscape(tag))
	}
	edits.Set(field+"[].tag.tag-", strings.Join(quoted, ","))
	edits.Set(field+".locked", "1")
}

// EditItem applies field edits to a library item (movies, shows, music and
// collections alike).
func (s *Server) EditItem(ctx context.Context, item *Metadata, edits url.Values) error {
	n, ok := TypeNumber(item.Type)
	if !ok {
		return fmt.Errorf("cannot edit items of type %q", item.Type)
	}
	query := url.Values{}
	for k, vs := range edits {
		query[k] = append([]string(nil), vs...)
	}
	query.Set("type", strconv.Itoa(n))
	query.Set("id", item.RatingKey.String())
	query.Set("includeExternalMedia", "1")
	return s.send(ctx, http.MethodPut, "/library/sections/"+item.SectionID.String()+"/all", query)
}

// DeleteItem removes an item and its files from the server.
func (s *Server) DeleteItem(ctx context.Context, ratingKey int64) error {
	return s.send(ctx, http.MethodDelete, metadataPath(ratingKey), nil)
}

// Artwork lists the poster or background choices for an item.
func (s *Server) Artwork(ctx context.Context, ratingKey int64, kind ArtKind) ([]Artwork, error) {
	var env struct {
		MediaContainer struct {
			Metadata []Artwork `json:"Metadata"`
		} `json:"MediaContainer"`
	}
	if err := s.decode(ctx, http.MethodGet, metadataPath(ratingKey)+"/"+string(kind), nil, &env); err != nil {
		return nil, err
	}
	return env.MediaContainer.Metadata, nil
}

// Image is downloaded artwork.
type Image struct {
	Data        []byte
	ContentType string
	Extension   string
}

// FetchImage downloads artwork by server path (for example an item's thumb)
// or absolute URL. The token is only sent to the server itself.
func (s *Server) FetchImage(ctx context.Context, path string) (*Image, error) {
	data, err := s.raw(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return sniffImage(data), nil
}

// DownloadImage fetches an image from an arbitrary URL without the token.
func (s *Server) DownloadImage(ctx context.Context, rawURL string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	data, err := s.do(req)
	if err != nil {
		return nil, err
	}
	return sniffImage(data), nil
}

func sniffImage(data []byte) *Image {
	mt := mimetype.Detect(data)
	return &Image{Data: data, ContentType: mt.String(), Extension: mt.Extension()}
}

// ImageURL returns the absolute URL of a server image path, without the token.
func (s *Server) ImageURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return s.baseURL + path
}

// UploadArtworkURL tells the server to fetch new artwork from a URL.
func (s *Server) UploadArtworkURL(ctx context.Context, ratingKey int64, kind ArtKind, imageURL string) error {
	query := url.Values{}
	query.Set("url", imageURL)
	return s.send(ctx, http.MethodPost, metadataPath(ratingKey)+"/"+string(kind), query)
}

// UploadArtworkData uploads image bytes as new artwork.
func (s *Server) UploadArtworkData(ctx context.Context, ratingKey int64, kind ArtKind, data []byte) error {
	req, err := s.newRequest(ctx, http.MethodPost, metadataPath(ratingKey)+"/"+string(kind), nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mimetype.Detect(data).String())
	_, err = s.do(req)
	return err
}
