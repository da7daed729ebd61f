// ABOUTME: Player endpoints: client discovery, remote control commands and timelines.
// ABOUTME: Commands are proxied by the server using X-Plex-Target-Client-Identifier.

package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Clients lists the players the server can see.
func (s *Server) Clients(ctx context.Context) ([]Device, error) {
	mc, err := s.get(ctx, "/clients", nil)
	if err != nil {
		return nil, err
	}
	return mc.Server, nil
}

func (s *Server) playerRequest(ctx context.Context, client Device, path string, params url.Values) ([]byte, error) {
	query := url.Values{}
	for k, vs := range params {
		query[k] = append([]string(nil), vs...)
	}
	query.Set("commandID", strconv.FormatInt(s.commands.Add(1), 10))

	req, err := s.newRequest(ctx, http.MethodGet, "/player/"+path, query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Plex-Target-Client-Identifier", client.MachineIdentifier)
	return s.do(req)
}

// PlayerCommand sends a remote control command such as "playback/pause" or
// "navigation/moveUp" to a player.
func (s *Server) PlayerCommand(ctx context.Context, client Device, command string, params url.Values) error {
	_, err := s.playerRequest(ctx, client, command, params)
	return err
}

// Timelines polls a player's current playback state.
func (s *Server) Timelines(ctx context.Context, client Device) ([]Timeline, error) {
	params := url.Values{}
	params.Set("wait", "0")
	data, err := s.playerRequest(ctx, client, "timeline/poll", params)
	if err != nil {
		return nil, err
	}
	return decodeTimelines(data)
}

// decodeTimelines accepts the JSON container or the XML most players answer with.
func decodeTimelines(data []byte) ([]Timeline, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '<' {
		var doc struct {
			Timeline []Timeline `xml:"Timeline"`
		}
		if err := xml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decoding timeline: %w", err)
		}
		return doc.Timeline, nil
	}
	var env containerEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decoding timeline: %w", err)
	}
	return env.MediaContainer.Timeline, nil
}

// CreatePlayQueue creates a play queue starting at item and returns its id.
func (s *Server) CreatePlayQueue(ctx context.Context, item Metadata) (int64, error) {
	uri, err := s.libraryURI([]Metadata{item})
	if err != nil {
		return 0, err
	}
	query := url.Values{}
	query.Set("type", PlaylistTypeFor(item.Type))
	query.Set("uri", uri)
	query.Set("shuffle", "0")
	query.Set("repeat", "0")
	query.Set("continuous", "0")
	query.Set("includeChapters", "1")

	mc, err := s.container(ctx, http.MethodPost, "/playQueues", query)
	if err != nil {
		return 0, err
	}
	return int64(mc.PlayQueueID), nil
}
