// ABOUTME: Tests for the Plex handle: request headers, decoding quirks and endpoint shapes.
// ABOUTME: Each test drives a plextest fake server through an acquired handle.

package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/plex-mcp-server/internal/plex/plextest"
)

func acquire(t *testing.T, fake *plextest.Server) *Server {
	t.Helper()
	m, err := NewManager(ManagerConfig{URL: fake.URL, Token: plextest.Token, PlexTVURL: fake.URL})
	require.NoError(t, err)
	srv, err := m.Acquire(context.Background())
	require.NoError(t, err)
	return srv
}

func TestFlexInt(t *testing.T) {
	var v struct {
		A FlexInt `json:"a"`
		B FlexInt `json:"b"`
		C FlexInt `json:"c"`
		D FlexInt `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"42","b":7,"c":null,"d":3.0}`), &v))
	assert.Equal(t, FlexInt(42), v.A)
	assert.Equal(t, FlexInt(7), v.B)
	assert.Equal(t, FlexInt(0), v.C)
	assert.Equal(t, FlexInt(3), v.D)
	assert.Equal(t, "42", v.A.String())

	var bad FlexInt
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &bad))
}

func TestFlexBool(t *testing.T) {
	var v struct {
		A FlexBool `json:"a"`
		B FlexBool `json:"b"`
		C FlexBool `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"1","b":true,"c":0}`), &v))
	assert.True(t, bool(v.A))
	assert.True(t, bool(v.B))
	assert.False(t, bool(v.C))
}

func TestRequestHeaders(t *testing.T) {
	fake := plextest.New(t)
	srv := acquire(t, fake)

	req := fake.Last(http.MethodGet, "/library/sections")
	require.NotNil(t, req)
	assert.Equal(t, plextest.Token, req.Header.Get("X-Plex-Token"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, ClientIdentifier, req.Header.Get("X-Plex-Client-Identifier"))
	assert.Equal(t, fake.URL, srv.BaseURL())
}

func TestTokenOnlySentToOwnHosts(t *testing.T) {
	fake := plextest.New(t)
	srv := acquire(t, fake)
	base, err := url.Parse(fake.URL)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		want   bool
	}{
		{"relative path", "/library/sections", true},
		{"absolute on server", fake.URL + "/photo/1", true},
		{"host sharing a prefix", "http://" + base.Hostname() + ".example.com:" + base.Port() + "/photo/1", false},
		{"port sharing a prefix", fake.URL + "0/photo/1", false},
		{"other scheme", "https://" + base.Host + "/photo/1", false},
		{"foreign host", "https://image.tmdb.org/t/p/original/a.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := srv.newRequest(context.Background(), http.MethodGet, tt.target, nil, nil)
			require.NoError(t, err)
			if tt.want {
				assert.Equal(t, plextest.Token, req.Header.Get("X-Plex-Token"))
			} else {
				assert.Empty(t, req.Header.Get("X-Plex-Token"))
			}
		})
	}
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	fake := plextest.New(t)
	srv := acquire(t, fake)

	_, err := srv.FetchItem(context.Background(), 999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "/library/metadata/999", statusErr.Path)
}

func TestSectionByTitle(t *testing.T) {
	fake := plextest.New(t)
	fake.Sections(
		map[string]any{"key": "1", "type": "movie", "title": "Movies"},
		map[string]any{"key": "2", "type": "show", "title": "TV Shows"},
	)
	srv := acquire(t, fake)

	sec, err := srv.SectionByTitle(context.Background(), "tv shows")
	require.NoError(t, err)
	assert.Equal(t, "2", sec.Key)

	_, err = srv.SectionByTitle(context.Background(), "Anime")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSearchLibrary(t *testing.T) {
	fake := plextest.New(t)
	fake.Container(http.MethodGet, "/library/search", map[string]any{
		"SearchResult": []map[string]any{
			{"score": 0.9, "Metadata": map[string]any{"ratingKey": "10", "type": "movie", "title": "Alien"}},
			{"score": 0.5},
		},
	})
	srv := acquire(t, fake)

	items, err := srv.SearchLibrary(context.Background(), "alien", "movies")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, FlexInt(10), items[0].RatingKey)

	q := fake.Last(http.MethodGet, "/library/search").Query
	assert.Equal(t, "alien", q.Get("query"))
	assert.Equal(t, "100", q.Get("limit"))
	assert.Equal(t, "1", q.Get("includeCollections"))
	assert.Equal(t, "1", q.Get("includeExternalMedia"))
	assert.Equal(t, "movies", q.Get("searchTypes"))
}

func TestSearchHubs(t *testing.T) {
	fake := plextest.New(t)
	fake.Container(http.MethodGet, "/hubs/search", map[string]any{
		"Hub": []map[string]any{
			{"hubIdentifier": "movie", "Metadata": []map[string]any{{"ratingKey": "1", "type": "movie", "title": "Alien"}}},
			{"hubIdentifier": "actor"},
			{"hubIdentifier": "show", "Metadata": []map[string]any{{"ratingKey": "2", "type": "show", "title": "Alien Nation"}}},
		},
	})
	srv := acquire(t, fake)

	items, err := srv.SearchHubs(context.Background(), "alien", 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, FlexInt(1), items[0].RatingKey)
	assert.Equal(t, "show", items[1].Type)

	q := fake.Last(http.MethodGet, "/hubs/search").Query
	assert.Equal(t, "alien", q.Get("query"))
	assert.Equal(t, "20", q.Get("limit"))
}

func TestEditItem(t *testing.T) {
	fake := plextest.New(t)
	fake.Status(http.MethodPut, "/library/sections/1/all", http.StatusOK)
	srv := acquire(t, fake)

	edits := url.Values{}
	SetField(edits, "title", "Aliens")
	AddTags(edits, "genre", []string{"Action", "Horror"})
	RemoveTags(edits, "label", []string{"Old"})

	item := &Metadata{RatingKey: 10, Type: "movie", SectionID: 1}
	require.NoError(t, srv.EditItem(context.Background(), item, edits))

	q := fake.Last(http.MethodPut, "/library/sections/1/all").Query
	assert.Equal(t, "1", q.Get("type"))
	assert.Equal(t, "10", q.Get("id"))
	assert.Equal(t, "Aliens", q.Get("title.value"))
	assert.Equal(t, "1", q.Get("title.locked"))
	assert.Equal(t, "Action", q.Get("genre[0].tag.tag"))
	assert.Equal(t, "Horror", q.Get("genre[1].tag.tag"))
	assert.Equal(t, "Old", q.Get("label[].tag.tag-"))

	err := srv.EditItem(context.Background(), &Metadata{Type: "mystery"}, edits)
	assert.Error(t, err)
}

func TestCreatePlaylistBuildsLibraryURI(t *testing.T) {
	fake := plextest.New(t)
	fake.Container(http.MethodPost, "/playlists", map[string]any{
		"Metadata": []map[string]any{{"ratingKey": "500", "title": "Mix", "type": "playlist"}},
	})
	srv := acquire(t, fake)

	pl, err := srv.CreatePlaylist(context.Background(), "Mix", []Metadata{
		{RatingKey: 1, Type: "track"},
		{RatingKey: 2, Type: "track"},
	})
	require.NoError(t, err)
	assert.Equal(t, FlexInt(500), pl.RatingKey)

	q := fake.Last(http.MethodPost, "/playlists").Query
	assert.Equal(t, "audio", q.Get("type"))
	assert.Equal(t, "0", q.Get("smart"))
	assert.Equal(t, "server://"+plextest.MachineID+"/com.plexapp.plugins.library/library/metadata/1,2", q.Get("uri"))

	_, err = srv.CreatePlaylist(context.Background(), "Empty", nil)
	assert.Error(t, err)
}

func TestLogs(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range map[string]string{
		"Plex Media Server.log":  "line one\nline two\n",
		"Plex Media Scanner.log": "scan\n",
		"README.txt":             "skip me",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	fake := plextest.New(t)
	fake.Bytes("/diagnostics/logs", buf.Bytes())
	srv := acquire(t, fake)

	files, err := srv.Logs(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Plex Media Scanner.log", files[0].Name)
	assert.Equal(t, "Plex Media Server.log", files[1].Name)
	assert.Equal(t, "line one\nline two\n", files[1].Content)
}

func TestTimelinesDecodesXML(t *testing.T) {
	fake := plextest.New(t)
	fake.Handle(http.MethodGet, "/player/timeline/poll", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<MediaContainer><Timeline type="video" state="playing" time="1000" duration="5000" ratingKey="42"/><Timeline type="music" state="stopped"/></MediaContainer>`))
	})
	srv := acquire(t, fake)

	tl, err := srv.Timelines(context.Background(), Device{MachineIdentifier: "player-1"})
	require.NoError(t, err)
	require.Len(t, tl, 2)
	assert.Equal(t, "playing", tl[0].State)
	assert.Equal(t, FlexInt(42), tl[0].RatingKey)

	req := fake.Last(http.MethodGet, "/player/timeline/poll")
	assert.Equal(t, "player-1", req.Header.Get("X-Plex-Target-Client-Identifier"))
	assert.NotEmpty(t, req.Query.Get("commandID"))
}

func TestUserToken(t *testing.T) {
	fake := plextest.New(t)
	fake.Handle(http.MethodGet, "/api/servers/"+plextest.MachineID+"/shared_servers", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<MediaContainer><SharedServer id="1" userID="7" username="alice" email="alice@example.com" accessToken="alice-token"/></MediaContainer>`))
	})
	srv := acquire(t, fake)

	tok, err := srv.UserToken(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice-token", tok)

	_, err = srv.UserToken(context.Background(), "bob")
	assert.True(t, errors.Is(err, ErrNotFound))

	as := srv.AsToken("alice-token")
	assert.Equal(t, srv.MachineIdentifier(), as.MachineIdentifier())
}
