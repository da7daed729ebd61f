// ABOUTME: Tests for the playlist pack: lookup rules, creation, edits, membership and copying.
// ABOUTME: The fake server doubles as plex.tv for the shared-user token exchange.

package builtins

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex/plextest"
)

func playlistFixture(t *testing.T) (*plextest.Server, *packs.BuiltinPack) {
	t.Helper()
	fake, mgr := newTestManager(t)
	fake.Metadata("/playlists",
		map[string]any{"ratingKey": "500", "key": "/playlists/500/items", "title": "Road Trip", "playlistType": "audio", "leafCount": 2},
		map[string]any{"ratingKey": "501", "key": "/playlists/501/items", "title": "Mix", "playlistType": "audio", "leafCount": 3},
		map[string]any{"ratingKey": "502", "key": "/playlists/502/items", "title": "mix", "playlistType": "video", "leafCount": 7},
	)
	fake.Metadata("/library/metadata/500", map[string]any{"ratingKey": "500", "type": "playlist", "title": "Road Trip", "playlistType": "audio"})
	fake.Metadata("/playlists/500/items",
		map[string]any{"ratingKey": "1", "type": "track", "title": "Highway Star", "playlistItemID": "9001", "grandparentTitle": "Deep Purple", "parentTitle": "Machine Head"},
		map[string]any{"ratingKey": "2", "type": "track", "title": "Radar Love", "playlistItemID": "9002"},
	)
	return fake, PlaylistPack(mgr, testLogger())
}

func TestPlaylistList(t *testing.T) {
	fake, pack := playlistFixture(t)

	env := invoke(t, pack, "playlist_list", `{"content_type":"AUDIO"}`)
	assert.Equal(t, "success", env["status"])
	assert.EqualValues(t, 3, env["count"])
	first := env["playlists"].([]any)[0].(map[string]any)
	assert.Equal(t, "Road Trip", first["title"])
	assert.EqualValues(t, 500, first["ratingKey"])
	assert.EqualValues(t, 2, first["item_count"])
	assert.Equal(t, "audio", fake.Last(http.MethodGet, "/playlists").Query.Get("playlistType"))

	env = invoke(t, pack, "playlist_list", `{"content_type":"podcast"}`)
	assert.Equal(t, "Invalid content type. Valid types are: audio, video, photo", env["message"])

	env = invoke(t, pack, "playlist_list", `{"library_name":"Movies"}`)
	assert.Equal(t, "1", fake.Last(http.MethodGet, "/playlists").Query.Get("sectionID"))
}

func TestPlaylistLookup(t *testing.T) {
	_, pack := playlistFixture(t)

	t.Run("title match is case-insensitive and exact", func(t *testing.T) {
		env := invoke(t, pack, "playlist_get_contents", `{"playlist_title":"road trip"}`)
		assert.Equal(t, "success", env["status"])
		assert.EqualValues(t, 2, env["item_count"])
		first := env["items"].([]any)[0].(map[string]any)
		assert.Equal(t, "Deep Purple", first["artist"])
		assert.Equal(t, "Machine Head", first["album"])
	})

	t.Run("several titles", func(t *testing.T) {
		env := invoke(t, pack, "playlist_get_contents", `{"playlist_title":"MIX"}`)
		assert.Equal(t, "multiple_results", env["status"])
		assert.EqualValues(t, 2, env["count"])
		results := env["results"].([]any)
		assert.EqualValues(t, 3, results[0].(map[string]any)["item_count"])
		assert.EqualValues(t, 7, results[1].(map[string]any)["item_count"])
	})

	t.Run("unknown title", func(t *testing.T) {
		env := invoke(t, pack, "playlist_get_contents", `{"playlist_title":"Nope"}`)
		assert.Equal(t, "No playlist found with title 'Nope'", env["message"])
	})

	t.Run("id falls back to the playlist listing", func(t *testing.T) {
		env := invoke(t, pack, "playlist_delete", `{"playlist_id":777}`)
		assert.Equal(t, "Playlist with ID '777' not found", env["message"])
	})

	t.Run("no identifiers", func(t *testing.T) {
		env := invoke(t, pack, "playlist_get_contents", `{}`)
		assert.Equal(t, "Either playlist_id or playlist_title must be provided", env["message"])
	})
}

func TestPlaylistCreate(t *testing.T) {
	fake, pack := playlistFixture(t)
	searchHits(fake, map[string]any{"ratingKey": "1", "type": "track", "title": "Highway Star"})
	fake.Container(http.MethodPost, "/playlists", map[string]any{
		"Metadata": []map[string]any{{"ratingKey": "600", "key": "/playlists/600/items", "title": "Drive"}},
	})
	fake.Status(http.MethodPut, "/playlists/600", http.StatusOK)

	env := invoke(t, pack, "playlist_create", `{"playlist_title":"Drive","item_titles":["Highway Star"],"summary":"for the car"}`)
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, "Playlist 'Drive' created successfully", env["message"])
	data := env["data"].(map[string]any)
	assert.EqualValues(t, 600, data["ratingKey"])
	assert.EqualValues(t, 1, data["item_count"])

	assert.Equal(t, "audio", fake.Last(http.MethodPost, "/playlists").Query.Get("type"))
	assert.Equal(t, "for the car", fake.Last(http.MethodPut, "/playlists/600").Query.Get("summary"))

	searchHits(fake)
	env = invoke(t, pack, "playlist_create", `{"playlist_title":"Drive","item_titles":["Missing Song"]}`)
	assert.Equal(t, "Item 'Missing Song' not found", env["message"])
}

func TestPlaylistEdit(t *testing.T) {
	fake, pack := playlistFixture(t)
	fake.Status(http.MethodPut, "/playlists/500", http.StatusOK)

	env := invoke(t, pack, "playlist_edit", `{"playlist_id":500,"new_title":"Road Trip"}`)
	assert.Equal(t, "no_changes", env["status"])
	assert.Equal(t, "No changes made to the playlist", env["message"])

	env = invoke(t, pack, "playlist_edit", `{"playlist_id":500,"new_title":"Long Drive"}`)
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, []any{"title from 'Road Trip' to 'Long Drive'"}, env["changes"])
	assert.Equal(t, "Long Drive", fake.Last(http.MethodPut, "/playlists/500").Query.Get("title"))
}

func TestPlaylistUploadPoster(t *testing.T) {
	fake, pack := playlistFixture(t)
	fake.Status(http.MethodPost, "/library/metadata/500/posters", http.StatusOK)

	env := invoke(t, pack, "playlist_upload_poster", `{"playlist_id":500}`)
	assert.Equal(t, "Either poster_url or poster_filepath must be provided", env["message"])

	env = invoke(t, pack, "playlist_upload_poster", `{"playlist_id":500,"poster_url":"http://x","poster_filepath":"/y"}`)
	assert.Equal(t, "Provide either poster_url or poster_filepath, not both", env["message"])

	path := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(path, pngBytes, 0o644))
	env = invoke(t, pack, "playlist_upload_poster", `{"playlist_id":500,"poster_filepath":"`+path+`"}`)
	assert.Equal(t, "Poster uploaded successfully for playlist 'Road Trip'", env["message"])
	assert.Equal(t, pngBytes, fake.Last(http.MethodPost, "/library/metadata/500/posters").Body)
}

func TestPlaylistRemoveFrom(t *testing.T) {
	fake, pack := playlistFixture(t)
	fake.Status(http.MethodDelete, "/playlists/500/items/9002", http.StatusOK)

	env := invoke(t, pack, "playlist_remove_from", `{"playlist_id":500,"item_titles":["radar love"]}`)
	assert.Equal(t, "Removed 1 items from playlist 'Road Trip'", env["message"])
	assert.Equal(t, 1, fake.Count(http.MethodDelete, "/playlists/500/items/9002"))

	env = invoke(t, pack, "playlist_remove_from", `{"playlist_id":500,"item_titles":["Smoke on the Water"]}`)
	assert.Equal(t, "Item 'Smoke on the Water' not found in playlist", env["message"])
}

func TestPlaylistCopyToUser(t *testing.T) {
	fake, pack := playlistFixture(t)
	fake.Handle(http.MethodGet, "/api/servers/"+plextest.MachineID+"/shared_servers", func(w http.ResponseWriter, _ *http.Request) {
		// the fake only accepts its own token, so the shared user gets the same one
		_, _ = w.Write([]byte(`<MediaContainer><SharedServer id="1" userID="7" username="alice" email="alice@example.com" accessToken="` + plextest.Token + `"/></MediaContainer>`))
	})
	fake.Container(http.MethodPost, "/playlists", map[string]any{
		"Metadata": []map[string]any{{"ratingKey": "900", "title": "Road Trip"}},
	})

	env := invoke(t, pack, "playlist_copy_to_user", `{"playlist_title":"Road Trip","username":"alice"}`)
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, "Playlist 'Road Trip' copied to user 'alice' successfully", env["message"])
	req := fake.Last(http.MethodPost, "/playlists")
	require.NotNil(t, req)
	assert.Equal(t, "server://"+plextest.MachineID+"/com.plexapp.plugins.library/library/metadata/1,2", req.Query.Get("uri"))

	env = invoke(t, pack, "playlist_copy_to_user", `{"playlist_title":"Road Trip","username":"bob"}`)
	assert.Equal(t, "User 'bob' not found", env["message"])

	env = invoke(t, pack, "playlist_copy_to_user", `{"playlist_title":"Road Trip"}`)
	assert.Equal(t, "Username must be provided", env["message"])
}
