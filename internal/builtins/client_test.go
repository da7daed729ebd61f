// ABOUTME: Tests for the client pack: discovery, argument validation and player commands.
// ABOUTME: Player commands are checked on the fake server's /player routes.

package builtins

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/plex/plextest"
)

func clientFixture(t *testing.T) (*plextest.Server, *packs.BuiltinPack) {
	t.Helper()
	fake, mgr := newTestManager(t)
	fake.Container(http.MethodGet, "/clients", map[string]any{"Server": []map[string]any{{
		"name":                 "Living Room",
		"product":              "Plex for Roku",
		"machineIdentifier":    "player-1",
		"protocolCapabilities": "timeline,playback,navigation",
	}}})
	return fake, ClientPack(mgr, testLogger())
}

func TestClientList(t *testing.T) {
	_, pack := clientFixture(t)

	env := invoke(t, pack, "client_list", `{}`)
	assert.EqualValues(t, 1, env["count"])
	c := env["clients"].([]any)[0].(map[string]any)
	assert.Equal(t, []any{"timeline", "playback", "navigation"}, c["protocol_capabilities"])

	env = invoke(t, pack, "client_get_details", `{"client_name":"living room"}`)
	assert.Equal(t, "success", env["status"])

	env = invoke(t, pack, "client_get_details", `{"client_name":"Bedroom"}`)
	assert.Equal(t, "Client 'Bedroom' not found", env["message"])
}

func TestClientControlPlayback(t *testing.T) {
	fake, pack := clientFixture(t)
	fake.Status(http.MethodGet, "/player/playback/pause", http.StatusOK)
	fake.Status(http.MethodGet, "/player/playback/seekTo", http.StatusOK)
	fake.Status(http.MethodGet, "/player/playback/setParameters", http.StatusOK)

	tests := []struct {
		name    string
		args    string
		message string
	}{
		{"unknown action", `{"client_name":"Living Room","action":"rewind"}`, "Invalid action 'rewind'"},
		{"missing parameter", `{"client_name":"Living Room","action":"seekTo"}`, "Action 'seekTo' requires a parameter"},
		{"volume range", `{"client_name":"Living Room","action":"setVolume","parameter":150}`, "Volume must be between 0 and 100"},
		{"media type", `{"client_name":"Living Room","action":"pause","media_type":"radio"}`, "Invalid media_type 'radio'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := invoke(t, pack, "client_control_playback", tt.args)
			assert.Equal(t, "error", env["status"])
			assert.Contains(t, env["message"], tt.message)
		})
	}

	env := invoke(t, pack, "client_control_playback", `{"client_name":"Living Room","action":"pause"}`)
	assert.Equal(t, "success", env["status"])
	req := fake.Last(http.MethodGet, "/player/playback/pause")
	require.NotNil(t, req)
	assert.Equal(t, "player-1", req.Header.Get("X-Plex-Target-Client-Identifier"))
	assert.Equal(t, "video", req.Query.Get("type"))

	invoke(t, pack, "client_control_playback", `{"client_name":"Living Room","action":"seekTo","parameter":60000}`)
	assert.Equal(t, "60000", fake.Last(http.MethodGet, "/player/playback/seekTo").Query.Get("offset"))

	invoke(t, pack, "client_control_playback", `{"client_name":"Living Room","action":"setVolume","parameter":30,"media_type":"music"}`)
	q := fake.Last(http.MethodGet, "/player/playback/setParameters").Query
	assert.Equal(t, "30", q.Get("volume"))
	assert.Equal(t, "music", q.Get("type"))
}

func TestClientNavigate(t *testing.T) {
	fake, pack := clientFixture(t)
	fake.Status(http.MethodGet, "/player/navigation/moveUp", http.StatusOK)

	env := invoke(t, pack, "client_navigate", `{"client_name":"Living Room","action":"moveUp"}`)
	assert.Equal(t, "Sent 'moveUp' to 'Living Room'", env["message"])
	assert.Equal(t, 1, fake.Count(http.MethodGet, "/player/navigation/moveUp"))

	env = invoke(t, pack, "client_navigate", `{"client_name":"Living Room","action":"jump"}`)
	assert.Equal(t, "error", env["status"])
}

func TestClientStartPlayback(t *testing.T) {
	fake, pack := clientFixture(t)
	fake.Metadata("/library/metadata/10", map[string]any{"ratingKey": "10", "type": "movie", "title": "Alien"})
	fake.Container(http.MethodPost, "/playQueues", map[string]any{"playQueueID": 77})
	fake.Status(http.MethodGet, "/player/playback/playMedia", http.StatusOK)

	env := invoke(t, pack, "client_start_playback", `{"client_name":"Living Room","media_id":10,"offset":5000}`)
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, "Started playback of 'Alien' on 'Living Room'", env["message"])

	q := fake.Last(http.MethodGet, "/player/playback/playMedia").Query
	assert.Equal(t, "/library/metadata/10", q.Get("key"))
	assert.Equal(t, "5000", q.Get("offset"))
	assert.Equal(t, "/playQueues/77?own=1", q.Get("containerKey"))
	assert.Equal(t, plextest.MachineID, q.Get("machineIdentifier"))
	assert.Equal(t, "127.0.0.1", q.Get("address"))
	assert.Equal(t, "http", q.Get("protocol"))
	assert.Equal(t, "video", q.Get("type"))
}

func TestClientSetStreams(t *testing.T) {
	fake, pack := clientFixture(t)
	fake.Status(http.MethodGet, "/player/playback/setStreams", http.StatusOK)

	env := invoke(t, pack, "client_set_streams", `{"client_name":"Living Room"}`)
	assert.Equal(t, "error", env["status"])

	env = invoke(t, pack, "client_set_streams", `{"client_name":"Living Room","subtitle_stream_id":0}`)
	assert.Equal(t, "success", env["status"])
	assert.Equal(t, "0", fake.Last(http.MethodGet, "/player/playback/setStreams").Query.Get("subtitleStreamID"))
}

func TestClientTimelines(t *testing.T) {
	fake, pack := clientFixture(t)
	fake.Handle(http.MethodGet, "/player/timeline/poll", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<MediaContainer><Timeline type="video" state="paused" time="1000" duration="5000" ratingKey="10" controllable="playPause,stop"/><Timeline type="music" state="stopped"/></MediaContainer>`))
	})

	env := invoke(t, pack, "client_get_timelines", `{"client_name":"player-1"}`)
	assert.Equal(t, "success", env["status"])
	tl := env["timelines"].([]any)
	require.Len(t, tl, 2)
	video := tl[0].(map[string]any)
	assert.Equal(t, "paused", video["state"])
	assert.EqualValues(t, 10, video["rating_key"])
	assert.Equal(t, []any{"playPause", "stop"}, video["controllable"])
	assert.NotContains(t, tl[1].(map[string]any), "time")
}

func TestClientActive(t *testing.T) {
	fake, pack := clientFixture(t)
	fake.Metadata("/status/sessions", activeSession())

	env := invoke(t, pack, "client_get_active", `{}`)
	assert.EqualValues(t, 1, env["count"])
	c := env["clients"].([]any)[0].(map[string]any)
	assert.Equal(t, "Living Room", c["name"])
	assert.Equal(t, "owner", c["user"])
}
