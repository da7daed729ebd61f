// ABOUTME: Tests for the session pack: active session shaping, history filters and termination.
// ABOUTME: History rows are joined with /accounts for account names.

package builtins

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeSession() map[string]any {
	return map[string]any{
		"ratingKey": "10", "type": "movie", "title": "Alien", "duration": 1000, "viewOffset": 250,
		"sessionKey":       "42",
		"User":             map[string]any{"id": 1, "title": "owner"},
		"Player":           map[string]any{"title": "Living Room", "product": "Plex for Roku", "state": "playing", "machineIdentifier": "player-1"},
		"Session":          map[string]any{"id": "abc123", "bandwidth": 4000, "location": "lan"},
		"TranscodeSession": map[string]any{"videoDecision": "transcode", "progress": 12.5},
	}
}

func TestSessionsActive(t *testing.T) {
	fake, mgr := newTestManager(t)
	fake.Metadata("/status/sessions", activeSession())
	pack := SessionsPack(mgr, testLogger())

	env := invoke(t, pack, "sessions_get_active", `{}`)
	assert.Equal(t, "success", env["status"])
	assert.EqualValues(t, 1, env["count"])
	assert.EqualValues(t, 1, env["transcode_count"])
	s := env["sessions"].([]any)[0].(map[string]any)
	assert.Equal(t, "abc123", s["session_id"])
	assert.Equal(t, "owner", s["user"])
	assert.EqualValues(t, 25, s["progress_percent"])
	assert.Equal(t, "playing", s["player"].(map[string]any)["state"])
}

func TestSessionsHistory(t *testing.T) {
	fake, mgr := newTestManager(t)
	fake.Metadata("/status/sessions/history/all",
		map[string]any{"ratingKey": "10", "type": "movie", "title": "Alien", "viewedAt": 1700000000, "accountID": 1},
		map[string]any{"ratingKey": "10", "type": "movie", "title": "Alien", "viewedAt": 1690000000, "accountID": 2},
	)
	fake.Container(http.MethodGet, "/accounts", map[string]any{"Account": []map[string]any{{"id": 1, "name": "owner"}}})
	fake.Metadata("/library/metadata/10", map[string]any{"ratingKey": "10", "type": "movie", "title": "Alien"})
	pack := SessionsPack(mgr, testLogger())

	env := invoke(t, pack, "sessions_get_media_playback_history", `{"media_id":10,"limit":5}`)
	assert.Equal(t, "success", env["status"])
	assert.EqualValues(t, 2, env["count"])
	rows := env["history"].([]any)
	assert.Equal(t, "owner", rows[0].(map[string]any)["account"])
	assert.Equal(t, "Unknown", rows[1].(map[string]any)["account"])
	assert.Equal(t, "2023-11-14 22:13:20", rows[0].(map[string]any)["viewed_at"])

	q := fake.Last(http.MethodGet, "/status/sessions/history/all").Query
	assert.Equal(t, "10", q.Get("metadataItemID"))
	assert.Equal(t, "5", q.Get("X-Plex-Container-Size"))

	invoke(t, pack, "sessions_get_media_playback_history", `{"library_name":"Movies"}`)
	q = fake.Last(http.MethodGet, "/status/sessions/history/all").Query
	assert.Equal(t, "1", q.Get("librarySectionID"))
	assert.Empty(t, q.Get("metadataItemID"))
}

func TestSessionsTerminate(t *testing.T) {
	fake, mgr := newTestManager(t)
	fake.Metadata("/status/sessions", activeSession())
	fake.Status(http.MethodGet, "/status/sessions/terminate", http.StatusOK)
	pack := SessionsPack(mgr, testLogger())

	env := invoke(t, pack, "sessions_terminate", `{"session_id":"nope"}`)
	assert.Equal(t, "No active session with ID 'nope'", env["message"])
	assert.Zero(t, fake.Count(http.MethodGet, "/status/sessions/terminate"))

	env = invoke(t, pack, "sessions_terminate", `{"session_id":"42","reason":"maintenance"}`)
	assert.Equal(t, "success", env["status"])
	req := fake.Last(http.MethodGet, "/status/sessions/terminate")
	require.NotNil(t, req)
	assert.Equal(t, "abc123", req.Query.Get("sessionId"))
	assert.Equal(t, "maintenance", req.Query.Get("reason"))
}
