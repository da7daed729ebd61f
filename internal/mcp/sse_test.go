// ABOUTME: Tests for the SSE transport: endpoint event, 202 acknowledgements and streamed replies.
// ABOUTME: Runs against a real listener because the stream must be flushed incrementally.

package mcp

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/plex-mcp-server/internal/tier"
)

type sseEvent struct {
	name string
	data string
}

// openStream connects to /sse and returns a channel of parsed events.
func openStream(t *testing.T, baseURL string) <-chan sseEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+SSEPath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan sseEvent, 8)
	go func() {
		defer resp.Body.Close()
		defer close(events)
		var ev sseEvent
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				ev.data = strings.TrimPrefix(line, "data: ")
			case line == "" && ev.name != "":
				events <- ev
				ev = sseEvent{}
			}
		}
	}()
	return events
}

func nextEvent(t *testing.T, events <-chan sseEvent) sseEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "stream closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for SSE event")
		return sseEvent{}
	}
}

func postMessage(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSSERoundTrip(t *testing.T) {
	srv := newTestServer(t, tier.Read)
	ts := httptest.NewServer(newHandler(srv))
	t.Cleanup(ts.Close)

	events := openStream(t, ts.URL)

	endpoint := nextEvent(t, events)
	require.Equal(t, "endpoint", endpoint.name)
	require.True(t, strings.HasPrefix(endpoint.data, "/messages/?session_id="))

	resp := postMessage(t, ts.URL+endpoint.data, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	msg := nextEvent(t, events)
	assert.Equal(t, "message", msg.name)
	initResp := decodeResponse(t, []byte(msg.data))
	assert.Equal(t, "2025-03-26", initResp.Result.(map[string]any)["protocolVersion"])

	resp = postMessage(t, ts.URL+endpoint.data, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = postMessage(t, ts.URL+endpoint.data, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo_read","arguments":{"text":"sse"}}}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	res := callResult(t, decodeResponse(t, []byte(nextEvent(t, events).data)))
	assert.Contains(t, res.Content[0].Text, "echo: sse")
}

func TestSSEMessageErrors(t *testing.T) {
	srv := newTestServer(t, tier.Read)
	ts := httptest.NewServer(newHandler(srv))
	t.Cleanup(ts.Close)

	resp := postMessage(t, ts.URL+MessagesPath, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postMessage(t, ts.URL+MessagesPath+"?session_id=unknown", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	events := openStream(t, ts.URL)
	endpoint := nextEvent(t, events)
	resp = postMessage(t, ts.URL+endpoint.data, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSSESessionIsNotStreamable(t *testing.T) {
	srv := newTestServer(t, tier.Read)
	ts := httptest.NewServer(newHandler(srv))
	t.Cleanup(ts.Close)

	events := openStream(t, ts.URL)
	endpoint := nextEvent(t, events)
	sid := strings.TrimPrefix(endpoint.data, "/messages/?session_id=")

	rec := post(t, newHandler(srv), sid, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
