// ABOUTME: Server is the live connection handle: base URL, token, HTTP client.
// ABOUTME: Holds the shared request helpers every Plex endpoint method uses.

package plex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// DefaultPlexTVURL is the account service used for user and sharing lookups.
const DefaultPlexTVURL = "https://plex.tv"

// ClientIdentifier is sent as X-Plex-Client-Identifier on every request.
const ClientIdentifier = "plex-mcp-server"

// Product is sent as X-Plex-Product on every request.
const Product = "Plex MCP Server"

const maxErrorBody = 512

// Server is an established connection to one Plex Media Server. It is owned
// by a Manager; callers use it read-only.
type Server struct {
	baseURL  string
	token    string
	tvURL    string
	http     *http.Client
	commands *atomic.Int64

	identity Identity
}

func newServer(baseURL, token, tvURL string, client *http.Client) *Server {
	if tvURL == "" {
		tvURL = DefaultPlexTVURL
	}
	return &Server{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		tvURL:    strings.TrimRight(tvURL, "/"),
		http:     client,
		commands: new(atomic.Int64),
	}
}

// BaseURL returns the server endpoint without a trailing slash.
func (s *Server) BaseURL() string { return s.baseURL }

// Identity returns what the connection probe learned about the server.
func (s *Server) Identity() Identity { return s.identity }

// MachineIdentifier returns the server's unique id.
func (s *Server) MachineIdentifier() string { return s.identity.MachineIdentifier }

// AsToken returns a handle to the same server that authenticates with a
// different token, used to act on behalf of a shared user.
func (s *Server) AsToken(token string) *Server {
	cp := *s
	cp.token = token
	return &cp
}

// libraryURI builds the server:// URI playlists, collections and play queues
// use to reference library items.
func (s *Server) libraryURI(items []Metadata) (string, error) {
	if s.identity.MachineIdentifier == "" {
		return "", ErrNoMachineIdentifier
	}
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.RatingKey.String())
	}
	return fmt.Sprintf("server://%s/com.plexapp.plugins.library/library/metadata/%s",
		s.identity.MachineIdentifier, strings.Join(keys, ",")), nil
}

func (s *Server) resolve(path string, query url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = s.baseURL + path
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", path, err)
	}
	if len(query) > 0 {
		merged := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

func (s *Server) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target, err := s.resolve(path, query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Client-Identifier", ClientIdentifier)
	req.Header.Set("X-Plex-Product", Product)
	if s.ownsURL(req.URL) {
		req.Header.Set("X-Plex-Token", s.token)
	}
	return req, nil
}

// ownsURL reports whether u is on the Plex server or plex.tv, the only hosts
// the token is sent to. Scheme and host must match exactly.
func (s *Server) ownsURL(u *url.URL) bool {
	for _, base := range []string{s.baseURL, s.tvURL} {
		b, err := url.Parse(base)
		if err != nil || b.Host == "" {
			continue
		}
		if strings.EqualFold(b.Scheme, u.Scheme) && strings.EqualFold(b.Host, u.Host) {
			return true
		}
	}
	return false
}

// do sends the request and returns the body of a 2xx reply.
func (s *Server) do(req *http.Request) ([]byte, error) {
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := strings.TrimSpace(string(data))
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}
	return data, nil
}

func (s *Server) raw(ctx context.Context, method, path string, query url.Values, body io.Reader) ([]byte, error) {
	req, err := s.newRequest(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	return s.do(req)
}

func (s *Server) decode(ctx context.Context, method, path string, query url.Values, out any) error {
	data, err := s.raw(ctx, method, path, query, nil)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// container fetches a path and returns its MediaContainer.
func (s *Server) container(ctx context.Context, method, path string, query url.Values) (*MediaContainer, error) {
	var env containerEnvelope
	if err := s.decode(ctx, method, path, query, &env); err != nil {
		return nil, err
	}
	return &env.MediaContainer, nil
}

func (s *Server) get(ctx context.Context, path string, query url.Values) (*MediaContainer, error) {
	return s.container(ctx, http.MethodGet, path, query)
}

// send issues a request whose reply body is not needed.
func (s *Server) send(ctx context.Context, method, path string, query url.Values) error {
	_, err := s.raw(ctx, method, path, query, nil)
	return err
}

func page(query url.Values, offset, limit int) url.Values {
	if query == nil {
		query = url.Values{}
	}
	if limit > 0 {
		query.Set("X-Plex-Container-Start", fmt.Sprint(offset))
		query.Set("X-Plex-Container-Size", fmt.Sprint(limit))
	}
	return query
}

// rateLimitedTransport waits on a token bucket before every request.
type rateLimitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
