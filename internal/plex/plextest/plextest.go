// ABOUTME: Fake Plex Media Server for tests, built on httptest.
// ABOUTME: Routes are registered per method and path; every request is recorded.

// Package plextest provides an in-process fake Plex server for tests.
package plextest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// Token is the token the fake server accepts.
const Token = "test-token"

// MachineID is the machine identifier the fake server reports.
const MachineID = "fake-machine-id"

// Request is a recorded inbound request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Server is a fake Plex server. GET / and GET /library/sections answer by
// default so connection probes succeed.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []Request
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{routes: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	s.Container(http.MethodGet, "/", map[string]any{
		"friendlyName":      "Fake Plex",
		"machineIdentifier": MachineID,
		"version":           "1.40.0.0000",
		"platform":          "Linux",
		"platformVersion":   "6.1",
		"myPlex":            true,
		"myPlexUsername":    "owner",
	})
	s.Sections(map[string]any{"key": "1", "type": "movie", "title": "Movies"})
	return s
}

func key(method, path string) string { return method + " " + path }

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	h, ok := s.routes[key(r.Method, r.URL.Path)]
	s.mu.Unlock()

	if r.Header.Get("X-Plex-Token") != Token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

// Handle registers a handler, replacing any previous one for the route.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[key(method, path)] = h
}

// JSON answers a route with a fixed JSON body.
func (s *Server) JSON(method, path string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	})
}

// Container answers a route with {"MediaContainer": mc}.
func (s *Server) Container(method, path string, mc map[string]any) {
	s.JSON(method, path, map[string]any{"MediaContainer": mc})
}

// Metadata answers a GET route with a container of items.
func (s *Server) Metadata(path string, items ...map[string]any) {
	s.Container(http.MethodGet, path, map[string]any{"size": len(items), "Metadata": items})
}

// Sections replaces the library section listing.
func (s *Server) Sections(sections ...map[string]any) {
	s.Container(http.MethodGet, "/library/sections", map[string]any{"size": len(sections), "Directory": sections})
}

// Status answers a route with an empty body and the given status code.
func (s *Server) Status(method, path string, code int) {
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	})
}

// Bytes answers a GET route with raw bytes.
func (s *Server) Bytes(path string, data []byte) {
	s.Handle(http.MethodGet, path, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	})
}

// Requests returns the recorded requests for a route.
func (s *Server) Requests(method, path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many times a route was hit.
func (s *Server) Count(method, path string) int {
	return len(s.Requests(method, path))
}

// Last returns the most recent request for a route, or nil.
func (s *Server) Last(method, path string) *Request {
	reqs := s.Requests(method, path)
	if len(reqs) == 0 {
		return nil
	}
	return &reqs[len(reqs)-1]
}
