// ABOUTME: HTTP front ends: SSE (/sse + /messages/) and Streamable HTTP (/mcp).
// ABOUTME: Both bind sessions to the authenticated subject that opened them.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/plex-mcp-server/internal/auth"
)

// Routes of the HTTP transports.
const (
	SSEPath        = "/sse"
	MessagesPath   = "/messages/"
	StreamablePath = "/mcp"
)

var errBodyTooLarge = errors.New("request body too large")

// RegisterRoutes mounts both HTTP transports on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get(SSEPath, s.HandleSSE)
	r.Post(MessagesPath, s.HandleMessage)
	r.Post("/messages", s.HandleMessage)
	r.HandleFunc(StreamablePath, s.HandleStreamable)
}

// readMessage reads and decodes one JSON-RPC message from a request body.
func readMessage(r *http.Request) (*JSONRPCRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > MaxRequestBodySize {
		return nil, errBodyTooLarge
	}
	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &req, nil
}

// HandleSSE opens an event stream. The first event names the endpoint the
// client posts its messages to; replies arrive as "message" events.
func (s *Server) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	sess := s.sessions.create(ctx, auth.PrincipalFrom(ctx), true)
	defer s.sessions.delete(sess.id)

	s.logger.Info("SSE stream opened", "session_id", sess.id, "remote", r.RemoteAddr)
	defer s.logger.Info("SSE stream closed", "session_id", sess.id)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "endpoint", []byte(MessagesPath+"?session_id="+sess.id))
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-sess.out:
			writeEvent(w, "message", msg)
			flusher.Flush()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// HandleMessage accepts one JSON-RPC message for an SSE session. The reply
// is delivered on the session's stream.
func (s *Server) HandleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessions.get(id)
	if !ok || sess.out == nil {
		http.Error(w, "Could not find session", http.StatusNotFound)
		return
	}

	req, err := readMessage(r)
	if errors.Is(err, errBodyTooLarge) {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	if err != nil {
		http.Error(w, "Could not parse message", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, "Accepted")

	// The reply outlives this request; it is bound to the stream instead,
	// keeping the poster's identity for logging.
	ctx := auth.WithPrincipal(sess.ctx, auth.PrincipalFrom(r.Context()))
	go func() {
		resp := s.dispatch(ctx, sess, req)
		if resp == nil {
			return
		}
		data, err := json.Marshal(resp)
		if err != nil {
			s.logger.Warn("failed to encode JSON-RPC response", "error", err)
			return
		}
		if !sess.send(data) {
			s.logger.Debug("dropped reply for closed stream", "session_id", sess.id)
		}
	}()
}

// HandleStreamable is the Streamable HTTP endpoint supporting POST and DELETE.
func (s *Server) HandleStreamable(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		// server-initiated streams are not offered on this transport
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session. Only the subject that opened it may
// end it.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}

	sess, ok := s.sessions.get(sessionID)
	if !ok || sess.out != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	if sess.owner != auth.PrincipalFrom(r.Context()) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	s.sessions.delete(sessionID)
	s.logger.Info("MCP session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost processes one JSON-RPC message and answers it inline.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	req, err := readMessage(r)
	if errors.Is(err, errBodyTooLarge) {
		s.writeJSON(w, errorResponse(nil, JSONRPCInvalidRequest, "request body too large"))
		return
	}
	if err != nil {
		s.writeJSON(w, errorResponse(nil, JSONRPCParseError, "invalid JSON"))
		return
	}

	isInitialize := req.Method == "initialize"
	if v := r.Header.Get("Mcp-Protocol-Version"); !isInitialize && v != "" && !supportedProtocolVersions[v] {
		http.Error(w, "Bad Request: unsupported MCP-Protocol-Version", http.StatusBadRequest)
		return
	}

	var sess *mcpSession
	if isInitialize {
		sess = s.sessions.create(context.Background(), auth.PrincipalFrom(r.Context()), false)
		w.Header().Set("Mcp-Session-Id", sess.id)
	} else {
		sessionID := r.Header.Get("Mcp-Session-Id")
		if sessionID == "" {
			http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
			return
		}
		var ok bool
		sess, ok = s.sessions.get(sessionID)
		if !ok || sess.out != nil {
			// expired or unknown; the client must initialize again
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
	}

	resp := s.dispatch(r.Context(), sess, req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("failed to encode JSON-RPC response", "error", err)
	}
}
