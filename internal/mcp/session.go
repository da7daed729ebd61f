// ABOUTME: In-memory MCP session table shared by the SSE and Streamable HTTP transports.
// ABOUTME: SSE sessions own an outbound queue drained by their event stream.

package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sseQueueSize bounds replies waiting for an SSE stream to write them.
const sseQueueSize = 16

// mcpSession tracks an active MCP client session.
type mcpSession struct {
	id        string
	owner     string // authenticated subject that opened the session
	createdAt time.Time

	// ctx ends when the SSE stream closes; background for other transports.
	ctx context.Context
	out chan []byte // nil unless the session is an SSE stream

	mu              sync.Mutex
	protocolVersion string
	clientName      string
}

func (s *mcpSession) setClient(version, name string) {
	s.mu.Lock()
	s.protocolVersion = version
	s.clientName = name
	s.mu.Unlock()
}

func (s *mcpSession) client() (version, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion, s.clientName
}

// send queues a message for the SSE stream. It gives up when the stream
// has gone away.
func (s *mcpSession) send(msg []byte) bool {
	select {
	case s.out <- msg:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// sessionStore manages active MCP sessions (in-memory).
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*mcpSession
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*mcpSession)}
}

func (s *sessionStore) create(ctx context.Context, owner string, stream bool) *mcpSession {
	sess := &mcpSession{
		id:        uuid.New().String(),
		owner:     owner,
		createdAt: time.Now(),
		ctx:       ctx,
	}
	if stream {
		sess.out = make(chan []byte, sseQueueSize)
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) get(id string) (*mcpSession, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	return sess, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

func (s *sessionStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
