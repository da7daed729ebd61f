// ABOUTME: Error types returned by the Plex client and the connection manager.
// ABOUTME: ConnectionError wraps probe failures, StatusError wraps non-2xx replies.

package plex

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound matches any 404 reply from the server.
var ErrNotFound = errors.New("not found")

// ErrNoMachineIdentifier indicates the handle has no server identity yet.
var ErrNoMachineIdentifier = errors.New("server machine identifier unknown")

// ConnectionError reports a failed attempt to establish a session with the
// server. It is only ever produced by Manager.Acquire.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to Plex server at %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is lets errors.Is(err, ErrNotFound) match 404 replies.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
