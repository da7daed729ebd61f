// ABOUTME: stdio front end: newline-delimited JSON-RPC on a reader/writer pair.
// ABOUTME: Messages are handled in order; stdout carries nothing but protocol frames.

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ServeStdio reads one JSON-RPC message per line from in and writes each
// reply as one line to out. It returns when in is exhausted or ctx ends,
// without waiting for a pending read.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	sess := &mcpSession{ctx: ctx}
	enc := json.NewEncoder(out)

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go readLines(in, lines, readErr, done)

	s.logger.Info("serving MCP over stdio")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stdio transport stopping", "reason", ctx.Err())
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			var resp *JSONRPCResponse
			var req JSONRPCRequest
			if err := json.Unmarshal(line, &req); err != nil {
				resp = errorResponse(nil, JSONRPCParseError, "invalid JSON")
			} else {
				resp = s.dispatch(ctx, sess, &req)
			}
			if resp == nil {
				continue
			}
			if err := enc.Encode(resp); err != nil {
				return fmt.Errorf("writing response: %w", err)
			}
		}
	}
}

// readLines sends the non-empty lines of in until it is exhausted or done is
// closed. The read error, nil at EOF, goes to errc before lines is closed.
func readLines(in io.Reader, lines chan<- []byte, errc chan<- error, done <-chan struct{}) {
	defer close(lines)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), MaxRequestBodySize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case lines <- bytes.Clone(line):
		case <-done:
			errc <- nil
			return
		}
	}
	if err := scanner.Err(); err != nil {
		errc <- fmt.Errorf("reading stdin: %w", err)
		return
	}
	errc <- nil
}
