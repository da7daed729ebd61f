// Package mcp serves the registered tools over the Model Context Protocol.
//
// # Protocol
//
// One JSON-RPC 2.0 engine handles initialize, ping, tools/list, tools/call
// and notifications. Supported protocol revisions are 2024-11-05,
// 2025-03-26, 2025-06-18 and 2025-11-25; initialize echoes the client's
// revision when it is supported and offers the latest otherwise.
//
// # Transports
//
//   - SSE: GET /sse opens an event stream whose first event is
//     "endpoint" with data /messages/?session_id=<uuid>. Messages POSTed
//     there are answered 202 Accepted and their replies arrive as
//     "message" events on the stream.
//   - Streamable HTTP: POST /mcp answers inline. initialize returns an
//     Mcp-Session-Id header that later requests must carry; DELETE /mcp
//     ends the session.
//   - stdio: ServeStdio reads one message per line and writes one reply
//     per line.
//
// Request bodies are capped at MaxRequestBodySize.
//
// # Tool calls
//
// tools/call goes through packs.Router. A tool that is not registered at
// the configured tier is a JSON-RPC error ("tool not found: <name>").
// Arguments that fail schema validation come back as an error result so
// the model can retry. Everything else, including Plex failures, is a
// normal result whose text is the tool's JSON envelope.
package mcp
