// Package gateway assembles the server process.
//
// New wires the Plex connection manager, the tool registry filtered to the
// configured permission tier, the routing layer (result cache and audit
// store) and the MCP engine. Run then serves one transport:
//
//   - sse / streamable-http: an HTTP server on server.host:server.port, or
//     on a Tailscale node when tailscale.enabled is set. Both HTTP
//     transports are always mounted; the setting only names the one
//     clients are expected to use.
//   - stdio: newline-delimited JSON-RPC on the process's stdin/stdout.
//
// # HTTP routes
//
//	GET  /health         liveness, {"status":"ok","service":"plex-mcp-server"}
//	GET  /health/ready   acquires the Plex handle, 503 when unreachable
//	GET  /sse            SSE event stream
//	POST /messages/      SSE message endpoint (?session_id=)
//	POST /mcp            Streamable HTTP
//	DELETE /mcp          end a Streamable HTTP session
//
// The MCP routes sit behind the bearer middleware when auth.jwt_secret is
// set; the health routes never do.
//
// # Shutdown
//
// Canceling the Run context stops the HTTP server (closing SSE streams
// after a short grace period), then closes the tailnet node, the cache and
// the audit store.
package gateway
