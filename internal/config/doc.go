// Package config handles configuration loading for plex-mcp-server.
//
// # Sources
//
// Settings come from three places, highest precedence first:
//
//  1. Command-line flags and their environment variables (PLEX_URL,
//     PLEX_TOKEN, PERMISSIONS, ...), applied by cmd/plex-mcp-server
//  2. An optional config file named by --config or PLEX_MCP_CONFIG
//  3. Default()
//
// Files are YAML (.yaml, .yml) or TOML (.toml):
//
//	plex:
//	  url: "http://192.168.1.10:32400"
//	  token: "${PLEX_TOKEN}"
//	  rate_limit: 10
//	server:
//	  transport: sse
//	  permissions: write
//	tools:
//	  timeout: "60s"
//	cache:
//	  ttl: "30s"
//	  redis_addr: "localhost:6379"
//	audit:
//	  path: "./audit.db"
//
// # Environment Variable Expansion
//
// ${VAR_NAME} anywhere in a file is replaced with the variable's value, or
// with nothing when it is unset.
//
// # Validation
//
// Validate runs after all sources are merged. It requires the Plex URL and
// token, a known permission tier and transport, a port in 1-65535 for the
// HTTP transports, and a hostname when Tailscale is enabled.
package config
