// Package packs holds the dispatch surface that MCP transports call into.
//
// # Overview
//
// A BuiltinPack is a named group of tools, one pack per functional area
// (library, media, playlist and so on). Each tool declares the minimum tier
// (read, write or delete) a deployment must be configured with before the
// tool is exposed.
//
// # Architecture
//
//   - Registry: name-keyed table of the tools allowed at the configured tier
//   - Router: validates arguments, dispatches, caches and audits calls
//   - Built-in packs: the Plex tools (see internal/builtins)
//
// # Registration
//
// Filtering happens once, at registration: a tool whose tier exceeds the
// configured tier never enters the table, so it is neither listed nor
// callable. Registering a name twice replaces the earlier entry in place.
//
// # Tool Routing
//
// When a client calls a tool, the router:
//
//  1. Looks up the tool by name in the registry
//  2. Validates the arguments against the tool's input schema
//  3. Serves read-only tools from the result cache when possible
//  4. Runs the handler under a timeout
//  5. Invalidates the cache and writes an audit record for mutating tools
//
// Handlers always return a rendered status envelope; domain failures such as
// an unknown title are part of that envelope rather than Go errors.
package packs
