// Package plex talks to a Plex Media Server over its HTTP API.
//
// # Connection Manager
//
// A Manager owns the single live connection handle (Server) for the process.
// Acquire returns the cached handle, establishing it lazily on first use and
// re-establishing it once it is older than StaleAfter. Establishment probes
// the endpoint (server identity, then the library section list) and a failed
// probe yields a *ConnectionError while leaving the manager ready to retry on
// the next call.
//
// # Server handle
//
// Server methods map one-to-one onto Plex endpoints: library sections and
// search, metadata editing and artwork, playlists, collections, sessions,
// player control and the plex.tv account endpoints. Every request carries the
// token as the X-Plex-Token header and asks for JSON.
package plex
