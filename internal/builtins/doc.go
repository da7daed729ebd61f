// Package builtins provides the Plex tool packs.
//
// # Packs
//
//	builtin:library     - sections, statistics, contents, refresh, scan, trash
//	builtin:media       - search, details, metadata edits, artwork, delete
//	builtin:playlist    - playlist listing and editing, posters, copy to user
//	builtin:collection  - collection listing and editing
//	builtin:server      - server info, bandwidth, resources, butler, logs
//	builtin:sessions    - active sessions, playback history, termination
//	builtin:user        - plex.tv users, on deck, watch history, statistics
//	builtin:client      - player discovery and remote control
//
// Every handler is wrapped with envelope.Wrap, so tools always reply with a
// status envelope. Handlers acquire the shared connection handle from a
// single plex.Manager on each call.
//
// # Lookups
//
// Items, libraries, playlists and collections can be addressed by id or by
// title. Title lookups prefer exact case-insensitive matches; when several
// items still match, the tool replies with multiple_results listing up to ten
// candidates so the caller can retry with an id.
package builtins
