// Package cache stores rendered replies of read-only tools for a short time
// so repeated identical calls skip the Plex round trip. Mutating tools
// invalidate the whole cache.
//
// Two backends implement Cache: Memory, an in-process TTL cache with bounded
// size, and Redis, which lets several server processes share results.
package cache
