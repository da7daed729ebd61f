// ABOUTME: Cache interface shared by the memory and redis backends.
// ABOUTME: Keys are blake3 digests of the tool name and canonical arguments.

package cache

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/zeebo/blake3"
)

// DefaultMaxEntries bounds the memory backend when no size is configured.
const DefaultMaxEntries = 1000

// Cache stores rendered tool replies.
type Cache interface {
	// Get returns the cached reply and whether it was present and fresh.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	// Set stores a reply for the cache's TTL.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Invalidate drops every entry.
	Invalidate(ctx context.Context) error
	// Close releases background resources.
	Close() error
}

// Key derives the cache key of a tool call. Arguments are compacted first so
// whitespace differences do not produce different keys.
func Key(tool string, args json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, args); err != nil {
		buf.Reset()
		buf.Write(args)
	}
	h := blake3.New()
	_, _ = h.Write([]byte(tool))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(buf.Bytes())
	return tool + ":" + hex.EncodeToString(h.Sum(nil))
}

// Config selects and sizes a backend.
type Config struct {
	TTL        time.Duration
	MaxEntries int
	RedisAddr  string
	RedisDB    int
	Password   string
	Prefix     string
}

// New builds the backend described by cfg: Redis when an address is set,
// memory otherwise. It returns nil when the TTL is zero (caching disabled).
func New(cfg Config) Cache {
	if cfg.TTL <= 0 {
		return nil
	}
	if cfg.RedisAddr != "" {
		return NewRedis(cfg)
	}
	size := cfg.MaxEntries
	if size <= 0 {
		size = DefaultMaxEntries
	}
	return NewMemory(cfg.TTL, size)
}
