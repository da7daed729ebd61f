// ABOUTME: Ordered trust tiers (read, write, delete) used to filter exposed tools.
// ABOUTME: Provides parsing, string conversion and the monotonic Allows predicate.

package tier

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTier indicates a tier name outside read, write and delete.
var ErrUnknownTier = errors.New("unknown permission tier")

// Tier is a trust level. Higher values grant strictly more tools.
type Tier int

const (
	// Read allows tools that only observe server state.
	Read Tier = iota
	// Write additionally allows tools that create or modify state.
	Write
	// Delete additionally allows tools that remove state.
	Delete
)

// All lists every tier in ascending order.
var All = []Tier{Read, Write, Delete}

// Parse converts a tier name (case-insensitive, surrounding space ignored).
func Parse(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return Read, nil
	case "write":
		return Write, nil
	case "delete":
		return Delete, nil
	default:
		return Read, fmt.Errorf("%w: %q (expected read, write or delete)", ErrUnknownTier, s)
	}
}

// Allows reports whether a deployment at tier t may expose a tool that
// requires tier required.
func (t Tier) Allows(required Tier) bool {
	return t >= required
}

// String returns the lowercase tier name.
func (t Tier) String() string {
	switch t {
	case Read:
		return "read"
	case Write:
		return "write"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler so tiers render by name in
// YAML, TOML and JSON.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
