// Package tier defines the ordered trust tiers that gate which tools a
// deployment exposes.
//
// The tiers form a chain:
//
//	read < write < delete
//
// A deployment configured at one tier exposes every tool whose required tier
// is at or below it. Tier.Allows is the only place that ordering is decided.
package tier
