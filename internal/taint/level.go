// Package taint defines the information-flow policy vocabulary: ordered
// trust levels, sanitization evidence as tag bitmasks, and per-parameter
// roles. Pure value types with no I/O, safe for concurrent use.
package taint

// TrustLevel classifies the provenance of a value.
type TrustLevel string

const (
	LevelTrusted   TrustLevel = "trusted"
	LevelDerived   TrustLevel = "derived"
	LevelUntrusted TrustLevel = "untrusted"
	LevelHostile   TrustLevel = "hostile"
)

// LevelRank maps trust levels to comparable integers for ordering.
// Lower rank = more trusted.
var LevelRank = map[TrustLevel]int{
	LevelTrusted:   0,
	LevelDerived:   1,
	LevelUntrusted: 2,
	LevelHostile:   3,
}

// Valid reports whether l is one of the four known levels.
func (l TrustLevel) Valid() bool {
	_, ok := LevelRank[l]
	return ok
}

// ParseLevel normalizes a raw string to a TrustLevel.
// Unknown strings map to hostile (fail closed).
func ParseLevel(s string) TrustLevel {
	l := TrustLevel(s)
	if !l.Valid() {
		return LevelHostile
	}
	return l
}

// AtMost reports whether l is at least as trusted as bound.
func (l TrustLevel) AtMost(bound TrustLevel) bool {
	lr, ok := LevelRank[l]
	if !ok {
		return false
	}
	return lr <= LevelRank[bound]
}

// Derive returns the level an action's output inherits from an input at l.
// Trusted inputs produce derived outputs; everything else keeps its level.
func Derive(l TrustLevel) TrustLevel {
	if !l.Valid() {
		return LevelHostile
	}
	if l == LevelTrusted {
		return LevelDerived
	}
	return l
}
