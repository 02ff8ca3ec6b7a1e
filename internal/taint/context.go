package taint

// Context is the provenance evidence attached to a value when it reaches
// the evaluator. It is a two-variant union: a bare trust level, or a
// structured record carrying a level plus sanitization evidence.
//
// INVARIANT: a bare context carries no sanitization evidence, even
// implicitly. Bare trusted and structured {trusted, {}} are distinct for
// parameters that declare sanitization requirements.
type Context struct {
	level      TrustLevel
	sans       Set
	structured bool
}

// Bare returns a context carrying only a trust level.
func Bare(level TrustLevel) Context {
	return Context{level: ParseLevel(string(level))}
}

// Structured returns a context carrying a level and sanitization evidence.
func Structured(level TrustLevel, sans Set) Context {
	return Context{level: ParseLevel(string(level)), sans: sans, structured: true}
}

// Level returns the trust level of the context.
func (c Context) Level() TrustLevel { return c.level }

// IsStructured reports whether the context carries sanitization evidence.
func (c Context) IsStructured() bool { return c.structured }

// Sanitizations returns the evidence set and whether any evidence form
// is present at all. Bare contexts return (0, false).
func (c Context) Sanitizations() (Set, bool) {
	if !c.structured {
		return 0, false
	}
	return c.sans, true
}

// WithTags returns a structured copy of c extended with extra evidence.
func (c Context) WithTags(extra Set) Context {
	return Context{level: c.level, sans: c.sans | extra, structured: true}
}

// FromMap coerces a raw map into a Context with defensive shape handling:
//
//	{"level": "trusted"}                                  → bare
//	{"level": "trusted", "sanitizations": ["shell_meta"]} → structured
//
// Any unrecognized shape (missing or non-string level) normalizes to a
// bare hostile context. This is the explicit fail-closed branch: malformed
// provenance is treated as the most restrictive level, never the most
// permissive.
func FromMap(r *Registry, m map[string]any) Context {
	if m == nil {
		return Bare(LevelHostile)
	}

	lv, ok := m["level"].(string)
	if !ok {
		return Bare(LevelHostile)
	}
	level := ParseLevel(lv)

	raw, present := m["sanitizations"]
	if !present {
		return Bare(level)
	}

	var sans Set
	switch tags := raw.(type) {
	case []any:
		for _, t := range tags {
			s, ok := t.(string)
			if !ok {
				continue
			}
			if bit, known := r.Lookup(Tag(s)); known {
				sans |= bit
			}
		}
	case []string:
		for _, s := range tags {
			if bit, known := r.Lookup(Tag(s)); known {
				sans |= bit
			}
		}
	default:
		// sanitizations key present but unreadable: keep the record
		// structured with no evidence rather than inventing any.
	}

	return Structured(level, sans)
}

// FromValue coerces a loosely typed context value (as decoded from JSON
// or YAML) into a Context. nil stays nil, meaning "no policy context
// supplied"; a plain string is a bare level; a map goes through FromMap;
// anything else is a bare hostile context.
func FromValue(r *Registry, v any) *Context {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		c := Bare(ParseLevel(val))
		return &c
	case map[string]any:
		c := FromMap(r, val)
		return &c
	default:
		c := Bare(LevelHostile)
		return &c
	}
}

// ToMap serializes the context for transport. The inverse of FromMap.
func (c Context) ToMap(r *Registry) map[string]any {
	m := map[string]any{"level": string(c.level)}
	if c.structured {
		m["sanitizations"] = r.Names(c.sans)
	}
	return m
}
