package taint

import (
	"encoding/json"
	"testing"
)

func FuzzFromValue(f *testing.F) {
	// Seed with the recognized shapes
	f.Add(`{"level":"trusted"}`)
	f.Add(`{"level":"derived","sanitizations":["path_traversal"]}`)
	f.Add(`"untrusted"`)
	f.Add(`null`)
	f.Add(`{"level":42,"sanitizations":"nope"}`)
	f.Add(`[1,2,3]`)

	f.Fuzz(func(t *testing.T, raw string) {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return
		}

		r := NewRegistry()

		// Must not panic, and unrecognized shapes must fail closed.
		c := FromValue(r, v)
		if c == nil {
			return
		}
		if !c.Level().Valid() {
			t.Errorf("coerced context has invalid level %q", c.Level())
		}
		switch v.(type) {
		case string, map[string]any:
		default:
			if c.Level() != LevelHostile {
				t.Errorf("unrecognized shape %T coerced to %s, want hostile", v, c.Level())
			}
		}
	})
}
