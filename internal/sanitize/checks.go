// Package sanitize implements the builtin mitigations that earn
// sanitization tags. Each check either passes, adding its tag to a
// value's taint context, or fails with a reason. Checks are the
// evidence producers; the policy evaluator only ever consumes tags.
package sanitize

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rkorstad/taintgate/internal/taint"
)

// Check pairs a sanitization tag with its validation function.
type Check struct {
	Tag taint.Tag
	Fn  func(string) error
}

// Builtin checks.
var (
	PathTraversal = Check{Tag: taint.TagPathTraversal, Fn: CheckPathTraversal}
	ShellMeta     = Check{Tag: taint.TagShellMeta, Fn: CheckShellMeta}
	URLScheme     = Check{Tag: taint.TagURLScheme, Fn: CheckURLScheme}
)

// Builtin returns all builtin checks.
func Builtin() []Check {
	return []Check{PathTraversal, ShellMeta, URLScheme}
}

// ByTag resolves a builtin check by its tag name.
func ByTag(tag taint.Tag) (Check, bool) {
	for _, c := range Builtin() {
		if c.Tag == tag {
			return c, true
		}
	}
	return Check{}, false
}

// CheckPathTraversal rejects values that could escape an intended
// directory: parent references, NUL bytes, over-long paths.
func CheckPathTraversal(v string) error {
	if v == "" {
		return fmt.Errorf("empty path")
	}
	if strings.ContainsRune(v, 0) {
		return fmt.Errorf("path contains NUL byte")
	}
	if len(v) > 4096 {
		return fmt.Errorf("path exceeds 4096 bytes")
	}
	for _, part := range strings.FieldsFunc(v, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return fmt.Errorf("path contains parent reference")
		}
	}
	return nil
}

// shellMetaChars are the characters that change shell parsing of an
// argument: separators, substitution, redirection, globbing, quoting.
const shellMetaChars = ";|&$`<>(){}[]*?~#!\"'\\\n\r"

// CheckShellMeta rejects values carrying shell metacharacters.
func CheckShellMeta(v string) error {
	if idx := strings.IndexAny(v, shellMetaChars); idx >= 0 {
		return fmt.Errorf("value contains shell metacharacter %q", v[idx])
	}
	if strings.ContainsRune(v, 0) {
		return fmt.Errorf("value contains NUL byte")
	}
	return nil
}

// CheckURLScheme rejects values that are not http(s) URLs with a host.
func CheckURLScheme(v string) error {
	u, err := url.Parse(v)
	if err != nil {
		return fmt.Errorf("unparseable URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("scheme %q is not permitted", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}

// Apply runs every check against value and returns ctx extended with
// the tags the value earned. The first failing check aborts: a value
// that fails a mitigation earns none of the later evidence either,
// so callers cannot accumulate tags around a known-bad value.
func Apply(r *taint.Registry, ctx taint.Context, value string, checks ...Check) (taint.Context, error) {
	var earned taint.Set
	for _, c := range checks {
		if err := c.Fn(value); err != nil {
			return ctx, fmt.Errorf("sanitize: %s: %w", c.Tag, err)
		}
		bit, err := r.Register(c.Tag)
		if err != nil {
			return ctx, fmt.Errorf("sanitize: %w", err)
		}
		earned |= bit
	}
	return ctx.WithTags(earned), nil
}
