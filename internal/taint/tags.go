package taint

import (
	"fmt"
	"sort"
	"sync"
)

// Tag names a specific mitigation that has been applied to a value,
// e.g. "this string was checked for path traversal". The set of tags
// is open-ended; deployments register their own.
type Tag string

// Builtin tags produced by the sanitize package.
const (
	TagPathTraversal Tag = "path_traversal"
	TagShellMeta     Tag = "shell_meta"
	TagURLScheme     Tag = "url_scheme"
)

// Set is a bitmask of registered sanitization tags.
type Set uint64

// Contains reports whether s contains every tag in sub.
func (s Set) Contains(sub Set) bool { return s&sub == sub }

// Diff returns the tags in s that are not in o.
func (s Set) Diff(o Set) Set { return s &^ o }

// Union returns the combined tag set.
func (s Set) Union(o Set) Set { return s | o }

// Empty reports whether s carries no tags.
func (s Set) Empty() bool { return s == 0 }

// registryCapacity is fixed by the Set bitmask width.
const registryCapacity = 64

// Registry interns tags to bit positions. Append-only; registering the
// same tag twice returns the same bit.
type Registry struct {
	mu   sync.RWMutex
	bits map[Tag]Set
	tags []Tag
}

// NewRegistry returns a registry with the builtin tags pre-registered.
func NewRegistry() *Registry {
	r := &Registry{bits: make(map[Tag]Set)}
	for _, t := range []Tag{TagPathTraversal, TagShellMeta, TagURLScheme} {
		r.Register(t) //nolint:errcheck // capacity cannot be exceeded here
	}
	return r
}

// Register interns tag and returns its singleton set.
// Fails once the 64-tag capacity is exhausted.
func (r *Registry) Register(tag Tag) (Set, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if bit, ok := r.bits[tag]; ok {
		return bit, nil
	}
	if len(r.tags) >= registryCapacity {
		return 0, fmt.Errorf("taint: tag registry full (%d tags), cannot register %q", registryCapacity, tag)
	}
	bit := Set(1) << uint(len(r.tags))
	r.bits[tag] = bit
	r.tags = append(r.tags, tag)
	return bit, nil
}

// Lookup returns the singleton set for tag, or false if unregistered.
func (r *Registry) Lookup(tag Tag) (Set, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.bits[tag]
	return bit, ok
}

// SetOf registers every tag and returns their union.
func (r *Registry) SetOf(tags ...Tag) (Set, error) {
	var s Set
	for _, t := range tags {
		bit, err := r.Register(t)
		if err != nil {
			return 0, err
		}
		s |= bit
	}
	return s, nil
}

// Sanitized reports whether set carries evidence for tag.
// Unregistered tags are never satisfied.
func (r *Registry) Sanitized(set Set, tag Tag) bool {
	bit, ok := r.Lookup(tag)
	if !ok {
		return false
	}
	return set.Contains(bit)
}

// Tags decodes a set back to sorted tag names.
func (r *Registry) Tags(s Set) []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Tag
	for i, t := range r.tags {
		if s&(Set(1)<<uint(i)) != 0 {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Names decodes a set to sorted plain strings, for serialization.
func (r *Registry) Names(s Set) []string {
	tags := r.Tags(s)
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
