package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rkorstad/taintgate/internal/taint"
)

// Mode selects how strictly control-role parameters are gated.
type Mode string

const (
	// ModeEnforce blocks untrusted and hostile levels in control
	// positions. The default.
	ModeEnforce Mode = "enforce"
	// ModePermissive blocks only hostile; untrusted and derived use in
	// control positions is permitted but recorded as taint_audited.
	ModePermissive Mode = "permissive"
	// ModeAdvisory blocks nothing; every not-fully-trusted control use
	// is recorded.
	ModeAdvisory Mode = "advisory"
)

// ParseMode normalizes a raw mode string; unknown values fall back to
// enforce so a typo in config never weakens the gate.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModePermissive:
		return ModePermissive
	case ModeAdvisory:
		return ModeAdvisory
	default:
		return ModeEnforce
	}
}

// RoleDecl is the YAML form of a parameter role declaration.
type RoleDecl struct {
	Role     string   `yaml:"role"`
	Requires []string `yaml:"requires,omitempty"`
}

// Config holds all configurable policy parameters.
type Config struct {
	Mode Mode `yaml:"mode"`
	// BlockedLevels overrides which levels the enforce-mode predicate
	// rejects in control positions.
	BlockedLevels []string `yaml:"blocked_levels,omitempty"`
	// Tags pre-registers deployment-specific sanitization tags.
	Tags []string `yaml:"tags,omitempty"`
	// Actions maps action kind → parameter name → role declaration.
	Actions map[string]map[string]RoleDecl `yaml:"actions,omitempty"`
}

// DefaultConfig returns the built-in policy: enforce mode, the
// conventional blocked set, no action declarations.
func DefaultConfig() *Config {
	return &Config{
		Mode:          ModeEnforce,
		BlockedLevels: []string{string(taint.LevelUntrusted), string(taint.LevelHostile)},
	}
}

// Predicate builds the level predicate for this config's mode.
func (c *Config) Predicate() LevelPredicate {
	return PredicateForMode(c.Mode, c.BlockedLevels)
}

// PredicateForMode builds a level predicate from an enforcement mode and
// a blocked-level list (nil means the conventional untrusted+hostile).
func PredicateForMode(mode Mode, blockedLevels []string) LevelPredicate {
	blocked := map[taint.TrustLevel]bool{
		taint.LevelUntrusted: true,
		taint.LevelHostile:   true,
	}
	if len(blockedLevels) > 0 {
		blocked = make(map[taint.TrustLevel]bool, len(blockedLevels))
		for _, l := range blockedLevels {
			blocked[taint.ParseLevel(l)] = true
		}
	}

	return func(level taint.TrustLevel, kind taint.RoleKind) bool {
		if kind != taint.RoleControl {
			return true
		}
		switch mode {
		case ModeAdvisory:
			return true
		case ModePermissive:
			return level != taint.LevelHostile
		default:
			// Unknown levels are blocked even if the override list
			// forgot hostile.
			if !level.Valid() {
				return false
			}
			return !blocked[level]
		}
	}
}

// RoleSpecFor resolves the declared role spec for an action kind,
// registering any required tags. Unknown kinds return an empty spec
// (fully permissive, matching undeclared actions).
func (c *Config) RoleSpecFor(r *taint.Registry, kind string) (taint.RoleSpec, error) {
	decls, ok := c.Actions[kind]
	if !ok {
		return nil, nil
	}

	spec := make(taint.RoleSpec, len(decls))
	for name, decl := range decls {
		role, err := RoleFromDecl(r, decl)
		if err != nil {
			return nil, fmt.Errorf("policy: action %q parameter %q: %w", kind, name, err)
		}
		spec[name] = role
	}
	return spec, nil
}

// RoleFromDecl converts a YAML role declaration to a taint.Role.
// Unknown role strings resolve to Data, mirroring the total lookup.
func RoleFromDecl(r *taint.Registry, decl RoleDecl) (taint.Role, error) {
	if decl.Role != string(taint.RoleControl) {
		return taint.DataRole(), nil
	}
	if len(decl.Requires) == 0 {
		return taint.ControlRole(), nil
	}

	tags := make([]taint.Tag, len(decl.Requires))
	for i, s := range decl.Requires {
		tags[i] = taint.Tag(s)
	}
	req, err := r.SetOf(tags...)
	if err != nil {
		return taint.Role{}, err
	}
	return taint.ControlRequiring(req), nil
}

// RegisterTags interns the config's declared tags into the registry.
func (c *Config) RegisterTags(r *taint.Registry) error {
	for _, t := range c.Tags {
		if _, err := r.Register(taint.Tag(t)); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig loads policy configuration from a YAML file.
// Empty path falls back to ~/.taintgate/policy.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads policy configuration and returns its SHA-256
// hash for audit stamping. The hash covers the raw YAML bytes on disk;
// when no file exists the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultConfig(), emptyHash(), nil
		}
		path = filepath.Join(home, ".taintgate", "policy.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), emptyHash(), nil
		}
		return nil, "", fmt.Errorf("policy: read config: %w", err)
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("policy: parse config: %w", err)
	}
	cfg.Mode = ParseMode(string(cfg.Mode))

	return cfg, hash, nil
}

func emptyHash() string {
	h := sha256.Sum256(nil)
	return "sha256:" + hex.EncodeToString(h[:])
}
