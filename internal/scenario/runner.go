// Package scenario runs policy assertions from YAML files, for gating
// deployments on taint-policy correctness in CI.
package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/taint"
)

// Run evaluates all cases in a scenario against the given policy
// config. Each case builds a fresh context; cases are independent.
func Run(s *Scenario, cfg *policy.Config) (*RunResult, error) {
	tags := taint.NewRegistry()
	if err := cfg.RegisterTags(tags); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	for _, tag := range s.Tags {
		if _, err := tags.Register(taint.Tag(tag)); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
		}
	}

	mode := cfg.Mode
	if s.Mode != "" {
		mode = policy.ParseMode(s.Mode)
	}
	allows := policy.PredicateForMode(mode, cfg.BlockedLevels)

	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	for i, c := range s.Cases {
		spec, err := specFor(tags, cfg, c)
		if err != nil {
			return nil, fmt.Errorf("scenario %q case %d: %w", s.Name, i+1, err)
		}

		ctx := taint.FromValue(tags, c.Context)
		outcome := policy.Evaluate(spec, c.Params, ctx, allows)

		actual := string(outcome.Status)
		expected := strings.ToLower(strings.TrimSpace(c.Expect))

		cr := CaseResult{
			Index:     i + 1,
			Name:      c.Name,
			Expected:  expected,
			Actual:    actual,
			Parameter: outcome.Parameter,
			Reason:    outcome.Reason(tags),
		}

		if actual == expected {
			cr.Passed = true
			result.Passed++
		} else {
			result.Failed++
		}

		result.Cases = append(result.Cases, cr)
	}

	return result, nil
}

// specFor resolves the role spec for a case: inline roles win, then
// the config's declaration for the named action.
func specFor(tags *taint.Registry, cfg *policy.Config, c Case) (taint.RoleSpec, error) {
	if len(c.Roles) > 0 {
		spec := make(taint.RoleSpec, len(c.Roles))
		for name, decl := range c.Roles {
			role, err := policy.RoleFromDecl(tags, decl)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			spec[name] = role
		}
		return spec, nil
	}
	return cfg.RoleSpecFor(tags, c.Action)
}

// LoadAndRun loads a scenario YAML file and the policy config, then runs.
func LoadAndRun(path, policyPath string) (*RunResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}

	result, err := Run(&s, cfg)
	if err != nil {
		return nil, err
	}
	result.File = path

	return result, nil
}
