package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/sanitize"
	"github.com/rkorstad/taintgate/internal/taint"
)

// --- Input/Output types ---

// CheckInput defines parameters for the taintgate_check tool.
type CheckInput struct {
	Action string                     `json:"action,omitempty" jsonschema:"action kind declared in the policy config"`
	Roles  map[string]policy.RoleDecl `json:"roles,omitempty" jsonschema:"inline role declarations (override the action's declared roles)"`
	Params map[string]any             `json:"params" jsonschema:"parameter name to value map"`
	// Context is a level string or a {level, sanitizations} object;
	// omit for "no policy context supplied".
	Context any `json:"context,omitempty" jsonschema:"taint context for the supplied values"`
}

// CheckOutput contains the policy decision.
type CheckOutput struct {
	Status    string   `json:"status"`
	Parameter string   `json:"parameter,omitempty"`
	Level     string   `json:"level,omitempty"`
	Missing   []string `json:"missing,omitempty"`
	Reason    string   `json:"reason"`
}

// SanitizeInput defines parameters for the taintgate_sanitize tool.
type SanitizeInput struct {
	Value  string   `json:"value" jsonschema:"value to run sanitization checks against"`
	Checks []string `json:"checks,omitempty" jsonschema:"check tags to apply (default: all builtin checks)"`
	Level  string   `json:"level,omitempty" jsonschema:"trust level of the value (default untrusted)"`
}

// SanitizeOutput contains the earned taint context or the failure.
type SanitizeOutput struct {
	Passed  bool           `json:"passed"`
	Context map[string]any `json:"context,omitempty"`
	Reason  string         `json:"reason,omitempty"`
}

// ReduceInput defines parameters for the taintgate_reduce tool.
type ReduceInput struct {
	From   string `json:"from" jsonschema:"current trust level"`
	To     string `json:"to" jsonschema:"new, more trusted level"`
	Reason string `json:"reason" jsonschema:"reason tag for the elevation (e.g. manual_review)"`
}

// ReduceOutput acknowledges the recorded elevation.
type ReduceOutput struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Recorded bool   `json:"recorded"`
}

// --- Handlers ---

func (s *Server) handleCheck(ctx context.Context, req *mcpsdk.CallToolRequest, input CheckInput) (*mcpsdk.CallToolResult, CheckOutput, error) {
	cfg := s.config()

	var spec taint.RoleSpec
	if len(input.Roles) > 0 {
		spec = make(taint.RoleSpec, len(input.Roles))
		for name, decl := range input.Roles {
			role, err := policy.RoleFromDecl(s.tags, decl)
			if err != nil {
				return nil, CheckOutput{}, fmt.Errorf("parameter %q: %w", name, err)
			}
			spec[name] = role
		}
	} else {
		var err error
		spec, err = cfg.RoleSpecFor(s.tags, input.Action)
		if err != nil {
			return nil, CheckOutput{}, err
		}
	}

	tctx := taint.FromValue(s.tags, input.Context)
	outcome := policy.Evaluate(spec, input.Params, tctx, cfg.Predicate())

	out := CheckOutput{
		Status:    string(outcome.Status),
		Parameter: outcome.Parameter,
		Reason:    outcome.Reason(s.tags),
	}
	if !outcome.OK() {
		out.Level = string(outcome.Level)
		out.Missing = s.tags.Names(outcome.Missing)
		s.audit().Blocked(input.Action, outcome)
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}

	s.audit().Audited(input.Action, outcome.Audited)
	return nil, out, nil
}

func (s *Server) handleSanitize(ctx context.Context, req *mcpsdk.CallToolRequest, input SanitizeInput) (*mcpsdk.CallToolResult, SanitizeOutput, error) {
	level := taint.LevelUntrusted
	if input.Level != "" {
		level = taint.ParseLevel(input.Level)
	}

	checks := sanitize.Builtin()
	if len(input.Checks) > 0 {
		checks = checks[:0]
		for _, name := range input.Checks {
			c, ok := sanitize.ByTag(taint.Tag(name))
			if !ok {
				return nil, SanitizeOutput{}, fmt.Errorf("unknown check %q", name)
			}
			checks = append(checks, c)
		}
	}

	tctx, err := sanitize.Apply(s.tags, taint.Bare(level), input.Value, checks...)
	if err != nil {
		out := SanitizeOutput{Passed: false, Reason: err.Error()}
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}

	return nil, SanitizeOutput{
		Passed:  true,
		Context: tctx.ToMap(s.tags),
	}, nil
}

func (s *Server) handleReduce(ctx context.Context, req *mcpsdk.CallToolRequest, input ReduceInput) (*mcpsdk.CallToolResult, ReduceOutput, error) {
	from := taint.ParseLevel(input.From)
	to := taint.ParseLevel(input.To)

	// A reduction must move toward trust, and it must say why.
	if taint.LevelRank[to] >= taint.LevelRank[from] {
		return nil, ReduceOutput{}, fmt.Errorf("level %q is not more trusted than %q", to, from)
	}
	if input.Reason == "" {
		return nil, ReduceOutput{}, fmt.Errorf("trust elevation requires a reason")
	}

	s.audit().Reduced(from, to, input.Reason)
	return nil, ReduceOutput{From: string(from), To: string(to), Recorded: true}, nil
}
