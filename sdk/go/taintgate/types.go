package taintgate

import (
	"fmt"

	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/taint"
)

// Status is the flow gate outcome for one check.
type Status string

const (
	Permitted           Status = Status(policy.StatusOK)
	Blocked             Status = Status(policy.StatusBlocked)
	MissingSanitization Status = Status(policy.StatusMissingSanitization)
)

// Role declares how one parameter participates in an action.
// Kind is "data" or "control"; Requires lists sanitization tags a
// control parameter must carry evidence for.
type Role struct {
	Kind     string
	Requires []string
}

// Call carries one tool invocation: the parameter values and the taint
// attached to them. Taint accepts the same shapes as policy contexts:
// a bare level string or a structured map with level and sanitizations.
// A nil Taint means no provenance is claimed and the gate does not
// enforce.
type Call struct {
	Params map[string]any
	Taint  any
}

// Result is a flow gate evaluation outcome.
type Result struct {
	Status    Status
	Parameter string
	Level     string
	Missing   []string
	Reason    string
}

// Allowed returns true if the decision permits the call.
func (r Result) Allowed() bool { return r.Status == Permitted }

// BlockedError is returned when the gate refuses a call. It names the
// parameter and the rule that failed, never the value.
type BlockedError struct {
	Action string
	Result Result
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("taintgate blocked %s: %s", e.Action, e.Result.Reason)
}

// toResult maps an internal outcome to an SDK Result.
func toResult(tags *taint.Registry, o policy.Outcome) Result {
	return Result{
		Status:    Status(o.Status),
		Parameter: o.Parameter,
		Level:     string(o.Level),
		Missing:   tags.Names(o.Missing),
		Reason:    o.Reason(tags),
	}
}

// toRoleSpec maps SDK role declarations onto the internal spec.
func toRoleSpec(tags *taint.Registry, roles map[string]Role) (taint.RoleSpec, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	spec := make(taint.RoleSpec, len(roles))
	for name, r := range roles {
		decl := policy.RoleDecl{Role: r.Kind, Requires: r.Requires}
		role, err := policy.RoleFromDecl(tags, decl)
		if err != nil {
			return nil, fmt.Errorf("taintgate: parameter %q: %w", name, err)
		}
		spec[name] = role
	}
	return spec, nil
}
