// Package policy implements the taint evaluation decision function that
// gates action dispatch. Evaluation is pure: no I/O, no shared state, a
// typed outcome instead of errors. Audit emission happens in the caller.
package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rkorstad/taintgate/internal/taint"
)

// Status is the evaluation outcome kind.
type Status string

const (
	StatusOK                  Status = "ok"
	StatusBlocked             Status = "blocked"
	StatusMissingSanitization Status = "missing_sanitization"
)

// AuditNote marks a parameter that was permitted but is not fully
// trusted. The dispatcher turns notes into taint_audited events under
// permissive modes.
type AuditNote struct {
	Parameter string
	Role      taint.RoleKind
	Level     taint.TrustLevel
}

// Outcome is the result of one evaluation. Exactly one of the three
// statuses applies; Parameter/Level/Missing are set for violations only.
type Outcome struct {
	Status    Status
	Parameter string
	Level     taint.TrustLevel
	Missing   taint.Set
	Audited   []AuditNote
}

// OK reports whether the evaluation permitted the action.
func (o Outcome) OK() bool { return o.Status == StatusOK }

// Reason renders a caller-facing refusal message. It names the parameter
// and the rule that failed, never the offending value.
func (o Outcome) Reason(r *taint.Registry) string {
	switch o.Status {
	case StatusBlocked:
		return fmt.Sprintf("parameter %q: trust level %s is not permitted in a control position", o.Parameter, o.Level)
	case StatusMissingSanitization:
		return fmt.Sprintf("parameter %q: missing sanitization evidence: %s", o.Parameter, strings.Join(r.Names(o.Missing), ", "))
	default:
		return "permitted"
	}
}

// LevelPredicate decides whether a trust level may be used in a given
// role position. Injected so the level-comparison policy stays outside
// the evaluator.
type LevelPredicate func(level taint.TrustLevel, kind taint.RoleKind) bool

// DefaultPredicate blocks untrusted and hostile levels in control
// positions and permits everything in data positions.
func DefaultPredicate(level taint.TrustLevel, kind taint.RoleKind) bool {
	if kind != taint.RoleControl {
		return true
	}
	return level == taint.LevelTrusted || level == taint.LevelDerived
}

// LevelAllowsData reports whether a level may be used in a data
// position. Always true; exposed for single-value checks outside full
// evaluation.
func LevelAllowsData(taint.TrustLevel) bool { return true }

// Evaluate decides whether the supplied parameters may flow into an
// action with the given role spec.
//
// Contract:
//  1. A nil context means no enforcement: the outcome is always OK.
//     Enforcement activates only when a caller attaches provenance.
//  2. The context's level is extracted as-is; taint.FromMap has already
//     normalized unrecognized shapes to hostile.
//  3. Parameters are visited in sorted name order so identical inputs
//     always report the identical violation.
//  4. Per control parameter, the level check runs strictly before the
//     sanitization check: a level failure is the stronger signal and
//     must not be masked by a missing-evidence failure. Sanitization
//     evidence never upgrades trust level.
//  5. A non-empty requirement is satisfiable only by a structured
//     context. A bare level carries no evidence, however trusted.
func Evaluate(spec taint.RoleSpec, params map[string]any, ctx *taint.Context, allows LevelPredicate) Outcome {
	if ctx == nil {
		return Outcome{Status: StatusOK}
	}
	if allows == nil {
		allows = DefaultPredicate
	}

	level := ctx.Level()

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var audited []AuditNote
	for _, name := range names {
		role := taint.RoleOf(spec, name)
		if role.Kind != taint.RoleControl {
			continue
		}

		if !allows(level, role.Kind) {
			return Outcome{Status: StatusBlocked, Parameter: name, Level: level}
		}
		if level != taint.LevelTrusted {
			audited = append(audited, AuditNote{Parameter: name, Role: role.Kind, Level: level})
		}

		required := taint.RequirementsOf(role)
		if required.Empty() {
			continue
		}

		sans, structured := ctx.Sanitizations()
		if !structured {
			return Outcome{Status: StatusMissingSanitization, Parameter: name, Level: level, Missing: required}
		}
		if missing := required.Diff(sans); !missing.Empty() {
			return Outcome{Status: StatusMissingSanitization, Parameter: name, Level: level, Missing: missing}
		}
	}

	return Outcome{Status: StatusOK, Audited: audited}
}
