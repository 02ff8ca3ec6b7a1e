package taint

// RoleKind classifies how an action uses a parameter.
type RoleKind string

const (
	// RoleData marks values that only flow into processing. Unrestricted.
	RoleData RoleKind = "data"
	// RoleControl marks values that affect execution flow or a security
	// boundary (the command string, the target path).
	RoleControl RoleKind = "control"
)

// Role is the per-parameter classification an action declares:
// Data, Control, or Control with required sanitization evidence.
type Role struct {
	Kind     RoleKind
	Requires Set
}

// DataRole returns the unrestricted role.
func DataRole() Role { return Role{Kind: RoleData} }

// ControlRole returns a control role with no sanitization requirement.
func ControlRole() Role { return Role{Kind: RoleControl} }

// ControlRequiring returns a control role demanding evidence for every
// tag in requires.
func ControlRequiring(requires Set) Role {
	return Role{Kind: RoleControl, Requires: requires}
}

// RoleSpec maps parameter names to roles. Declared statically per action
// kind, immutable after declaration. Parameters absent from the map
// default to Data, so actions that declare no roles are fully permissive.
type RoleSpec map[string]Role

// RoleOf is the total role lookup: unknown names and unknown kinds
// resolve to Data. Call sites never branch on map absence themselves.
func RoleOf(spec RoleSpec, name string) Role {
	r, ok := spec[name]
	if !ok || r.Kind != RoleControl {
		return DataRole()
	}
	return r
}

// RequirementsOf returns the sanitization evidence a role demands:
// the empty set for Data and bare Control, the declared set otherwise.
func RequirementsOf(role Role) Set {
	if role.Kind != RoleControl {
		return 0
	}
	return role.Requires
}
