// Package dispatch runs actions behind the taint policy gate. It owns
// the side effects the evaluator deliberately avoids: audit emission,
// handler invocation, output taint propagation.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rkorstad/taintgate/internal/audit"
	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/taint"
)

// Handler executes an action body. Values reach it only after the
// policy gate has passed.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Decl declares one action kind: its role map and its body.
// Declarations are static and immutable once registered.
type Decl struct {
	Kind    string
	Roles   taint.RoleSpec
	Handler Handler
}

// Registry holds action declarations.
type Registry struct {
	mu    sync.RWMutex
	decls map[string]Decl
}

// NewRegistry returns an empty action registry.
func NewRegistry() *Registry {
	return &Registry{decls: make(map[string]Decl)}
}

// Register adds a declaration. Re-registering a kind is a conflict.
func (r *Registry) Register(d Decl) error {
	if d.Kind == "" {
		return fmt.Errorf("dispatch: declaration has no kind")
	}
	if d.Handler == nil {
		return fmt.Errorf("dispatch: action %q has no handler", d.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.decls[d.Kind]; exists {
		return fmt.Errorf("dispatch: action %q already registered", d.Kind)
	}
	r.decls[d.Kind] = d
	return nil
}

// Lookup returns the declaration for kind.
func (r *Registry) Lookup(kind string) (Decl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decls[kind]
	return d, ok
}

// Kinds returns the registered action kinds.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decls))
	for k := range r.decls {
		out = append(out, k)
	}
	return out
}

// BlockedError is returned when the policy gate refuses an invocation.
// It names the parameter and the rule that failed, never the value.
type BlockedError struct {
	Action    string
	Parameter string
	Status    policy.Status
	Level     taint.TrustLevel
	Missing   []string
}

func (e *BlockedError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("action %q not permitted: parameter %q missing sanitization [%s]",
			e.Action, e.Parameter, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("action %q not permitted: parameter %q at trust level %s",
		e.Action, e.Parameter, e.Level)
}

// Invocation is one attempt to run an action.
type Invocation struct {
	Action string
	Params map[string]any
	// Context is the provenance attached to the supplied values.
	// nil means no policy context: the gate does not enforce.
	Context *taint.Context
}

// Result is a successful dispatch: the handler's output plus the taint
// context the output inherits.
type Result struct {
	Output any
	// Context is nil when the invocation carried no policy context.
	Context *taint.Context
}

// Dispatcher evaluates policy for every invocation before running the
// action body, and records the decision trail.
type Dispatcher struct {
	registry *Registry
	tags     *taint.Registry
	emitter  *audit.Emitter

	mu  sync.RWMutex
	cfg *policy.Config
}

// New builds a dispatcher. A nil config means defaults; a nil emitter
// means no audit trail.
func New(registry *Registry, tags *taint.Registry, cfg *policy.Config, emitter *audit.Emitter) *Dispatcher {
	if cfg == nil {
		cfg = policy.DefaultConfig()
	}
	return &Dispatcher{registry: registry, tags: tags, cfg: cfg, emitter: emitter}
}

// SetConfig swaps the policy config, for hot reload.
func (d *Dispatcher) SetConfig(cfg *policy.Config) {
	if cfg == nil {
		return
	}
	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
}

func (d *Dispatcher) config() *policy.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// roleSpecFor merges the declaration's roles with any config-declared
// roles for the kind. Declaration wins per parameter.
func (d *Dispatcher) roleSpecFor(decl Decl) (taint.RoleSpec, error) {
	cfgSpec, err := d.config().RoleSpecFor(d.tags, decl.Kind)
	if err != nil {
		return nil, err
	}
	if len(cfgSpec) == 0 {
		return decl.Roles, nil
	}

	merged := make(taint.RoleSpec, len(cfgSpec)+len(decl.Roles))
	for name, role := range cfgSpec {
		merged[name] = role
	}
	for name, role := range decl.Roles {
		merged[name] = role
	}
	return merged, nil
}

// Check evaluates an invocation without running it (dry run).
func (d *Dispatcher) Check(inv Invocation) (policy.Outcome, error) {
	decl, ok := d.registry.Lookup(inv.Action)
	if !ok {
		return policy.Outcome{}, fmt.Errorf("dispatch: unknown action %q", inv.Action)
	}
	spec, err := d.roleSpecFor(decl)
	if err != nil {
		return policy.Outcome{}, err
	}
	return policy.Evaluate(spec, inv.Params, inv.Context, d.config().Predicate()), nil
}

// Dispatch gates and runs one invocation.
//
// On refusal the handler is never called, a taint_blocked event is
// recorded, and the caller gets a *BlockedError. On success the handler
// runs, its output inherits a derived taint context, and the
// propagation is recorded. Audit failures never change the result.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) (*Result, error) {
	decl, ok := d.registry.Lookup(inv.Action)
	if !ok {
		return nil, fmt.Errorf("dispatch: unknown action %q", inv.Action)
	}

	spec, err := d.roleSpecFor(decl)
	if err != nil {
		return nil, err
	}

	outcome := policy.Evaluate(spec, inv.Params, inv.Context, d.config().Predicate())
	if !outcome.OK() {
		if d.emitter != nil {
			d.emitter.Blocked(inv.Action, outcome)
		}
		blocked := &BlockedError{
			Action:    inv.Action,
			Parameter: outcome.Parameter,
			Status:    outcome.Status,
			Level:     outcome.Level,
		}
		if outcome.Status == policy.StatusMissingSanitization {
			blocked.Missing = d.tags.Names(outcome.Missing)
		}
		return nil, blocked
	}

	if d.emitter != nil {
		d.emitter.Audited(inv.Action, outcome.Audited)
	}

	out, err := decl.Handler(ctx, inv.Params)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %s: %w", inv.Action, err)
	}

	result := &Result{Output: out}
	if inv.Context != nil {
		in := inv.Context.Level()
		derived := taint.Bare(taint.Derive(in))
		result.Context = &derived
		if d.emitter != nil {
			d.emitter.Propagated(inv.Action, in, derived.Level(), []string{inv.Action})
		}
	}

	return result, nil
}
