package audit

import (
	"sync/atomic"

	"github.com/rkorstad/taintgate/internal/policy"
	"github.com/rkorstad/taintgate/internal/taint"
)

// Emitter is the stateless translation layer from evaluator outcomes to
// audit events. Emission is best-effort: sink errors are counted and
// swallowed so audit delivery can never veto or fail a guarded action.
type Emitter struct {
	sink    Sink
	tags    *taint.Registry
	actor   string
	mode    policy.Mode
	dropped atomic.Uint64
}

// NewEmitter builds an emitter for the given sink. A nil sink yields an
// emitter that discards everything, which keeps call sites unconditional.
func NewEmitter(sink Sink, tags *taint.Registry, actor string, mode policy.Mode) *Emitter {
	return &Emitter{sink: sink, tags: tags, actor: actor, mode: mode}
}

// Dropped returns how many events failed to reach the sink.
func (e *Emitter) Dropped() uint64 { return e.dropped.Load() }

func (e *Emitter) emit(ev Event) {
	if e.sink == nil {
		return
	}
	ev.stamp()
	if ev.Actor == "" {
		ev.Actor = e.actor
	}
	if ev.Mode == "" {
		ev.Mode = string(e.mode)
	}
	if err := e.sink.Record(ev); err != nil {
		e.dropped.Add(1)
	}
}

// Blocked records a taint_blocked event for a rejected evaluation.
// No-op for OK outcomes.
func (e *Emitter) Blocked(action string, o policy.Outcome) {
	if o.OK() {
		return
	}
	ev := Event{
		Kind:      KindBlocked,
		Action:    action,
		Parameter: o.Parameter,
		Role:      string(taint.RoleControl),
		Level:     string(o.Level),
	}
	if o.Status == policy.StatusMissingSanitization {
		ev.Missing = e.tags.Names(o.Missing)
	}
	e.emit(ev)
}

// Audited records taint_audited events for control parameters that were
// permitted despite not being fully trusted. Only the permissive and
// advisory modes log these; in enforce mode derived data in control
// positions is ordinary operation.
func (e *Emitter) Audited(action string, notes []policy.AuditNote) {
	if e.mode == policy.ModeEnforce {
		return
	}
	for _, n := range notes {
		e.emit(Event{
			Kind:      KindAudited,
			Action:    action,
			Parameter: n.Parameter,
			Role:      string(n.Role),
			Level:     string(n.Level),
		})
	}
}

// Propagated records that an action executed and its output inherited a
// taint level from its input.
func (e *Emitter) Propagated(action string, in, out taint.TrustLevel, chain []string) {
	e.emit(Event{
		Kind:      KindPropagated,
		Action:    action,
		FromLevel: string(in),
		ToLevel:   string(out),
		Chain:     chain,
	})
}

// Reduced records an explicit trust elevation (level lowered toward
// trusted) performed outside the evaluator.
func (e *Emitter) Reduced(from, to taint.TrustLevel, reason string) {
	e.emit(Event{
		Kind:      KindReduced,
		FromLevel: string(from),
		ToLevel:   string(to),
		Reason:    reason,
	})
}
