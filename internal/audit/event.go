// Package audit translates evaluator outcomes and dispatcher observations
// into structured security events. It records decisions already made
// elsewhere; it never blocks anything itself, and sink failures never
// reach the decision path.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the four security event types.
type EventKind string

const (
	// KindBlocked records that the evaluator rejected a parameter and
	// the dispatcher refused the action.
	KindBlocked EventKind = "taint_blocked"
	// KindPropagated records that an action ran and its output was
	// assigned a derived taint level.
	KindPropagated EventKind = "taint_propagated"
	// KindReduced records an explicit trust elevation outside the
	// evaluator (e.g. manual review).
	KindReduced EventKind = "taint_reduced"
	// KindAudited records that a not-fully-trusted control parameter
	// was permitted under a permissive policy mode.
	KindAudited EventKind = "taint_audited"
)

// TimestampFormat is the layout used in audit event timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Event is one audit record. All fields are scalars or string slices
// (no map[string]any) to guarantee deterministic json.Marshal field
// order for reproducible hashing. The parameter value that triggered an
// event is never recorded, only its name.
type Event struct {
	ID        string    `json:"id"`
	Timestamp string    `json:"ts"`
	Kind      EventKind `json:"kind"`
	Action    string    `json:"action,omitempty"`
	Parameter string    `json:"parameter,omitempty"`
	Role      string    `json:"role,omitempty"`
	Level     string    `json:"level,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Missing   []string  `json:"missing,omitempty"`
	FromLevel string    `json:"from_level,omitempty"`
	ToLevel   string    `json:"to_level,omitempty"`
	Chain     []string  `json:"chain,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// stamp assigns the event id and timestamp if unset.
func (e *Event) stamp() {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(TimestampFormat)
	}
}

// Sink receives audit events. Implementations may buffer or write
// asynchronously; durability is the sink's concern, not the emitter's.
type Sink interface {
	Record(Event) error
}
