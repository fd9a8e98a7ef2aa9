// Package graph models the stage dependency graph: stages declare input and
// output artifact kinds, and the edges derived from those declarations must
// form a DAG. The resolver computes execution order and readiness from the
// declarations; ordering is a resolver output, never a hand-authored sequence.
package graph

import "time"

// Kind names a class of artifact a stage consumes or produces.
type Kind string

// StageID identifies a stage within one pipeline definition.
type StageID string

// Status is the lifecycle state of a stage within a run.
// Mutated only by the execution engine.
type Status string

const (
	StatusPending           Status = "pending"
	StatusReady             Status = "ready"
	StatusRunning           Status = "running"
	StatusComplete          Status = "complete"
	StatusFailed            Status = "failed"
	StatusBlockedDownstream Status = "blocked_downstream"
)

// IsValidStatus returns true if the status string is a valid Status
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusReady, StatusRunning,
		StatusComplete, StatusFailed, StatusBlockedDownstream:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a stage in this status will not run again
// within the current run.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusBlockedDownstream
}

// Stage declares a unit of the pipeline: which artifact kinds it consumes
// and which it produces. Created at pipeline-definition time.
type Stage struct {
	ID      StageID
	Inputs  []Kind // ordered as declared
	Outputs []Kind

	// Timeout overrides the engine's default per-stage timeout. 0 = use default.
	Timeout time.Duration

	// Abortable marks an executor as safe to interrupt on cancellation.
	// Non-abortable executors are allowed to finish (assumed non-idempotent).
	Abortable bool

	// Handler names the executor that runs this stage. The engine resolves
	// it through the executor registry; the core never inspects its internals.
	Handler string

	// Notes carries stage-local commentary from the pipeline definition.
	// It has no effect on scheduling or validation.
	Notes string

	seq int // registration sequence, for stable tie-breaks
}

// Edge is a derived dependency: Producer's output kind feeds Consumer's input.
type Edge struct {
	Producer StageID
	Consumer StageID
	Kind     Kind
}
