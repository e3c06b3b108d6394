// Package store provides persistence backends for workflow state and
// suspension records.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested run ID does not exist.
var ErrNotFound = errors.New("not found")

// Store persists workflow state and suspension records, keyed by run ID.
//
// It enables:
//   - Step-by-step state persistence during execution
//   - Latest state retrieval for resumption
//   - The suspension primitive used by human gates
//
// SaveStep is the only mutation path for state content. Implementations
// must make each SaveStep atomic with respect to a single run: a concurrent
// LoadLatest sees either the previous state or the new one, never a partial
// write. Cross-run locking is not required; every run owns a disjoint
// record.
//
// Durable backends report infrastructure failures as *TransientError so
// callers can distinguish "try again later" from workflow failure.
//
// Type parameter S is the state type to persist (must be JSON-serializable).
type Store[S any] interface {
	// SaveStep persists the state after a node execution step.
	//
	// Parameters:
	//   - runID: Unique identifier for this workflow execution
	//   - step: Sequential step number (0 is the initial state)
	//   - nodeID: ID of the node that produced this state (empty for step 0)
	//   - state: The current workflow state after merging the delta
	SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error

	// LoadLatest retrieves the most recent state for a given run.
	//
	// Returns:
	//   - state: The most recent persisted state
	//   - step: The step number of the returned state
	//   - error: ErrNotFound if runID doesn't exist, or other persistence errors
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// RecordSuspension persists the suspension record for a run. A run can
	// have at most one outstanding suspension; recording a second one
	// replaces the first (the engine never does this in practice because a
	// suspended run cannot dispatch).
	RecordSuspension(ctx context.Context, runID string, s Suspension) error

	// PendingSuspension retrieves the outstanding suspension record for a
	// run, or nil if the run is not suspended. A missing run is not an
	// error here; it simply has no suspension.
	PendingSuspension(ctx context.Context, runID string) (*Suspension, error)

	// ClearSuspension removes the outstanding suspension record for a run.
	// Clearing a run with no suspension is a no-op.
	ClearSuspension(ctx context.Context, runID string) error
}

// Suspension is the persisted marker that a run is waiting on an external
// decision. It is the only thing alive while a gate waits: no goroutine,
// lock, or in-memory resource survives alongside it, so a process restart
// between suspension and resume loses nothing.
type Suspension struct {
	// NodeID is the gate node that raised the suspension.
	NodeID string `json:"node_id"`

	// Reason identifies the gate type (e.g. "script_review").
	Reason string `json:"reason"`

	// Payload describes what the external decider must decide. Opaque to
	// the store and the engine.
	Payload json.RawMessage `json:"payload"`

	// CreatedAt records when the run suspended.
	CreatedAt time.Time `json:"created_at"`
}

// StepRecord represents a single execution step in the workflow history.
// Used internally by Store implementations to track step-by-step progression.
type StepRecord[S any] struct {
	// Step is the sequential step number.
	Step int

	// NodeID identifies which node produced this state.
	NodeID string

	// State is the workflow state after this step completed.
	State S
}

// TransientError marks a store failure as infrastructure trouble rather
// than workflow failure. Callers should retry later; the failure is never
// recorded into pipeline state.
type TransientError struct {
	Op    string
	Cause error
}

func (e *TransientError) Error() string {
	return "store: transient " + e.Op + " failure: " + e.Cause.Error()
}

// Unwrap returns the underlying cause error.
func (e *TransientError) Unwrap() error {
	return e.Cause
}

// IsTransient reports whether err is (or wraps) a store TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
