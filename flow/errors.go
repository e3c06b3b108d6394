package flow

import "errors"

// ErrNotSuspended is returned by Resume when the target run has no pending
// suspension record. Re-issuing a resume decision against a run that has
// already been resumed falls into this case: the decision is rejected, not
// silently re-applied, and run state is left untouched.
var ErrNotSuspended = errors.New("run is not suspended")

// ErrGateMismatch is returned by Resume when the caller names a gate type
// that does not match the pending suspension record. State is left untouched.
var ErrGateMismatch = errors.New("resume gate does not match pending suspension")

// ErrRunBusy is returned when a dispatch cycle is requested for a run that
// already has one in flight. State merges are not commutative, so a second
// cycle is rejected rather than interleaved.
var ErrRunBusy = errors.New("run already has a dispatch cycle in flight")

// ErrRunExists is returned by Start when the run ID already has persisted
// state. Runs are created exactly once; use Resume to continue a suspended
// run.
var ErrRunExists = errors.New("run already exists")

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *EngineError) Unwrap() error {
	return e.Cause
}
