package emit

// Event represents an observability event emitted during workflow execution.
//
// Events provide insight into workflow behavior:
//   - Stage execution start/complete
//   - Quality assessments and retries
//   - Suspension and resume operations
//   - Errors and warnings
//
// Events are emitted to an Emitter which can log to stdout/stderr, send
// to OpenTelemetry, or be discarded.
type Event struct {
	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the sequential step number in the workflow.
	// Zero for run-level events (start, complete, error).
	Step int

	// NodeID identifies which stage emitted this event.
	// Empty string for run-level events.
	NodeID string

	// Msg is a short machine-friendly description of the event
	// (e.g. "stage_complete", "run_suspended").
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Execution duration in milliseconds
	//   - "error": Error details
	//   - "gate": Gate type for suspension events
	//   - "attempt": Stage attempt number
	//   - "score": Quality assessment score
	Meta map[string]interface{}
}
