// Package emit provides pluggable observability for workflow execution.
package emit

// Emitter receives and processes observability events from workflow
// execution.
//
// Implementations should be:
//   - Non-blocking: Avoid slowing down workflow execution
//   - Thread-safe: May be called concurrently from multiple runs
//   - Resilient: Handle failures gracefully (never crash the workflow)
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit should not panic and should not block workflow execution.
	// Errors are handled internally.
	Emit(event Event)
}
