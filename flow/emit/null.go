package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use cases:
//   - Deployments where event logging is not desired
//   - Tests where event capture is not needed
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
//
// Returns a NullEmitter that discards all events. Safe for concurrent use
// with zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event without any processing.
func (n *NullEmitter) Emit(event Event) {
	// No-op: discard the event
}
