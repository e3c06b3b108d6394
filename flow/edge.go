// Package flow provides the durable workflow engine: node dispatch,
// checkpointing, suspension, and resume.
package flow

// Edge represents a connection between two nodes in the workflow graph.
//
// Edges define the control flow between nodes. They can be:
// - Unconditional: Always traverse (When = nil).
// - Conditional: Only traverse if predicate returns true (When != nil).
//
// Edges are evaluated in registration order; the first match wins. A node's
// explicit NodeResult.Route takes precedence over edge-based routing.
//
// Type parameter S is the state type used for predicate evaluation.
type Edge[S any] struct {
	// From is the source node ID.
	From string

	// To is the destination node ID.
	To string

	// When is an optional predicate that determines if this edge should be
	// traversed. If nil, the edge is unconditional.
	When Predicate[S]
}

// Predicate is a function that evaluates state to determine if an edge
// should be traversed.
//
// Predicates enable conditional routing based on workflow state. They must
// be pure functions (deterministic, no side effects) because the engine may
// re-evaluate them after a crash-resume.
//
// Type parameter S is the state type to evaluate.
type Predicate[S any] func(state S) bool
