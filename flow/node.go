package flow

import "context"

// Node represents a processing unit in the workflow graph.
// It receives state of type S, performs computation, and returns a NodeResult.
//
// Nodes are the fundamental building blocks of a workflow. Each node can:
//   - Access the current state
//   - Perform computation (call generators, tools, or custom logic)
//   - Return state modifications via Delta
//   - Control routing via Route
//   - Suspend the run for an external decision via Interrupt
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	// Run executes the node's logic with the given context and state.
	// It returns a NodeResult containing state changes, routing decisions,
	// an optional suspension request, and any errors encountered.
	Run(ctx context.Context, state S) NodeResult[S]
}

// Resumable is implemented by gate nodes that suspend a run and later
// accept an external decision.
//
// The engine calls Run for the suspend phase (the node returns a
// NodeResult with Interrupt set) and Resume once an external caller
// supplies a decision. Resume validates the decision, writes it into the
// delta, and returns the gate's fixed successor as the Route.
//
// A Resume that returns a non-nil Err is a protocol error: the engine
// leaves state and the pending suspension untouched so the caller can
// correct the decision and retry.
type Resumable[S any] interface {
	Node[S]

	// Resume applies an external decision to the suspended gate.
	Resume(ctx context.Context, state S, decision map[string]any) NodeResult[S]
}

// NodeResult represents the output of a node execution.
//
// It contains all information needed to continue workflow execution:
//   - Delta: Partial state update to be merged via reducer
//   - Route: Next hop for execution flow
//   - Interrupt: Suspension request (gate nodes only)
//   - Err: Node-level error (if any)
type NodeResult[S any] struct {
	// Delta is the partial state update produced by this node.
	// It will be merged with the current state using the configured reducer.
	Delta S

	// Route specifies the next step in workflow execution.
	// Use Stop() for terminal nodes or Goto(id) for explicit routing.
	Route Next

	// Interrupt, when non-nil, asks the engine to persist a suspension
	// record and stop the dispatch cycle. The run makes no further
	// progress until an external caller resumes it. Delta is merged and
	// persisted before the suspension is recorded.
	Interrupt *Interrupt

	// Err contains any error that occurred during node execution.
	// Non-nil errors halt the workflow.
	Err error
}

// Interrupt describes a suspension request raised by a gate node.
//
// The payload is everything the external decider needs to act; it is
// serialized into the suspension record and must therefore be
// JSON-marshalable. The engine treats it as opaque.
type Interrupt struct {
	// Reason identifies the gate type (e.g. "topic_selection").
	// Resume calls may assert against it to reject mismatched decisions.
	Reason string

	// Payload is the data presented to the external decider.
	Payload any
}

// Next specifies the next step in workflow execution after a node completes.
//
// It supports two routing modes:
//   - Terminal: Stop execution (Terminal = true)
//   - Single: Go to a specific node (To = "nodeID")
//
// If neither is set, the engine falls back to edge-based routing.
type Next struct {
	// To specifies the next single node to execute.
	To string

	// Terminal indicates workflow execution should stop.
	Terminal bool
}

// Stop returns a Next that terminates workflow execution.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the specified node.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// NodeFunc is a function adapter that implements the Node interface.
// It allows using plain functions as nodes without creating custom types.
//
// Example:
//
//	researchNode := NodeFunc[MyState](func(ctx context.Context, s MyState) NodeResult[MyState] {
//	    return NodeResult[MyState]{
//	        Delta: MyState{Result: "done"},
//	        Route: Stop(),
//	    }
//	})
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements the Node interface for NodeFunc.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// Reducer merges a partial state update into the previous state.
//
// Reducers must be deterministic and must treat zero-valued delta fields
// as "unchanged" so nodes can return sparse updates.
type Reducer[S any] func(prev, delta S) S

// NodeError represents an error that occurred during node execution.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which node produced this error.
	NodeID string

	// Cause is the underlying error that caused this NodeError.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
