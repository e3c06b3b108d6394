package flow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"podshorts/flow/emit"
	"podshorts/flow/store"
)

// Status reports how a dispatch cycle ended.
type Status string

const (
	// StatusCompleted means the run reached a terminal node.
	StatusCompleted Status = "completed"

	// StatusSuspended means a gate node raised an Interrupt and the run
	// is waiting on an external decision. Continue it with Resume.
	StatusSuspended Status = "suspended"
)

// Engine orchestrates durable workflow execution with suspension support.
//
// The Engine is the core runtime that:
//   - Manages workflow graph topology (nodes and edges)
//   - Executes nodes in sequence from a start node
//   - Merges state updates via the reducer
//   - Persists state at each step via the store
//   - Records suspension markers when gate nodes interrupt
//   - Resumes suspended runs from their persisted state
//   - Emits observability events via the emitter
//   - Enforces the MaxSteps limit
//
// A run's only live artifact between suspension and resume is what the
// store holds: the latest state row and one suspension record. Nothing
// in the Engine itself survives a process restart, so a run suspended by
// one process can be resumed by another pointed at the same store.
//
// Type parameter S is the state type shared across the workflow.
//
// Example:
//
//	st := store.NewMemStore[PipelineState]()
//	emitter := emit.NewLogEmitter(os.Stdout, false)
//
//	eng := flow.New(reducer, st, emitter, flow.Options{MaxSteps: 100})
//	eng.Add("research", researchNode)
//	eng.StartAt("research")
//
//	state, status, err := eng.Start(ctx, "run-001", initial)
//	if status == flow.StatusSuspended {
//	    // ... collect a decision, then:
//	    state, status, err = eng.Resume(ctx, "run-001", "topic_selection", decision)
//	}
type Engine[S any] struct {
	mu sync.RWMutex

	// reducer merges partial state updates deterministically
	reducer Reducer[S]

	// nodes maps node IDs to Node implementations
	nodes map[string]Node[S]

	// edges defines conditional transitions between nodes
	edges []Edge[S]

	// startNode is the entry point for workflow execution
	startNode string

	// store persists workflow state and suspension records
	store store.Store[S]

	// emitter receives observability events
	emitter emit.Emitter

	// metrics is optional Prometheus instrumentation
	metrics *PrometheusMetrics

	// opts contains execution configuration
	opts Options

	// busyMu guards busy. Per-run dispatch is exclusive: state merges
	// are not commutative, so two concurrent cycles on the same run
	// would corrupt it.
	busyMu sync.Mutex
	busy   map[string]struct{}
}

// Options configures Engine execution behavior.
//
// Zero values are valid - the Engine will use sensible defaults.
type Options struct {
	// MaxSteps limits workflow execution to prevent infinite loops.
	// If 0, no limit is enforced (use with caution).
	// The step counter persists across suspend/resume, so the limit
	// bounds the whole run, not a single dispatch cycle.
	MaxSteps int
}

// New creates a new Engine with the given configuration.
//
// Parameters:
//   - reducer: Function to merge partial state updates (required)
//   - st: Persistence backend for state and suspensions (required)
//   - emitter: Observability event receiver (optional, can be nil)
//   - opts: Execution configuration
//
// The constructor does not validate all parameters to allow flexible
// initialization. Validation occurs when Start or Resume is called.
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, opts Options) *Engine[S] {
	return &Engine[S]{
		reducer: reducer,
		nodes:   make(map[string]Node[S]),
		edges:   make([]Edge[S], 0),
		store:   st,
		emitter: emitter,
		opts:    opts,
		busy:    make(map[string]struct{}),
	}
}

// WithMetrics attaches Prometheus instrumentation to the engine.
// Returns the engine for chaining.
func (e *Engine[S]) WithMetrics(m *PrometheusMetrics) *Engine[S] {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = m
	return e
}

// Add registers a node in the workflow graph.
//
// Nodes must be added before calling StartAt, Start, or Resume.
// Node IDs must be unique within the workflow.
//
// Returns error if:
//   - nodeID is empty
//   - node is nil
//   - a node with this ID already exists
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{
			Message: "duplicate node ID: " + nodeID,
			Code:    "DUPLICATE_NODE",
		}
	}

	e.nodes[nodeID] = node
	return nil
}

// StartAt sets the entry point for workflow execution.
//
// The node must have been registered via Add() before calling StartAt.
func (e *Engine[S]) StartAt(nodeID string) error {
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + nodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}

	e.startNode = nodeID
	return nil
}

// Connect creates an edge between two nodes.
//
// Edges define possible transitions in the workflow graph. They can be:
//   - Unconditional: Always traverse (predicate = nil)
//   - Conditional: Only traverse if predicate returns true
//
// Node explicit routing via NodeResult.Route takes precedence over edges.
// Edges from the same node are evaluated in registration order; the first
// match wins.
//
// Note: Node existence is not validated (lazy validation) to allow
// flexible graph construction order.
func (e *Engine[S]) Connect(from, to string, predicate Predicate[S]) error {
	if from == "" {
		return &EngineError{Message: "from node ID cannot be empty"}
	}
	if to == "" {
		return &EngineError{Message: "to node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.edges = append(e.edges, Edge[S]{
		From: from,
		To:   to,
		When: predicate,
	})
	return nil
}

// Start begins a new workflow run.
//
// The initial state is persisted as step 0 before the first node runs,
// so a crash mid-run can always reload something. Execution then
// proceeds from the start node until a terminal node is reached
// (StatusCompleted) or a gate node suspends the run (StatusSuspended).
//
// Returns ErrRunExists if the run ID already has persisted state; runs
// are created exactly once and continued only through Resume.
//
// The returned state is the latest persisted state: final on
// completion, the merged pre-suspension state on suspension.
func (e *Engine[S]) Start(ctx context.Context, runID string, initial S) (S, Status, error) {
	var zero S

	if err := e.validate(); err != nil {
		return zero, "", err
	}
	if runID == "" {
		return zero, "", &EngineError{Message: "run ID cannot be empty"}
	}

	if !e.acquire(runID) {
		return zero, "", ErrRunBusy
	}
	defer e.release(runID)

	// A run ID is claimed by its step-0 write. Any persisted state,
	// even just step 0, means the ID is taken.
	_, _, err := e.store.LoadLatest(ctx, runID)
	if err == nil {
		return zero, "", ErrRunExists
	}
	if !errors.Is(err, store.ErrNotFound) {
		return zero, "", &EngineError{
			Message: "failed to check run existence",
			Code:    "STORE_ERROR",
			Cause:   err,
		}
	}

	if err := e.store.SaveStep(ctx, runID, 0, "", initial); err != nil {
		return zero, "", &EngineError{
			Message: "failed to save initial state",
			Code:    "STORE_ERROR",
			Cause:   err,
		}
	}

	e.emit(emit.Event{
		RunID:  runID,
		Step:   0,
		NodeID: e.startNode,
		Msg:    "run_started",
	})

	return e.dispatch(ctx, runID, initial, e.startNode, 0)
}

// Resume continues a suspended run with an external decision.
//
// The resume protocol:
//  1. The run must have a pending suspension record (else ErrNotSuspended).
//     A decision re-issued after a successful resume lands here: it is
//     rejected, never silently re-applied.
//  2. The gate argument must match the record's reason (else
//     ErrGateMismatch). This stops a stale decision form from acting on
//     a different gate than the one it was rendered for.
//  3. The suspended node validates the decision via its Resume method.
//     A validation error leaves state and the suspension record
//     untouched so the caller can correct the decision and retry.
//  4. On acceptance, the decision's delta is merged and persisted, the
//     suspension record is cleared, and execution continues from the
//     gate's fixed successor.
//
// Parameters:
//   - runID: The suspended run to continue
//   - gate: Expected gate type (e.g. "script_review")
//   - decision: The external decision, shape defined by the gate
func (e *Engine[S]) Resume(ctx context.Context, runID string, gate string, decision map[string]any) (S, Status, error) {
	var zero S

	if err := e.validate(); err != nil {
		return zero, "", err
	}
	if runID == "" {
		return zero, "", &EngineError{Message: "run ID cannot be empty"}
	}

	if !e.acquire(runID) {
		return zero, "", ErrRunBusy
	}
	defer e.release(runID)

	susp, err := e.store.PendingSuspension(ctx, runID)
	if err != nil {
		return zero, "", &EngineError{
			Message: "failed to load suspension record",
			Code:    "STORE_ERROR",
			Cause:   err,
		}
	}
	if susp == nil {
		return zero, "", ErrNotSuspended
	}
	if gate != susp.Reason {
		return zero, "", ErrGateMismatch
	}

	e.mu.RLock()
	nodeImpl, exists := e.nodes[susp.NodeID]
	e.mu.RUnlock()
	if !exists {
		return zero, "", &EngineError{
			Message: "suspended node not found in graph: " + susp.NodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}
	resumable, ok := nodeImpl.(Resumable[S])
	if !ok {
		return zero, "", &EngineError{
			Message: "node cannot accept resume decisions: " + susp.NodeID,
			Code:    "NOT_RESUMABLE",
		}
	}

	state, step, err := e.store.LoadLatest(ctx, runID)
	if err != nil {
		return zero, "", &EngineError{
			Message: "failed to load run state",
			Code:    "STORE_ERROR",
			Cause:   err,
		}
	}

	result := resumable.Resume(ctx, state, decision)
	if result.Err != nil {
		// Protocol error. The suspension record stays pending and the
		// persisted state is untouched; the caller retries with a
		// corrected decision.
		return zero, "", result.Err
	}

	state = e.reducer(state, result.Delta)
	step++

	if err := e.store.ClearSuspension(ctx, runID); err != nil {
		return zero, "", &EngineError{
			Message: "failed to clear suspension record",
			Code:    "STORE_ERROR",
			Cause:   err,
		}
	}
	if err := e.store.SaveStep(ctx, runID, step, susp.NodeID, state); err != nil {
		return zero, "", &EngineError{
			Message: "failed to save step",
			Code:    "STORE_ERROR",
			Cause:   err,
		}
	}

	e.emit(emit.Event{
		RunID:  runID,
		Step:   step,
		NodeID: susp.NodeID,
		Msg:    "run_resumed",
		Meta:   map[string]interface{}{"gate": susp.Reason},
	})
	if e.metrics != nil {
		e.metrics.IncrementResumes(susp.Reason)
	}

	if result.Route.Terminal {
		return state, StatusCompleted, nil
	}
	next := result.Route.To
	if next == "" {
		next = e.evaluateEdges(susp.NodeID, state)
	}
	if next == "" {
		return zero, "", &EngineError{
			Message: "no valid route from node: " + susp.NodeID,
			Code:    "NO_ROUTE",
		}
	}

	return e.dispatch(ctx, runID, state, next, step)
}

// dispatch runs the node execution loop shared by Start and Resume.
//
// It executes nodes beginning at nodeID with the given state, merging
// deltas and persisting each step, until a terminal route completes the
// run or a gate interrupt suspends it.
func (e *Engine[S]) dispatch(ctx context.Context, runID string, state S, nodeID string, step int) (S, Status, error) {
	var zero S

	if e.metrics != nil {
		e.metrics.RunStarted()
		defer e.metrics.RunFinished()
	}

	currentState := state
	currentNode := nodeID

	for {
		step++

		if e.opts.MaxSteps > 0 && step > e.opts.MaxSteps {
			return zero, "", &EngineError{
				Message: "workflow exceeded MaxSteps limit",
				Code:    "MAX_STEPS_EXCEEDED",
			}
		}

		select {
		case <-ctx.Done():
			return zero, "", ctx.Err()
		default:
		}

		e.mu.RLock()
		nodeImpl, exists := e.nodes[currentNode]
		e.mu.RUnlock()

		if !exists {
			return zero, "", &EngineError{
				Message: "node not found during execution: " + currentNode,
				Code:    "NODE_NOT_FOUND",
			}
		}

		started := time.Now()
		result := nodeImpl.Run(ctx, currentState)
		elapsed := time.Since(started)

		if result.Err != nil {
			if e.metrics != nil {
				e.metrics.RecordStageLatency(currentNode, elapsed, "error")
			}
			e.emit(emit.Event{
				RunID:  runID,
				Step:   step,
				NodeID: currentNode,
				Msg:    "stage_failed",
				Meta: map[string]interface{}{
					"duration_ms": elapsed.Milliseconds(),
					"error":       result.Err.Error(),
				},
			})
			return zero, "", result.Err
		}

		currentState = e.reducer(currentState, result.Delta)

		if err := e.store.SaveStep(ctx, runID, step, currentNode, currentState); err != nil {
			return zero, "", &EngineError{
				Message: "failed to save step",
				Code:    "STORE_ERROR",
				Cause:   err,
			}
		}

		if result.Interrupt != nil {
			return e.suspend(ctx, runID, step, currentNode, currentState, result.Interrupt)
		}

		if e.metrics != nil {
			e.metrics.RecordStageLatency(currentNode, elapsed, "success")
		}
		e.emit(emit.Event{
			RunID:  runID,
			Step:   step,
			NodeID: currentNode,
			Msg:    "stage_complete",
			Meta: map[string]interface{}{
				"duration_ms": elapsed.Milliseconds(),
			},
		})

		if result.Route.Terminal {
			e.emit(emit.Event{
				RunID:  runID,
				Step:   step,
				NodeID: currentNode,
				Msg:    "run_completed",
			})
			return currentState, StatusCompleted, nil
		}

		if result.Route.To != "" {
			currentNode = result.Route.To
			continue
		}

		nextNode := e.evaluateEdges(currentNode, currentState)
		if nextNode == "" {
			return zero, "", &EngineError{
				Message: "no valid route from node: " + currentNode,
				Code:    "NO_ROUTE",
			}
		}

		currentNode = nextNode
	}
}

// suspend persists the suspension record for an interrupted run.
//
// The state delta was already merged and saved by the caller, so the
// record is the last write of the dispatch cycle. If the record write
// fails after the state write succeeded, Start/Resume return the error
// and the run is recoverable by re-recording; the state itself is safe.
func (e *Engine[S]) suspend(ctx context.Context, runID string, step int, nodeID string, state S, intr *Interrupt) (S, Status, error) {
	var zero S

	payload, err := json.Marshal(intr.Payload)
	if err != nil {
		return zero, "", &EngineError{
			Message: "failed to encode suspension payload for gate " + intr.Reason,
			Code:    "PAYLOAD_ENCODE_FAILED",
			Cause:   err,
		}
	}

	rec := store.Suspension{
		NodeID:    nodeID,
		Reason:    intr.Reason,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.RecordSuspension(ctx, runID, rec); err != nil {
		return zero, "", &EngineError{
			Message: "failed to record suspension",
			Code:    "STORE_ERROR",
			Cause:   err,
		}
	}

	e.emit(emit.Event{
		RunID:  runID,
		Step:   step,
		NodeID: nodeID,
		Msg:    "run_suspended",
		Meta:   map[string]interface{}{"gate": intr.Reason},
	})
	if e.metrics != nil {
		e.metrics.IncrementSuspensions(intr.Reason)
	}

	return state, StatusSuspended, nil
}

// Pending returns the suspension record for a run, or nil if the run is
// not suspended. Callers use it to render the gate payload for the
// external decider.
func (e *Engine[S]) Pending(ctx context.Context, runID string) (*store.Suspension, error) {
	return e.store.PendingSuspension(ctx, runID)
}

// Latest returns the most recent persisted state and step for a run.
func (e *Engine[S]) Latest(ctx context.Context, runID string) (S, int, error) {
	return e.store.LoadLatest(ctx, runID)
}

// evaluateEdges finds the first matching edge from the given node.
//
// Evaluates outgoing edges in registration order:
//  1. If edge has nil predicate (unconditional), always matches
//  2. If edge predicate returns true for current state, matches
//  3. First matching edge wins (priority order)
//
// Returns empty string if no edges match.
func (e *Engine[S]) evaluateEdges(fromNode string, state S) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, edge := range e.edges {
		if edge.From != fromNode {
			continue
		}
		if edge.When == nil {
			return edge.To
		}
		if edge.When(state) {
			return edge.To
		}
	}
	return ""
}

// validate checks the configuration required for any dispatch.
func (e *Engine[S]) validate() error {
	if e.reducer == nil {
		return &EngineError{
			Message: "reducer is required",
			Code:    "MISSING_REDUCER",
		}
	}
	if e.store == nil {
		return &EngineError{
			Message: "store is required",
			Code:    "MISSING_STORE",
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.startNode == "" {
		return &EngineError{
			Message: "start node not set (call StartAt first)",
			Code:    "NO_START_NODE",
		}
	}
	if _, exists := e.nodes[e.startNode]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + e.startNode,
			Code:    "NODE_NOT_FOUND",
		}
	}
	return nil
}

// acquire claims exclusive dispatch rights for a run.
func (e *Engine[S]) acquire(runID string) bool {
	e.busyMu.Lock()
	defer e.busyMu.Unlock()
	if _, inFlight := e.busy[runID]; inFlight {
		return false
	}
	e.busy[runID] = struct{}{}
	return true
}

// release gives up exclusive dispatch rights for a run.
func (e *Engine[S]) release(runID string) {
	e.busyMu.Lock()
	defer e.busyMu.Unlock()
	delete(e.busy, runID)
}

// emit sends an event if an emitter is configured.
func (e *Engine[S]) emit(ev emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}
