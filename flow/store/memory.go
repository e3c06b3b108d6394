package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory implementation of Store[S].
//
// It stores workflow state and suspension records in memory using maps.
// Designed for:
//   - Testing and development
//   - Single-process workflows where losing state on restart is acceptable
//
// MemStore is thread-safe and supports concurrent access across runs.
//
// For production use with durability, use SQLiteStore or MySQLStore.
//
// Type parameter S is the state type to persist.
type MemStore[S any] struct {
	mu          sync.RWMutex
	steps       map[string][]StepRecord[S] // runID -> list of steps
	suspensions map[string]Suspension      // runID -> pending suspension
}

// NewMemStore creates a new in-memory store.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps:       make(map[string][]StepRecord[S]),
		suspensions: make(map[string]Suspension),
	}
}

// SaveStep persists a workflow execution step.
//
// Steps are appended to the run's history in the order they are saved.
// Thread-safe for concurrent writes.
func (m *MemStore[S]) SaveStep(_ context.Context, runID string, step int, nodeID string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps[runID] = append(m.steps[runID], StepRecord[S]{
		Step:   step,
		NodeID: nodeID,
		State:  state,
	})
	return nil
}

// LoadLatest retrieves the most recent step for a run.
//
// Returns the record with the highest step number, which handles
// out-of-order step saves correctly.
func (m *MemStore[S]) LoadLatest(_ context.Context, runID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, exists := m.steps[runID]
	if !exists || len(records) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Step > latest.Step {
			latest = record
		}
	}

	return latest.State, latest.Step, nil
}

// RecordSuspension persists the pending suspension for a run.
func (m *MemStore[S]) RecordSuspension(_ context.Context, runID string, s Suspension) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.suspensions[runID] = s
	return nil
}

// PendingSuspension returns the pending suspension for a run, or nil.
func (m *MemStore[S]) PendingSuspension(_ context.Context, runID string) (*Suspension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.suspensions[runID]
	if !exists {
		return nil, nil
	}
	// Copy so callers cannot mutate the stored record.
	out := s
	return &out, nil
}

// ClearSuspension removes the pending suspension for a run.
func (m *MemStore[S]) ClearSuspension(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.suspensions, runID)
	return nil
}
