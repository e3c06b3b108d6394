package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"podshorts/flow"
	"podshorts/flow/store"
)

// Run lifecycle states reported by Status.
const (
	RunStatusSuspended  = "suspended"
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusInProgress = "in_progress"
)

// RunStatus is the externally visible state of a run, derived entirely
// from the persisted state and the pending suspension.
type RunStatus struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Step   int    `json:"step"`

	// Gate and Payload are set while the run waits on a decision.
	Gate    string          `json:"gate,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// Error is set when the run failed permanently.
	Error string `json:"error,omitempty"`
}

// Service is the pipeline's front door: it owns run identity and wraps
// the engine with domain-level operations.
type Service struct {
	engine *flow.Engine[PipelineState]
	cfg    Config
}

// NewService wraps a built engine.
func NewService(engine *flow.Engine[PipelineState], cfg Config) *Service {
	return &Service{engine: engine, cfg: cfg}
}

// Start launches a new run and blocks until it completes, fails, or
// suspends at the first gate. It returns the generated run id.
func (s *Service) Start(ctx context.Context, owner string, prefs Preferences) (string, PipelineState, error) {
	runID := uuid.NewString()
	initial := PipelineState{
		RunID:           runID,
		Owner:           owner,
		CreatedAt:       time.Now().UTC(),
		Preferences:     prefs,
		VideoResolution: s.cfg.VideoResolution,
		RetryCounts:     map[string]int{},
	}

	state, _, err := s.engine.Start(ctx, runID, initial)
	if err != nil {
		return runID, state, fmt.Errorf("start run: %w", err)
	}
	return runID, state, nil
}

// Resume applies an external gate decision and blocks until the run
// reaches its next gate or terminal state.
func (s *Service) Resume(ctx context.Context, runID, gate string, decision map[string]any) (PipelineState, error) {
	state, _, err := s.engine.Resume(ctx, runID, gate, decision)
	if err != nil {
		return state, fmt.Errorf("resume run %s: %w", runID, err)
	}
	return state, nil
}

// Status reports where a run stands. A pending suspension wins; a
// persisted error means failure; a final artifact means completion;
// anything else is a run still in flight (or abandoned mid-step).
func (s *Service) Status(ctx context.Context, runID string) (RunStatus, error) {
	state, step, err := s.engine.Latest(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RunStatus{}, fmt.Errorf("run %s: %w", runID, err)
		}
		return RunStatus{}, fmt.Errorf("load run %s: %w", runID, err)
	}

	status := RunStatus{RunID: runID, Step: step}

	susp, err := s.engine.Pending(ctx, runID)
	if err != nil {
		return RunStatus{}, fmt.Errorf("load suspension for run %s: %w", runID, err)
	}
	switch {
	case susp != nil:
		status.Status = RunStatusSuspended
		status.Gate = susp.Reason
		status.Payload = susp.Payload
	case state.Error != "":
		status.Status = RunStatusFailed
		status.Error = state.Error
	case state.EditorOutput != nil:
		status.Status = RunStatusCompleted
	default:
		status.Status = RunStatusInProgress
	}
	return status, nil
}

// Result returns the final artifact set of a completed run.
func (s *Service) Result(ctx context.Context, runID string) (*EditorOutput, error) {
	status, err := s.Status(ctx, runID)
	if err != nil {
		return nil, err
	}
	if status.Status != RunStatusCompleted {
		return nil, fmt.Errorf("run %s is %s, not completed", runID, status.Status)
	}

	state, _, err := s.engine.Latest(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	out := *state.EditorOutput
	return &out, nil
}
