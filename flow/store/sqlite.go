package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store[S].
//
// It stores workflow state and suspension records in a single-file
// database. Designed for:
//   - Development and single-host deployments with zero setup
//   - Durable suspension across process restarts
//
// SQLiteStore uses WAL mode for concurrent reads and proper transactions.
//
// Schema:
//   - workflow_steps: step-by-step execution history, point lookup by run id
//   - workflow_suspensions: at most one pending suspension per run
//
// Type parameter S is the state type to persist (must be JSON-serializable).
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore creates a new SQLite-backed store.
//
// The path parameter specifies the database file location:
//   - "./podshorts.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// The store automatically creates the database file and required tables,
// enables WAL mode for concurrent reads, and configures a busy timeout.
//
// Example:
//
//	st, err := store.NewSQLiteStore[pipeline.State]("./podshorts.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore[S]{db: db, path: path}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// createTables creates the schema if it does not exist.
func (s *SQLiteStore[S]) createTables(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS workflow_steps (
			run_id     TEXT NOT NULL,
			step       INTEGER NOT NULL,
			node_id    TEXT NOT NULL,
			state      TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, step)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_steps_run
			ON workflow_steps (run_id, step DESC)`,
		`CREATE TABLE IF NOT EXISTS workflow_suspensions (
			run_id     TEXT PRIMARY KEY,
			node_id    TEXT NOT NULL,
			reason     TEXT NOT NULL,
			payload    TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveStep persists a workflow execution step (implements Store interface).
//
// The insert is atomic; a concurrent LoadLatest sees either the previous
// latest step or this one, never a partial row.
func (s *SQLiteStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO workflow_steps (run_id, step, node_id, state)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET
			node_id = excluded.node_id,
			state = excluded.state
	`
	if _, err := s.db.ExecContext(ctx, query, runID, step, nodeID, string(stateJSON)); err != nil {
		return &TransientError{Op: "save", Cause: err}
	}
	return nil
}

// LoadLatest retrieves the most recent step for a run (implements Store
// interface). Returns ErrNotFound if no steps exist for the runID.
func (s *SQLiteStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	var zero S
	if err := s.ensureOpen(); err != nil {
		return zero, 0, err
	}

	query := `
		SELECT step, state
		FROM workflow_steps
		WHERE run_id = ?
		ORDER BY step DESC
		LIMIT 1
	`
	var stateJSON string
	err = s.db.QueryRowContext(ctx, query, runID).Scan(&step, &stateJSON)
	if err == sql.ErrNoRows {
		return zero, 0, ErrNotFound
	}
	if err != nil {
		return zero, 0, &TransientError{Op: "load", Cause: err}
	}

	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return zero, 0, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return state, step, nil
}

// RecordSuspension persists the pending suspension for a run (implements
// Store interface).
func (s *SQLiteStore[S]) RecordSuspension(ctx context.Context, runID string, susp Suspension) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_suspensions (run_id, node_id, reason, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			node_id = excluded.node_id,
			reason = excluded.reason,
			payload = excluded.payload,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		runID, susp.NodeID, susp.Reason, string(susp.Payload), susp.CreatedAt.UTC())
	if err != nil {
		return &TransientError{Op: "record suspension", Cause: err}
	}
	return nil
}

// PendingSuspension returns the pending suspension for a run, or nil
// (implements Store interface).
func (s *SQLiteStore[S]) PendingSuspension(ctx context.Context, runID string) (*Suspension, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT node_id, reason, payload, created_at
		FROM workflow_suspensions
		WHERE run_id = ?
	`
	var (
		susp      Suspension
		payload   string
		createdAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, runID).Scan(&susp.NodeID, &susp.Reason, &payload, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &TransientError{Op: "load suspension", Cause: err}
	}

	susp.Payload = []byte(payload)
	susp.CreatedAt = createdAt
	return &susp, nil
}

// ClearSuspension removes the pending suspension for a run (implements
// Store interface). Clearing a run with no suspension is a no-op.
func (s *SQLiteStore[S]) ClearSuspension(ctx context.Context, runID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM workflow_suspensions WHERE run_id = ?`, runID); err != nil {
		return &TransientError{Op: "clear suspension", Cause: err}
	}
	return nil
}

// ensureOpen reports an error if the store has been closed.
func (s *SQLiteStore[S]) ensureOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Close closes the database connection. The store cannot be used after
// Close returns.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore[S]) Ping(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	return s.path
}
