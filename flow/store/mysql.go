package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store[S].
//
// It stores workflow state and suspension records in a relational database.
// Designed for:
//   - Production workflows requiring persistence
//   - Long-running workflows that survive process restarts
//   - Audit trails (every step is retained)
//
// MySQLStore uses connection pooling and point lookups by run id; no
// cross-run locking is required.
//
// Schema:
//   - workflow_steps: Step-by-step execution history
//   - workflow_suspensions: At most one pending suspension per run
//
// Type parameter S is the state type to persist (must be JSON-serializable).
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a new MySQL-backed store.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example:
//
//	store, err := NewMySQLStore[MyState]("user:pass@tcp(localhost:3306)/podshorts?parseTime=true")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Never hardcode credentials in source; read the DSN from the environment.
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	m := &MySQLStore[S]{db: db}
	if err := m.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return m, nil
}

// createTables creates the required database schema if it doesn't exist.
func (m *MySQLStore[S]) createTables(ctx context.Context) error {
	stepsTable := `
		CREATE TABLE IF NOT EXISTS workflow_steps (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(255) NOT NULL,
			step INT NOT NULL,
			node_id VARCHAR(255) NOT NULL,
			state JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uniq_run_step (run_id, step),
			KEY idx_run_latest (run_id, step DESC)
		) ENGINE=InnoDB
	`
	suspensionsTable := `
		CREATE TABLE IF NOT EXISTS workflow_suspensions (
			run_id VARCHAR(255) PRIMARY KEY,
			node_id VARCHAR(255) NOT NULL,
			reason VARCHAR(255) NOT NULL,
			payload JSON NOT NULL,
			created_at TIMESTAMP NOT NULL
		) ENGINE=InnoDB
	`

	if _, err := m.db.ExecContext(ctx, stepsTable); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx, suspensionsTable); err != nil {
		return err
	}
	return nil
}

// SaveStep persists a workflow execution step (implements Store interface).
func (m *MySQLStore[S]) SaveStep(ctx context.Context, runID string, step int, nodeID string, state S) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := `
		INSERT INTO workflow_steps (run_id, step, node_id, state)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE node_id = VALUES(node_id), state = VALUES(state)
	`
	if _, err := m.db.ExecContext(ctx, query, runID, step, nodeID, string(stateJSON)); err != nil {
		return &TransientError{Op: "save", Cause: err}
	}
	return nil
}

// LoadLatest retrieves the most recent step for a run (implements Store
// interface). Returns ErrNotFound if no steps exist for the runID.
func (m *MySQLStore[S]) LoadLatest(ctx context.Context, runID string) (state S, step int, err error) {
	var zero S
	if err := m.ensureOpen(); err != nil {
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
	err = m.db.QueryRowContext(ctx, query, runID).Scan(&step, &stateJSON)
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
func (m *MySQLStore[S]) RecordSuspension(ctx context.Context, runID string, susp Suspension) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_suspensions (run_id, node_id, reason, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			node_id = VALUES(node_id),
			reason = VALUES(reason),
			payload = VALUES(payload),
			created_at = VALUES(created_at)
	`
	_, err := m.db.ExecContext(ctx, query,
		runID, susp.NodeID, susp.Reason, string(susp.Payload), susp.CreatedAt.UTC())
	if err != nil {
		return &TransientError{Op: "record suspension", Cause: err}
	}
	return nil
}

// PendingSuspension returns the pending suspension for a run, or nil
// (implements Store interface).
func (m *MySQLStore[S]) PendingSuspension(ctx context.Context, runID string) (*Suspension, error) {
	if err := m.ensureOpen(); err != nil {
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
	err := m.db.QueryRowContext(ctx, query, runID).Scan(&susp.NodeID, &susp.Reason, &payload, &createdAt)
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
// Store interface).
func (m *MySQLStore[S]) ClearSuspension(ctx context.Context, runID string) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}

	if _, err := m.db.ExecContext(ctx, `DELETE FROM workflow_suspensions WHERE run_id = ?`, runID); err != nil {
		return &TransientError{Op: "clear suspension", Cause: err}
	}
	return nil
}

// ensureOpen reports an error if the store has been closed.
func (m *MySQLStore[S]) ensureOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}

// Close closes the database connection pool.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore[S]) Ping(ctx context.Context) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

// Stats returns database connection pool statistics for monitoring.
func (m *MySQLStore[S]) Stats() sql.DBStats {
	return m.db.Stats()
}
