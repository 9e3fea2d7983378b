package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

/*
PostgreSQL Schema:

CREATE TABLE workflow_runs (
    run_id          VARCHAR(36) PRIMARY KEY,
    name            VARCHAR(255) NOT NULL,
    tenant_id       VARCHAR(64) NOT NULL,
    status          VARCHAR(50) NOT NULL,
    current_step    INT NOT NULL DEFAULT 0,
    completed_steps JSONB,
    error           TEXT,
    started_at      TIMESTAMP NOT NULL,
    completed_at    TIMESTAMP,
    last_updated_at TIMESTAMP NOT NULL
);

CREATE INDEX idx_workflow_runs_name ON workflow_runs(name);
CREATE INDEX idx_workflow_runs_tenant ON workflow_runs(tenant_id);
CREATE INDEX idx_workflow_runs_status ON workflow_runs(status);
CREATE INDEX idx_workflow_runs_started_at ON workflow_runs(started_at);
*/

// PostgresStore is a PostgreSQL-based run store. It uses database/sql
// only; the caller supplies a *sql.DB opened with whatever driver they
// already run.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// NewPostgresStore creates a new PostgreSQL run store using the
// "workflow_runs" table.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:    db,
		table: "workflow_runs",
	}
}

// WithTable sets a custom table name.
//
// Returns the store for method chaining.
func (s *PostgresStore) WithTable(table string) *PostgresStore {
	s.table = table
	return s
}

// Create records a new run.
func (s *PostgresStore) Create(ctx context.Context, state *State) error {
	steps, err := json.Marshal(state.CompletedSteps)
	if err != nil {
		return fmt.Errorf("marshal completed steps: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (run_id, name, tenant_id, status, current_step, completed_steps, error, started_at, completed_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		state.RunID,
		state.Name,
		state.TenantID,
		state.Status,
		state.CurrentStep,
		steps,
		state.Error,
		state.StartedAt,
		state.CompletedAt,
		state.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

// Update updates run state.
func (s *PostgresStore) Update(ctx context.Context, state *State) error {
	steps, err := json.Marshal(state.CompletedSteps)
	if err != nil {
		return fmt.Errorf("marshal completed steps: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = $1, current_step = $2, completed_steps = $3, error = $4, completed_at = $5, last_updated_at = $6
		WHERE run_id = $7
	`, s.table)

	result, err := s.db.ExecContext(ctx, query,
		state.Status,
		state.CurrentStep,
		steps,
		state.Error,
		state.CompletedAt,
		state.LastUpdatedAt,
		state.RunID,
	)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("run not found: %s", state.RunID)
	}

	return nil
}

// Get retrieves run state by run ID.
func (s *PostgresStore) Get(ctx context.Context, runID string) (*State, error) {
	query := fmt.Sprintf(`
		SELECT run_id, name, tenant_id, status, current_step, completed_steps, error, started_at, completed_at, last_updated_at
		FROM %s
		WHERE run_id = $1
	`, s.table)

	state, err := scanState(s.db.QueryRowContext(ctx, query, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return state, nil
}

// List lists runs matching the filter.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]*State, error) {
	query := fmt.Sprintf(`
		SELECT run_id, name, tenant_id, status, current_step, completed_steps, error, started_at, completed_at, last_updated_at
		FROM %s
		WHERE 1=1
	`, s.table)

	var args []interface{}
	argIndex := 1

	if filter.Name != "" {
		query += fmt.Sprintf(" AND name = $%d", argIndex)
		args = append(args, filter.Name)
		argIndex++
	}

	if filter.TenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIndex)
		args = append(args, filter.TenantID)
		argIndex++
	}

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			placeholders[i] = fmt.Sprintf("$%d", argIndex)
			args = append(args, status)
			argIndex++
		}
		query += fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ", "))
	}

	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var results []*State
	for rows.Next() {
		state, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		results = append(results, state)
	}

	return results, rows.Err()
}

// DeleteOlderThan removes runs started before now-age and returns how
// many were deleted.
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE started_at < $1", s.table)

	result, err := s.db.ExecContext(ctx, query, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}

	return result.RowsAffected()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanState(row rowScanner) (*State, error) {
	var state State
	var steps []byte
	var completedAt sql.NullTime
	var errorStr sql.NullString

	err := row.Scan(
		&state.RunID,
		&state.Name,
		&state.TenantID,
		&state.Status,
		&state.CurrentStep,
		&steps,
		&errorStr,
		&state.StartedAt,
		&completedAt,
		&state.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &state.CompletedSteps); err != nil {
			return nil, fmt.Errorf("unmarshal completed steps: %w", err)
		}
	}

	if completedAt.Valid {
		state.CompletedAt = &completedAt.Time
	}

	if errorStr.Valid {
		state.Error = errorStr.String
	}

	return &state, nil
}

// Compile-time check
var _ Store = (*PostgresStore)(nil)
