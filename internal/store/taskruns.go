package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Task run states.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// TaskRun is one execution of a plan.
type TaskRun struct {
	ID         string     `json:"id"`
	Request    string     `json:"request"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// StepRecord is the persisted outcome of one step.
type StepRecord struct {
	RunID       string `json:"run_id"`
	Index       int    `json:"index"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
}

// CreateTaskRun inserts a running task run.
func (db *DB) CreateTaskRun(ctx context.Context, id, request string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO task_runs (id, request, status, started_at) VALUES (?, ?, ?, ?)`,
		id, request, RunRunning, db.now(),
	)
	if err != nil {
		return fmt.Errorf("create task run: %w", err)
	}
	return nil
}

// RecordStep inserts or replaces the record for (run, index).
func (db *DB) RecordStep(ctx context.Context, rec StepRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO task_steps (run_id, step_index, description, status, attempts, output, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, step_index) DO UPDATE SET
		   description = excluded.description, status = excluded.status, attempts = excluded.attempts,
		   output = excluded.output, error = excluded.error`,
		rec.RunID, rec.Index, rec.Description, rec.Status, rec.Attempts, nullString(rec.Output), nullString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("record step %d: %w", rec.Index, err)
	}
	return nil
}

// FinishTaskRun sets the final status and finish time.
func (db *DB) FinishTaskRun(ctx context.Context, id, status string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE task_runs SET status = ?, finished_at = ? WHERE id = ?`, status, db.now(), id)
	if err != nil {
		return fmt.Errorf("finish task run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("task run %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetTaskRun returns a run by id, or ErrNotFound.
func (db *DB) GetTaskRun(ctx context.Context, id string) (TaskRun, error) {
	var r TaskRun
	var finished sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT id, request, status, started_at, finished_at FROM task_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Request, &r.Status, &r.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRun{}, fmt.Errorf("task run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return TaskRun{}, fmt.Errorf("get task run: %w", err)
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

// TaskRunSteps returns the recorded steps of a run ordered by index.
func (db *DB) TaskRunSteps(ctx context.Context, runID string) ([]StepRecord, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, step_index, description, status, attempts, output, error
		 FROM task_steps WHERE run_id = ? ORDER BY step_index ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("task run steps: %w", err)
	}
	defer rows.Close()
	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		var output, errText sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Description, &rec.Status, &rec.Attempts, &output, &errText); err != nil {
			return nil, err
		}
		rec.Output = output.String
		rec.Error = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
