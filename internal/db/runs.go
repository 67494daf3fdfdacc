package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/job-applier/internal/types"
)

const runColumns = `id, type, status, job_url, input, output, screenshots, error,
	progress, current_step, total_steps, started_at, completed_at, created_at, updated_at`

// CreateRun inserts a run in the running state and returns its ID
func (db *DB) CreateRun(ctx context.Context, input *RunInput) (uuid.UUID, error) {
	if input == nil || input.Type == "" {
		return uuid.Nil, fmt.Errorf("run type is required")
	}

	id := input.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var inputJSON []byte
	if input.Input != nil {
		var err error
		inputJSON, err = json.Marshal(input.Input)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to marshal run input: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO automation_runs (id, type, status, job_url, input, total_steps, started_at)
		 VALUES ($1, $2, 'running', NULLIF($3, ''), $4, $5, NOW())`,
		id, input.Type, input.JobURL, inputJSON, types.TotalSteps,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create run: %w", err)
	}
	return id, nil
}

// UpdateProgress records the step a running run has reached
func (db *DB) UpdateProgress(ctx context.Context, runID uuid.UUID, step, totalSteps int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE automation_runs
		 SET current_step = $1, total_steps = $2, progress = $3, updated_at = NOW()
		 WHERE id = $4`,
		step, totalSteps, ProgressPercent(step, totalSteps), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	return nil
}

// CompleteRun stores the final result of a run
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, result *types.ApplicationResult) error {
	if result == nil {
		return fmt.Errorf("result is required")
	}

	output, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run output: %w", err)
	}
	screenshots, err := json.Marshal(nonNil(result.Screenshots))
	if err != nil {
		return fmt.Errorf("failed to marshal screenshots: %w", err)
	}

	tag, err := db.pool.Exec(ctx,
		`UPDATE automation_runs
		 SET status = $1, output = $2, screenshots = $3, error = $4,
		     progress = CASE WHEN $1 = 'success' THEN 100 ELSE progress END,
		     completed_at = NOW(), updated_at = NOW()
		 WHERE id = $5`,
		StatusFor(result), output, screenshots, result.Error, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to complete run: run %s not found", runID)
	}
	return nil
}

// FailRun marks a run as failed without a result document
func (db *DB) FailRun(ctx context.Context, runID uuid.UUID, message string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE automation_runs
		 SET status = 'error', error = $1, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $2`,
		message, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	return nil
}

// RecordFieldMap stores a finished field mapping as a successful run
func (db *DB) RecordFieldMap(ctx context.Context, jobURL string, fields []string, selectorMap map[string][]string) (uuid.UUID, error) {
	input, err := json.Marshal(map[string][]string{"fields": nonNil(fields)})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal run input: %w", err)
	}
	output, err := json.Marshal(selectorMap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal run output: %w", err)
	}

	id := uuid.New()
	_, err = db.pool.Exec(ctx,
		`INSERT INTO automation_runs (id, type, status, job_url, input, output, progress, started_at, completed_at)
		 VALUES ($1, $2, 'success', NULLIF($3, ''), $4, $5, 100, NOW(), NOW())`,
		id, RunTypeFieldMap, jobURL, input, output,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to record field map: %w", err)
	}
	return id, nil
}

// GetRun retrieves a run by ID. It returns nil, nil when no run exists.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM automation_runs WHERE id = $1`,
		runID,
	)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM automation_runs ORDER BY created_at DESC LIMIT $1`,
		ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var run Run
	var jobURL *string
	var input, output, screenshots []byte
	err := row.Scan(&run.ID, &run.Type, &run.Status, &jobURL, &input, &output, &screenshots, &run.Error,
		&run.Progress, &run.CurrentStep, &run.TotalSteps, &run.StartedAt, &run.CompletedAt,
		&run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if jobURL != nil {
		run.JobURL = *jobURL
	}
	run.Input = input
	run.Output = output
	run.Screenshots = []string{}
	if screenshots != nil {
		_ = json.Unmarshal(screenshots, &run.Screenshots)
	}
	return &run, nil
}

// StatusFor maps a result document to a run status
func StatusFor(result *types.ApplicationResult) string {
	if result != nil && result.Success {
		return RunStatusSuccess
	}
	return RunStatusError
}

// ClampLimit bounds a requested listing size to [1, MaxListLimit]
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// ProgressPercent converts a step position to a 0-100 percentage
func ProgressPercent(step, totalSteps int) int {
	if totalSteps <= 0 || step <= 0 {
		return 0
	}
	if step >= totalSteps {
		return 100
	}
	return step * 100 / totalSteps
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
