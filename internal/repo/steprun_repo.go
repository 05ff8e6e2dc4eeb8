package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// StepRunRepo — репозиторий для работы со step runs.
type StepRunRepo struct {
	pool *pgxpool.Pool
}

// NewStepRunRepo создаёт новый StepRunRepo.
func NewStepRunRepo(pool *pgxpool.Pool) *StepRunRepo {
	return &StepRunRepo{pool: pool}
}

// Create создаёт новый step run.
func (r *StepRunRepo) Create(ctx context.Context, sr *domain.StepRun) error {
	inputJSON, err := json.Marshal(sr.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO step_runs (id, run_id, step_id, tool_id, base, attempt, status,
		                       input, job_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		sr.ID,
		sr.RunID,
		sr.StepID,
		sr.ToolID,
		sr.Base,
		sr.Attempt,
		sr.Status,
		inputJSON,
		nullString(sr.JobID),
		sr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert step run: %w", err)
	}
	return nil
}

// Update обновляет step run.
func (r *StepRunRepo) Update(ctx context.Context, sr *domain.StepRun) error {
	query := `
		UPDATE step_runs
		SET status = $2, attempt = $3, output = $4, job_id = $5, error = $6,
		    started_at = $7, finished_at = $8
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		sr.ID,
		sr.Status,
		sr.Attempt,
		nullString(sr.Output),
		nullString(sr.JobID),
		nullString(sr.Error),
		sr.StartedAt,
		sr.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update step run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает step run по ID.
func (r *StepRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.StepRun, error) {
	query := selectStepRun + ` WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	sr, err := scanStepRunRow(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sr, err
}

// ListByRun возвращает все step runs одного run.
func (r *StepRunRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.StepRun, error) {
	query := selectStepRun + `
		WHERE run_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list step runs: %w", err)
	}
	defer rows.Close()

	var stepRuns []domain.StepRun
	for rows.Next() {
		sr, err := scanStepRunRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		stepRuns = append(stepRuns, *sr)
	}
	return stepRuns, rows.Err()
}

// --- Helpers ---

const selectStepRun = `
	SELECT id, run_id, step_id, tool_id, base, attempt, status,
	       input, output, job_id, error, started_at, finished_at, created_at
	FROM step_runs
`

func scanStepRunRow(scan func(dest ...any) error) (*domain.StepRun, error) {
	var sr domain.StepRun
	var inputJSON []byte
	var output, jobID, srError *string

	err := scan(
		&sr.ID,
		&sr.RunID,
		&sr.StepID,
		&sr.ToolID,
		&sr.Base,
		&sr.Attempt,
		&sr.Status,
		&inputJSON,
		&output,
		&jobID,
		&srError,
		&sr.StartedAt,
		&sr.FinishedAt,
		&sr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan step run: %w", err)
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &sr.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
	}
	if output != nil {
		sr.Output = *output
	}
	if jobID != nil {
		sr.JobID = *jobID
	}
	if srError != nil {
		sr.Error = *srError
	}

	return &sr, nil
}
