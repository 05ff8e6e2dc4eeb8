package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// RunRepo — репозиторий для работы с runs.
//
// Переходы статусов выполняются условными UPDATE: при двух
// конкурентных обработчиках run достаётся ровно одному, а сигнал
// завершения после терминального статуса становится no-op.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	inputJSON, err := json.Marshal(run.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO runs (id, organization_id, kind, pipeline_id, tool_id, status,
		                  progress, input, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.OrganizationID,
		run.Kind,
		run.PipelineID,
		run.ToolID,
		run.Status,
		run.Progress,
		inputJSON,
		nullString(run.IdempotencyKey),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := selectRun + ` WHERE id = $1`
	return scanRun(r.pool.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey возвращает run по ключу идемпотентности.
func (r *RunRepo) GetByIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) (*domain.Run, error) {
	query := selectRun + ` WHERE organization_id = $1 AND idempotency_key = $2`
	return scanRun(r.pool.QueryRow(ctx, query, orgID, key))
}

// List возвращает список runs с фильтрацией.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	query := selectRun + `
		WHERE ($1::uuid IS NULL OR organization_id = $1)
		  AND ($2::uuid IS NULL OR pipeline_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.OrganizationID),
		nullUUID(filter.PipelineID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListQueued возвращает runs в статусе QUEUED (для восстановления
// после рестарта оркестратора).
func (r *RunRepo) ListQueued(ctx context.Context, limit int) ([]domain.Run, error) {
	query := selectRun + `
		WHERE status = 'QUEUED'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list queued runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRunFromRows(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Claim захватывает run в обработку: QUEUED → PROCESSING.
//
// Условный UPDATE гарантирует, что из конкурентных обработчиков run
// достанется ровно одному. Возвращает false, если run уже захвачен
// или завершён.
func (r *RunRepo) Claim(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status = 'PROCESSING', started_at = $2
		WHERE id = $1 AND status = 'QUEUED'
	`, id, startedAt)
	if err != nil {
		return false, fmt.Errorf("claim run: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// CancelQueued отменяет run, ещё не взятый в обработку:
// QUEUED → ERROR. Возвращает false, если run уже захвачен
// оркестратором или завершён.
func (r *RunRepo) CancelQueued(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status = 'ERROR', error = 'run canceled', completed_at = NOW()
		WHERE id = $1 AND status = 'QUEUED'
	`, id)
	if err != nil {
		return false, fmt.Errorf("cancel queued run: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// UpdateProgress обновляет progress run.
//
// GREATEST не даёт progress уменьшиться при переупорядоченных
// конкурентных обновлениях; терминальные runs не трогаются.
func (r *RunRepo) UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET progress = GREATEST(progress, LEAST($2::float8, 1.0))
		WHERE id = $1 AND status = 'PROCESSING'
	`, id, progress)
	if err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// Finish переводит run из PROCESSING в терминальный статус.
//
// Возвращает false, если run уже в терминальном статусе — повторный
// сигнал завершения не перезаписывает исход.
func (r *RunRepo) Finish(ctx context.Context, run *domain.Run) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE runs
		SET status = $2, progress = $3, output = $4, error = $5, completed_at = $6
		WHERE id = $1 AND status = 'PROCESSING'
	`,
		run.ID,
		run.Status,
		run.Progress,
		nullString(run.Output),
		nullString(run.Error),
		run.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("finish run: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	OrganizationID *uuid.UUID
	PipelineID     *uuid.UUID
	Status         domain.RunStatus
	Limit          int
	Offset         int
}

const selectRun = `
	SELECT id, organization_id, kind, pipeline_id, tool_id, status, progress,
	       input, output, error, idempotency_key, started_at, completed_at, created_at
	FROM runs
`

// scanRun сканирует одну строку в Run.
func scanRun(row pgx.Row) (*domain.Run, error) {
	run, err := scanRunRow(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// scanRunFromRows сканирует строку из rows в Run.
func scanRunFromRows(rows pgx.Rows) (*domain.Run, error) {
	return scanRunRow(rows.Scan)
}

func scanRunRow(scan func(dest ...any) error) (*domain.Run, error) {
	var run domain.Run
	var inputJSON []byte
	var output, runError, idempotencyKey *string

	err := scan(
		&run.ID,
		&run.OrganizationID,
		&run.Kind,
		&run.PipelineID,
		&run.ToolID,
		&run.Status,
		&run.Progress,
		&inputJSON,
		&output,
		&runError,
		&idempotencyKey,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &run.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
	}
	if output != nil {
		run.Output = *output
	}
	if runError != nil {
		run.Error = *runError
	}
	if idempotencyKey != nil {
		run.IdempotencyKey = *idempotencyKey
	}

	return &run, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
