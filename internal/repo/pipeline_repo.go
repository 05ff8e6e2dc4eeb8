package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// PipelineRepo — репозиторий для работы с pipelines и их шагами.
//
// Рёбра графа хранятся один раз — колонкой prerequisites (uuid[])
// на шаге; обратное направление нигде не материализуется.
type PipelineRepo struct {
	pool *pgxpool.Pool
}

// NewPipelineRepo создаёт новый PipelineRepo.
func NewPipelineRepo(pool *pgxpool.Pool) *PipelineRepo {
	return &PipelineRepo{pool: pool}
}

// Create создаёт pipeline вместе с шагами в одной транзакции.
func (r *PipelineRepo) Create(ctx context.Context, p *domain.Pipeline) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO pipelines (id, organization_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.OrganizationID, p.Name, nullString(p.Description), p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert pipeline: %w", err)
	}

	if err := insertSteps(ctx, tx, p.ID, p.Steps); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByID возвращает pipeline вместе с шагами.
func (r *PipelineRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	query := `
		SELECT id, organization_id, name, description, status, created_at, updated_at
		FROM pipelines
		WHERE id = $1
	`
	var p domain.Pipeline
	var description *string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.OrganizationID,
		&p.Name,
		&description,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline by id: %w", err)
	}
	if description != nil {
		p.Description = *description
	}

	steps, err := r.listSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Steps = steps

	return &p, nil
}

// ListByOrganization возвращает pipelines организации (без шагов).
func (r *PipelineRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.Pipeline, error) {
	query := `
		SELECT id, organization_id, name, description, status, created_at, updated_at
		FROM pipelines
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var pipelines []domain.Pipeline
	for rows.Next() {
		var p domain.Pipeline
		var description *string
		if err := rows.Scan(
			&p.ID,
			&p.OrganizationID,
			&p.Name,
			&description,
			&p.Status,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		if description != nil {
			p.Description = *description
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, rows.Err()
}

// Update обновляет pipeline и полностью заменяет его шаги.
func (r *PipelineRepo) Update(ctx context.Context, p *domain.Pipeline) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE pipelines
		SET name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.Name, nullString(p.Description), p.Status, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM pipeline_steps WHERE pipeline_id = $1`, p.ID); err != nil {
		return fmt.Errorf("delete old steps: %w", err)
	}
	if err := insertSteps(ctx, tx, p.ID, p.Steps); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SetStatus переводит pipeline в новый статус.
func (r *PipelineRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.PipelineStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE pipelines SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("set pipeline status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет pipeline (каскадно удалит шаги и schedules).
func (r *PipelineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pipelines WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pipeline: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// insertSteps вставляет шаги pipeline одним pgx.Batch.
func insertSteps(ctx context.Context, tx pgx.Tx, pipelineID uuid.UUID, steps []domain.PipelineStep) error {
	if len(steps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO pipeline_steps (id, pipeline_id, tool_id, name, prerequisites)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range steps {
		s := &steps[i]
		batch.Queue(query, s.ID, pipelineID, s.ToolID, s.Name, s.Prerequisites)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range steps {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert steps: %w", err)
		}
	}
	return nil
}

// listSteps возвращает шаги pipeline.
func (r *PipelineRepo) listSteps(ctx context.Context, pipelineID uuid.UUID) ([]domain.PipelineStep, error) {
	query := `
		SELECT id, pipeline_id, tool_id, name, prerequisites
		FROM pipeline_steps
		WHERE pipeline_id = $1
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.PipelineStep
	for rows.Next() {
		var s domain.PipelineStep
		if err := rows.Scan(
			&s.ID,
			&s.PipelineID,
			&s.ToolID,
			&s.Name,
			&s.Prerequisites,
		); err != nil {
			return nil, fmt.Errorf("scan pipeline step: %w", err)
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}
