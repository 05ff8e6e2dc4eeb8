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

// ToolRepo — репозиторий для работы с tools.
type ToolRepo struct {
	pool *pgxpool.Pool
}

// NewToolRepo создаёт новый ToolRepo.
func NewToolRepo(pool *pgxpool.Pool) *ToolRepo {
	return &ToolRepo{pool: pool}
}

// Create создаёт новый tool.
func (r *ToolRepo) Create(ctx context.Context, tool *domain.Tool) error {
	query := `
		INSERT INTO tools (id, organization_id, name, base, input_kind, output_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		tool.ID,
		tool.OrganizationID,
		tool.Name,
		tool.Base,
		tool.InputKind,
		tool.OutputKind,
		tool.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tool: %w", err)
	}
	return nil
}

// CreateBatch создаёт несколько tools одним round-trip (pgx.Batch).
// Используется провижинингом каталога организации.
func (r *ToolRepo) CreateBatch(ctx context.Context, tools []domain.Tool) error {
	if len(tools) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO tools (id, organization_id, name, base, input_kind, output_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for i := range tools {
		t := &tools[i]
		batch.Queue(query, t.ID, t.OrganizationID, t.Name, t.Base, t.InputKind, t.OutputKind, t.CreatedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range tools {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert tools: %w", err)
		}
	}
	return nil
}

// GetByID возвращает tool по ID.
func (r *ToolRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tool, error) {
	query := `
		SELECT id, organization_id, name, base, input_kind, output_kind, created_at
		FROM tools
		WHERE id = $1
	`
	var tool domain.Tool
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&tool.ID,
		&tool.OrganizationID,
		&tool.Name,
		&tool.Base,
		&tool.InputKind,
		&tool.OutputKind,
		&tool.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tool by id: %w", err)
	}
	return &tool, nil
}

// ListByOrganization возвращает tools организации.
func (r *ToolRepo) ListByOrganization(ctx context.Context, orgID uuid.UUID) ([]domain.Tool, error) {
	query := `
		SELECT id, organization_id, name, base, input_kind, output_kind, created_at
		FROM tools
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	defer rows.Close()

	var tools []domain.Tool
	for rows.Next() {
		var tool domain.Tool
		if err := rows.Scan(
			&tool.ID,
			&tool.OrganizationID,
			&tool.Name,
			&tool.Base,
			&tool.InputKind,
			&tool.OutputKind,
			&tool.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan tool: %w", err)
		}
		tools = append(tools, tool)
	}
	return tools, rows.Err()
}

// Delete удаляет tool.
func (r *ToolRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tools WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tool: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
