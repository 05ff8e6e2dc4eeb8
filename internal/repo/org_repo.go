package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Cascade/internal/domain"
)

// OrganizationRepo — репозиторий для работы с organizations.
type OrganizationRepo struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepo создаёт новый OrganizationRepo.
func NewOrganizationRepo(pool *pgxpool.Pool) *OrganizationRepo {
	return &OrganizationRepo{pool: pool}
}

// Create создаёт новую организацию.
func (r *OrganizationRepo) Create(ctx context.Context, org *domain.Organization) error {
	query := `
		INSERT INTO organizations (id, name, plan, credits, provisioned_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		org.ID,
		org.Name,
		org.Plan,
		org.Credits,
		org.ProvisionedAt,
		org.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

// GetByID возвращает организацию по ID.
func (r *OrganizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	query := `
		SELECT id, name, plan, credits, provisioned_at, created_at
		FROM organizations
		WHERE id = $1
	`
	var org domain.Organization
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&org.ID,
		&org.Name,
		&org.Plan,
		&org.Credits,
		&org.ProvisionedAt,
		&org.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization by id: %w", err)
	}
	return &org, nil
}

// GetOrganization — алиас GetByID под интерфейс credits.DebitStore.
func (r *OrganizationRepo) GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	return r.GetByID(ctx, id)
}

// List возвращает список всех организаций.
func (r *OrganizationRepo) List(ctx context.Context) ([]domain.Organization, error) {
	query := `
		SELECT id, name, plan, credits, provisioned_at, created_at
		FROM organizations
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []domain.Organization
	for rows.Next() {
		var org domain.Organization
		if err := rows.Scan(
			&org.ID,
			&org.Name,
			&org.Plan,
			&org.Credits,
			&org.ProvisionedAt,
			&org.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

// DebitIfSufficient атомарно списывает credits одним условным UPDATE.
//
// Списание проходит, если план безлимитный (баланс не меняется) или
// credits > cost строго. Возвращает false, если условие не выполнено:
// конкурентные списания не могут увести баланс в минус.
func (r *OrganizationRepo) DebitIfSufficient(ctx context.Context, id uuid.UUID, cost int) (bool, error) {
	query := `
		UPDATE organizations
		SET credits = CASE WHEN plan = 'UNLIMITED' THEN credits ELSE credits - $2 END
		WHERE id = $1
		  AND (plan = 'UNLIMITED' OR credits > $2)
	`
	result, err := r.pool.Exec(ctx, query, id, cost)
	if err != nil {
		return false, fmt.Errorf("debit credits: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// AddCredits пополняет баланс организации.
func (r *OrganizationRepo) AddCredits(ctx context.Context, id uuid.UUID, amount int) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE organizations SET credits = credits + $2 WHERE id = $1
	`, id, amount)
	if err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkProvisioned ставит provisioned_at, если он ещё не установлен.
// Возвращает false, если организация уже провижинилась: конкурентные
// вызовы провижининга видят ровно один успех.
func (r *OrganizationRepo) MarkProvisioned(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE organizations SET provisioned_at = $2
		WHERE id = $1 AND provisioned_at IS NULL
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark provisioned: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// UpdatePlan меняет тарифный план организации.
func (r *OrganizationRepo) UpdatePlan(ctx context.Context, id uuid.UUID, plan domain.Plan) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE organizations SET plan = $2 WHERE id = $1
	`, id, plan)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
