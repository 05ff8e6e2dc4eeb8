// Package provision наполняет новую организацию стартовым каталогом:
// пять встроенных tools и один дефолтный ACTIVE pipeline.
//
// Провижининг идемпотентен: повторный вызов для уже наполненной
// организации — no-op. Маркер — organizations.provisioned_at,
// выставляемый условным UPDATE, так что из конкурентных вызовов
// каталог создаёт ровно один.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
)

// OrgStore — операции провижининга над организациями.
type OrgStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
	MarkProvisioned(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// ToolStore — batch-создание tools.
type ToolStore interface {
	CreateBatch(ctx context.Context, tools []domain.Tool) error
}

// PipelineStore — создание pipelines.
type PipelineStore interface {
	Create(ctx context.Context, p *domain.Pipeline) error
}

// Описание встроенного tool в каталоге.
var builtinCatalog = []struct {
	base       domain.ToolBase
	name       string
	inputKind  string
	outputKind string
}{
	{domain.BaseTextExtraction, "text-extraction", "document", "text"},
	{domain.BaseTextToImage, "text-to-image", "text", "image"},
	{domain.BaseSummarization, "summarization", "text", "text"},
	{domain.BaseEmbedding, "embedding", "text", "embedding"},
	{domain.BaseTextToSpeech, "text-to-speech", "text", "audio"},
}

// Provisioner наполняет организации стартовым каталогом.
type Provisioner struct {
	orgs      OrgStore
	tools     ToolStore
	pipelines PipelineStore
	logger    *slog.Logger
}

// New создаёт Provisioner.
func New(orgs OrgStore, tools ToolStore, pipelines PipelineStore, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{
		orgs:      orgs,
		tools:     tools,
		pipelines: pipelines,
		logger:    logger,
	}
}

// Provision наполняет организацию каталогом.
//
// Возвращает false, если организация уже провижинилась (no-op).
func (p *Provisioner) Provision(ctx context.Context, orgID uuid.UUID) (bool, error) {
	org, err := p.orgs.GetByID(ctx, orgID)
	if err != nil {
		return false, fmt.Errorf("get organization: %w", err)
	}
	if org.IsProvisioned() {
		p.logger.Debug("organization already provisioned", "org_id", orgID)
		return false, nil
	}

	// Захватываем маркер до создания каталога: конкурентный вызов
	// увидит проигранный CAS и выйдет
	claimed, err := p.orgs.MarkProvisioned(ctx, orgID, time.Now())
	if err != nil {
		return false, fmt.Errorf("mark provisioned: %w", err)
	}
	if !claimed {
		p.logger.Debug("organization provisioned concurrently", "org_id", orgID)
		return false, nil
	}

	tools := p.buildTools(orgID)
	if err := p.tools.CreateBatch(ctx, tools); err != nil {
		return false, fmt.Errorf("create builtin tools: %w", err)
	}

	pipeline := p.buildDefaultPipeline(orgID, &tools[0])
	if err := p.pipelines.Create(ctx, pipeline); err != nil {
		return false, fmt.Errorf("create default pipeline: %w", err)
	}

	p.logger.Info("organization provisioned",
		"org_id", orgID,
		"tools", len(tools),
		"pipeline_id", pipeline.ID,
	)
	return true, nil
}

// buildTools собирает пять встроенных tools в порядке каталога.
func (p *Provisioner) buildTools(orgID uuid.UUID) []domain.Tool {
	now := time.Now()
	tools := make([]domain.Tool, 0, len(builtinCatalog))
	for _, entry := range builtinCatalog {
		tools = append(tools, domain.Tool{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Name:           entry.name,
			Base:           entry.base,
			InputKind:      entry.inputKind,
			OutputKind:     entry.outputKind,
			CreatedAt:      now,
		})
	}
	return tools
}

// buildDefaultPipeline собирает дефолтный pipeline с единственным
// шагом на text-extraction.
func (p *Provisioner) buildDefaultPipeline(orgID uuid.UUID, extraction *domain.Tool) *domain.Pipeline {
	now := time.Now()
	pipelineID := uuid.New()
	return &domain.Pipeline{
		ID:             pipelineID,
		OrganizationID: orgID,
		Name:           "document-text",
		Description:    "Extract plain text from an uploaded document",
		Status:         domain.PipelineStatusActive,
		Steps: []domain.PipelineStep{
			{
				ID:         uuid.New(),
				PipelineID: pipelineID,
				ToolID:     extraction.ID,
				Name:       "extract-text",
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
