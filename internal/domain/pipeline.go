package domain

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline — именованный переиспользуемый DAG шагов внутри организации.
//
// Pipeline с нулём шагов валиден: его run завершается немедленно
// (no-op, progress = 1). Граф валидируется при создании/обновлении;
// оркестратор дополнительно перепроверяет его перед выполнением
// (defensive re-check).
type Pipeline struct {
	// ID — уникальный идентификатор pipeline.
	ID uuid.UUID `json:"id"`

	// OrganizationID — организация-владелец.
	OrganizationID uuid.UUID `json:"organization_id"`

	// Name — имя pipeline.
	Name string `json:"name"`

	// Description — описание назначения pipeline.
	Description string `json:"description"`

	// Status — DRAFT или ACTIVE.
	Status PipelineStatus `json:"status"`

	// Steps — шаги pipeline. Порядок хранения не несёт семантики:
	// порядок выполнения определяется рёбрами prerequisites.
	Steps []PipelineStep `json:"steps"`

	// CreatedAt — время создания pipeline.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// StepByID возвращает шаг по ID или nil.
func (p *Pipeline) StepByID(id uuid.UUID) *PipelineStep {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// PipelineStep — узел DAG, привязанный к одному tool.
//
// Рёбра хранятся один раз, как список prerequisites; обратное
// направление (dependents) выводится engine'ом при построении графа,
// чтобы два списка не могли разойтись.
type PipelineStep struct {
	// ID — уникальный идентификатор шага.
	ID uuid.UUID `json:"id"`

	// PipelineID — pipeline-владелец.
	PipelineID uuid.UUID `json:"pipeline_id"`

	// ToolID — tool, который выполняет этот шаг.
	ToolID uuid.UUID `json:"tool_id"`

	// Name — человекочитаемое имя шага.
	Name string `json:"name"`

	// Prerequisites — ID шагов того же pipeline, которые должны
	// завершиться до начала этого шага.
	Prerequisites []uuid.UUID `json:"prerequisites,omitempty"`
}
