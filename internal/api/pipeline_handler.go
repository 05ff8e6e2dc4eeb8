package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/engine"
	"github.com/shaiso/Cascade/internal/notify"
)

// stepsFromRequest конвертирует шаги запроса в доменные.
// Шагам без ID присваиваются новые.
func stepsFromRequest(pipelineID uuid.UUID, reqSteps []PipelineStepRequest) []domain.PipelineStep {
	steps := make([]domain.PipelineStep, len(reqSteps))
	for i, rs := range reqSteps {
		id := uuid.New()
		if rs.ID != nil {
			id = *rs.ID
		}
		steps[i] = domain.PipelineStep{
			ID:            id,
			PipelineID:    pipelineID,
			ToolID:        rs.ToolID,
			Name:          rs.Name,
			Prerequisites: rs.Prerequisites,
		}
	}
	return steps
}

// validateSteps проверяет граф шагов и принадлежность tools организации.
// Возвращает false, если ответ уже отправлен.
func (h *Handler) validateSteps(w http.ResponseWriter, r *http.Request, orgID uuid.UUID, steps []domain.PipelineStep) bool {
	if _, err := engine.Build(steps); err != nil {
		InvalidState(w, err.Error())
		return false
	}

	for _, step := range steps {
		tool, err := h.toolRepo.GetByID(r.Context(), step.ToolID)
		if HandleRepoError(w, h.logger, err, "tool not found: "+step.ToolID.String()) {
			return false
		}
		if tool.OrganizationID != orgID {
			BadRequest(w, "tool belongs to another organization: "+step.ToolID.String())
			return false
		}
	}

	return true
}

// ListPipelines возвращает pipelines организации.
// GET /api/v1/organizations/{id}/pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	pipelines, err := h.pipelineRepo.ListByOrganization(r.Context(), orgID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]PipelineResponse, len(pipelines))
	for i := range pipelines {
		result[i] = PipelineFromDomain(&pipelines[i])
	}

	List(w, result, len(result))
}

// CreatePipeline создаёт новый pipeline в статусе DRAFT.
// POST /api/v1/organizations/{id}/pipelines
func (h *Handler) CreatePipeline(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	var req CreatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	_, err = h.orgRepo.GetByID(r.Context(), orgID)
	if HandleRepoError(w, h.logger, err, "organization not found") {
		return
	}

	pipelineID := uuid.New()
	steps := stepsFromRequest(pipelineID, req.Steps)

	if !h.validateSteps(w, r, orgID, steps) {
		return
	}

	now := time.Now()
	pipeline := &domain.Pipeline{
		ID:             pipelineID,
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
		Status:         domain.PipelineStatusDraft,
		Steps:          steps,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.pipelineRepo.Create(r.Context(), pipeline); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.notify(r.Context(), orgID, notify.QueryKeyPipelines)
	Created(w, PipelineFromDomain(pipeline))
}

// GetPipeline возвращает pipeline по ID.
// GET /api/v1/pipelines/{id}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	Success(w, PipelineFromDomain(pipeline))
}

// UpdatePipeline обновляет pipeline. Редактировать можно только DRAFT.
// PUT /api/v1/pipelines/{id}
func (h *Handler) UpdatePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req UpdatePipelineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	if pipeline.Status != domain.PipelineStatusDraft {
		InvalidState(w, "only draft pipelines can be edited")
		return
	}

	if req.Name != nil {
		pipeline.Name = *req.Name
	}
	if req.Description != nil {
		pipeline.Description = *req.Description
	}
	if req.Steps != nil {
		pipeline.Steps = stepsFromRequest(pipeline.ID, req.Steps)
	}

	if !h.validateSteps(w, r, pipeline.OrganizationID, pipeline.Steps) {
		return
	}

	pipeline.UpdatedAt = time.Now()
	if err := h.pipelineRepo.Update(r.Context(), pipeline); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.notify(r.Context(), pipeline.OrganizationID, notify.QueryKeyPipelines)
	Success(w, PipelineFromDomain(pipeline))
}

// DeletePipeline удаляет pipeline.
// DELETE /api/v1/pipelines/{id}
func (h *Handler) DeletePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	if err := h.pipelineRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "pipeline not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.notify(r.Context(), pipeline.OrganizationID, notify.QueryKeyPipelines)
	NoContent(w)
}

// ActivatePipeline публикует pipeline: DRAFT → ACTIVE.
// Граф шагов обязан быть валидным DAG.
// POST /api/v1/pipelines/{id}/activate
func (h *Handler) ActivatePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	if pipeline.Status == domain.PipelineStatusActive {
		// Активация идемпотентна
		Success(w, PipelineFromDomain(pipeline))
		return
	}

	if _, err := engine.Build(pipeline.Steps); err != nil {
		InvalidState(w, err.Error())
		return
	}

	if err := h.pipelineRepo.SetStatus(r.Context(), id, domain.PipelineStatusActive); err != nil {
		if HandleRepoError(w, h.logger, err, "pipeline not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}
	pipeline.Status = domain.PipelineStatusActive

	h.notify(r.Context(), pipeline.OrganizationID, notify.QueryKeyPipelines)
	Success(w, PipelineFromDomain(pipeline))
}

// ValidationResponse — результат валидации графа pipeline.
type ValidationResponse struct {
	Valid  bool          `json:"valid"`
	Error  string        `json:"error,omitempty"`
	Levels [][]uuid.UUID `json:"levels,omitempty"`
}

// ValidatePipeline проверяет граф pipeline без изменения статуса.
// Возвращает уровни выполнения для валидного графа.
// POST /api/v1/pipelines/{id}/validate
func (h *Handler) ValidatePipeline(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	graph, err := engine.Build(pipeline.Steps)
	if err != nil {
		Success(w, ValidationResponse{Valid: false, Error: err.Error()})
		return
	}

	levels := make([][]uuid.UUID, len(graph.Levels))
	for i, level := range graph.Levels {
		ids := make([]uuid.UUID, len(level))
		for j, node := range level {
			ids[j] = node.ID
		}
		levels[i] = ids
	}

	Success(w, ValidationResponse{Valid: true, Levels: levels})
}
