package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/credits"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/engine"
	"github.com/shaiso/Cascade/internal/notify"
	"github.com/shaiso/Cascade/internal/repo"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?organization_id=...&pipeline_id=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{}

	if orgIDStr := r.URL.Query().Get("organization_id"); orgIDStr != "" {
		orgID, err := uuid.Parse(orgIDStr)
		if err != nil {
			BadRequest(w, "invalid organization_id")
			return
		}
		filter.OrganizationID = &orgID
	}

	if pipelineIDStr := r.URL.Query().Get("pipeline_id"); pipelineIDStr != "" {
		pipelineID, err := uuid.Parse(pipelineIDStr)
		if err != nil {
			BadRequest(w, "invalid pipeline_id")
			return
		}
		filter.PipelineID = &pipelineID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.RunStatus(status)
	}

	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	runs, err := h.runRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

var errPipelineNotActive = errors.New("pipeline is not active")

// runnablePipeline проверяет, что pipeline пригоден к запуску:
// активен и с валидным графом. Граф проверяется и здесь, а не только
// при активации: испорченный после активации pipeline должен падать
// у создателя run, а не в оркестраторе.
func runnablePipeline(p *domain.Pipeline) error {
	if p.Status != domain.PipelineStatusActive {
		return errPipelineNotActive
	}
	if _, err := engine.Build(p.Steps); err != nil {
		return err
	}
	return nil
}

// CreatePipelineRun запускает pipeline.
// POST /api/v1/pipelines/{id}/runs
func (h *Handler) CreatePipelineRun(w http.ResponseWriter, r *http.Request) {
	pipelineID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid pipeline id")
		return
	}

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	pipeline, err := h.pipelineRepo.GetByID(r.Context(), pipelineID)
	if HandleRepoError(w, h.logger, err, "pipeline not found") {
		return
	}

	if err := runnablePipeline(pipeline); err != nil {
		if errors.Is(err, errPipelineNotActive) {
			InvalidState(w, err.Error())
		} else {
			BadRequest(w, err.Error())
		}
		return
	}

	run := &domain.Run{
		ID:             uuid.New(),
		OrganizationID: pipeline.OrganizationID,
		Kind:           domain.RunKindPipeline,
		PipelineID:     &pipeline.ID,
		Status:         domain.RunStatusQueued,
		Input:          req.Input,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	// Стоимость pipeline run — по шагу за каждый шаг
	h.admitAndCreateRun(w, r, run, len(pipeline.Steps))
}

// CreateToolRun запускает один tool.
// POST /api/v1/tools/{id}/runs
func (h *Handler) CreateToolRun(w http.ResponseWriter, r *http.Request) {
	toolID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid tool id")
		return
	}

	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	tool, err := h.toolRepo.GetByID(r.Context(), toolID)
	if HandleRepoError(w, h.logger, err, "tool not found") {
		return
	}

	run := &domain.Run{
		ID:             uuid.New(),
		OrganizationID: tool.OrganizationID,
		Kind:           domain.RunKindTool,
		ToolID:         &tool.ID,
		Status:         domain.RunStatusQueued,
		Input:          req.Input,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	h.admitAndCreateRun(w, r, run, 1)
}

// admitAndCreateRun проводит run через admission gate и создаёт его.
//
// 1. Idempotency: существующий run с тем же ключом возвращается как есть
// 2. Reserve: атомарное списание кредитов (402 при отказе)
// 3. Создание run в QUEUED
// 4. Публикация run.requested (best-effort)
func (h *Handler) admitAndCreateRun(w http.ResponseWriter, r *http.Request, run *domain.Run, cost int) {
	ctx := r.Context()

	if run.IdempotencyKey != "" {
		existing, err := h.runRepo.GetByIdempotencyKey(ctx, run.OrganizationID, run.IdempotencyKey)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			InternalError(w, h.logger, err)
			return
		}
		if existing != nil {
			Success(w, RunFromDomain(*existing))
			return
		}
	}

	if err := h.gate.Reserve(ctx, run.OrganizationID, cost); err != nil {
		var insufficientErr *credits.InsufficientCreditsError
		if errors.As(err, &insufficientErr) {
			telemetry.CreditRejections.Inc()
			PaymentRequired(w, insufficientErr.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	if err := h.runRepo.Create(ctx, run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishRunRequested(ctx, run.ID, run.OrganizationID); err != nil {
			// Оркестратор подхватит run через polling
			h.logger.Warn("failed to publish run.requested", "run_id", run.ID, "error", err)
		}
	}

	h.notify(ctx, run.OrganizationID, notify.QueryKeyRuns)
	Created(w, RunFromDomain(*run))
}

// CancelRun отменяет run.
//
// QUEUED run отменяется на месте условным UPDATE. PROCESSING run
// принадлежит оркестратору: ему отправляется сигнал run.canceled,
// и терминальный статус запишет он сам (ответ — 202).
// POST /api/v1/runs/{id}/cancel
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	if run.Status.IsTerminal() {
		InvalidState(w, "run already finished")
		return
	}

	if run.Status == domain.RunStatusQueued {
		canceled, err := h.runRepo.CancelQueued(r.Context(), id)
		if err != nil {
			InternalError(w, h.logger, err)
			return
		}
		if canceled {
			run, err = h.runRepo.GetByID(r.Context(), id)
			if HandleRepoError(w, h.logger, err, "run not found") {
				return
			}
			h.notify(r.Context(), run.OrganizationID, notify.QueryKeyRuns)
			Success(w, RunFromDomain(*run))
			return
		}
		// Оркестратор успел захватить run — отменяем через сигнал
	}

	if h.publisher == nil {
		InvalidState(w, "run is processing and cancel signaling is unavailable")
		return
	}

	if err := h.publisher.PublishRunCanceled(r.Context(), run.ID, run.OrganizationID); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Accepted(w, RunFromDomain(*run))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// ListRunSteps возвращает step runs одного run.
// GET /api/v1/runs/{id}/steps
func (h *Handler) ListRunSteps(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	// Проверяем, что run существует
	_, err = h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	stepRuns, err := h.stepRunRepo.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StepRunResponse, len(stepRuns))
	for i, sr := range stepRuns {
		result[i] = StepRunFromDomain(sr)
	}

	List(w, result, len(result))
}

// queryInt парсит числовой query-параметр с дефолтным значением.
func queryInt(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
