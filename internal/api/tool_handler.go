package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/notify"
)

// ListTools возвращает tools организации.
// GET /api/v1/organizations/{id}/tools
func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	tools, err := h.toolRepo.ListByOrganization(r.Context(), orgID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ToolResponse, len(tools))
	for i, t := range tools {
		result[i] = ToolFromDomain(t)
	}

	List(w, result, len(result))
}

// CreateTool создаёт новый tool в организации.
// POST /api/v1/organizations/{id}/tools
func (h *Handler) CreateTool(w http.ResponseWriter, r *http.Request) {
	orgID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	var req CreateToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	base := domain.ToolBase(req.Base)
	if !base.IsBuiltin() {
		BadRequest(w, "unknown tool base")
		return
	}

	// Проверяем, что организация существует
	_, err = h.orgRepo.GetByID(r.Context(), orgID)
	if HandleRepoError(w, h.logger, err, "organization not found") {
		return
	}

	tool := &domain.Tool{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           req.Name,
		Base:           base,
		InputKind:      req.InputKind,
		OutputKind:     req.OutputKind,
		CreatedAt:      time.Now(),
	}

	if err := h.toolRepo.Create(r.Context(), tool); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.notify(r.Context(), orgID, notify.QueryKeyTools)
	Created(w, ToolFromDomain(*tool))
}

// GetTool возвращает tool по ID.
// GET /api/v1/tools/{id}
func (h *Handler) GetTool(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid tool id")
		return
	}

	tool, err := h.toolRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "tool not found") {
		return
	}

	Success(w, ToolFromDomain(*tool))
}

// DeleteTool удаляет tool.
// DELETE /api/v1/tools/{id}
func (h *Handler) DeleteTool(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid tool id")
		return
	}

	tool, err := h.toolRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "tool not found") {
		return
	}

	if err := h.toolRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "tool not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	h.notify(r.Context(), tool.OrganizationID, notify.QueryKeyTools)
	NoContent(w)
}
