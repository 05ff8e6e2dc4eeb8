package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/notify"
)

// parsePlan валидирует тарифный план из запроса.
func parsePlan(s string) (domain.Plan, bool) {
	switch domain.Plan(s) {
	case domain.PlanFree, domain.PlanPro, domain.PlanUnlimited:
		return domain.Plan(s), true
	default:
		return "", false
	}
}

// ListOrganizations возвращает список организаций.
// GET /api/v1/organizations
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]OrganizationResponse, len(orgs))
	for i, o := range orgs {
		result[i] = OrganizationFromDomain(o)
	}

	List(w, result, len(result))
}

// CreateOrganization создаёт новую организацию и провижинит
// базовый каталог tools.
// POST /api/v1/organizations
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	plan := domain.PlanFree
	if req.Plan != "" {
		parsed, ok := parsePlan(req.Plan)
		if !ok {
			BadRequest(w, "invalid plan")
			return
		}
		plan = parsed
	}

	if req.Credits < 0 {
		BadRequest(w, "credits must be non-negative")
		return
	}

	org := &domain.Organization{
		ID:        uuid.New(),
		Name:      req.Name,
		Plan:      plan,
		Credits:   req.Credits,
		CreatedAt: time.Now(),
	}

	if err := h.orgRepo.Create(r.Context(), org); err != nil {
		if HandleRepoError(w, h.logger, err, "") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	// Новая организация сразу получает базовый каталог
	if h.provisioner != nil {
		if _, err := h.provisioner.Provision(r.Context(), org.ID); err != nil {
			// Организация уже создана; каталог можно довести
			// повторным POST /provision
			h.logger.Error("failed to provision organization",
				"org_id", org.ID,
				"error", err,
			)
		}
	}

	Created(w, OrganizationFromDomain(*org))
}

// GetOrganization возвращает организацию по ID.
// GET /api/v1/organizations/{id}
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	org, err := h.orgRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "organization not found") {
		return
	}

	Success(w, OrganizationFromDomain(*org))
}

// AddCredits пополняет баланс организации.
// POST /api/v1/organizations/{id}/credits
func (h *Handler) AddCredits(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	var req AddCreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Amount <= 0 {
		BadRequest(w, "amount must be positive")
		return
	}

	if err := h.orgRepo.AddCredits(r.Context(), id, req.Amount); err != nil {
		if HandleRepoError(w, h.logger, err, "organization not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	org, err := h.orgRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "organization not found") {
		return
	}

	h.notify(r.Context(), id, notify.QueryKeyOrganizations)
	Success(w, OrganizationFromDomain(*org))
}

// UpdatePlan меняет тарифный план организации.
// PUT /api/v1/organizations/{id}/plan
func (h *Handler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	var req UpdatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	plan, ok := parsePlan(req.Plan)
	if !ok {
		BadRequest(w, "invalid plan")
		return
	}

	if err := h.orgRepo.UpdatePlan(r.Context(), id, plan); err != nil {
		if HandleRepoError(w, h.logger, err, "organization not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	org, err := h.orgRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "organization not found") {
		return
	}

	h.notify(r.Context(), id, notify.QueryKeyOrganizations)
	Success(w, OrganizationFromDomain(*org))
}

// ProvisionOrganization создаёт базовый каталог tools.
// Повторный вызов — no-op.
// POST /api/v1/organizations/{id}/provision
func (h *Handler) ProvisionOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid organization id")
		return
	}

	provisioned, err := h.provisioner.Provision(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "organization not found") {
		return
	}

	if provisioned {
		h.notify(r.Context(), id, notify.QueryKeyTools)
		h.notify(r.Context(), id, notify.QueryKeyPipelines)
	}

	org, err := h.orgRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "organization not found") {
		return
	}

	Success(w, OrganizationFromDomain(*org))
}
