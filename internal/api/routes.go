package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Organizations
	mux.Handle("GET /api/v1/organizations", chain(http.HandlerFunc(h.ListOrganizations)))
	mux.Handle("POST /api/v1/organizations", chain(http.HandlerFunc(h.CreateOrganization)))
	mux.Handle("GET /api/v1/organizations/{id}", chain(http.HandlerFunc(h.GetOrganization)))
	mux.Handle("POST /api/v1/organizations/{id}/credits", chain(http.HandlerFunc(h.AddCredits)))
	mux.Handle("PUT /api/v1/organizations/{id}/plan", chain(http.HandlerFunc(h.UpdatePlan)))
	mux.Handle("POST /api/v1/organizations/{id}/provision", chain(http.HandlerFunc(h.ProvisionOrganization)))

	// Tools
	mux.Handle("GET /api/v1/organizations/{id}/tools", chain(http.HandlerFunc(h.ListTools)))
	mux.Handle("POST /api/v1/organizations/{id}/tools", chain(http.HandlerFunc(h.CreateTool)))
	mux.Handle("GET /api/v1/tools/{id}", chain(http.HandlerFunc(h.GetTool)))
	mux.Handle("DELETE /api/v1/tools/{id}", chain(http.HandlerFunc(h.DeleteTool)))

	// Pipelines
	mux.Handle("GET /api/v1/organizations/{id}/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("POST /api/v1/organizations/{id}/pipelines", chain(http.HandlerFunc(h.CreatePipeline)))
	mux.Handle("GET /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("PUT /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.UpdatePipeline)))
	mux.Handle("DELETE /api/v1/pipelines/{id}", chain(http.HandlerFunc(h.DeletePipeline)))
	mux.Handle("POST /api/v1/pipelines/{id}/activate", chain(http.HandlerFunc(h.ActivatePipeline)))
	mux.Handle("POST /api/v1/pipelines/{id}/validate", chain(http.HandlerFunc(h.ValidatePipeline)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("POST /api/v1/pipelines/{id}/runs", chain(http.HandlerFunc(h.CreatePipelineRun)))
	mux.Handle("POST /api/v1/tools/{id}/runs", chain(http.HandlerFunc(h.CreateToolRun)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
	mux.Handle("POST /api/v1/runs/{id}/cancel", chain(http.HandlerFunc(h.CancelRun)))
	mux.Handle("GET /api/v1/runs/{id}/steps", chain(http.HandlerFunc(h.ListRunSteps)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/pipelines/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
