package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
)

// Organization DTOs

// CreateOrganizationRequest — запрос на создание организации.
type CreateOrganizationRequest struct {
	Name    string `json:"name"`
	Plan    string `json:"plan,omitempty"`
	Credits int    `json:"credits,omitempty"`
}

// AddCreditsRequest — запрос на пополнение баланса.
type AddCreditsRequest struct {
	Amount int `json:"amount"`
}

// UpdatePlanRequest — запрос на смену тарифного плана.
type UpdatePlanRequest struct {
	Plan string `json:"plan"`
}

// OrganizationResponse — ответ с организацией.
type OrganizationResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Plan          string     `json:"plan"`
	Credits       int        `json:"credits"`
	ProvisionedAt *time.Time `json:"provisioned_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OrganizationFromDomain конвертирует domain.Organization в OrganizationResponse.
func OrganizationFromDomain(o domain.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:            o.ID,
		Name:          o.Name,
		Plan:          string(o.Plan),
		Credits:       o.Credits,
		ProvisionedAt: o.ProvisionedAt,
		CreatedAt:     o.CreatedAt,
	}
}

// Tool DTOs

// CreateToolRequest — запрос на создание tool.
type CreateToolRequest struct {
	Name       string `json:"name"`
	Base       string `json:"base"`
	InputKind  string `json:"input_kind"`
	OutputKind string `json:"output_kind"`
}

// ToolResponse — ответ с tool.
type ToolResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Base           string    `json:"base"`
	InputKind      string    `json:"input_kind"`
	OutputKind     string    `json:"output_kind"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToolFromDomain конвертирует domain.Tool в ToolResponse.
func ToolFromDomain(t domain.Tool) ToolResponse {
	return ToolResponse{
		ID:             t.ID,
		OrganizationID: t.OrganizationID,
		Name:           t.Name,
		Base:           string(t.Base),
		InputKind:      t.InputKind,
		OutputKind:     t.OutputKind,
		CreatedAt:      t.CreatedAt,
	}
}

// Pipeline DTOs

// PipelineStepRequest — шаг pipeline в запросе.
type PipelineStepRequest struct {
	ID            *uuid.UUID  `json:"id,omitempty"`
	ToolID        uuid.UUID   `json:"tool_id"`
	Name          string      `json:"name"`
	Prerequisites []uuid.UUID `json:"prerequisites,omitempty"`
}

// CreatePipelineRequest — запрос на создание pipeline.
type CreatePipelineRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Steps       []PipelineStepRequest `json:"steps,omitempty"`
}

// UpdatePipelineRequest — запрос на обновление pipeline.
type UpdatePipelineRequest struct {
	Name        *string               `json:"name,omitempty"`
	Description *string               `json:"description,omitempty"`
	Steps       []PipelineStepRequest `json:"steps,omitempty"`
}

// PipelineStepResponse — шаг pipeline в ответе.
type PipelineStepResponse struct {
	ID            uuid.UUID   `json:"id"`
	ToolID        uuid.UUID   `json:"tool_id"`
	Name          string      `json:"name"`
	Prerequisites []uuid.UUID `json:"prerequisites,omitempty"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	ID             uuid.UUID              `json:"id"`
	OrganizationID uuid.UUID              `json:"organization_id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	Status         string                 `json:"status"`
	Steps          []PipelineStepResponse `json:"steps,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// PipelineFromDomain конвертирует domain.Pipeline в PipelineResponse.
func PipelineFromDomain(p *domain.Pipeline) PipelineResponse {
	if p == nil {
		return PipelineResponse{}
	}

	steps := make([]PipelineStepResponse, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = PipelineStepResponse{
			ID:            s.ID,
			ToolID:        s.ToolID,
			Name:          s.Name,
			Prerequisites: s.Prerequisites,
		}
	}

	return PipelineResponse{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		Description:    p.Description,
		Status:         string(p.Status),
		Steps:          steps,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// Run DTOs

// CreateRunRequest — запрос на создание run.
type CreateRunRequest struct {
	Input          map[string]any `json:"input,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	Kind           string         `json:"kind"`
	PipelineID     *uuid.UUID     `json:"pipeline_id,omitempty"`
	ToolID         *uuid.UUID     `json:"tool_id,omitempty"`
	Status         string         `json:"status"`
	Progress       float64        `json:"progress"`
	Input          map[string]any `json:"input,omitempty"`
	Output         string         `json:"output,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:             r.ID,
		OrganizationID: r.OrganizationID,
		Kind:           string(r.Kind),
		PipelineID:     r.PipelineID,
		ToolID:         r.ToolID,
		Status:         string(r.Status),
		Progress:       r.Progress,
		Input:          r.Input,
		Output:         r.Output,
		Error:          r.Error,
		IdempotencyKey: r.IdempotencyKey,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		CreatedAt:      r.CreatedAt,
	}
}

// StepRun DTOs

// StepRunResponse — ответ с step run.
type StepRunResponse struct {
	ID         uuid.UUID      `json:"id"`
	RunID      uuid.UUID      `json:"run_id"`
	StepID     *uuid.UUID     `json:"step_id,omitempty"`
	ToolID     uuid.UUID      `json:"tool_id"`
	Base       string         `json:"base"`
	Attempt    int            `json:"attempt"`
	Status     string         `json:"status"`
	Input      map[string]any `json:"input,omitempty"`
	Output     string         `json:"output,omitempty"`
	JobID      string         `json:"job_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// StepRunFromDomain конвертирует domain.StepRun в StepRunResponse.
func StepRunFromDomain(sr domain.StepRun) StepRunResponse {
	return StepRunResponse{
		ID:         sr.ID,
		RunID:      sr.RunID,
		StepID:     sr.StepID,
		ToolID:     sr.ToolID,
		Base:       string(sr.Base),
		Attempt:    sr.Attempt,
		Status:     string(sr.Status),
		Input:      sr.Input,
		Output:     sr.Output,
		JobID:      sr.JobID,
		Error:      sr.Error,
		StartedAt:  sr.StartedAt,
		FinishedAt: sr.FinishedAt,
		CreatedAt:  sr.CreatedAt,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string         `json:"name,omitempty"`
	CronExpr    *string         `json:"cron_expr,omitempty"`
	IntervalSec *int            `json:"interval_sec,omitempty"`
	Timezone    *string         `json:"timezone,omitempty"`
	Inputs      *map[string]any `json:"inputs,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	PipelineID     uuid.UUID      `json:"pipeline_id"`
	Name           string         `json:"name"`
	CronExpr       string         `json:"cron_expr,omitempty"`
	IntervalSec    int            `json:"interval_sec,omitempty"`
	Timezone       string         `json:"timezone"`
	Enabled        bool           `json:"enabled"`
	NextDueAt      *time.Time     `json:"next_due_at,omitempty"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	LastRunID      *uuid.UUID     `json:"last_run_id,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		PipelineID:     s.PipelineID,
		Name:           s.Name,
		CronExpr:       s.CronExpr,
		IntervalSec:    s.IntervalSec,
		Timezone:       s.Timezone,
		Enabled:        s.Enabled,
		NextDueAt:      s.NextDueAt,
		LastRunAt:      s.LastRunAt,
		LastRunID:      s.LastRunID,
		Inputs:         s.Inputs,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
