package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// OrganizationResponse — организация из API.
type OrganizationResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Plan          string `json:"plan"`
	Credits       int    `json:"credits"`
	ProvisionedAt string `json:"provisioned_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ToolResponse — tool из API.
type ToolResponse struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Base           string `json:"base"`
	InputKind      string `json:"input_kind"`
	OutputKind     string `json:"output_kind"`
	CreatedAt      string `json:"created_at"`
}

// PipelineStepResponse — шаг pipeline из API.
type PipelineStepResponse struct {
	ID            string   `json:"id"`
	ToolID        string   `json:"tool_id"`
	Name          string   `json:"name"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	ID             string                 `json:"id"`
	OrganizationID string                 `json:"organization_id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	Status         string                 `json:"status"`
	Steps          []PipelineStepResponse `json:"steps,omitempty"`
	CreatedAt      string                 `json:"created_at"`
	UpdatedAt      string                 `json:"updated_at"`
}

// ValidationResponse — результат валидации pipeline.
type ValidationResponse struct {
	Valid  bool       `json:"valid"`
	Error  string     `json:"error,omitempty"`
	Levels [][]string `json:"levels,omitempty"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Kind           string         `json:"kind"`
	PipelineID     string         `json:"pipeline_id,omitempty"`
	ToolID         string         `json:"tool_id,omitempty"`
	Status         string         `json:"status"`
	Progress       float64        `json:"progress"`
	Input          map[string]any `json:"input,omitempty"`
	Output         string         `json:"output,omitempty"`
	Error          string         `json:"error,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	StartedAt      string         `json:"started_at,omitempty"`
	CompletedAt    string         `json:"completed_at,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// StepRunResponse — step run из API.
type StepRunResponse struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	StepID     string `json:"step_id,omitempty"`
	ToolID     string `json:"tool_id"`
	Base       string `json:"base"`
	Attempt    int    `json:"attempt"`
	Status     string `json:"status"`
	Output     string `json:"output,omitempty"`
	JobID      string `json:"job_id,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	PipelineID     string         `json:"pipeline_id"`
	Name           string         `json:"name"`
	CronExpr       string         `json:"cron_expr,omitempty"`
	IntervalSec    int            `json:"interval_sec,omitempty"`
	Timezone       string         `json:"timezone"`
	Enabled        bool           `json:"enabled"`
	NextDueAt      string         `json:"next_due_at,omitempty"`
	LastRunAt      string         `json:"last_run_at,omitempty"`
	LastRunID      string         `json:"last_run_id,omitempty"`
	Inputs         map[string]any `json:"inputs,omitempty"`
	CreatedAt      string         `json:"created_at"`
	UpdatedAt      string         `json:"updated_at"`
}

// --- Request types ---

// CreateOrganizationRequest — создание организации.
type CreateOrganizationRequest struct {
	Name    string `json:"name"`
	Plan    string `json:"plan,omitempty"`
	Credits int    `json:"credits,omitempty"`
}

// CreateToolRequest — создание tool.
type CreateToolRequest struct {
	Name       string `json:"name"`
	Base       string `json:"base"`
	InputKind  string `json:"input_kind,omitempty"`
	OutputKind string `json:"output_kind,omitempty"`
}

// PipelineStepRequest — шаг pipeline в запросе.
type PipelineStepRequest struct {
	ID            string   `json:"id,omitempty"`
	ToolID        string   `json:"tool_id"`
	Name          string   `json:"name"`
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// CreatePipelineRequest — создание pipeline.
type CreatePipelineRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	Steps       []PipelineStepRequest `json:"steps,omitempty"`
}

// CreateRunRequest — создание run.
type CreateRunRequest struct {
	Input          map[string]any `json:"input,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Inputs      map[string]any `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	OrganizationID string
	PipelineID     string
	Status         string
	Limit          int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Cascade API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Organizations ---

// ListOrganizations возвращает все организации.
func (c *Client) ListOrganizations() ([]OrganizationResponse, error) {
	var orgs []OrganizationResponse
	err := c.list("/api/v1/organizations", nil, &orgs)
	return orgs, err
}

// CreateOrganization создаёт новую организацию.
func (c *Client) CreateOrganization(req CreateOrganizationRequest) (*OrganizationResponse, error) {
	var org OrganizationResponse
	err := c.post("/api/v1/organizations", req, &org)
	return &org, err
}

// GetOrganization возвращает организацию по ID.
func (c *Client) GetOrganization(id string) (*OrganizationResponse, error) {
	var org OrganizationResponse
	err := c.get("/api/v1/organizations/"+id, &org)
	return &org, err
}

// AddCredits пополняет баланс организации.
func (c *Client) AddCredits(id string, amount int) (*OrganizationResponse, error) {
	body := map[string]int{"amount": amount}
	var org OrganizationResponse
	err := c.post("/api/v1/organizations/"+id+"/credits", body, &org)
	return &org, err
}

// SetPlan меняет тарифный план организации.
func (c *Client) SetPlan(id, plan string) (*OrganizationResponse, error) {
	body := map[string]string{"plan": plan}
	var org OrganizationResponse
	err := c.put("/api/v1/organizations/"+id+"/plan", body, &org)
	return &org, err
}

// ProvisionOrganization создаёт базовый каталог tools.
func (c *Client) ProvisionOrganization(id string) (*OrganizationResponse, error) {
	var org OrganizationResponse
	err := c.post("/api/v1/organizations/"+id+"/provision", nil, &org)
	return &org, err
}

// --- Tools ---

// ListTools возвращает tools организации.
func (c *Client) ListTools(orgID string) ([]ToolResponse, error) {
	var tools []ToolResponse
	err := c.list("/api/v1/organizations/"+orgID+"/tools", nil, &tools)
	return tools, err
}

// CreateTool создаёт tool в организации.
func (c *Client) CreateTool(orgID string, req CreateToolRequest) (*ToolResponse, error) {
	var tool ToolResponse
	err := c.post("/api/v1/organizations/"+orgID+"/tools", req, &tool)
	return &tool, err
}

// GetTool возвращает tool по ID.
func (c *Client) GetTool(id string) (*ToolResponse, error) {
	var tool ToolResponse
	err := c.get("/api/v1/tools/"+id, &tool)
	return &tool, err
}

// DeleteTool удаляет tool.
func (c *Client) DeleteTool(id string) error {
	return c.delete("/api/v1/tools/" + id)
}

// --- Pipelines ---

// ListPipelines возвращает pipelines организации.
func (c *Client) ListPipelines(orgID string) ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/organizations/"+orgID+"/pipelines", nil, &pipelines)
	return pipelines, err
}

// CreatePipeline создаёт pipeline в организации.
func (c *Client) CreatePipeline(orgID string, req CreatePipelineRequest) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.post("/api/v1/organizations/"+orgID+"/pipelines", req, &pipeline)
	return &pipeline, err
}

// GetPipeline возвращает pipeline по ID.
func (c *Client) GetPipeline(id string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.get("/api/v1/pipelines/"+id, &pipeline)
	return &pipeline, err
}

// DeletePipeline удаляет pipeline.
func (c *Client) DeletePipeline(id string) error {
	return c.delete("/api/v1/pipelines/" + id)
}

// ActivatePipeline публикует pipeline.
func (c *Client) ActivatePipeline(id string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.post("/api/v1/pipelines/"+id+"/activate", nil, &pipeline)
	return &pipeline, err
}

// ValidatePipeline проверяет граф pipeline.
func (c *Client) ValidatePipeline(id string) (*ValidationResponse, error) {
	var result ValidationResponse
	err := c.post("/api/v1/pipelines/"+id+"/validate", nil, &result)
	return &result, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.OrganizationID != "" {
		params.Set("organization_id", opts.OrganizationID)
	}
	if opts.PipelineID != "" {
		params.Set("pipeline_id", opts.PipelineID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// StartPipelineRun запускает pipeline.
func (c *Client) StartPipelineRun(pipelineID string, req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/runs", req, &run)
	return &run, err
}

// StartToolRun запускает один tool.
func (c *Client) StartToolRun(toolID string, req CreateRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/tools/"+toolID+"/runs", req, &run)
	return &run, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// CancelRun отменяет run.
func (c *Client) CancelRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.post("/api/v1/runs/"+id+"/cancel", nil, &run)
	return &run, err
}

// ListRunSteps возвращает step runs одного run.
func (c *Client) ListRunSteps(runID string) ([]StepRunResponse, error) {
	var steps []StepRunResponse
	err := c.list("/api/v1/runs/"+runID+"/steps", nil, &steps)
	return steps, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если pipelineID не пустой — фильтрует.
func (c *Client) ListSchedules(pipelineID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if pipelineID != "" {
		params.Set("pipeline_id", pipelineID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для pipeline.
func (c *Client) CreateSchedule(pipelineID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
