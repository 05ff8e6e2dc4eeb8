package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Статусы job во внешнем сервисе.
const (
	JobStatusInProgress = "IN_PROGRESS"
	JobStatusCompleted  = "COMPLETED"
	JobStatusFailed     = "FAILED"
)

const (
	defaultMaxAttempts  = 5
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 30 * time.Minute
	defaultHTTPTimeout  = 30 * time.Second
)

// Client — клиент внешнего GPU job-сервиса.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	maxAttempts  int
	pollInterval time.Duration
	maxWait      time.Duration
}

// Config — конфигурация Client.
type Config struct {
	// BaseURL — адрес job-сервиса (без завершающего /).
	BaseURL string

	// Token — bearer token для авторизации.
	Token string

	// HTTPClient — клиент для запросов (default: таймаут 30s).
	HTTPClient *http.Client

	// Logger — логгер.
	Logger *slog.Logger

	// MaxAttempts — бюджет транзиентных ошибок: попытки запуска job
	// и неудачные опросы статуса подряд (default: 5).
	MaxAttempts int

	// PollInterval — интервал опроса статуса (default: 5s).
	PollInterval time.Duration

	// MaxWait — максимальное время ожидания завершения job (default: 30m).
	MaxWait time.Duration
}

// NewClient создаёт клиент job-сервиса.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	return &Client{
		baseURL:       cfg.BaseURL,
		token:         cfg.Token,
		httpClient:    httpClient,
		logger:        logger,
		maxAttempts:  maxAttempts,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// startResponse — ответ на запуск job.
type startResponse struct {
	ID string `json:"id"`
}

// JobStatus — ответ на опрос статуса job.
type JobStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output string `json:"output"`
}

// StartJob запускает job на воркере workerID и возвращает ID job.
//
// Ретраится только на транзиентных ошибках: сетевых и HTTP 5xx.
// Ответ 4xx и ответ неожиданной формы возвращаются сразу.
func (c *Client) StartJob(ctx context.Context, workerID string, input map[string]any) (string, error) {
	url := fmt.Sprintf("%s/jobs/%s/run", c.baseURL, workerID)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		jobID, err := c.postRun(ctx, url, input)
		if err == nil {
			c.logger.Debug("job started",
				"worker_id", workerID,
				"job_id", jobID,
				"attempt", attempt,
			)
			return jobID, nil
		}

		if !isTransient(err) {
			return "", err
		}
		lastErr = err

		c.logger.Warn("job start failed, will retry",
			"worker_id", workerID,
			"attempt", attempt,
			"error", err,
		)

		// Пауза перед следующей попыткой, с уважением к отмене
		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, c.maxAttempts, lastErr)
}

// postRun выполняет один POST запуска job.
func (c *Client) postRun(ctx context.Context, url string, input map[string]any) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("start job: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var parsed startResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.ID == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidResponse, truncate(string(respBody), 200))
	}

	return parsed.ID, nil
}

// PollStatus выполняет один опрос статуса job.
func (c *Client) PollStatus(ctx context.Context, workerID, jobID string) (*JobStatus, error) {
	url := fmt.Sprintf("%s/jobs/%s/status/%s", c.baseURL, workerID, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll status: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	var parsed JobStatus
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidResponse, truncate(string(respBody), 200))
	}

	switch parsed.Status {
	case JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidResponse, parsed.Status)
	}

	return &parsed, nil
}

// MonitorJob опрашивает job до терминального статуса.
//
// Транзиентные ошибки опроса ретраятся ограниченно: MaxAttempts
// неудач подряд прекращают мониторинг с ErrRetryExhausted, успешный
// опрос сбрасывает счётчик. Ответ неожиданной формы и 4xx
// останавливают опрос сразу. Опрос прерывается при отмене ctx и по
// истечении MaxWait.
func (c *Client) MonitorJob(ctx context.Context, workerID, jobID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		status, err := c.PollStatus(ctx, workerID, jobID)
		switch {
		case err != nil && !isTransient(err):
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: job %s after %s", ErrJobTimeout, jobID, c.maxWait)
			}
			return "", err

		case err != nil:
			failures++
			if failures >= c.maxAttempts {
				return "", fmt.Errorf("%w after %d poll attempts: %v", ErrRetryExhausted, failures, err)
			}
			c.logger.Warn("poll status failed, will retry",
				"worker_id", workerID,
				"job_id", jobID,
				"attempt", failures,
				"error", err,
			)

		default:
			failures = 0
			switch status.Status {
			case JobStatusCompleted:
				return status.Output, nil
			case JobStatusFailed:
				return "", &JobFailedError{JobID: jobID, Output: status.Output}
			}
			// IN_PROGRESS — ждём следующий тик
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("%w: job %s after %s", ErrJobTimeout, jobID, c.maxWait)
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run запускает job и дожидается его завершения.
// Возвращает output завершённого job.
func (c *Client) Run(ctx context.Context, workerID string, input map[string]any) (string, error) {
	jobID, err := c.StartJob(ctx, workerID, input)
	if err != nil {
		return "", err
	}
	return c.MonitorJob(ctx, workerID, jobID)
}

// isTransient сообщает, стоит ли повторять запрос после ошибки.
func isTransient(err error) bool {
	if errors.Is(err, ErrInvalidResponse) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Сетевые ошибки транзиентны
	return true
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
