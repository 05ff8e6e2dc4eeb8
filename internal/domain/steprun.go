package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepRun — выполнение одного шага внутри run.
//
// StepRun создаётся оркестратором, когда шаг становится готовым
// (все prerequisites завершены). Хранится для наблюдаемости и
// восстановления состояния после рестарта оркестратора.
type StepRun struct {
	// ID — уникальный идентификатор step run.
	ID uuid.UUID `json:"id"`

	// RunID — ссылка на родительский run.
	RunID uuid.UUID `json:"run_id"`

	// StepID — ссылка на PipelineStep (nil для TOOL_RUN).
	StepID *uuid.UUID `json:"step_id,omitempty"`

	// ToolID — tool, выполняющий шаг.
	ToolID uuid.UUID `json:"tool_id"`

	// Base — base tool'а (копия для удобства, выбирает executor).
	Base ToolBase `json:"base"`

	// Attempt — номер попытки (начиная с 1).
	Attempt int `json:"attempt"`

	// Status — текущий статус step run.
	Status StepRunStatus `json:"status"`

	// Input — входные данные шага.
	Input map[string]any `json:"input,omitempty"`

	// Output — результат выполнения (ссылка на контент).
	Output string `json:"output,omitempty"`

	// JobID — идентификатор job во внешнем сервисе, если шаг был
	// диспетчеризован на GPU job-сервис.
	JobID string `json:"job_id,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания step run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
func (s *StepRun) Duration() time.Duration {
	if s.StartedAt == nil || s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(*s.StartedAt)
}

// IsFinished возвращает true, если step run завершён.
func (s *StepRun) IsFinished() bool {
	return s.Status.IsTerminal()
}

// MarkRunning переводит step run в статус RUNNING.
func (s *StepRun) MarkRunning() {
	now := time.Now()
	s.Status = StepRunStatusRunning
	s.StartedAt = &now
	s.Attempt++
}

// MarkSucceeded переводит step run в статус SUCCEEDED с результатом.
func (s *StepRun) MarkSucceeded(output string) {
	now := time.Now()
	s.Status = StepRunStatusSucceeded
	s.FinishedAt = &now
	s.Output = output
}

// MarkFailed переводит step run в статус FAILED с ошибкой.
func (s *StepRun) MarkFailed(err string) {
	now := time.Now()
	s.Status = StepRunStatusFailed
	s.FinishedAt = &now
	s.Error = err
}
