package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — экземпляр выполнения tool или pipeline.
//
// Run создаётся когда:
// - Пользователь запускает tool/pipeline через API/CLI
// - Scheduler создаёт run по расписанию
//
// Мутирует run только Run Lifecycle Controller (оркестратор); после
// перехода в COMPLETE или ERROR run неизменяем.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// OrganizationID — организация-владелец.
	OrganizationID uuid.UUID `json:"organization_id"`

	// Kind — TOOL_RUN или PIPELINE_RUN.
	Kind RunKind `json:"kind"`

	// PipelineID — ссылка на pipeline (для PIPELINE_RUN).
	PipelineID *uuid.UUID `json:"pipeline_id,omitempty"`

	// ToolID — ссылка на tool (для TOOL_RUN).
	ToolID *uuid.UUID `json:"tool_id,omitempty"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Progress — доля завершённых шагов, в [0, 1]. Не убывает.
	Progress float64 `json:"progress"`

	// Input — входные данные (ссылки на контент и параметры).
	Input map[string]any `json:"input,omitempty"`

	// Output — ссылка на результат (заполняется по завершении).
	Output string `json:"output,omitempty"`

	// Error — текст ошибки, если run завершился с ERROR.
	// Сообщение исходной ошибки сохраняется дословно.
	Error string `json:"error,omitempty"`

	// IdempotencyKey — ключ идемпотентности для предотвращения дубликатов.
	// Например, для scheduled runs: "{schedule_id}_{next_due_at}"
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// StartedAt — время начала выполнения (когда статус стал PROCESSING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt — время завершения (успешного или с ошибкой).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён.
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkProcessing переводит run в статус PROCESSING и ставит StartedAt.
// Возвращает false, если переход запрещён (run уже не QUEUED).
func (r *Run) MarkProcessing() bool {
	if r.Status != RunStatusQueued {
		return false
	}
	now := time.Now()
	r.Status = RunStatusProcessing
	r.StartedAt = &now
	return true
}

// MarkComplete переводит run в статус COMPLETE с progress = 1.
// Из терминального статуса переход запрещён — возвращает false,
// состояние не меняется (защита от дублей сигналов завершения).
func (r *Run) MarkComplete(output string) bool {
	if r.Status.IsTerminal() {
		return false
	}
	now := time.Now()
	r.Status = RunStatusComplete
	r.Progress = 1
	r.Output = output
	r.CompletedAt = &now
	return true
}

// MarkError переводит run в статус ERROR с текстом ошибки.
// Из терминального статуса переход запрещён — возвращает false.
func (r *Run) MarkError(errMsg string) bool {
	if r.Status.IsTerminal() {
		return false
	}
	now := time.Now()
	r.Status = RunStatusError
	r.Error = errMsg
	r.CompletedAt = &now
	return true
}

// SetProgress обновляет progress: значение зажимается в [0, 1]
// и никогда не убывает.
func (r *Run) SetProgress(p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	if p > r.Progress {
		r.Progress = p
	}
}
