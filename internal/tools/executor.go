// Package tools содержит исполнителей встроенных tool bases.
//
// Registry — dispatch-таблица base → Executor: выбор исполнителя
// идёт по таблице, добавление нового base — регистрация, без правок
// существующих веток.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Cascade/internal/domain"
)

// ErrUnknownBase — нет executor'а для данного tool base.
var ErrUnknownBase = errors.New("unknown tool base")

// Executor — интерфейс исполнителя одного tool base.
//
// sr.Input содержит входные данные шага (ссылки на контент и
// параметры). ctx несёт отмену run.
type Executor interface {
	Execute(ctx context.Context, sr *domain.StepRun) (*ExecutionResult, error)
}

// ExecutionResult — результат выполнения шага.
type ExecutionResult struct {
	// Output — ссылка на результат или сам результат.
	Output string

	// JobID — идентификатор job во внешнем сервисе (если был).
	JobID string

	// Error — сообщение о логической ошибке выполнения.
	// Инфраструктурные ошибки возвращаются через error в Execute().
	Error string
}

// JobRunner — клиент внешнего job-сервиса (dispatch.Client).
type JobRunner interface {
	StartJob(ctx context.Context, workerID string, input map[string]any) (string, error)
	MonitorJob(ctx context.Context, workerID, jobID string) (string, error)
}

// Registry — реестр executor'ов по tool base.
type Registry struct {
	executors map[domain.ToolBase]Executor
}

// NewRegistry создаёт реестр со встроенными исполнителями.
//
// TEXT_EXTRACTION выполняется локально; остальные bases уходят
// во внешний GPU job-сервис.
func NewRegistry(runner JobRunner) *Registry {
	r := &Registry{executors: make(map[domain.ToolBase]Executor)}
	r.Register(domain.BaseTextExtraction, &TextExtractionExecutor{})
	r.Register(domain.BaseTextToImage, NewRemoteExecutor(runner, "text-to-image"))
	r.Register(domain.BaseSummarization, NewRemoteExecutor(runner, "summarization"))
	r.Register(domain.BaseEmbedding, NewRemoteExecutor(runner, "embedding"))
	r.Register(domain.BaseTextToSpeech, NewRemoteExecutor(runner, "text-to-speech"))
	return r
}

// Register добавляет executor для tool base.
func (r *Registry) Register(base domain.ToolBase, executor Executor) {
	r.executors[base] = executor
}

// Get возвращает executor для tool base.
func (r *Registry) Get(base domain.ToolBase) (Executor, error) {
	executor, ok := r.executors[base]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBase, base)
	}
	return executor, nil
}
