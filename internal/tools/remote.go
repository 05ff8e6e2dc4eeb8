package tools

import (
	"context"
	"errors"

	"github.com/shaiso/Cascade/internal/dispatch"
	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// RemoteExecutor — executor, делегирующий выполнение внешнему
// GPU job-сервису.
//
// Запускает job на закреплённом за base воркере и дожидается
// терминального статуса. FAILED job — логическая ошибка шага,
// её сообщение сохраняется дословно.
type RemoteExecutor struct {
	runner   JobRunner
	workerID string
}

// NewRemoteExecutor создаёт executor для воркера workerID.
func NewRemoteExecutor(runner JobRunner, workerID string) *RemoteExecutor {
	return &RemoteExecutor{runner: runner, workerID: workerID}
}

// Execute запускает job и ждёт его завершения.
func (e *RemoteExecutor) Execute(ctx context.Context, sr *domain.StepRun) (*ExecutionResult, error) {
	jobID, err := e.runner.StartJob(ctx, e.workerID, sr.Input)
	if err != nil {
		return nil, err
	}
	telemetry.JobsDispatched.Inc()

	output, err := e.runner.MonitorJob(ctx, e.workerID, jobID)
	if err != nil {
		var failedErr *dispatch.JobFailedError
		if errors.As(err, &failedErr) {
			// Job дошёл до терминального FAILED — это исход шага,
			// а не инфраструктурный сбой
			return &ExecutionResult{JobID: jobID, Error: failedErr.Error()}, nil
		}
		return nil, err
	}

	return &ExecutionResult{JobID: jobID, Output: output}, nil
}
