package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/engine"
	"github.com/shaiso/Cascade/internal/notify"
	"github.com/shaiso/Cascade/internal/telemetry"
)

// ProcessRun выполняет run от захвата до терминального статуса.
//
// Шаги:
//  1. Захват run условным переходом QUEUED → PROCESSING
//  2. Построение плана выполнения (граф pipeline или один tool)
//  3. Выполнение шагов по уровням готовности
//  4. Финализация COMPLETE/ERROR
func (o *Orchestrator) ProcessRun(ctx context.Context, runID uuid.UUID) error {
	run, err := o.runs.GetByID(ctx, runID)
	if err != nil {
		return fmt.Errorf("get run: %w", err)
	}

	// Терминальный run перерабатывать нельзя — дубль сигнала
	if run.Status.IsTerminal() {
		o.logger.Warn("ignoring signal for finished run",
			"run_id", runID,
			"status", run.Status,
		)
		return nil
	}

	// 1. Захват: из конкурентных оркестраторов run достаётся одному
	claimed, err := o.runs.Claim(ctx, runID, time.Now())
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if !claimed {
		o.logger.Debug("run already claimed", "run_id", runID)
		return ErrRunNotClaimed
	}
	run.Status = domain.RunStatusProcessing

	state := NewRunState(run)
	if err := o.addActiveRun(state); err != nil {
		return err
	}
	defer o.removeActiveRun(runID)

	// Собственный контекст run: отмена прерывает шаги и поллинг
	// внешних jobs, не задевая соседние runs
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	state.bindCancel(cancelRun)

	o.logger.Info("run claimed",
		"run_id", runID,
		"org_id", run.OrganizationID,
		"kind", run.Kind,
	)
	telemetry.RunsStarted.Inc()
	o.notifyRuns(ctx, run.OrganizationID)

	// 2-3. План и выполнение
	execErr := o.execute(runCtx, state)

	// 4. Финализация
	return o.finish(runCtx, state, execErr)
}

// execute строит план выполнения и проходит его по уровням.
func (o *Orchestrator) execute(ctx context.Context, state *RunState) error {
	run := state.Run

	steps, err := o.resolveSteps(ctx, run)
	if err != nil {
		return err
	}

	graph, err := engine.Build(steps)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPipeline, err)
	}
	state.Graph = graph

	// Pipeline без шагов завершается немедленно
	if graph.Size() == 0 {
		return nil
	}

	for _, level := range graph.Levels {
		// Fail-fast: новые уровни не стартуют после ошибки
		if state.HasFailed() {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		o.runLevel(ctx, state, level)
	}

	return ctx.Err()
}

// resolveSteps возвращает план run: шаги pipeline или один
// синтетический шаг для TOOL_RUN.
func (o *Orchestrator) resolveSteps(ctx context.Context, run *domain.Run) ([]domain.PipelineStep, error) {
	switch run.Kind {
	case domain.RunKindPipeline:
		if run.PipelineID == nil {
			return nil, ErrMissingTarget
		}
		pipeline, err := o.pipelines.GetByID(ctx, *run.PipelineID)
		if err != nil {
			return nil, fmt.Errorf("get pipeline: %w", err)
		}
		if pipeline.Status != domain.PipelineStatusActive {
			return nil, fmt.Errorf("%w: %s", ErrPipelineNotActive, pipeline.Status)
		}
		return pipeline.Steps, nil

	case domain.RunKindTool:
		if run.ToolID == nil {
			return nil, ErrMissingTarget
		}
		return []domain.PipelineStep{{
			ID:     uuid.New(),
			ToolID: *run.ToolID,
			Name:   "tool",
		}}, nil

	default:
		return nil, fmt.Errorf("unknown run kind: %s", run.Kind)
	}
}

// runLevel выполняет один уровень готовности.
//
// Шаги уровня независимы и идут параллельно; выход из функции —
// барьер перед следующим уровнем.
func (o *Orchestrator) runLevel(ctx context.Context, state *RunState, level []*engine.Node) {
	var wg sync.WaitGroup

	for _, node := range level {
		wg.Add(1)
		go func(node *engine.Node) {
			defer wg.Done()
			o.runStep(ctx, state, node)
		}(node)
	}

	wg.Wait()
}

// runStep выполняет один шаг run.
func (o *Orchestrator) runStep(ctx context.Context, state *RunState, node *engine.Node) {
	run := state.Run
	step := node.Step

	tool, err := o.tools.GetByID(ctx, step.ToolID)
	if err != nil {
		state.MarkStepFailed(step.ID, fmt.Sprintf("load tool %s: %v", step.ToolID, err))
		return
	}

	sr := &domain.StepRun{
		ID:        uuid.New(),
		RunID:     run.ID,
		ToolID:    tool.ID,
		Base:      tool.Base,
		Status:    domain.StepRunStatusQueued,
		Input:     run.Input,
		CreatedAt: time.Now(),
	}
	if run.Kind == domain.RunKindPipeline {
		stepID := step.ID
		sr.StepID = &stepID
	}

	if err := o.stepRuns.Create(ctx, sr); err != nil {
		state.MarkStepFailed(step.ID, fmt.Sprintf("create step run: %v", err))
		return
	}

	executor, err := o.registry.Get(tool.Base)
	if err != nil {
		o.failStepRun(ctx, sr, err.Error())
		state.MarkStepFailed(step.ID, err.Error())
		return
	}

	sr.MarkRunning()
	if err := o.stepRuns.Update(ctx, sr); err != nil {
		o.logger.Warn("failed to persist step run start", "step_run_id", sr.ID, "error", err)
	}

	o.logger.Debug("step started",
		"run_id", run.ID,
		"step_id", step.ID,
		"tool", tool.Name,
		"base", tool.Base,
	)

	result, err := executor.Execute(ctx, sr)
	if err != nil {
		telemetry.StepsExecuted.WithLabelValues(string(tool.Base), "failed").Inc()
		o.failStepRun(ctx, sr, err.Error())
		state.MarkStepFailed(step.ID, err.Error())
		return
	}
	if result.JobID != "" {
		sr.JobID = result.JobID
	}
	if result.Error != "" {
		telemetry.StepsExecuted.WithLabelValues(string(tool.Base), "failed").Inc()
		o.failStepRun(ctx, sr, result.Error)
		state.MarkStepFailed(step.ID, result.Error)
		return
	}

	telemetry.StepsExecuted.WithLabelValues(string(tool.Base), "succeeded").Inc()
	sr.MarkSucceeded(result.Output)
	if err := o.stepRuns.Update(ctx, sr); err != nil {
		o.logger.Warn("failed to persist step run result", "step_run_id", sr.ID, "error", err)
	}

	state.MarkStepCompleted(step.ID, result.Output)
	o.reportProgress(ctx, state)
}

// failStepRun фиксирует ошибку шага в хранилище.
func (o *Orchestrator) failStepRun(ctx context.Context, sr *domain.StepRun, msg string) {
	sr.MarkFailed(msg)
	if err := o.stepRuns.Update(context.WithoutCancel(ctx), sr); err != nil {
		o.logger.Warn("failed to persist step run failure", "step_run_id", sr.ID, "error", err)
	}
}

// reportProgress записывает progress после каждого завершённого шага.
// Конкурентные записи шагов одного уровня безопасны: хранилище берёт
// GREATEST от текущего и нового значения.
func (o *Orchestrator) reportProgress(ctx context.Context, state *RunState) {
	progress := state.Progress()
	if err := o.runs.UpdateProgress(ctx, state.RunID(), progress); err != nil {
		o.logger.Warn("failed to update progress",
			"run_id", state.RunID(),
			"error", err,
		)
		return
	}
	state.SetRunProgress(progress)
}

// finish финализирует run терминальным статусом.
func (o *Orchestrator) finish(ctx context.Context, state *RunState, execErr error) error {
	run := state.Run

	// Запись исхода должна пройти и при отменённом ctx
	persistCtx := context.WithoutCancel(ctx)

	switch {
	case state.Canceled():
		run.MarkError("run canceled")
	case execErr != nil && errors.Is(execErr, context.Canceled):
		run.MarkError("orchestrator shutting down")
	case execErr != nil:
		run.MarkError(execErr.Error())
	case state.HasFailed():
		// Сообщение исходной ошибки шага сохраняется дословно
		run.MarkError(state.FirstFailure())
	default:
		run.MarkComplete(state.Output())
	}

	finished, err := o.runs.Finish(persistCtx, run)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if !finished {
		// Кто-то уже финализировал run — исход не перезаписывается
		o.logger.Warn("run already finished, outcome not overwritten",
			"run_id", run.ID,
			"attempted_status", run.Status,
		)
		return nil
	}

	o.logger.Info("run finished",
		"run_id", run.ID,
		"status", run.Status,
		"steps_completed", state.CompletedCount(),
		"duration", run.Duration(),
	)
	telemetry.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	telemetry.RunDuration.Observe(run.Duration().Seconds())

	o.notifyRuns(persistCtx, run.OrganizationID)
	return nil
}

// notifyRuns отправляет организации уведомление об изменении runs.
// Доставка best-effort: ошибка логируется и не влияет на run.
func (o *Orchestrator) notifyRuns(ctx context.Context, orgID uuid.UUID) {
	if err := o.notifier.NotifyUpdate(ctx, orgID, notify.QueryKeyRuns); err != nil {
		o.logger.Warn("failed to notify organization",
			"org_id", orgID,
			"error", err,
		)
	}
}
