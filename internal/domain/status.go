package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	QUEUED → PROCESSING → COMPLETE
//	                    ↘ ERROR
//
// Переходы из терминальных статусов запрещены: повторный сигнал
// завершения (например, дважды отрезолвленный poll внешнего job-сервиса)
// игнорируется с warning в логе.
type RunStatus string

const (
	// RunStatusQueued — run создан, но ещё не взят оркестратором.
	RunStatusQueued RunStatus = "QUEUED"

	// RunStatusProcessing — run в процессе выполнения.
	RunStatusProcessing RunStatus = "PROCESSING"

	// RunStatusComplete — run успешно завершён, progress = 1.
	RunStatusComplete RunStatus = "COMPLETE"

	// RunStatusError — run завершился с ошибкой.
	RunStatusError RunStatus = "ERROR"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusComplete, RunStatusError:
		return true
	default:
		return false
	}
}

// StepRunStatus — статус выполнения одного шага внутри run.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ FAILED
type StepRunStatus string

const (
	// StepRunStatusQueued — шаг ожидает выполнения.
	StepRunStatusQueued StepRunStatus = "QUEUED"

	// StepRunStatusRunning — шаг выполняется (локально или во внешнем job-сервисе).
	StepRunStatusRunning StepRunStatus = "RUNNING"

	// StepRunStatusSucceeded — шаг успешно завершён.
	StepRunStatusSucceeded StepRunStatus = "SUCCEEDED"

	// StepRunStatusFailed — шаг завершился с ошибкой.
	StepRunStatusFailed StepRunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepRunStatus) IsTerminal() bool {
	switch s {
	case StepRunStatusSucceeded, StepRunStatusFailed:
		return true
	default:
		return false
	}
}

// PipelineStatus — статус pipeline.
//
// DRAFT pipeline можно свободно редактировать; ACTIVE pipeline считается
// опубликованным, и его шаги/tools по соглашению неизменяемы.
type PipelineStatus string

const (
	// PipelineStatusDraft — черновик, можно редактировать.
	PipelineStatusDraft PipelineStatus = "DRAFT"

	// PipelineStatusActive — опубликован, доступен для запуска.
	PipelineStatusActive PipelineStatus = "ACTIVE"
)

// RunKind — вид run: запуск одного tool или целого pipeline.
type RunKind string

const (
	// RunKindTool — прямой запуск одного tool (вырожденный случай: один уровень, один шаг).
	RunKindTool RunKind = "TOOL_RUN"

	// RunKindPipeline — запуск всего pipeline по уровням DAG.
	RunKindPipeline RunKind = "PIPELINE_RUN"
)
