package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrRunAlreadyActive — run уже обрабатывается этим оркестратором.
	ErrRunAlreadyActive = errors.New("run is already active")

	// ErrRunNotClaimed — run не удалось захватить (не в QUEUED).
	ErrRunNotClaimed = errors.New("run is not claimable")

	// ErrInvalidPipeline — граф pipeline не прошёл валидацию.
	ErrInvalidPipeline = errors.New("invalid pipeline graph")

	// ErrPipelineNotActive — run ссылается на pipeline не в ACTIVE.
	ErrPipelineNotActive = errors.New("pipeline is not active")

	// ErrMissingTarget — run не ссылается ни на tool, ни на pipeline.
	ErrMissingTarget = errors.New("run has no tool or pipeline reference")
)
