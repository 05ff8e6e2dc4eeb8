package engine

import (
	"errors"

	"github.com/google/uuid"
)

// Ошибки валидации графа pipeline.
var (
	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrMissingPrerequisite — шаг ссылается на несуществующий шаг.
	ErrMissingPrerequisite = errors.New("step references unknown prerequisite")

	// ErrSelfPrerequisite — шаг зависит от самого себя.
	ErrSelfPrerequisite = errors.New("step depends on itself")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepID  uuid.UUID // ID шага, где произошла ошибка
	Message string    // описание ошибки
	Err     error     // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != uuid.Nil {
		return "step " + e.StepID.String() + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepID uuid.UUID, message string, err error) *ValidationError {
	return &ValidationError{
		StepID:  stepID,
		Message: message,
		Err:     err,
	}
}

// CycleError — ошибка цикла, называющая хотя бы один вовлечённый шаг.
type CycleError struct {
	StepID uuid.UUID // шаг, участвующий в цикле
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	return "cyclic dependency detected involving step " + e.StepID.String()
}

// Unwrap возвращает базовую ошибку.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}
