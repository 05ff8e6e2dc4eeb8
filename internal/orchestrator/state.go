package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/engine"
)

// RunState — состояние выполнения одного run в памяти.
//
// Создаётся после захвата run и удаляется при финализации.
type RunState struct {
	// Run — данные run из БД.
	Run *domain.Run

	// Graph — граф шагов pipeline (nil для TOOL_RUN).
	Graph *engine.Graph

	// completed — успешно завершённые шаги.
	completed map[uuid.UUID]bool

	// failed — упавшие шаги (stepID → сообщение ошибки).
	failed map[uuid.UUID]string

	// outputs — выводы завершённых шагов.
	outputs map[uuid.UUID]string

	// cancel прерывает контекст выполнения run.
	cancel   context.CancelFunc
	canceled bool

	mu sync.RWMutex
}

// NewRunState создаёт новый RunState.
func NewRunState(run *domain.Run) *RunState {
	return &RunState{
		Run:       run,
		completed: make(map[uuid.UUID]bool),
		failed:    make(map[uuid.UUID]string),
		outputs:   make(map[uuid.UUID]string),
	}
}

// RunID возвращает ID run.
func (s *RunState) RunID() uuid.UUID {
	return s.Run.ID
}

// bindCancel привязывает cancel-функцию контекста выполнения.
// Если отмена успела прийти раньше привязки, контекст прерывается
// немедленно.
func (s *RunState) bindCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	canceled := s.canceled
	s.mu.Unlock()

	if canceled {
		cancel()
	}
}

// Cancel прерывает выполнение run.
func (s *RunState) Cancel() {
	s.mu.Lock()
	s.canceled = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Canceled сообщает, была ли запрошена отмена run.
func (s *RunState) Canceled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canceled
}

// MarkStepCompleted помечает шаг успешно завершённым.
func (s *RunState) MarkStepCompleted(stepID uuid.UUID, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed[stepID] = true
	s.outputs[stepID] = output
}

// MarkStepFailed помечает шаг упавшим.
func (s *RunState) MarkStepFailed(stepID uuid.UUID, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed[stepID] = errMsg
}

// HasFailed проверяет, есть ли упавшие шаги.
func (s *RunState) HasFailed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.failed) > 0
}

// FirstFailure возвращает сообщение первой зафиксированной ошибки.
// При нескольких упавших шагах берётся шаг с наименьшим ID, чтобы
// текст ошибки run был детерминированным.
func (s *RunState) FirstFailure() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var firstID uuid.UUID
	var firstMsg string
	first := true
	for id, msg := range s.failed {
		if first || lessUUID(id, firstID) {
			firstID = id
			firstMsg = msg
			first = false
		}
	}
	return firstMsg
}

// SetRunProgress обновляет progress run в памяти. Шаги одного уровня
// пишут конкурентно; монотонность обеспечивает Run.SetProgress.
func (s *RunState) SetRunProgress(p float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Run.SetProgress(p)
}

// Progress возвращает долю завершённых шагов в [0, 1].
func (s *RunState) Progress() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Graph == nil || s.Graph.Size() == 0 {
		return 1
	}
	return float64(len(s.completed)) / float64(s.Graph.Size())
}

// Output возвращает вывод последнего по топологическому порядку
// успешно завершённого шага — результат run в целом.
func (s *RunState) Output() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Graph == nil {
		return ""
	}
	for i := len(s.Graph.Order) - 1; i >= 0; i-- {
		id := s.Graph.Order[i].ID
		if s.completed[id] {
			return s.outputs[id]
		}
	}
	return ""
}

// CompletedCount возвращает количество завершённых шагов.
func (s *RunState) CompletedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.completed)
}

// lessUUID сравнивает два UUID побайтно.
func lessUUID(a, b uuid.UUID) bool {
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
