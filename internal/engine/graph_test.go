package engine

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
)

// stepIDs — детерминированные ID для тестов: id(n) возрастают по n.
func stepID(n byte) uuid.UUID {
	var id uuid.UUID
	id[15] = n
	return id
}

func mkStep(n byte, prereqs ...byte) domain.PipelineStep {
	s := domain.PipelineStep{ID: stepID(n)}
	for _, p := range prereqs {
		s.Prerequisites = append(s.Prerequisites, stepID(p))
	}
	return s
}

func TestBuild_SimpleChain(t *testing.T) {
	// A → B → C
	steps := []domain.PipelineStep{
		mkStep(1),
		mkStep(2, 1),
		mkStep(3, 2),
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if g.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.Size())
	}

	// Цепочка даёт три уровня по одному шагу
	if len(g.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(g.Levels))
	}
	for i, want := range []byte{1, 2, 3} {
		if g.Levels[i][0].ID != stepID(want) {
			t.Errorf("level %d: expected step %d, got %s", i, want, g.Levels[i][0].ID)
		}
	}

	// Dependents выведены из prerequisites
	nodeA := g.Node(stepID(1))
	if len(nodeA.Dependents) != 1 || nodeA.Dependents[0].ID != stepID(2) {
		t.Error("node A should have B as dependent")
	}
}

func TestBuild_Diamond(t *testing.T) {
	// A → B → D
	// A → C → D
	steps := []domain.PipelineStep{
		mkStep(1),
		mkStep(2, 1),
		mkStep(3, 1),
		mkStep(4, 2, 3),
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g.Levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(g.Levels))
	}
	if len(g.Levels[1]) != 2 {
		t.Errorf("expected 2 steps on level 1, got %d", len(g.Levels[1]))
	}

	nodeD := g.Node(stepID(4))
	if nodeD.InDegree != 2 {
		t.Errorf("D should have inDegree 2, got %d", nodeD.InDegree)
	}
	if len(nodeD.Prerequisites) != 2 {
		t.Errorf("D should have 2 prerequisites, got %d", len(nodeD.Prerequisites))
	}
}

func TestBuild_DeterministicOrder(t *testing.T) {
	// Независимые шаги на одном уровне упорядочены по ID,
	// как бы ни были перечислены на входе
	steps := []domain.PipelineStep{
		mkStep(3),
		mkStep(1),
		mkStep(2),
	}

	for i := 0; i < 10; i++ {
		g, err := Build(steps)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for j, want := range []byte{1, 2, 3} {
			if g.Order[j].ID != stepID(want) {
				t.Fatalf("order[%d]: expected step %d, got %s", j, want, g.Order[j].ID)
			}
		}
	}
}

func TestBuild_EmptyPipeline(t *testing.T) {
	g, err := Build(nil)
	if err != nil {
		t.Fatalf("empty pipeline should be valid, got: %v", err)
	}
	if g.Size() != 0 {
		t.Errorf("expected empty graph, got %d nodes", g.Size())
	}
	if len(g.Levels) != 0 {
		t.Errorf("expected no levels, got %d", len(g.Levels))
	}
}

func TestBuild_Cycle(t *testing.T) {
	// A → B → C → A
	steps := []domain.PipelineStep{
		mkStep(1, 3),
		mkStep(2, 1),
		mkStep(3, 2),
	}

	_, err := Build(steps)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got: %v", err)
	}

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	// Ошибка называет конкретный шаг цикла
	if cycleErr.StepID != stepID(1) {
		t.Errorf("expected smallest cycle step named, got %s", cycleErr.StepID)
	}
}

func TestBuild_SelfDependency(t *testing.T) {
	steps := []domain.PipelineStep{
		mkStep(1, 1),
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrSelfPrerequisite) {
		t.Errorf("expected ErrSelfPrerequisite, got: %v", err)
	}
}

func TestBuild_UnknownPrerequisite(t *testing.T) {
	steps := []domain.PipelineStep{
		mkStep(1, 9),
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrMissingPrerequisite) {
		t.Errorf("expected ErrMissingPrerequisite, got: %v", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.StepID != stepID(1) {
		t.Errorf("expected step 1 named, got %s", verr.StepID)
	}
}

func TestBuild_DuplicateStepID(t *testing.T) {
	steps := []domain.PipelineStep{
		mkStep(1),
		mkStep(1),
	}

	_, err := Build(steps)
	if !errors.Is(err, ErrDuplicateStepID) {
		t.Errorf("expected ErrDuplicateStepID, got: %v", err)
	}
}

func TestBuild_DuplicateEdgeIgnored(t *testing.T) {
	// Повторное ребро не должно удваивать InDegree
	s := mkStep(2, 1, 1)
	steps := []domain.PipelineStep{mkStep(1), s}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Node(stepID(2)).InDegree != 1 {
		t.Errorf("duplicate edge should be ignored, inDegree = %d", g.Node(stepID(2)).InDegree)
	}
}

func TestReadySteps(t *testing.T) {
	// A → B, A → C, {B,C} → D
	steps := []domain.PipelineStep{
		mkStep(1),
		mkStep(2, 1),
		mkStep(3, 1),
		mkStep(4, 2, 3),
	}

	g, err := Build(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	completed := map[uuid.UUID]bool{}
	running := map[uuid.UUID]bool{}

	ready := g.ReadySteps(completed, running)
	if len(ready) != 1 || ready[0].ID != stepID(1) {
		t.Fatalf("expected only A ready, got %d nodes", len(ready))
	}

	completed[stepID(1)] = true
	ready = g.ReadySteps(completed, running)
	if len(ready) != 2 {
		t.Fatalf("expected B and C ready, got %d nodes", len(ready))
	}

	// D не готов, пока не завершены оба prerequisites
	completed[stepID(2)] = true
	running[stepID(3)] = true
	ready = g.ReadySteps(completed, running)
	if len(ready) != 0 {
		t.Fatalf("expected nothing ready while C is running, got %d nodes", len(ready))
	}

	delete(running, stepID(3))
	completed[stepID(3)] = true
	ready = g.ReadySteps(completed, running)
	if len(ready) != 1 || ready[0].ID != stepID(4) {
		t.Fatalf("expected only D ready, got %d nodes", len(ready))
	}

	completed[stepID(4)] = true
	if !g.IsComplete(completed) {
		t.Error("graph should be complete")
	}
}
