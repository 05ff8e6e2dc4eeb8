package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/tools"
)

// --- Fakes ---

type fakeStores struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]*domain.Run
	pipeline *domain.Pipeline
	tools    map[uuid.UUID]*domain.Tool
	stepRuns map[uuid.UUID]*domain.StepRun
	progress []float64
	notified []string
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		runs:     make(map[uuid.UUID]*domain.Run),
		tools:    make(map[uuid.UUID]*domain.Tool),
		stepRuns: make(map[uuid.UUID]*domain.StepRun),
	}
}

func (f *fakeStores) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := *f.runs[id]
	return &r, nil
}

func (f *fakeStores) ListQueued(_ context.Context, _ int) ([]domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Run
	for _, r := range f.runs {
		if r.Status == domain.RunStatusQueued {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStores) Claim(_ context.Context, id uuid.UUID, startedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.runs[id]
	if r.Status != domain.RunStatusQueued {
		return false, nil
	}
	r.Status = domain.RunStatusProcessing
	r.StartedAt = &startedAt
	return true, nil
}

func (f *fakeStores) UpdateProgress(_ context.Context, id uuid.UUID, progress float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.runs[id]
	if r.Status == domain.RunStatusProcessing && progress > r.Progress {
		r.Progress = min(progress, 1)
	}
	f.progress = append(f.progress, progress)
	return nil
}

func (f *fakeStores) Finish(_ context.Context, run *domain.Run) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.runs[run.ID]
	if stored.Status != domain.RunStatusProcessing {
		return false, nil
	}
	*stored = *run
	return true, nil
}

func (f *fakeStores) pipelineByID(_ context.Context, _ uuid.UUID) (*domain.Pipeline, error) {
	return f.pipeline, nil
}

func (f *fakeStores) toolByID(_ context.Context, id uuid.UUID) (*domain.Tool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tools[id], nil
}

func (f *fakeStores) Create(_ context.Context, sr *domain.StepRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *sr
	f.stepRuns[sr.ID] = &cp
	return nil
}

func (f *fakeStores) Update(_ context.Context, sr *domain.StepRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *sr
	f.stepRuns[sr.ID] = &cp
	return nil
}

func (f *fakeStores) NotifyUpdate(_ context.Context, _ uuid.UUID, queryKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, queryKey)
	return nil
}

// pipelineStoreFunc/toolStoreFunc адаптируют методы под интерфейсы.
type pipelineStoreFunc func(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error)

func (fn pipelineStoreFunc) GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	return fn(ctx, id)
}

type toolStoreFunc func(ctx context.Context, id uuid.UUID) (*domain.Tool, error)

func (fn toolStoreFunc) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tool, error) {
	return fn(ctx, id)
}

// scriptedExecutor выполняет шаг через замыкание теста.
type scriptedExecutor struct {
	fn func(ctx context.Context, sr *domain.StepRun) (*tools.ExecutionResult, error)
}

func (e *scriptedExecutor) Execute(ctx context.Context, sr *domain.StepRun) (*tools.ExecutionResult, error) {
	return e.fn(ctx, sr)
}

const testBase = domain.ToolBase("TEST")

func newTestOrchestrator(stores *fakeStores, exec tools.Executor) *Orchestrator {
	registry := tools.NewRegistry(nil)
	registry.Register(testBase, exec)

	return New(Config{
		RunStore:      stores,
		PipelineStore: pipelineStoreFunc(stores.pipelineByID),
		ToolStore:     toolStoreFunc(stores.toolByID),
		StepRunStore:  stores,
		Registry:      registry,
		Notifier:      stores,
	})
}

// addTool регистрирует tool в fake store.
func (f *fakeStores) addTool() *domain.Tool {
	tool := &domain.Tool{ID: uuid.New(), Name: "test-tool", Base: testBase}
	f.tools[tool.ID] = tool
	return tool
}

// addRun регистрирует QUEUED run.
func (f *fakeStores) addRun(run *domain.Run) *domain.Run {
	run.ID = uuid.New()
	run.OrganizationID = uuid.New()
	run.Status = domain.RunStatusQueued
	run.CreatedAt = time.Now()
	f.runs[run.ID] = run
	return run
}

func stepWithID(n byte, toolID uuid.UUID, prereqs ...uuid.UUID) domain.PipelineStep {
	var id uuid.UUID
	id[15] = n
	return domain.PipelineStep{ID: id, ToolID: toolID, Prerequisites: prereqs}
}

// --- Tests ---

func TestProcessRun_ToolRun(t *testing.T) {
	stores := newFakeStores()
	tool := stores.addTool()
	toolID := tool.ID
	run := stores.addRun(&domain.Run{Kind: domain.RunKindTool, ToolID: &toolID})

	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			return &tools.ExecutionResult{Output: "result-ref"}, nil
		},
	})

	if err := o.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := stores.runs[run.ID]
	if stored.Status != domain.RunStatusComplete {
		t.Errorf("expected COMPLETE, got %s", stored.Status)
	}
	if stored.Progress != 1 {
		t.Errorf("expected progress 1, got %v", stored.Progress)
	}
	if stored.Output != "result-ref" {
		t.Errorf("unexpected output: %q", stored.Output)
	}
	if len(stores.stepRuns) != 1 {
		t.Errorf("expected 1 step run, got %d", len(stores.stepRuns))
	}
}

func TestProcessRun_PipelineLevels(t *testing.T) {
	stores := newFakeStores()
	tool := stores.addTool()

	// A → B, A → C, {B,C} → D
	a := stepWithID(1, tool.ID)
	b := stepWithID(2, tool.ID, a.ID)
	c := stepWithID(3, tool.ID, a.ID)
	d := stepWithID(4, tool.ID, b.ID, c.ID)

	pipelineID := uuid.New()
	stores.pipeline = &domain.Pipeline{
		ID:     pipelineID,
		Status: domain.PipelineStatusActive,
		Steps:  []domain.PipelineStep{a, b, c, d},
	}
	run := stores.addRun(&domain.Run{Kind: domain.RunKindPipeline, PipelineID: &pipelineID})

	var mu sync.Mutex
	var order []uuid.UUID
	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, sr *domain.StepRun) (*tools.ExecutionResult, error) {
			mu.Lock()
			order = append(order, *sr.StepID)
			mu.Unlock()
			return &tools.ExecutionResult{Output: "out-" + sr.StepID.String()}, nil
		},
	})

	if err := o.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := stores.runs[run.ID]
	if stored.Status != domain.RunStatusComplete {
		t.Fatalf("expected COMPLETE, got %s (error: %s)", stored.Status, stored.Error)
	}

	// Барьеры уровней: A раньше B и C, D последним
	if len(order) != 4 {
		t.Fatalf("expected 4 executed steps, got %d", len(order))
	}
	if order[0] != a.ID {
		t.Error("A must run first")
	}
	if order[3] != d.ID {
		t.Error("D must run last")
	}

	// Progress не убывает
	for i := 1; i < len(stores.progress); i++ {
		if stores.progress[i] < stores.progress[i-1] {
			t.Errorf("progress decreased: %v", stores.progress)
		}
	}

	// Output run — вывод терминального шага D
	if stored.Output != "out-"+d.ID.String() {
		t.Errorf("unexpected run output: %q", stored.Output)
	}
}

// waitProgressCount дожидается, пока fake store не увидит want записей
// progress.
func waitProgressCount(t *testing.T, stores *fakeStores, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		stores.mu.Lock()
		n := len(stores.progress)
		stores.mu.Unlock()
		if n >= want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d progress updates, got %d", want, n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestProcessRun_ProgressPerStep(t *testing.T) {
	stores := newFakeStores()
	tool := stores.addTool()

	// Три независимых шага одного уровня
	a := stepWithID(1, tool.ID)
	b := stepWithID(2, tool.ID)
	c := stepWithID(3, tool.ID)

	pipelineID := uuid.New()
	stores.pipeline = &domain.Pipeline{
		ID:     pipelineID,
		Status: domain.PipelineStatusActive,
		Steps:  []domain.PipelineStep{a, b, c},
	}
	run := stores.addRun(&domain.Run{Kind: domain.RunKindPipeline, PipelineID: &pipelineID})

	// Шаги завершаются по одному, по сигналу теста
	release := make(chan struct{})
	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			<-release
			return &tools.ExecutionResult{Output: "ok"}, nil
		},
	})

	done := make(chan error, 1)
	go func() {
		done <- o.ProcessRun(context.Background(), run.ID)
	}()

	// Progress записывается после каждого шага, не после уровня
	for i := 1; i <= 3; i++ {
		release <- struct{}{}
		waitProgressCount(t, stores, i)
	}

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{1.0 / 3, 2.0 / 3, 1}
	if len(stores.progress) != len(want) {
		t.Fatalf("expected %d progress updates, got %v", len(want), stores.progress)
	}
	for i, p := range stores.progress {
		if p != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, p, want[i])
		}
	}
}

func TestProcessRun_FailFast(t *testing.T) {
	stores := newFakeStores()
	tool := stores.addTool()

	// A → B → C: B падает, C не должен запускаться
	a := stepWithID(1, tool.ID)
	b := stepWithID(2, tool.ID, a.ID)
	c := stepWithID(3, tool.ID, b.ID)

	pipelineID := uuid.New()
	stores.pipeline = &domain.Pipeline{
		ID:     pipelineID,
		Status: domain.PipelineStatusActive,
		Steps:  []domain.PipelineStep{a, b, c},
	}
	run := stores.addRun(&domain.Run{Kind: domain.RunKindPipeline, PipelineID: &pipelineID})

	var mu sync.Mutex
	executed := map[uuid.UUID]bool{}
	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, sr *domain.StepRun) (*tools.ExecutionResult, error) {
			mu.Lock()
			executed[*sr.StepID] = true
			mu.Unlock()
			if *sr.StepID == b.ID {
				return &tools.ExecutionResult{Error: "summarization model crashed"}, nil
			}
			return &tools.ExecutionResult{Output: "ok"}, nil
		},
	})

	if err := o.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := stores.runs[run.ID]
	if stored.Status != domain.RunStatusError {
		t.Fatalf("expected ERROR, got %s", stored.Status)
	}
	// Сообщение исходной ошибки сохранено дословно
	if stored.Error != "summarization model crashed" {
		t.Errorf("unexpected error message: %q", stored.Error)
	}
	if executed[c.ID] {
		t.Error("step C must not start after B failed")
	}
}

func TestProcessRun_AlreadyClaimed(t *testing.T) {
	stores := newFakeStores()
	tool := stores.addTool()
	toolID := tool.ID
	run := stores.addRun(&domain.Run{Kind: domain.RunKindTool, ToolID: &toolID})
	stores.runs[run.ID].Status = domain.RunStatusProcessing

	executed := false
	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			executed = true
			return &tools.ExecutionResult{}, nil
		},
	})

	err := o.ProcessRun(context.Background(), run.ID)
	if err != ErrRunNotClaimed {
		t.Fatalf("expected ErrRunNotClaimed, got: %v", err)
	}
	if executed {
		t.Error("claimed run must not be executed twice")
	}
}

func TestProcessRun_TerminalRunIsNoop(t *testing.T) {
	stores := newFakeStores()
	tool := stores.addTool()
	toolID := tool.ID
	run := stores.addRun(&domain.Run{Kind: domain.RunKindTool, ToolID: &toolID})
	stores.runs[run.ID].Status = domain.RunStatusComplete
	stores.runs[run.ID].Output = "done"

	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			t.Error("terminal run must not execute steps")
			return &tools.ExecutionResult{}, nil
		},
	})

	if err := o.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("expected no-op, got: %v", err)
	}
	if stores.runs[run.ID].Output != "done" {
		t.Error("terminal run outcome must not change")
	}
}

func TestProcessRun_EmptyPipeline(t *testing.T) {
	stores := newFakeStores()

	pipelineID := uuid.New()
	stores.pipeline = &domain.Pipeline{
		ID:     pipelineID,
		Status: domain.PipelineStatusActive,
	}
	run := stores.addRun(&domain.Run{Kind: domain.RunKindPipeline, PipelineID: &pipelineID})

	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			t.Error("empty pipeline must not execute steps")
			return &tools.ExecutionResult{}, nil
		},
	})

	if err := o.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := stores.runs[run.ID]
	if stored.Status != domain.RunStatusComplete {
		t.Errorf("empty pipeline run must complete, got %s", stored.Status)
	}
	if stored.Progress != 1 {
		t.Errorf("expected progress 1, got %v", stored.Progress)
	}
}

func TestProcessRun_DraftPipelineRejected(t *testing.T) {
	stores := newFakeStores()

	pipelineID := uuid.New()
	stores.pipeline = &domain.Pipeline{
		ID:     pipelineID,
		Status: domain.PipelineStatusDraft,
	}
	run := stores.addRun(&domain.Run{Kind: domain.RunKindPipeline, PipelineID: &pipelineID})

	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			return &tools.ExecutionResult{}, nil
		},
	})

	if err := o.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := stores.runs[run.ID]
	if stored.Status != domain.RunStatusError {
		t.Errorf("draft pipeline run must fail, got %s", stored.Status)
	}
	if !strings.Contains(stored.Error, "not active") {
		t.Errorf("unexpected error message: %q", stored.Error)
	}
}

func TestCancelRun_InterruptsExecution(t *testing.T) {
	stores := newFakeStores()
	tool := stores.addTool()
	toolID := tool.ID
	run := stores.addRun(&domain.Run{Kind: domain.RunKindTool, ToolID: &toolID})

	started := make(chan struct{})
	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(ctx context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})

	done := make(chan error, 1)
	go func() {
		done <- o.ProcessRun(context.Background(), run.ID)
	}()

	<-started
	if !o.CancelRun(run.ID) {
		t.Fatal("run must be active while its step is executing")
	}

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := stores.runs[run.ID]
	if stored.Status != domain.RunStatusError {
		t.Fatalf("expected ERROR, got %s", stored.Status)
	}
	if stored.Error != "run canceled" {
		t.Errorf("unexpected error message: %q", stored.Error)
	}
}

func TestCancelRun_InactiveRun(t *testing.T) {
	stores := newFakeStores()
	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			return &tools.ExecutionResult{}, nil
		},
	})

	if o.CancelRun(uuid.New()) {
		t.Error("cancel of unknown run must report false")
	}
}

func TestProcessRun_Notifies(t *testing.T) {
	stores := newFakeStores()
	tool := stores.addTool()
	toolID := tool.ID
	run := stores.addRun(&domain.Run{Kind: domain.RunKindTool, ToolID: &toolID})

	o := newTestOrchestrator(stores, &scriptedExecutor{
		fn: func(_ context.Context, _ *domain.StepRun) (*tools.ExecutionResult, error) {
			return &tools.ExecutionResult{Output: "x"}, nil
		},
	})

	if err := o.ProcessRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Минимум два уведомления: захват и финализация
	if len(stores.notified) < 2 {
		t.Errorf("expected claim+finish notifications, got %v", stores.notified)
	}
	for _, key := range stores.notified {
		if key != "runs" {
			t.Errorf("unexpected query key: %q", key)
		}
	}
}
