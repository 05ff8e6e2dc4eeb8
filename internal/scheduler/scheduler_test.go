package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/repo"
)

type fakeScheduleStore struct {
	due     []domain.Schedule
	updated []domain.Schedule
}

func (f *fakeScheduleStore) ListDue(_ context.Context, _ time.Time, _ int) ([]domain.Schedule, error) {
	return f.due, nil
}

func (f *fakeScheduleStore) Update(_ context.Context, sched *domain.Schedule) error {
	f.updated = append(f.updated, *sched)
	return nil
}

type fakeRunStore struct {
	created  []domain.Run
	existing map[string]*domain.Run
}

func (f *fakeRunStore) Create(_ context.Context, run *domain.Run) error {
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeRunStore) GetByIdempotencyKey(_ context.Context, _ uuid.UUID, key string) (*domain.Run, error) {
	if run, ok := f.existing[key]; ok {
		return run, nil
	}
	return nil, repo.ErrNotFound
}

type fakePipelineStore struct {
	pipelines map[uuid.UUID]*domain.Pipeline
}

func (f *fakePipelineStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Pipeline, error) {
	if p, ok := f.pipelines[id]; ok {
		return p, nil
	}
	return nil, repo.ErrNotFound
}

type fakePublisher struct {
	published []uuid.UUID
}

func (f *fakePublisher) PublishRunRequested(_ context.Context, runID, _ uuid.UUID) error {
	f.published = append(f.published, runID)
	return nil
}

func dueSchedule(pipelineID uuid.UUID) domain.Schedule {
	due := time.Now().Add(-time.Minute)
	return domain.Schedule{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		PipelineID:     pipelineID,
		Name:           "nightly",
		IntervalSec:    3600,
		Timezone:       "UTC",
		Enabled:        true,
		NextDueAt:      &due,
		Inputs:         map[string]any{"document": "ref://doc"},
	}
}

func activePipeline() *domain.Pipeline {
	return &domain.Pipeline{ID: uuid.New(), Status: domain.PipelineStatusActive}
}

func TestTick_CreatesRun(t *testing.T) {
	pipeline := activePipeline()
	sched := dueSchedule(pipeline.ID)
	prevDue := *sched.NextDueAt

	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{}
	pipelines := &fakePipelineStore{pipelines: map[uuid.UUID]*domain.Pipeline{pipeline.ID: pipeline}}
	pub := &fakePublisher{}

	s := New(Config{Schedules: schedules, Runs: runs, Pipelines: pipelines, Publisher: pub})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.created) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs.created))
	}
	run := runs.created[0]
	if run.Kind != domain.RunKindPipeline {
		t.Errorf("expected PIPELINE_RUN, got %s", run.Kind)
	}
	if run.Status != domain.RunStatusQueued {
		t.Errorf("expected QUEUED, got %s", run.Status)
	}
	if run.PipelineID == nil || *run.PipelineID != pipeline.ID {
		t.Error("run must reference the schedule's pipeline")
	}
	if run.OrganizationID != sched.OrganizationID {
		t.Error("run must belong to the schedule's organization")
	}
	if run.Input["document"] != "ref://doc" {
		t.Error("schedule inputs must be copied to the run")
	}

	// Idempotency key привязан к schedule и времени
	expectedKey := fmt.Sprintf("%s_%d", sched.ID, prevDue.Unix())
	if run.IdempotencyKey != expectedKey {
		t.Errorf("unexpected idempotency key: %q (want %q)", run.IdempotencyKey, expectedKey)
	}

	// next_due_at сдвинут вперёд
	if len(schedules.updated) != 1 {
		t.Fatalf("expected schedule update, got %d", len(schedules.updated))
	}
	updated := schedules.updated[0]
	if updated.NextDueAt == nil || !updated.NextDueAt.After(prevDue) {
		t.Error("next_due_at must advance")
	}
	if updated.LastRunID == nil || *updated.LastRunID != run.ID {
		t.Error("last_run_id must point to the created run")
	}

	if len(pub.published) != 1 || pub.published[0] != run.ID {
		t.Errorf("expected run.requested for %s, got %v", run.ID, pub.published)
	}
}

func TestTick_DuplicateRunNotCreated(t *testing.T) {
	pipeline := activePipeline()
	sched := dueSchedule(pipeline.ID)
	key := fmt.Sprintf("%s_%d", sched.ID, sched.NextDueAt.Unix())

	existing := &domain.Run{ID: uuid.New(), IdempotencyKey: key}
	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{existing: map[string]*domain.Run{key: existing}}
	pipelines := &fakePipelineStore{pipelines: map[uuid.UUID]*domain.Pipeline{pipeline.ID: pipeline}}
	pub := &fakePublisher{}

	s := New(Config{Schedules: schedules, Runs: runs, Pipelines: pipelines, Publisher: pub})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(runs.created) != 0 {
		t.Errorf("duplicate run created: %v", runs.created)
	}
	if len(pub.published) != 0 {
		t.Error("duplicate run must not be re-published")
	}
	// next_due_at всё равно сдвигается, иначе schedule застрянет
	if len(schedules.updated) != 1 {
		t.Error("schedule must still advance next_due_at")
	}
}

func TestTick_MissingPipelineSkipped(t *testing.T) {
	sched := dueSchedule(uuid.New())

	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{}
	pipelines := &fakePipelineStore{pipelines: map[uuid.UUID]*domain.Pipeline{}}

	s := New(Config{Schedules: schedules, Runs: runs, Pipelines: pipelines})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs.created) != 0 {
		t.Error("run must not be created for missing pipeline")
	}
}

func TestTick_DraftPipelineSkipped(t *testing.T) {
	pipeline := &domain.Pipeline{ID: uuid.New(), Status: domain.PipelineStatusDraft}
	sched := dueSchedule(pipeline.ID)

	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{}
	pipelines := &fakePipelineStore{pipelines: map[uuid.UUID]*domain.Pipeline{pipeline.ID: pipeline}}

	s := New(Config{Schedules: schedules, Runs: runs, Pipelines: pipelines})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs.created) != 0 {
		t.Error("run must not be created for draft pipeline")
	}
}

func TestTick_NoPublisher(t *testing.T) {
	pipeline := activePipeline()
	sched := dueSchedule(pipeline.ID)

	schedules := &fakeScheduleStore{due: []domain.Schedule{sched}}
	runs := &fakeRunStore{}
	pipelines := &fakePipelineStore{pipelines: map[uuid.UUID]*domain.Pipeline{pipeline.ID: pipeline}}

	s := New(Config{Schedules: schedules, Runs: runs, Pipelines: pipelines})

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs.created) != 1 {
		t.Error("run must be created even without a publisher")
	}
}

