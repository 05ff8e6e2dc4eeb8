package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRunLifecycle(t *testing.T) {
	run := &Run{
		ID:     uuid.New(),
		Kind:   RunKindTool,
		Status: RunStatusQueued,
	}

	if !run.MarkProcessing() {
		t.Fatal("QUEUED -> PROCESSING should be allowed")
	}
	if run.StartedAt == nil {
		t.Error("MarkProcessing should set StartedAt")
	}
	if run.MarkProcessing() {
		t.Error("PROCESSING -> PROCESSING should be rejected")
	}

	if !run.MarkComplete("result-ref") {
		t.Fatal("PROCESSING -> COMPLETE should be allowed")
	}
	if run.Progress != 1 {
		t.Errorf("MarkComplete should set progress to 1, got %f", run.Progress)
	}
	if run.Output != "result-ref" {
		t.Errorf("output = %q", run.Output)
	}
	if !run.IsFinished() {
		t.Error("COMPLETE run should be finished")
	}
}

func TestRunTerminalIsImmutable(t *testing.T) {
	run := &Run{Status: RunStatusQueued}
	run.MarkProcessing()
	run.MarkError("model crashed")

	if run.MarkComplete("late result") {
		t.Error("ERROR -> COMPLETE should be rejected")
	}
	if run.Status != RunStatusError {
		t.Errorf("status changed to %s", run.Status)
	}
	if run.Output != "" {
		t.Errorf("output should stay empty, got %q", run.Output)
	}

	if run.MarkError("another error") {
		t.Error("ERROR -> ERROR should be rejected")
	}
	if run.Error != "model crashed" {
		t.Errorf("error message overwritten: %q", run.Error)
	}
}

func TestRunProgressMonotonic(t *testing.T) {
	run := &Run{Status: RunStatusProcessing}

	run.SetProgress(0.5)
	run.SetProgress(0.25)
	if run.Progress != 0.5 {
		t.Errorf("progress should not decrease, got %f", run.Progress)
	}

	run.SetProgress(2.0)
	if run.Progress != 1 {
		t.Errorf("progress should be clamped to 1, got %f", run.Progress)
	}

	run.SetProgress(-1)
	if run.Progress != 1 {
		t.Errorf("negative progress should be ignored, got %f", run.Progress)
	}
}

func TestRunDuration(t *testing.T) {
	run := &Run{Status: RunStatusQueued}
	if run.Duration() != 0 {
		t.Error("unfinished run should have zero duration")
	}

	started := time.Now().Add(-3 * time.Second)
	completed := time.Now()
	run.StartedAt = &started
	run.CompletedAt = &completed

	if d := run.Duration(); d < 2*time.Second || d > 4*time.Second {
		t.Errorf("duration = %s", d)
	}
}

func TestScheduleIsDue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name  string
		sched Schedule
		want  bool
	}{
		{"due", Schedule{Enabled: true, NextDueAt: &past}, true},
		{"exactly now", Schedule{Enabled: true, NextDueAt: &now}, true},
		{"not yet", Schedule{Enabled: true, NextDueAt: &future}, false},
		{"disabled", Schedule{Enabled: false, NextDueAt: &past}, false},
		{"never computed", Schedule{Enabled: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sched.IsDue(now); got != tt.want {
				t.Errorf("IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScheduleRecordRun(t *testing.T) {
	sched := Schedule{ID: uuid.New(), Enabled: true}
	runID := uuid.New()
	nextDue := time.Now().Add(time.Hour)

	sched.RecordRun(runID, nextDue)

	if sched.LastRunID == nil || *sched.LastRunID != runID {
		t.Error("RecordRun should set LastRunID")
	}
	if sched.LastRunAt == nil {
		t.Error("RecordRun should set LastRunAt")
	}
	if sched.NextDueAt == nil || !sched.NextDueAt.Equal(nextDue) {
		t.Error("RecordRun should advance NextDueAt")
	}
}
