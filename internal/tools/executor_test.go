package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shaiso/Cascade/internal/dispatch"
	"github.com/shaiso/Cascade/internal/domain"
)

type fakeRunner struct {
	jobID      string
	output     string
	startErr   error
	monitorErr error
	started    []string
}

func (f *fakeRunner) StartJob(_ context.Context, workerID string, _ map[string]any) (string, error) {
	f.started = append(f.started, workerID)
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.jobID, nil
}

func (f *fakeRunner) MonitorJob(_ context.Context, _ string, _ string) (string, error) {
	if f.monitorErr != nil {
		return "", f.monitorErr
	}
	return f.output, nil
}

func TestRegistry_AllBuiltinBasesRegistered(t *testing.T) {
	r := NewRegistry(&fakeRunner{})

	for _, base := range domain.BuiltinBases {
		if _, err := r.Get(base); err != nil {
			t.Errorf("base %s not registered: %v", base, err)
		}
	}
}

func TestRegistry_UnknownBase(t *testing.T) {
	r := NewRegistry(&fakeRunner{})

	_, err := r.Get(domain.ToolBase("TELEPORTATION"))
	if !errors.Is(err, ErrUnknownBase) {
		t.Errorf("expected ErrUnknownBase, got: %v", err)
	}
}

func TestRemoteExecutor_Success(t *testing.T) {
	runner := &fakeRunner{jobID: "job-1", output: "s3://out/1"}
	e := NewRemoteExecutor(runner, "summarization")

	result, err := e.Execute(context.Background(), &domain.StepRun{Input: map[string]any{"text": "long text"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output != "s3://out/1" || result.JobID != "job-1" {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(runner.started) != 1 || runner.started[0] != "summarization" {
		t.Errorf("job started on wrong worker: %v", runner.started)
	}
}

func TestRemoteExecutor_JobFailedIsStepOutcome(t *testing.T) {
	runner := &fakeRunner{
		jobID:      "job-2",
		monitorErr: &dispatch.JobFailedError{JobID: "job-2", Output: "OOM"},
	}
	e := NewRemoteExecutor(runner, "embedding")

	result, err := e.Execute(context.Background(), &domain.StepRun{})
	if err != nil {
		t.Fatalf("job failure must not be an infra error, got: %v", err)
	}
	if result.Error == "" || !strings.Contains(result.Error, "OOM") {
		t.Errorf("expected failure message preserved, got: %q", result.Error)
	}
}

func TestRemoteExecutor_InfraErrorPropagates(t *testing.T) {
	infraErr := errors.New("connection refused")
	runner := &fakeRunner{startErr: infraErr}
	e := NewRemoteExecutor(runner, "text-to-image")

	_, err := e.Execute(context.Background(), &domain.StepRun{})
	if !errors.Is(err, infraErr) {
		t.Fatalf("expected infra error propagated, got: %v", err)
	}
}

func TestTextExtraction(t *testing.T) {
	e := &TextExtractionExecutor{}

	result, err := e.Execute(context.Background(), &domain.StepRun{
		Input: map[string]any{"document": "  Hello,\n\n   world\t! \x00"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected step error: %q", result.Error)
	}
	if result.Output != "Hello, world !" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestTextExtraction_MissingDocument(t *testing.T) {
	e := &TextExtractionExecutor{}

	result, err := e.Execute(context.Background(), &domain.StepRun{Input: map[string]any{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Error == "" {
		t.Error("expected step error for missing document")
	}
}
