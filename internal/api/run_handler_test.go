package api

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/engine"
)

func TestRunnablePipeline(t *testing.T) {
	toolID := uuid.New()

	var idA, idB uuid.UUID
	idA[15] = 1
	idB[15] = 2

	valid := []domain.PipelineStep{
		{ID: idA, ToolID: toolID},
		{ID: idB, ToolID: toolID, Prerequisites: []uuid.UUID{idA}},
	}
	cyclic := []domain.PipelineStep{
		{ID: idA, ToolID: toolID, Prerequisites: []uuid.UUID{idB}},
		{ID: idB, ToolID: toolID, Prerequisites: []uuid.UUID{idA}},
	}

	t.Run("active valid graph", func(t *testing.T) {
		p := &domain.Pipeline{Status: domain.PipelineStatusActive, Steps: valid}
		if err := runnablePipeline(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("draft rejected", func(t *testing.T) {
		p := &domain.Pipeline{Status: domain.PipelineStatusDraft, Steps: valid}
		if err := runnablePipeline(p); !errors.Is(err, errPipelineNotActive) {
			t.Fatalf("expected errPipelineNotActive, got: %v", err)
		}
	})

	t.Run("cycle rejected", func(t *testing.T) {
		// Испорченный после активации граф должен падать синхронно
		p := &domain.Pipeline{Status: domain.PipelineStatusActive, Steps: cyclic}
		err := runnablePipeline(p)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if errors.Is(err, errPipelineNotActive) {
			t.Fatal("cycle must not be reported as inactive pipeline")
		}
		var cycleErr *engine.CycleError
		if !errors.As(err, &cycleErr) {
			t.Errorf("expected *engine.CycleError, got: %v", err)
		}
		if !strings.Contains(err.Error(), "cyclic dependency") {
			t.Errorf("unexpected error message: %q", err)
		}
	})

	t.Run("empty pipeline runnable", func(t *testing.T) {
		p := &domain.Pipeline{Status: domain.PipelineStatusActive}
		if err := runnablePipeline(p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
