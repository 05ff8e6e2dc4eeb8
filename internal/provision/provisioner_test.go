package provision

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
)

type fakeStores struct {
	org        *domain.Organization
	marked     int
	tools      [][]domain.Tool
	pipelines  []*domain.Pipeline
	markResult bool
}

func (f *fakeStores) GetByID(_ context.Context, _ uuid.UUID) (*domain.Organization, error) {
	return f.org, nil
}

func (f *fakeStores) MarkProvisioned(_ context.Context, _ uuid.UUID, at time.Time) (bool, error) {
	f.marked++
	if f.markResult {
		f.org.ProvisionedAt = &at
	}
	return f.markResult, nil
}

func (f *fakeStores) CreateBatch(_ context.Context, tools []domain.Tool) error {
	f.tools = append(f.tools, tools)
	return nil
}

func (f *fakeStores) Create(_ context.Context, p *domain.Pipeline) error {
	f.pipelines = append(f.pipelines, p)
	return nil
}

func newFakeOrg() *domain.Organization {
	return &domain.Organization{
		ID:      uuid.New(),
		Name:    "acme",
		Plan:    domain.PlanFree,
		Credits: 100,
	}
}

func TestProvision_CreatesCatalog(t *testing.T) {
	stores := &fakeStores{org: newFakeOrg(), markResult: true}
	p := New(stores, stores, stores, nil)

	created, err := p.Provision(context.Background(), stores.org.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected catalog to be created")
	}

	if len(stores.tools) != 1 {
		t.Fatalf("expected one batch insert, got %d", len(stores.tools))
	}
	tools := stores.tools[0]
	if len(tools) != len(domain.BuiltinBases) {
		t.Fatalf("expected %d tools, got %d", len(domain.BuiltinBases), len(tools))
	}
	for i, base := range domain.BuiltinBases {
		if tools[i].Base != base {
			t.Errorf("tool %d: expected base %s, got %s", i, base, tools[i].Base)
		}
		if tools[i].OrganizationID != stores.org.ID {
			t.Errorf("tool %d belongs to wrong organization", i)
		}
	}

	if len(stores.pipelines) != 1 {
		t.Fatalf("expected one pipeline, got %d", len(stores.pipelines))
	}
	pipeline := stores.pipelines[0]
	if pipeline.Status != domain.PipelineStatusActive {
		t.Errorf("default pipeline must be ACTIVE, got %s", pipeline.Status)
	}
	if len(pipeline.Steps) != 1 {
		t.Fatalf("expected single step, got %d", len(pipeline.Steps))
	}
	// Единственный шаг привязан к text-extraction
	if pipeline.Steps[0].ToolID != tools[0].ID {
		t.Error("default pipeline step must use the text-extraction tool")
	}
	if len(pipeline.Steps[0].Prerequisites) != 0 {
		t.Error("single step must have no prerequisites")
	}
}

func TestProvision_IdempotentWhenAlreadyProvisioned(t *testing.T) {
	org := newFakeOrg()
	at := time.Now()
	org.ProvisionedAt = &at

	stores := &fakeStores{org: org, markResult: true}
	p := New(stores, stores, stores, nil)

	created, err := p.Provision(context.Background(), org.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected no-op for provisioned organization")
	}
	if stores.marked != 0 || len(stores.tools) != 0 || len(stores.pipelines) != 0 {
		t.Error("no writes expected for provisioned organization")
	}
}

func TestProvision_LosingConcurrentClaimIsNoop(t *testing.T) {
	// CAS на provisioned_at проигран — другой вызов уже наполняет каталог
	stores := &fakeStores{org: newFakeOrg(), markResult: false}
	p := New(stores, stores, stores, nil)

	created, err := p.Provision(context.Background(), stores.org.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected no-op after losing the claim")
	}
	if len(stores.tools) != 0 || len(stores.pipelines) != 0 {
		t.Error("loser must not create catalog entries")
	}
}
