package credits

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
)

func TestAdmit_Boundary(t *testing.T) {
	tests := []struct {
		name    string
		plan    domain.Plan
		credits int
		cost    int
		wantOK  bool
	}{
		{"exactly enough rejected", domain.PlanFree, 10, 10, false},
		{"one more than cost admitted", domain.PlanFree, 10, 9, true},
		{"below cost rejected", domain.PlanFree, 5, 10, false},
		{"unlimited with zero credits admitted", domain.PlanUnlimited, 0, 100, true},
		{"pro plan follows credit rule", domain.PlanPro, 100, 99, true},
		{"zero cost needs at least one credit", domain.PlanFree, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := &domain.Organization{Plan: tt.plan, Credits: tt.credits}
			err := Admit(org, tt.cost)
			if tt.wantOK && err != nil {
				t.Errorf("expected admission, got: %v", err)
			}
			if !tt.wantOK && err == nil {
				t.Error("expected rejection")
			}
		})
	}
}

func TestAdmit_ShortfallMessage(t *testing.T) {
	org := &domain.Organization{Plan: domain.PlanFree, Credits: 3}
	err := Admit(org, 10)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("expected ErrInsufficientCredits, got: %v", err)
	}
	// Нехватка 7 кредитов должна быть в сообщении
	if !strings.Contains(err.Error(), "short 7") {
		t.Errorf("expected shortfall in message, got: %q", err.Error())
	}
}

func TestAdmit_EqualCreditsNoShortfall(t *testing.T) {
	org := &domain.Organization{Plan: domain.PlanFree, Credits: 10}
	err := Admit(org, 10)
	if err == nil {
		t.Fatal("expected rejection")
	}
	if strings.Contains(err.Error(), "short") {
		t.Errorf("no shortfall expected for equal balance, got: %q", err.Error())
	}
}

type fakeDebitStore struct {
	org     *domain.Organization
	debitOK bool
	err     error
	debits  []int
}

func (f *fakeDebitStore) DebitIfSufficient(_ context.Context, _ uuid.UUID, cost int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.debits = append(f.debits, cost)
	return f.debitOK, nil
}

func (f *fakeDebitStore) GetOrganization(_ context.Context, _ uuid.UUID) (*domain.Organization, error) {
	return f.org, nil
}

func TestGate_Reserve(t *testing.T) {
	store := &fakeDebitStore{debitOK: true}
	gate := NewGate(store, nil)

	if err := gate.Reserve(context.Background(), uuid.New(), 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.debits) != 1 || store.debits[0] != 5 {
		t.Errorf("expected one debit of 5, got %v", store.debits)
	}
}

func TestGate_Reserve_Rejected(t *testing.T) {
	store := &fakeDebitStore{
		debitOK: false,
		org:     &domain.Organization{Plan: domain.PlanFree, Credits: 2},
	}
	gate := NewGate(store, nil)

	err := gate.Reserve(context.Background(), uuid.New(), 5)
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got: %v", err)
	}

	var insufErr *InsufficientCreditsError
	if !errors.As(err, &insufErr) {
		t.Fatalf("expected *InsufficientCreditsError, got %T", err)
	}
	if insufErr.Credits != 2 || insufErr.Cost != 5 {
		t.Errorf("unexpected balance context: %+v", insufErr)
	}
}

func TestGate_Reserve_StoreError(t *testing.T) {
	storeErr := errors.New("connection refused")
	store := &fakeDebitStore{err: storeErr}
	gate := NewGate(store, nil)

	err := gate.Reserve(context.Background(), uuid.New(), 5)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got: %v", err)
	}
}
