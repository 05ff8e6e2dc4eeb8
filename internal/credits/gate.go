package credits

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
)

// DebitStore — хранилище, умеющее условно списывать кредиты.
// Реализуется repo.OrganizationRepo.
type DebitStore interface {
	// DebitIfSufficient атомарно списывает cost кредитов, если
	// организация на безлимитном плане или credits > cost.
	// Возвращает (false, nil), если условие не выполнено.
	DebitIfSufficient(ctx context.Context, orgID uuid.UUID, cost int) (bool, error)

	// GetOrganization возвращает организацию по ID.
	GetOrganization(ctx context.Context, orgID uuid.UUID) (*domain.Organization, error)
}

// Admit проверяет допуск run без побочных эффектов.
//
// Правило: безлимитный план допускается всегда; иначе допуск только
// при credits > cost (строго больше — организация с ровно достаточным
// балансом получает отказ).
func Admit(org *domain.Organization, cost int) error {
	if org.Plan.IsUnlimited() {
		return nil
	}
	if org.Credits > cost {
		return nil
	}
	return &InsufficientCreditsError{Credits: org.Credits, Cost: cost}
}

// Gate — шлюз допуска с резервированием кредитов.
type Gate struct {
	store DebitStore
	log   *slog.Logger
}

// NewGate создаёт шлюз допуска.
func NewGate(store DebitStore, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{store: store, log: log}
}

// Reserve атомарно списывает cost кредитов организации.
//
// Списание — один условный UPDATE: при конкурентных запросах только
// часть из них пройдёт, баланс не может стать отрицательным. С
// безлимитного плана кредиты не списываются.
func (g *Gate) Reserve(ctx context.Context, orgID uuid.UUID, cost int) error {
	ok, err := g.store.DebitIfSufficient(ctx, orgID, cost)
	if err != nil {
		return fmt.Errorf("debit credits: %w", err)
	}
	if ok {
		g.log.Debug("credits reserved",
			slog.String("org_id", orgID.String()),
			slog.Int("cost", cost))
		return nil
	}

	// Условие не прошло — перечитываем баланс для понятного отказа
	org, err := g.store.GetOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("load organization after rejected debit: %w", err)
	}

	g.log.Info("run admission rejected",
		slog.String("org_id", orgID.String()),
		slog.Int("credits", org.Credits),
		slog.Int("cost", cost))

	return &InsufficientCreditsError{Credits: org.Credits, Cost: cost}
}
