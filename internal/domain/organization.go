package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan — тарифный план организации.
type Plan string

const (
	// PlanFree — бесплатный план с ограниченным балансом кредитов.
	PlanFree Plan = "FREE"

	// PlanPro — платный план, кредиты пополняются по подписке.
	PlanPro Plan = "PRO"

	// PlanUnlimited — безлимитный план: admission gate пропускает всегда,
	// кредиты не списываются.
	PlanUnlimited Plan = "UNLIMITED"
)

// IsUnlimited возвращает true для безлимитного плана.
func (p Plan) IsUnlimited() bool {
	return p == PlanUnlimited
}

// Organization — арендатор (tenant) платформы.
//
// Все остальные сущности (Tool, Pipeline, Run, Schedule) принадлежат
// ровно одной организации. Баланс кредитов мутируется admission gate
// (атомарное списание) и внешним биллингом (вне scope).
type Organization struct {
	// ID — уникальный идентификатор организации.
	ID uuid.UUID `json:"id"`

	// Name — имя организации.
	Name string `json:"name"`

	// Plan — тарифный план.
	Plan Plan `json:"plan"`

	// Credits — баланс кредитов. Инвариант: >= 0, кроме безлимитного
	// плана, где значение не используется.
	Credits int `json:"credits"`

	// ProvisionedAt — время провижининга базового каталога tools.
	// Nil, если каталог ещё не создан. Защищает от повторного провижининга.
	ProvisionedAt *time.Time `json:"provisioned_at,omitempty"`

	// CreatedAt — время создания организации.
	CreatedAt time.Time `json:"created_at"`
}

// IsProvisioned возвращает true, если базовый каталог уже создан.
func (o *Organization) IsProvisioned() bool {
	return o.ProvisionedAt != nil
}
