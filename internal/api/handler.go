package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/credits"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/notify"
	"github.com/shaiso/Cascade/internal/provision"
	"github.com/shaiso/Cascade/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orgRepo      *repo.OrganizationRepo
	toolRepo     *repo.ToolRepo
	pipelineRepo *repo.PipelineRepo
	runRepo      *repo.RunRepo
	stepRunRepo  *repo.StepRunRepo
	scheduleRepo *repo.ScheduleRepo
	gate         *credits.Gate
	provisioner  *provision.Provisioner
	publisher    *mq.Publisher
	notifier     notify.Notifier
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	OrgRepo      *repo.OrganizationRepo
	ToolRepo     *repo.ToolRepo
	PipelineRepo *repo.PipelineRepo
	RunRepo      *repo.RunRepo
	StepRunRepo  *repo.StepRunRepo
	ScheduleRepo *repo.ScheduleRepo
	Gate         *credits.Gate
	Provisioner  *provision.Provisioner
	Publisher    *mq.Publisher
	Notifier     notify.Notifier
	Logger       *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}

	return &Handler{
		orgRepo:      cfg.OrgRepo,
		toolRepo:     cfg.ToolRepo,
		pipelineRepo: cfg.PipelineRepo,
		runRepo:      cfg.RunRepo,
		stepRunRepo:  cfg.StepRunRepo,
		scheduleRepo: cfg.ScheduleRepo,
		gate:         cfg.Gate,
		provisioner:  cfg.Provisioner,
		publisher:    cfg.Publisher,
		notifier:     notifier,
		logger:       logger,
	}
}

// notify отправляет организации уведомление об изменении queryKey.
// Доставка best-effort: ошибка логируется и не влияет на ответ.
func (h *Handler) notify(ctx context.Context, orgID uuid.UUID, queryKey string) {
	if err := h.notifier.NotifyUpdate(ctx, orgID, queryKey); err != nil {
		h.logger.Warn("failed to notify organization",
			"org_id", orgID,
			"query_key", queryKey,
			"error", err,
		)
	}
}
