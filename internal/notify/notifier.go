// Package notify содержит push-уведомления клиентам об изменениях
// сущностей. Оркестратор и API зависят от интерфейса Notifier, а не
// от конкретного транспорта: в тестах подставляется fake, в бою —
// публикация в RabbitMQ.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/mq"
)

// Ключи клиентского кэша, которые инвалидируются уведомлениями.
const (
	QueryKeyRuns          = "runs"
	QueryKeyPipelines     = "pipelines"
	QueryKeyTools         = "tools"
	QueryKeyOrganizations = "organizations"
)

// EventUpdate — имя события для всех уведомлений об изменениях.
const EventUpdate = "update"

// Notifier отправляет уведомление организации orgID о том, что
// данные под queryKey изменились и их нужно перечитать.
//
// Доставка best-effort: ошибка уведомления не должна влиять на
// исход операции, которая его породила.
type Notifier interface {
	NotifyUpdate(ctx context.Context, orgID uuid.UUID, queryKey string) error
}

// MQNotifier публикует уведомления в cascade.events.
type MQNotifier struct {
	publisher *mq.Publisher
	logger    *slog.Logger
}

// NewMQNotifier создаёт Notifier поверх RabbitMQ publisher.
func NewMQNotifier(publisher *mq.Publisher, logger *slog.Logger) *MQNotifier {
	return &MQNotifier{
		publisher: publisher,
		logger:    logger,
	}
}

// NotifyUpdate публикует entity.update в комнату организации.
func (n *MQNotifier) NotifyUpdate(ctx context.Context, orgID uuid.UUID, queryKey string) error {
	payload := mq.EntityUpdatePayload{
		Room:     orgID.String(),
		Event:    EventUpdate,
		QueryKey: queryKey,
	}
	if err := n.publisher.PublishEntityUpdate(ctx, payload); err != nil {
		return fmt.Errorf("publish entity update: %w", err)
	}

	n.logger.Debug("entity update notified",
		"org_id", orgID,
		"query_key", queryKey,
	)
	return nil
}

// NoopNotifier — заглушка для окружений без брокера (CLI, тесты).
type NoopNotifier struct{}

// NotifyUpdate ничего не делает.
func (NoopNotifier) NotifyUpdate(ctx context.Context, orgID uuid.UUID, queryKey string) error {
	return nil
}
