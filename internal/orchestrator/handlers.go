package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/repo"
)

// handleRunRequested обрабатывает сообщение run.requested.
//
// Захват и выполнение идут синхронно в обработчике: ack означает,
// что run доведён до терминального статуса или корректно уступлен
// другому оркестратору.
func (o *Orchestrator) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		// Некорректный payload ретраить бессмысленно — ack и в лог
		o.logger.Error("invalid run.requested payload",
			"message_id", delivery.Message.ID,
			"error", err,
		)
		return nil
	}

	err = o.ProcessRun(ctx, payload.RunID)
	switch {
	case err == nil:
		return nil

	case errors.Is(err, ErrRunAlreadyActive), errors.Is(err, ErrRunNotClaimed):
		// Дубль сообщения или конкурентный оркестратор — не ошибка
		o.logger.Debug("run.requested duplicate ignored", "run_id", payload.RunID)
		return nil

	case errors.Is(err, repo.ErrNotFound):
		// Run исчез (например, удалён вместе с организацией)
		o.logger.Warn("run.requested for missing run", "run_id", payload.RunID)
		return nil

	default:
		return fmt.Errorf("process run %s: %w", payload.RunID, err)
	}
}

// handleRunCanceled обрабатывает сообщение run.canceled.
//
// Отмена best-effort: run, который здесь не выполняется, игнорируется —
// QUEUED runs отменяет API условным UPDATE, а завершённый run уже
// записал исход.
func (o *Orchestrator) handleRunCanceled(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunCanceledPayload](&delivery.Message)
	if err != nil {
		o.logger.Error("invalid run.canceled payload",
			"message_id", delivery.Message.ID,
			"error", err,
		)
		return nil
	}

	if o.CancelRun(payload.RunID) {
		o.logger.Info("run cancel requested", "run_id", payload.RunID)
	} else {
		o.logger.Debug("cancel for inactive run ignored", "run_id", payload.RunID)
	}
	return nil
}
