package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает одно сообщение очереди. Ненулевая ошибка
// возвращает сообщение в очередь; сообщения, которые не удалось
// разобрать, до обработчика не доходят.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — разобранное сообщение вместе с сырой AMQP-доставкой.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Ack подтверждает обработку сообщения.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение. requeue=false отправляет его в DLQ
// очереди, если она настроена.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// Consumer читает одну очередь и гонит сообщения через Handler
// с ручным подтверждением. Разрыв соединения переживается ожиданием
// передозвона.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig настраивает Consumer.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — потолок неподтверждённых сообщений (default: 1).
	Prefetch int
}

// NewConsumer создаёт Consumer поверх существующего соединения.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start блокирует до отмены ctx, перезапуская поток сообщений
// после каждого разрыва.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		stream, err := c.openStream()
		if err != nil {
			c.logger.Error("cannot open message stream", "queue", c.queue, "error", err)
			if !c.awaitRedial(ctx) {
				return ctx.Err()
			}
			continue
		}

		c.logger.Info("consuming queue", "queue", c.queue, "prefetch", c.prefetch)

		if err := c.drain(ctx, stream); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("message stream interrupted", "queue", c.queue, "error", err)
			if !c.awaitRedial(ctx) {
				return ctx.Err()
			}
		}
	}
}

// openStream выставляет prefetch и подписывается на очередь.
func (c *Consumer) openStream() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	stream, err := ch.Consume(
		c.queue,
		"cascade."+c.queue, // consumer tag
		false,              // подтверждаем вручную
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}

	return stream, nil
}

// awaitRedial ждёт восстановления соединения. false — ctx отменён.
func (c *Consumer) awaitRedial(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.conn.Redialed():
		c.logger.Info("amqp restored, resuming consumer", "queue", c.queue)
		return true
	}
}

// drain обрабатывает сообщения потока до его закрытия или отмены ctx.
func (c *Consumer) drain(ctx context.Context, stream <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-stream:
			if !ok {
				return errors.New("message stream closed")
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch разбирает одно сообщение и передаёт его обработчику.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message dropped",
			"queue", c.queue,
			"error", err,
		)
		// Повторная доставка не поможет — сразу в DLQ
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("message received",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
	)

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		c.logger.Error("message handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		// Возврат в очередь; исчерпание повторов решает DLQ очереди
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// Stop прерывает Start.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload приводит payload сообщения к конкретному типу.
// После общего Unmarshal payload лежит как map[string]any, поэтому
// проходит через повторную JSON-сериализацию.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unmarshal payload: %w", err)
	}

	return out, nil
}
