package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunCanceled  MessageType = "run.canceled"
	MessageTypeEntityUpdate MessageType = "entity.update"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// RunRequestedPayload — payload для сообщения о новом run.
type RunRequestedPayload struct {
	RunID          uuid.UUID `json:"run_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

// RunCanceledPayload — payload запроса на отмену run.
type RunCanceledPayload struct {
	RunID          uuid.UUID `json:"run_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

// EntityUpdatePayload — payload push-уведомления клиентам.
//
// Room — комната получателей (ID организации), Event — имя события,
// QueryKey — ключ клиентского кэша, который нужно перечитать.
type EntityUpdatePayload struct {
	Room     string `json:"room"`
	Event    string `json:"event"`
	QueryKey string `json:"query_key"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishRunRequested публикует событие о новом run, ожидающем выполнения.
// Потребитель: Orchestrator.
func (p *Publisher) PublishRunRequested(ctx context.Context, runID, orgID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunRequested,
		Payload:   RunRequestedPayload{RunID: runID, OrganizationID: orgID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, msg)
}

// PublishRunCanceled публикует запрос на отмену выполняющегося run.
// Потребитель: Orchestrator, владеющий run.
func (p *Publisher) PublishRunCanceled(ctx context.Context, runID, orgID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeRunCanceled,
		Payload:   RunCanceledPayload{RunID: runID, OrganizationID: orgID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeRuns, RoutingKeyCanceled, msg)
}

// PublishEntityUpdate публикует push-уведомление об изменении сущности.
// Потребитель: push gateway, раздающий события по комнатам организаций.
func (p *Publisher) PublishEntityUpdate(ctx context.Context, payload EntityUpdatePayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeEntityUpdate,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyUpdate, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
