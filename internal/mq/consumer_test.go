package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeAcknowledger записывает исход доставки.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func testConsumer(handler Handler) *Consumer {
	return NewConsumer(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), ConsumerConfig{
		Queue:   "runs.requested",
		Handler: handler,
	})
}

func TestDispatch_AcksOnSuccess(t *testing.T) {
	var got Message
	c := testConsumer(func(ctx context.Context, msg *Delivery) error {
		got = msg.Message
		return nil
	})

	body, _ := json.Marshal(Message{ID: "m1", Type: MessageTypeRunRequested, Payload: map[string]any{}})
	ack := &fakeAcknowledger{}
	c.dispatch(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body})

	if !ack.acked || ack.nacked {
		t.Fatalf("expected ack, got acked=%v nacked=%v", ack.acked, ack.nacked)
	}
	if got.ID != "m1" || got.Type != MessageTypeRunRequested {
		t.Errorf("handler got wrong message: %+v", got)
	}
}

func TestDispatch_RequeuesOnHandlerError(t *testing.T) {
	c := testConsumer(func(ctx context.Context, msg *Delivery) error {
		return errors.New("transient failure")
	})

	body, _ := json.Marshal(Message{ID: "m2", Type: MessageTypeRunRequested})
	ack := &fakeAcknowledger{}
	c.dispatch(context.Background(), amqp.Delivery{Acknowledger: ack, Body: body})

	if !ack.nacked || !ack.requeue {
		t.Fatalf("expected nack with requeue, got nacked=%v requeue=%v", ack.nacked, ack.requeue)
	}
}

func TestDispatch_DropsMalformedMessage(t *testing.T) {
	called := false
	c := testConsumer(func(ctx context.Context, msg *Delivery) error {
		called = true
		return nil
	})

	ack := &fakeAcknowledger{}
	c.dispatch(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

	if called {
		t.Fatal("handler must not run for malformed message")
	}
	// Без requeue: повторная доставка не починит сообщение
	if !ack.nacked || ack.requeue {
		t.Fatalf("expected nack without requeue, got nacked=%v requeue=%v", ack.nacked, ack.requeue)
	}
}

func TestParsePayload(t *testing.T) {
	runID := uuid.New()
	orgID := uuid.New()

	// Payload после общего Unmarshal приходит как map[string]any
	msg := Message{
		Type: MessageTypeRunRequested,
		Payload: map[string]any{
			"run_id":          runID.String(),
			"organization_id": orgID.String(),
		},
	}

	payload, err := ParsePayload[RunRequestedPayload](&msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.RunID != runID || payload.OrganizationID != orgID {
		t.Errorf("payload mismatch: %+v", payload)
	}
}

func TestParsePayload_InvalidShape(t *testing.T) {
	msg := Message{
		Type:    MessageTypeRunRequested,
		Payload: map[string]any{"run_id": "not-a-uuid"},
	}

	if _, err := ParsePayload[RunRequestedPayload](&msg); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
