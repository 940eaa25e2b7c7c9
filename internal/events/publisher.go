// Package events publishes order lifecycle events for downstream consumers such as
// settlement.
package events

import (
	"context"
	"encoding/json"
	"time"

	"campusrunner/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	TypeOrderPlaced        = "order.placed"
	TypeOrderStatusChanged = "order.status_changed"
	// TypeOrderCompleted is the settlement trigger point.
	TypeOrderCompleted = "order.completed"
)

type Event struct {
	Type        string             `json:"type"`
	OrderID     string             `json:"orderId"`
	OrderNumber string             `json:"orderNumber"`
	RequesterID string             `json:"requesterId"`
	FulfillerID string             `json:"fulfillerId,omitempty"`
	From        domain.OrderStatus `json:"from,omitempty"`
	Status      domain.OrderStatus `json:"status"`
	TotalCents  int64              `json:"totalCents"`
	ActorID     string             `json:"actorId,omitempty"`
	OccurredAt  time.Time          `json:"occurredAt"`
}

// FromOrder fills the order-derived fields of an event.
func FromOrder(eventType string, o domain.Order, from domain.OrderStatus, actorID string) Event {
	e := Event{
		Type:        eventType,
		OrderID:     o.ID,
		OrderNumber: o.Number,
		RequesterID: o.RequesterID,
		From:        from,
		Status:      o.Status,
		TotalCents:  o.Totals.TotalCents,
		ActorID:     actorID,
		OccurredAt:  o.UpdatedAt,
	}
	if o.FulfillerID != nil {
		e.FulfillerID = *o.FulfillerID
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return e
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Writer is the subset of *kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer Writer
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(writer Writer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

// NewWriter builds a kafka writer that waits for all in-sync replicas.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Publish keys messages by order id so one order's events stay ordered.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(e.OrderID),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(e.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("order event publish failed", zap.String("type", e.Type), zap.String("order_id", e.OrderID), zap.Error(err))
		return err
	}
	p.logger.Info("order event published", zap.String("type", e.Type), zap.String("order_id", e.OrderID))
	return nil
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
