// Package events publishes order lifecycle events to the orders topic.
package events

import (
	"context"
	"time"

	"petshop-kart/internal/broker"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// Event types.
const (
	TypeOrderCompleted    = "order.completed"
	TypeSettlementPartial = "settlement.partial"
	TypeStockReconciled   = "stock.reconciled"
)

// Event is the payload written to the orders topic, keyed by order id.
type Event struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"orderId"`
	CustomerID string          `json:"customerId,omitempty"`
	Total      decimal.Decimal `json:"total"`
	ProductIDs []string        `json:"productIds,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// KafkaPublisher writes events as JSON with an event_type header.
type KafkaPublisher struct {
	writer broker.MessageWriter
	logger zerolog.Logger
}

func NewKafkaPublisher(writer broker.MessageWriter, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "events").Logger(),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	header := kafka.Header{Key: "event_type", Value: []byte(event.Type)}
	if err := broker.PublishJSON(ctx, p.writer, event.OrderID, event, header); err != nil {
		p.logger.Error().Err(err).
			Str("type", event.Type).
			Str("order_id", event.OrderID).
			Msg("failed to publish event")
		return err
	}

	p.logger.Debug().Str("type", event.Type).Str("order_id", event.OrderID).Msg("event published")
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
