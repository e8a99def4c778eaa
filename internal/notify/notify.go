// Package notify delivers customer-facing checkout outcomes and operator alerts.
package notify

import (
	"context"
	"time"

	"petshop-kart/internal/broker"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
)

// Notification is a short message shown to a customer.
type Notification struct {
	CustomerID string    `json:"customerId"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	OrderID    string    `json:"orderId,omitempty"`
	At         time.Time `json:"at"`
}

// Sink receives notifications. Delivery is fire-and-forget: a Sink never
// reports failure to the caller.
type Sink interface {
	Notify(ctx context.Context, n Notification)
}

// LogSink writes notifications to the log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify").Logger()}
}

func (s *LogSink) Notify(_ context.Context, n Notification) {
	s.logger.Info().
		Str("customer_id", n.CustomerID).
		Str("outcome", string(n.Level)).
		Str("order_id", n.OrderID).
		Msg(n.Message)
}

// KafkaSink publishes notifications keyed by customer id.
type KafkaSink struct {
	writer broker.MessageWriter
	logger zerolog.Logger
}

// NewKafkaSink expects an async writer so Notify does not wait on the broker.
func NewKafkaSink(writer broker.MessageWriter, logger zerolog.Logger) *KafkaSink {
	return &KafkaSink{
		writer: writer,
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

func (s *KafkaSink) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	if err := broker.PublishJSON(ctx, s.writer, n.CustomerID, n); err != nil {
		s.logger.Warn().Err(err).Str("customer_id", n.CustomerID).Msg("failed to publish notification")
	}
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Multi fans a notification out to every sink in order.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, s := range m {
		s.Notify(ctx, n)
	}
}
