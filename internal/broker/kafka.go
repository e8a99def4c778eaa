// Package broker builds kafka-go writers for the storefront topics.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer used by publishers.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Client struct {
	Brokers []string
}

func NewClient(brokers []string) *Client {
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter returns a synchronous writer keyed by hash, so messages with the
// same key land on the same partition in order. Batches are flushed after
// 10ms instead of the library's one second.
func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// NewAsyncWriter returns a writer whose WriteMessages never blocks on the
// broker. Delivery failures are only logged.
func (c *Client) NewAsyncWriter(topic string, logger zerolog.Logger) *kafka.Writer {
	w := c.NewWriter(topic)
	w.Async = true
	w.BatchTimeout = 50 * time.Millisecond
	w.Completion = func(messages []kafka.Message, err error) {
		if err != nil {
			logger.Warn().Err(err).
				Str("topic", topic).
				Int("messages", len(messages)).
				Msg("async kafka delivery failed")
		}
	}
	return w
}

// PublishJSON marshals payload and writes it under key.
func PublishJSON(ctx context.Context, w MessageWriter, key string, payload any, headers ...kafka.Header) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
		Time:    time.Now().UTC(),
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
