package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
	"github.com/segmentio/kafka-go"
)

// SettlementHandler applies a gateway outcome to the transaction store.
type SettlementHandler interface {
	Settle(ctx context.Context, event models.SettlementEvent) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Config() kafka.ReaderConfig
	Close() error
}

type Consumer struct {
	reader  messageReader
	handler SettlementHandler
}

func NewConsumer(brokers []string, topic, groupID string, handler SettlementHandler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		handler: handler,
	}
}

// Start runs Consume in a goroutine. The returned channel is closed once the
// last message handed to the handler has been applied.
func (c *Consumer) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Consume(ctx)
	}()
	return done
}

// Consume runs until ctx is cancelled or the reader is closed. Offsets are
// committed on read; failed events are logged, not redelivered.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				slog.Info("Kafka consumer stopped", "topic", c.reader.Config().Topic)
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key), "offset", msg.Offset)

		if err := c.handleMessage(ctx, msg); err != nil {
			// TODO: Send to dead-letter queue
			slog.Error("failed to apply settlement event", "topic", msg.Topic, "key", string(msg.Key), "error", err)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var event models.SettlementEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal settlement event: %w", err)
	}
	if event.OrderID == "" {
		event.OrderID = string(msg.Key)
	}
	if event.Status == "" {
		event.Status = models.StatusSuccess
	}
	if !event.Status.Terminal() {
		return fmt.Errorf("invalid settlement status %q", event.Status)
	}

	if err := c.handler.Settle(ctx, event); err != nil {
		return err
	}
	slog.Info("settlement event applied", "order_id", event.OrderID, "status", event.Status)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
