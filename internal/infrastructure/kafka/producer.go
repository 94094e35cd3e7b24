package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

//go:generate mockgen -destination=mocks/mock_producer.go -package=mocks . KafkaProducer

// KafkaProducer publishes keyed JSON payloads. Messages with the same key
// (the order ID) land on the same partition and stay ordered.
type KafkaProducer interface {
	Send(ctx context.Context, topic string, key string, value []byte) error
	Close() error
}

const contentTypeHeader = "content-type"

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("async Kafka write failed", "messages", len(messages), "error", err)
			}
		},
	}
	return &Producer{writer: writer}
}

func newMessage(topic, key string, value []byte) kafka.Message {
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: contentTypeHeader, Value: []byte("application/json")},
		},
		Time: time.Now().UTC(),
	}
}

func (p *Producer) Send(ctx context.Context, topic string, key string, value []byte) error {
	if err := p.writer.WriteMessages(ctx, newMessage(topic, key, value)); err != nil {
		slog.Error("failed to send Kafka message", "topic", topic, "key", key, "error", err)
		return err
	}
	slog.Debug("Kafka message queued", "topic", topic, "key", key)
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		slog.Error("failed to close Kafka writer", "error", err)
		return err
	}
	slog.Info("Kafka writer closed")
	return nil
}
