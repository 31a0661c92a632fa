// Package consumer reads change-stream deliveries from Kafka.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	kafkautil "github.com/afikmenashe/alert-fanout/pkg/kafka"
)

// Consumer wraps a Kafka reader. Each message is one delivery; its value is
// decoded later by the change adapter, so the consumer never rejects a
// payload.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a consumer group reader for topic. Offsets are only
// committed by CommitMessage.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	cfg := kafkautil.NewReaderConfig(kafkautil.ParseBrokers(brokers), topic, groupID)
	kafkautil.LogReaderConfig(cfg)

	return &Consumer{
		reader: kafka.NewReader(cfg),
		topic:  topic,
	}, nil
}

// Topic returns the topic the consumer reads.
func (c *Consumer) Topic() string {
	return c.topic
}

// ReadMessage fetches the next delivery without committing it.
func (c *Consumer) ReadMessage(ctx context.Context) (*kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}
	return &msg, nil
}

// CommitMessage commits the offset for msg.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close closes the Kafka reader.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "topic", c.topic, "error", err)
		return err
	}
	slog.Info("Kafka consumer closed successfully", "topic", c.topic)
	return nil
}
