// Package producer publishes synthetic change records to the change-stream
// topics.
package producer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/alert-fanout/internal/generator"
	kafkautil "github.com/afikmenashe/alert-fanout/pkg/kafka"
)

// writeTimeout is the maximum time to wait for a Kafka write.
const writeTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer wraps a Kafka writer for one change topic.
type Producer struct {
	writer messageWriter
	topic  string
	format string
}

// New creates a producer for topic. Writes are synchronous and wait for the
// leader's acknowledgement.
func New(brokers, topic, format string) (*Producer, error) {
	brokerList := kafkautil.ParseBrokers(brokers)
	if len(brokerList) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if format != FormatJSON && format != FormatProtobuf {
		return nil, fmt.Errorf("format must be %s or %s", FormatJSON, FormatProtobuf)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
	}

	slog.Info("Kafka producer configured",
		"brokers", brokerList,
		"topic", topic,
		"format", format,
		"write_timeout", writeTimeout,
	)

	return newWithWriter(writer, topic, format), nil
}

func newWithWriter(w messageWriter, topic, format string) *Producer {
	return &Producer{writer: w, topic: topic, format: format}
}

// Publish encodes c and writes it to the topic, keyed by the record key so
// changes to one row stay ordered.
func (p *Producer) Publish(ctx context.Context, c generator.Change) error {
	payload, contentType, err := Encode(c, p.format)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   hashKey(c.Key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: kafkautil.HeaderContentType, Value: []byte(contentType)},
		},
		Time: c.Time,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Debug("Published change record",
		"topic", p.topic,
		"table", c.Table,
		"record_key", c.Key,
		"sequence", c.Sequence,
	)
	return nil
}

// hashKey returns the first 16 bytes of the SHA-256 of key.
func hashKey(key string) []byte {
	hash := sha256.Sum256([]byte(key))
	return hash[:16]
}

// Close closes the Kafka writer.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "topic", p.topic, "error", err)
		return err
	}
	return nil
}
