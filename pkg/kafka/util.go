// Package kafka provides shared Kafka utilities for the change-stream consumers.
package kafka

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// MaxPollWait is how long a fetch waits for new records before returning.
	MaxPollWait = 500 * time.Millisecond
	// CommitInterval of zero makes CommitMessages synchronous.
	// Offsets must be durable before the next delivery is read, otherwise a
	// crash could skip a delivery that was never acknowledged.
	CommitInterval = 0

	// HeaderContentType names the record header that selects the payload codec.
	HeaderContentType = "content-type"
)

// ParseBrokers parses a comma-separated broker list and trims whitespace.
// Empty entries are dropped.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	parts := strings.Split(brokers, ",")
	brokerList := make([]string, 0, len(parts))
	for _, b := range parts {
		if b = strings.TrimSpace(b); b != "" {
			brokerList = append(brokerList, b)
		}
	}
	return brokerList
}

// ValidateConsumerParams validates common consumer parameters.
// Returns an error if any parameter is invalid.
func ValidateConsumerParams(brokers, topic, groupID string) error {
	if len(ParseBrokers(brokers)) == 0 {
		return fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return fmt.Errorf("groupID cannot be empty")
	}
	return nil
}

// NewReaderConfig creates the reader configuration used by every change-stream consumer.
// Offsets are committed manually after a delivery is handled (at-least-once).
func NewReaderConfig(brokers []string, topic, groupID string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        MaxPollWait,
		CommitInterval: CommitInterval,
		StartOffset:    kafka.FirstOffset, // Start from beginning if no committed offset
	}
}

// LogReaderConfig logs the reader configuration values.
func LogReaderConfig(cfg kafka.ReaderConfig) {
	slog.Info("Kafka consumer configured",
		"topic", cfg.Topic,
		"group_id", cfg.GroupID,
		"min_bytes", cfg.MinBytes,
		"max_bytes", cfg.MaxBytes,
		"max_wait", cfg.MaxWait.String(),
	)
}

// HeaderValue returns the value of the first header with the given key, or "".
// Header keys are compared case-insensitively.
func HeaderValue(msg *kafka.Message, key string) string {
	if msg == nil {
		return ""
	}
	for _, h := range msg.Headers {
		if strings.EqualFold(h.Key, key) {
			return string(h.Value)
		}
	}
	return ""
}
