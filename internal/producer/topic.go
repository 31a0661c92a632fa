package producer

import (
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// EnsureTopic creates topic on broker when it does not exist yet.
func EnsureTopic(broker, topic string, partitions int) error {
	conn, err := kafka.Dial("tcp", broker)
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka at %s: %w", broker, err)
	}
	defer conn.Close()

	if existing, err := conn.ReadPartitions(topic); err == nil && len(existing) > 0 {
		slog.Info("Topic already exists", "topic", topic, "partitions", len(existing))
		return nil
	}

	// Topic creation must go through the controller.
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find Kafka controller: %w", err)
	}
	ctrlConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to connect to Kafka controller: %w", err)
	}
	defer ctrlConn.Close()

	if err := ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}); err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}

	slog.Info("Created topic", "topic", topic, "partitions", partitions)
	return nil
}
