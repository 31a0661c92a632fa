package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/afikmenashe/alert-fanout/internal/generator"
	"github.com/afikmenashe/alert-fanout/internal/producer"
	kafkautil "github.com/afikmenashe/alert-fanout/pkg/kafka"
	"github.com/afikmenashe/alert-fanout/pkg/shared"
)

func main() {
	var (
		brokers         = flag.String("kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
		subscriberTopic = flag.String("subscriber-changes-topic", shared.GetEnvOrDefault("SUBSCRIBER_CHANGES_TOPIC", "users.changes"), "Kafka topic carrying subscriber table changes")
		alertTopic      = flag.String("alert-changes-topic", shared.GetEnvOrDefault("ALERT_CHANGES_TOPIC", "alerts.changes"), "Kafka topic carrying alert table changes")
		subscriberTable = flag.String("subscriber-table", shared.GetEnvOrDefault("SUBSCRIBER_TABLE", "users"), "Table name written into subscriber records")
		alertTable      = flag.String("alert-table", shared.GetEnvOrDefault("ALERT_TABLE", "alerts"), "Table name written into alert records")
		format          = flag.String("format", producer.FormatJSON, "Payload format (json or protobuf)")
		subscribers     = flag.Int("subscribers", 5, "Number of subscriber records to produce")
		alerts          = flag.Int("alerts", 3, "Number of alert records to produce")
		classDist       = flag.String("class-dist", "Common:80,Emergency:20", "Alert class distribution (CLASS:PERCENT,...)")
		seed            = flag.Int64("seed", 0, "Random seed (0 = time based)")
		createTopics    = flag.Bool("create-topics", true, "Create the change topics if they do not exist")
	)
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	gen, err := generator.New(generator.Config{
		Seed:            *seed,
		ClassDist:       *classDist,
		SubscriberTable: *subscriberTable,
		AlertTable:      *alertTable,
	})
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *createTopics {
		broker := kafkautil.ParseBrokers(*brokers)
		if len(broker) == 0 {
			slog.Error("Invalid configuration", "error", "kafka-brokers cannot be empty")
			os.Exit(1)
		}
		for _, topic := range []string{*subscriberTopic, *alertTopic} {
			if err := producer.EnsureTopic(broker[0], topic, 3); err != nil {
				slog.Warn("Could not ensure topic exists", "topic", topic, "error", err)
			}
		}
	}

	subProducer, err := producer.New(*brokers, *subscriberTopic, *format)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "topic", *subscriberTopic, "error", err)
		os.Exit(1)
	}
	defer subProducer.Close()

	alertProducer, err := producer.New(*brokers, *alertTopic, *format)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "topic", *alertTopic, "error", err)
		os.Exit(1)
	}
	defer alertProducer.Close()

	// Subscribers first so they are subscribed before the alerts fan out.
	for i := 0; i < *subscribers; i++ {
		c := gen.Subscriber()
		if err := subProducer.Publish(ctx, c); err != nil {
			slog.Error("Failed to publish subscriber change", "error", err)
			os.Exit(1)
		}
		slog.Info("Produced subscriber",
			"record_key", c.Key,
			"address", shared.MaskAddress(c.After["mobile"].(string)),
			"alert_class", c.After["type"],
		)
	}

	for i := 0; i < *alerts; i++ {
		c := gen.Alert()
		if err := alertProducer.Publish(ctx, c); err != nil {
			slog.Error("Failed to publish alert change", "error", err)
			os.Exit(1)
		}
		slog.Info("Produced alert",
			"record_key", c.Key,
			"alert_class", c.After["type"],
			"title", c.After["title"],
		)
	}

	slog.Info("Change records produced", "subscribers", *subscribers, "alerts", *alerts, "format", *format)
}
