package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/afikmenashe/alert-fanout/internal/changes"
	"github.com/afikmenashe/alert-fanout/internal/channel"
	"github.com/afikmenashe/alert-fanout/internal/config"
	"github.com/afikmenashe/alert-fanout/internal/consumer"
	"github.com/afikmenashe/alert-fanout/internal/processor"
	"github.com/afikmenashe/alert-fanout/internal/registry"
	"github.com/afikmenashe/alert-fanout/pkg/metrics"
	"github.com/afikmenashe/alert-fanout/pkg/shared"
)

func main() {
	// Parse command-line flags
	cfg := &config.Config{}
	flag.StringVar(&cfg.CommonTopicID, "common-topic-id", shared.GetEnvOrDefault("COMMON_TOPIC_ID", ""), "Topic identifier for Common alerts")
	flag.StringVar(&cfg.EmergencyTopicID, "emergency-topic-id", shared.GetEnvOrDefault("EMERGENCY_TOPIC_ID", ""), "Topic identifier for Emergency alerts")
	flag.StringVar(&cfg.TransportRegion, "transport-region", shared.GetEnvOrDefault("TRANSPORT_REGION", "us-east-1"), "Region of the notification transport")
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", shared.GetEnvOrDefault("KAFKA_BROKERS", "localhost:9092"), "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.SubscriberChangesTopic, "subscriber-changes-topic", shared.GetEnvOrDefault("SUBSCRIBER_CHANGES_TOPIC", "users.changes"), "Kafka topic carrying subscriber table changes")
	flag.StringVar(&cfg.AlertChangesTopic, "alert-changes-topic", shared.GetEnvOrDefault("ALERT_CHANGES_TOPIC", "alerts.changes"), "Kafka topic carrying alert table changes")
	flag.StringVar(&cfg.ConsumerGroupID, "consumer-group-id", shared.GetEnvOrDefault("CONSUMER_GROUP_ID", "alert-fanout-group"), "Kafka consumer group prefix; each stream joins <prefix>.<stream>")
	flag.StringVar(&cfg.SubscriberTable, "subscriber-table", shared.GetEnvOrDefault("SUBSCRIBER_TABLE", "users"), "Upstream table holding subscribers")
	flag.StringVar(&cfg.AlertTable, "alert-table", shared.GetEnvOrDefault("ALERT_TABLE", "alerts"), "Upstream table holding alerts")
	flag.DurationVar(&cfg.ProcessingTimeout, "processing-timeout", shared.GetEnvDuration("PROCESSING_TIMEOUT", 30*time.Second), "Time budget for one delivery")
	flag.DurationVar(&cfg.RedeliveryDelay, "redelivery-delay", shared.GetEnvDuration("REDELIVERY_DELAY", processor.DefaultRedeliveryDelay), "Pause before retrying a delivery with transient failures")
	flag.IntVar(&cfg.MaxRedeliveries, "max-redeliveries", shared.GetEnvInt("MAX_REDELIVERIES", processor.DefaultMaxRedeliveries), "Retries of failed events in one delivery before they are abandoned (0 = unlimited)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", shared.GetEnvOrDefault("REDIS_ADDR", ""), "Redis address for metrics (empty disables metrics)")
	flag.BoolVar(&cfg.DryRun, "dry-run", shared.GetEnvBool("DRY_RUN", false), "Log notifications instead of sending them")
	flag.Parse()

	// Set up structured logging
	// Allow DEBUG level via environment variable for troubleshooting
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "DEBUG" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting alert fan-out service",
		"common_topic_id", cfg.CommonTopicID,
		"emergency_topic_id", cfg.EmergencyTopicID,
		"transport_region", cfg.TransportRegion,
		"kafka_brokers", cfg.KafkaBrokers,
		"subscriber_changes_topic", cfg.SubscriberChangesTopic,
		"alert_changes_topic", cfg.AlertChangesTopic,
		"consumer_group_id", cfg.ConsumerGroupID,
		"processing_timeout", cfg.ProcessingTimeout,
		"dry_run", cfg.DryRun,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	ch, err := newChannel(ctx, cfg)
	if err != nil {
		slog.Error("Failed to create notification channel", "error", err)
		os.Exit(1)
	}

	reg, err := registry.New(cfg.Topics(), ch)
	if err != nil {
		slog.Error("Failed to create topic registry", "error", err)
		os.Exit(1)
	}

	opts := []processor.Option{
		processor.WithBudget(cfg.ProcessingTimeout),
		processor.WithRedeliveryDelay(cfg.RedeliveryDelay),
		processor.WithMaxRedeliveries(cfg.MaxRedeliveries),
	}

	// Metrics are optional; without Redis the processors use a no-op recorder.
	if cfg.RedisAddr != "" {
		slog.Info("Connecting to Redis", "addr", cfg.RedisAddr)
		redisClient, err := shared.ConnectRedis(ctx, cfg.RedisAddr)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			slog.Info("Tip: Start Redis or leave -redis-addr empty to disable metrics")
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("Successfully connected to Redis")

		metricsCollector := metrics.NewCollector("alert-fanout", redisClient)
		metricsCollector.Start(ctx)
		defer metricsCollector.Stop()
		opts = append(opts, processor.WithMetrics(metricsCollector))
	}

	adapter := changes.New(cfg.Tables())
	synchronizer := processor.NewSynchronizer(reg, opts...)
	dispatcher := processor.NewDispatcher(reg, opts...)

	streams := []struct {
		name   string
		topic  string
		handle processor.BatchHandler
	}{
		{name: "subscribers", topic: cfg.SubscriberChangesTopic, handle: synchronizer.ProcessSubscriberChanges},
		{name: "alerts", topic: cfg.AlertChangesTopic, handle: dispatcher.ProcessAlertChanges},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range streams {
		group := cfg.GroupFor(s.name)
		slog.Info("Connecting to Kafka consumer", "topic", s.topic, "group", group)
		kafkaConsumer, err := consumer.NewConsumer(cfg.KafkaBrokers, s.topic, group)
		if err != nil {
			slog.Error("Failed to create Kafka consumer", "topic", s.topic, "error", err)
			slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
			os.Exit(1)
		}
		defer kafkaConsumer.Close()
		slog.Info("Successfully connected to Kafka consumer", "topic", s.topic)

		runner := processor.NewRunner(s.topic, kafkaConsumer, adapter, s.handle, opts...)
		g.Go(func() error {
			return runner.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Change stream processing failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Alert fan-out service stopped")
}

// newChannel returns the SNS channel, or a logging channel in dry-run mode.
func newChannel(ctx context.Context, cfg *config.Config) (channel.Channel, error) {
	if cfg.DryRun {
		slog.Warn("Dry run enabled: notifications will be logged, not sent")
		return channel.NewLogChannel(nil), nil
	}
	return channel.NewSNSChannel(ctx, cfg.TransportRegion)
}
