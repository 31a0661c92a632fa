package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/afikmenashe/alert-fanout/internal/channel"
	"github.com/afikmenashe/alert-fanout/internal/config"
	"github.com/afikmenashe/alert-fanout/internal/events"
	"github.com/afikmenashe/alert-fanout/internal/registry"
	"github.com/afikmenashe/alert-fanout/pkg/shared"
)

func main() {
	cfg := &config.Config{}
	flag.StringVar(&cfg.CommonTopicID, "common-topic-id", shared.GetEnvOrDefault("COMMON_TOPIC_ID", ""), "Topic identifier for Common alerts")
	flag.StringVar(&cfg.EmergencyTopicID, "emergency-topic-id", shared.GetEnvOrDefault("EMERGENCY_TOPIC_ID", ""), "Topic identifier for Emergency alerts")
	flag.StringVar(&cfg.TransportRegion, "transport-region", shared.GetEnvOrDefault("TRANSPORT_REGION", "us-east-1"), "Region of the notification transport")
	flag.DurationVar(&cfg.ProcessingTimeout, "timeout", shared.GetEnvDuration("PROCESSING_TIMEOUT", 30*time.Second), "Time budget for the send")
	flag.BoolVar(&cfg.DryRun, "dry-run", shared.GetEnvBool("DRY_RUN", false), "Log the notification instead of sending it")
	message := flag.String("message", "", "Notification text")
	class := flag.String("class", string(events.ClassCommon), "Alert class whose topic receives the message (Common or Emergency)")
	to := flag.String("to", "", "Send a direct SMS to this phone number instead of publishing to a topic")
	list := flag.Bool("list", false, "List the subscriptions of the -class topic instead of sending")
	unsubscribe := flag.String("unsubscribe", "", "Remove the subscription with this handle instead of sending")
	flag.Parse()

	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "DEBUG" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	if *unsubscribe == "" && !*list && strings.TrimSpace(*message) == "" {
		slog.Error("Invalid arguments", "error", "message cannot be empty")
		os.Exit(2)
	}
	if err := cfg.ValidateTransport(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProcessingTimeout)
	defer cancel()

	var ch channel.Channel
	if cfg.DryRun {
		ch = channel.NewLogChannel(nil)
	} else {
		snsChannel, err := channel.NewSNSChannel(ctx, cfg.TransportRegion)
		if err != nil {
			slog.Error("Failed to create notification channel", "error", err)
			os.Exit(1)
		}
		ch = snsChannel
	}

	reg, err := registry.New(cfg.Topics(), ch)
	if err != nil {
		slog.Error("Failed to create topic registry", "error", err)
		os.Exit(1)
	}

	if *unsubscribe != "" {
		if err := reg.Unsubscribe(ctx, channel.SubscriptionHandle(*unsubscribe)); err != nil {
			slog.Error("Failed to remove subscription", "subscription", *unsubscribe, "error", err)
			os.Exit(1)
		}
		return
	}

	if *to != "" {
		id, err := reg.SendDirect(ctx, *to, *message)
		if err != nil {
			slog.Error("Failed to send SMS", "address", shared.MaskAddress(*to), "error", err)
			os.Exit(1)
		}
		slog.Info("SMS sent", "address", shared.MaskAddress(*to), "message_id", id)
		return
	}

	alertClass, ok := events.ParseAlertClass(*class)
	if !ok {
		slog.Error("Invalid arguments", "error", "unrecognized alert class", "class", *class)
		os.Exit(2)
	}

	if *list {
		subs, err := reg.List(ctx, alertClass)
		if err != nil {
			slog.Error("Failed to list subscriptions", "alert_class", alertClass, "error", err)
			os.Exit(1)
		}
		for _, sub := range subs {
			slog.Info("Subscription",
				"alert_class", alertClass,
				"subscription", sub.Handle,
				"protocol", sub.Protocol,
				"address", shared.MaskAddress(sub.Address),
			)
		}
		slog.Info("Listed subscriptions", "alert_class", alertClass, "count", len(subs))
		return
	}

	id, err := reg.Publish(ctx, alertClass, *message)
	if err != nil {
		slog.Error("Failed to publish alert", "alert_class", alertClass, "error", err)
		os.Exit(1)
	}
	slog.Info("Alert published", "alert_class", alertClass, "message_id", id)
}
