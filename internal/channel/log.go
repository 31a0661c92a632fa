package channel

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/afikmenashe/alert-fanout/internal/failure"
	"github.com/afikmenashe/alert-fanout/pkg/shared"
)

// LogChannel is a dry-run Channel that logs each call instead of sending.
type LogChannel struct {
	logger *slog.Logger
}

// NewLogChannel creates a dry-run channel. A nil logger uses slog.Default().
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) SendToAddress(ctx context.Context, address, text string) (MessageID, error) {
	if err := ctx.Err(); err != nil {
		return "", failure.New(failure.TransportUnavailable, "send to address", err)
	}
	id := MessageID("dry-run-" + uuid.NewString())
	c.logger.Info("Dry run: SMS not sent",
		"address", shared.MaskAddress(address),
		"message_id", id,
		"text", text,
	)
	return id, nil
}

func (c *LogChannel) SendToTopic(ctx context.Context, topicID, text string, attrs map[string]string) (MessageID, error) {
	if err := ctx.Err(); err != nil {
		return "", failure.New(failure.TransportUnavailable, "send to topic", err)
	}
	id := MessageID("dry-run-" + uuid.NewString())
	c.logger.Info("Dry run: topic message not published",
		"topic_id", topicID,
		"message_id", id,
		"attributes", attrs,
		"text", text,
	)
	return id, nil
}

func (c *LogChannel) AddSubscription(ctx context.Context, topicID, address string, filter Filter) (SubscriptionHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", failure.New(failure.TransportUnavailable, "add subscription", err)
	}
	handle := SubscriptionHandle(topicID + ":dry-run-" + uuid.NewString())
	c.logger.Info("Dry run: subscription not created",
		"topic_id", topicID,
		"address", shared.MaskAddress(address),
		"filter_attribute", filter.Attribute,
		"filter_values", filter.Values,
	)
	return handle, nil
}

func (c *LogChannel) RemoveSubscription(ctx context.Context, handle SubscriptionHandle) error {
	if err := ctx.Err(); err != nil {
		return failure.New(failure.TransportUnavailable, "remove subscription", err)
	}
	c.logger.Info("Dry run: subscription not removed", "handle", handle)
	return nil
}

// ListSubscriptions returns no subscriptions: a dry-run channel holds none.
func (c *LogChannel) ListSubscriptions(ctx context.Context, topicID string) ([]Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, failure.New(failure.TransportUnavailable, "list subscriptions", err)
	}
	c.logger.Info("Dry run: subscriptions not listed", "topic_id", topicID)
	return nil, nil
}

var (
	_ Channel = (*LogChannel)(nil)
	_ Channel = (*SNSChannel)(nil)
)
