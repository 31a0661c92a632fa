// Package registry maps alert classes to topics and layers subscribe and
// publish on a notification channel. The class table is fixed at construction.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/afikmenashe/alert-fanout/internal/channel"
	"github.com/afikmenashe/alert-fanout/internal/events"
	"github.com/afikmenashe/alert-fanout/internal/failure"
	"github.com/afikmenashe/alert-fanout/pkg/shared"
)

// FilterAttribute is the message attribute subscriptions filter on.
const FilterAttribute = "type"

// Registry subscribes addresses to class topics and publishes to them.
// It never reads or caches topic membership; the transport owns it.
type Registry struct {
	topics  map[events.AlertClass]string
	channel channel.Channel
}

// New creates a registry. topics must name a topic for every class in
// events.AllClasses.
func New(topics map[events.AlertClass]string, ch channel.Channel) (*Registry, error) {
	if ch == nil {
		return nil, fmt.Errorf("channel is required")
	}
	copied := make(map[events.AlertClass]string, len(events.AllClasses))
	for _, class := range events.AllClasses {
		topicID := topics[class]
		if topicID == "" {
			return nil, fmt.Errorf("no topic configured for alert class %s", class)
		}
		copied[class] = topicID
	}
	return &Registry{topics: copied, channel: ch}, nil
}

// TopicFor returns the topic for class.
func (r *Registry) TopicFor(class events.AlertClass) (string, error) {
	topicID, ok := r.topics[class]
	if !ok {
		return "", failure.Newf(failure.UnrecognizedAlertClass, "resolve topic", "alert class %q", class)
	}
	return topicID, nil
}

// Subscribe registers address on the topic for class with a filter equal to
// the class. Membership is not pre-checked: an identical repeated request is
// absorbed by the transport.
func (r *Registry) Subscribe(ctx context.Context, address string, class events.AlertClass) (channel.SubscriptionHandle, error) {
	topicID, err := r.TopicFor(class)
	if err != nil {
		return "", err
	}

	filter := channel.Filter{Attribute: FilterAttribute, Values: []string{string(class)}}
	handle, err := r.channel.AddSubscription(ctx, topicID, address, filter)
	if err != nil {
		return "", err
	}

	slog.Debug("Subscribed address to topic",
		"address", shared.MaskAddress(address),
		"alert_class", class,
		"topic_id", topicID,
		"subscription", handle,
	)
	return handle, nil
}

// Publish sends text to every subscriber of the topic for class in one call.
func (r *Registry) Publish(ctx context.Context, class events.AlertClass, text string) (channel.MessageID, error) {
	topicID, err := r.TopicFor(class)
	if err != nil {
		return "", err
	}

	id, err := r.channel.SendToTopic(ctx, topicID, text, map[string]string{FilterAttribute: string(class)})
	if err != nil {
		return "", err
	}

	slog.Debug("Published to topic",
		"alert_class", class,
		"topic_id", topicID,
		"message_id", id,
	)
	return id, nil
}

// Unsubscribe removes the subscription identified by handle. It is an
// operator action; change processing never removes subscriptions.
func (r *Registry) Unsubscribe(ctx context.Context, handle channel.SubscriptionHandle) error {
	if handle == "" {
		return fmt.Errorf("subscription handle is required")
	}
	if err := r.channel.RemoveSubscription(ctx, handle); err != nil {
		return err
	}
	slog.Info("Removed subscription", "subscription", handle)
	return nil
}

// List returns the subscriptions of the topic for class.
func (r *Registry) List(ctx context.Context, class events.AlertClass) ([]channel.Subscription, error) {
	topicID, err := r.TopicFor(class)
	if err != nil {
		return nil, err
	}
	return r.channel.ListSubscriptions(ctx, topicID)
}

// SendDirect sends text to a single address, bypassing topics.
func (r *Registry) SendDirect(ctx context.Context, address, text string) (channel.MessageID, error) {
	return r.channel.SendToAddress(ctx, address, text)
}
