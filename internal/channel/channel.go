// Package channel provides the single outbound send primitive used by the
// topic registry. Channels make exactly one attempt per call and return
// transport errors classified as failure kinds; retry policy lives elsewhere.
package channel

import (
	"context"
	"encoding/json"
)

// MessageID identifies a message accepted by the transport.
type MessageID string

// SubscriptionHandle identifies a subscription held by the transport.
type SubscriptionHandle string

// Subscription describes one subscription held by the transport.
type Subscription struct {
	Handle   SubscriptionHandle
	TopicID  string
	Protocol string
	Address  string
}

// Filter restricts which topic messages a subscription receives:
// only messages whose Attribute equals one of Values are delivered.
type Filter struct {
	Attribute string
	Values    []string
}

// Policy renders the filter as a JSON filter policy, e.g. {"type":["Common"]}.
func (f Filter) Policy() (string, error) {
	data, err := json.Marshal(map[string][]string{f.Attribute: f.Values})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// IsZero reports whether the filter is empty.
func (f Filter) IsZero() bool {
	return f.Attribute == "" && len(f.Values) == 0
}

// Channel sends messages and manages topic subscriptions on a transport.
type Channel interface {
	// SendToAddress sends text to a single phone number.
	SendToAddress(ctx context.Context, address, text string) (MessageID, error)

	// SendToTopic publishes text to every subscriber of topicID whose filter
	// matches attrs.
	SendToTopic(ctx context.Context, topicID, text string, attrs map[string]string) (MessageID, error)

	// AddSubscription subscribes address to topicID with the given filter.
	AddSubscription(ctx context.Context, topicID, address string, filter Filter) (SubscriptionHandle, error)

	// RemoveSubscription deletes the subscription identified by handle.
	RemoveSubscription(ctx context.Context, handle SubscriptionHandle) error

	// ListSubscriptions returns every subscription of topicID.
	ListSubscriptions(ctx context.Context, topicID string) ([]Subscription, error)
}
