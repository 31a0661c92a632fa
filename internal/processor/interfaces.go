// Package processor implements the subscription synchronizer and the alert
// dispatcher, and the stream runner that feeds them one delivery at a time.
package processor

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/alert-fanout/internal/channel"
	"github.com/afikmenashe/alert-fanout/internal/events"
)

// TopicRegistry subscribes addresses and publishes to class topics.
type TopicRegistry interface {
	Subscribe(ctx context.Context, address string, class events.AlertClass) (channel.SubscriptionHandle, error)
	Publish(ctx context.Context, class events.AlertClass, text string) (channel.MessageID, error)
}

// MessageReader reads and commits raw change-stream deliveries.
type MessageReader interface {
	ReadMessage(ctx context.Context) (*kafka.Message, error)
	CommitMessage(ctx context.Context, msg *kafka.Message) error
	Close() error
}

// MetricsRecorder records processing metrics.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(duration time.Duration)
	RecordPublished()
	RecordError()
	IncrementCustom(name string)
}

// noopMetrics is a no-op implementation of MetricsRecorder.
type noopMetrics struct{}

func (noopMetrics) RecordReceived()               {}
func (noopMetrics) RecordProcessed(time.Duration) {}
func (noopMetrics) RecordPublished()              {}
func (noopMetrics) RecordError()                  {}
func (noopMetrics) IncrementCustom(string)        {}

// NoopMetrics returns a no-op metrics recorder.
func NoopMetrics() MetricsRecorder {
	return noopMetrics{}
}

// Custom counter names.
const (
	counterSubscriptions   = "subscriptions_created"
	counterAlertsPublished = "alerts_published"
	counterEventsIgnored   = "events_ignored"
	counterEventsFailed    = "events_failed"
	counterRecordsSkipped  = "records_skipped"
	counterUndecodable     = "deliveries_undecodable"
	counterRedelivered     = "deliveries_redelivered"
	counterAbandoned       = "deliveries_abandoned"
)

const (
	// DefaultRedeliveryDelay is how long the runner waits before retrying the
	// events of a delivery that failed in a retryable way.
	DefaultRedeliveryDelay = 5 * time.Second
	// DefaultMaxRedeliveries caps the retries of one delivery.
	DefaultMaxRedeliveries = 5
)

type options struct {
	metrics         MetricsRecorder
	budget          time.Duration
	redeliveryDelay time.Duration
	maxRedeliveries int
}

func newOptions(opts []Option) options {
	o := options{
		metrics:         NoopMetrics(),
		redeliveryDelay: DefaultRedeliveryDelay,
		maxRedeliveries: DefaultMaxRedeliveries,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Synchronizer, Dispatcher, or Runner.
type Option func(*options)

// WithMetrics sets the metrics recorder. A nil recorder keeps the no-op default.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithBudget bounds the processing of one delivery. Units still running when
// the budget expires fail with TransportUnavailable. Zero means no bound.
func WithBudget(d time.Duration) Option {
	return func(o *options) {
		o.budget = d
	}
}

// WithRedeliveryDelay sets the pause before retryable events are retried.
func WithRedeliveryDelay(d time.Duration) Option {
	return func(o *options) {
		o.redeliveryDelay = d
	}
}

// WithMaxRedeliveries caps how often the retryable events of one delivery are
// retried before the delivery is abandoned and acknowledged. Zero means
// unlimited.
func WithMaxRedeliveries(n int) Option {
	return func(o *options) {
		o.maxRedeliveries = n
	}
}
