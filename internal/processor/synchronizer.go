package processor

import (
	"context"
	"log/slog"

	"github.com/afikmenashe/alert-fanout/internal/events"
	"github.com/afikmenashe/alert-fanout/pkg/shared"
)

// Synchronizer keeps class topics in step with the subscriber store: every
// newly created subscriber is subscribed to the topic for its class.
// Updates and removals are ignored.
type Synchronizer struct {
	registry TopicRegistry
	opts     options
}

// NewSynchronizer creates a synchronizer that subscribes through registry.
func NewSynchronizer(registry TopicRegistry, opts ...Option) *Synchronizer {
	return &Synchronizer{registry: registry, opts: newOptions(opts)}
}

// ProcessSubscriberChanges handles one delivery of change events.
func (s *Synchronizer) ProcessSubscriberChanges(ctx context.Context, evs []events.ChangeEvent) Result {
	return runBatch(ctx, s.opts, evs, s.handle)
}

func (s *Synchronizer) handle(ctx context.Context, ev events.ChangeEvent) (bool, error) {
	if !ev.Is(events.SourceSubscriber, events.OpCreated) {
		return false, nil
	}

	sub, err := events.SubscriberFromSnapshot(ev.Snapshot)
	if err != nil {
		return true, err
	}

	handle, err := s.registry.Subscribe(ctx, sub.Address, sub.AlertClass)
	if err != nil {
		return true, err
	}

	s.opts.metrics.IncrementCustom(counterSubscriptions)
	slog.Info("Subscribed new subscriber",
		"address", shared.MaskAddress(sub.Address),
		"alert_class", sub.AlertClass,
		"record_key", ev.RecordKey,
		"subscription", handle,
	)
	return true, nil
}
