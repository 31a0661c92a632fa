package processor

import (
	"context"
	"log/slog"

	"github.com/afikmenashe/alert-fanout/internal/events"
)

// Dispatcher publishes one notification per newly created alert to the topic
// for the alert's class.
//
// There is no dedup cache: a redelivered Created event publishes again. The
// transport offers no idempotency key, so a duplicate SMS is the accepted cost
// of at-least-once delivery.
type Dispatcher struct {
	registry TopicRegistry
	opts     options
}

// NewDispatcher creates a dispatcher that publishes through registry.
func NewDispatcher(registry TopicRegistry, opts ...Option) *Dispatcher {
	return &Dispatcher{registry: registry, opts: newOptions(opts)}
}

// ProcessAlertChanges handles one delivery of change events.
func (d *Dispatcher) ProcessAlertChanges(ctx context.Context, evs []events.ChangeEvent) Result {
	return runBatch(ctx, d.opts, evs, d.handle)
}

func (d *Dispatcher) handle(ctx context.Context, ev events.ChangeEvent) (bool, error) {
	if !ev.Is(events.SourceAlert, events.OpCreated) {
		return false, nil
	}

	alert, err := events.AlertFromSnapshot(ev.Snapshot)
	if err != nil {
		return true, err
	}

	id, err := d.registry.Publish(ctx, alert.AlertClass, alert.Text())
	if err != nil {
		return true, err
	}

	d.opts.metrics.IncrementCustom(counterAlertsPublished)
	slog.Info("Published alert",
		"alert_id", alert.ID,
		"alert_class", alert.AlertClass,
		"title", alert.Title,
		"message_id", id,
	)
	return true, nil
}
