package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/afikmenashe/alert-fanout/internal/changes"
	"github.com/afikmenashe/alert-fanout/internal/events"
	kafkautil "github.com/afikmenashe/alert-fanout/pkg/kafka"
)

// BatchHandler processes the change events of one delivery.
type BatchHandler func(ctx context.Context, evs []events.ChangeEvent) Result

// Runner reads deliveries from one change stream, normalizes them, hands the
// events to a BatchHandler, and acknowledges the delivery according to the
// result.
//
// Offsets are cumulative, so a delivery with retryable failures blocks the
// stream: the runner retries only the events that failed retryably, after the
// redelivery delay, until they clear or the redelivery cap is reached. Events
// that succeeded or failed permanently are never handed to the handler again
// within one process.
type Runner struct {
	stream  string
	reader  MessageReader
	adapter *changes.Adapter
	handle  BatchHandler
	opts    options
}

// NewRunner creates a runner for the named stream.
func NewRunner(stream string, reader MessageReader, adapter *changes.Adapter, handle BatchHandler, opts ...Option) *Runner {
	return &Runner{
		stream:  stream,
		reader:  reader,
		adapter: adapter,
		handle:  handle,
		opts:    newOptions(opts),
	}
}

// Run reads deliveries until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	slog.Info("Starting change stream processing loop", "stream", r.stream)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Change stream processing loop stopped", "stream", r.stream)
			return nil
		default:
			msg, err := r.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to read delivery", "stream", r.stream, "error", err)
				continue
			}

			r.opts.metrics.RecordReceived()

			if !r.HandleDelivery(ctx, msg) {
				// Cancelled while waiting to retry; the offset stays uncommitted.
				return nil
			}

			if err := r.reader.CommitMessage(ctx, msg); err != nil {
				slog.Error("Failed to commit offset",
					"stream", r.stream,
					"partition", msg.Partition,
					"offset", msg.Offset,
					"error", err,
				)
			}
		}
	}
}

// HandleDelivery processes one delivery and reports whether it may be
// acknowledged. It returns false only when ctx is cancelled while retryable
// events are still pending.
func (r *Runner) HandleDelivery(ctx context.Context, msg *kafka.Message) bool {
	start := time.Now()
	logger := slog.With(
		"stream", r.stream,
		"delivery_id", uuid.NewString(),
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	defer func() {
		r.opts.metrics.RecordProcessed(time.Since(start))
	}()

	batch, err := r.adapter.Normalize(changes.Delivery{
		Payload:     msg.Value,
		ContentType: kafkautil.HeaderValue(msg, kafkautil.HeaderContentType),
	})
	if err != nil {
		// Redelivering an undecodable payload cannot help.
		logger.Error("Failed to decode delivery", "error", err)
		r.opts.metrics.RecordError()
		r.opts.metrics.IncrementCustom(counterUndecodable)
		return true
	}

	for _, w := range batch.Warnings {
		logger.Warn("Skipped change record", "index", w.Index, "reason", w.Reason)
		r.opts.metrics.IncrementCustom(counterRecordsSkipped)
	}

	pending := batch.Events
	for attempt := 1; ; attempt++ {
		pending = r.attempt(ctx, logger, pending, attempt)
		if len(pending) == 0 {
			logger.Info("Processed delivery",
				"records", batch.Records,
				"events", len(batch.Events),
				"attempts", attempt,
				"duration", time.Since(start),
			)
			return true
		}

		if r.opts.maxRedeliveries > 0 && attempt > r.opts.maxRedeliveries {
			r.opts.metrics.IncrementCustom(counterAbandoned)
			logger.Error("Abandoning delivery after repeated retryable failures",
				"pending", len(pending),
				"attempts", attempt,
			)
			return true
		}

		r.opts.metrics.IncrementCustom(counterRedelivered)
		logger.Warn("Retrying events with retryable failures",
			"pending", len(pending),
			"attempt", attempt,
			"delay", r.opts.redeliveryDelay,
		)
		timer := time.NewTimer(r.opts.redeliveryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// attempt hands evs to the handler and returns the events that failed in a
// retryable way.
func (r *Runner) attempt(ctx context.Context, logger *slog.Logger, evs []events.ChangeEvent, attempt int) []events.ChangeEvent {
	result := r.handle(ctx, evs)

	logger.Info("Handled change events",
		"attempt", attempt,
		"events", len(evs),
		"succeeded", result.Succeeded,
		"ignored", result.Ignored,
		"failed", len(result.Failed),
	)

	var retry []events.ChangeEvent
	for _, f := range result.Failed {
		if f.Kind.Retryable() {
			retry = append(retry, f.Event)
		}
	}
	return retry
}
