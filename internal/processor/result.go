package processor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/afikmenashe/alert-fanout/internal/events"
	"github.com/afikmenashe/alert-fanout/internal/failure"
)

// Failure is the outcome of one event that was acted on and failed.
type Failure struct {
	// Index is the event's position in the batch.
	Index int
	Event events.ChangeEvent
	Kind  failure.Kind
	Err   error
}

// Result aggregates the outcomes of one batch.
type Result struct {
	Succeeded int
	// Ignored counts events the handler deliberately does not act on.
	Ignored int
	// Failed is ordered by Index.
	Failed []Failure
}

// Retryable reports whether any failure could succeed on redelivery.
func (r Result) Retryable() bool {
	for _, f := range r.Failed {
		if f.Kind.Retryable() {
			return true
		}
	}
	return false
}

// unitFunc handles one event. acted is false when the event is ignored.
type unitFunc func(ctx context.Context, ev events.ChangeEvent) (acted bool, err error)

// runBatch runs fn for every event concurrently and aggregates the outcomes.
// One event's failure never stops its siblings. All units share the batch
// deadline derived from o.budget.
func runBatch(ctx context.Context, o options, evs []events.ChangeEvent, fn unitFunc) Result {
	if o.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.budget)
		defer cancel()
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result Result
	)

	for i, ev := range evs {
		wg.Add(1)
		go func(i int, ev events.ChangeEvent) {
			defer wg.Done()
			start := time.Now()

			acted, err := fn(ctx, ev)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case !acted:
				result.Ignored++
				o.metrics.IncrementCustom(counterEventsIgnored)
			case err != nil:
				kind := failure.KindOf(err)
				result.Failed = append(result.Failed, Failure{Index: i, Event: ev, Kind: kind, Err: err})
				o.metrics.RecordError()
				o.metrics.IncrementCustom(counterEventsFailed)
				slog.Warn("Change event failed",
					"event", ev.String(),
					"error_kind", kind,
					"retryable", kind.Retryable(),
					"error", err,
				)
			default:
				result.Succeeded++
				o.metrics.RecordPublished()
				slog.Debug("Change event handled", "event", ev.String(), "duration", time.Since(start))
			}
		}(i, ev)
	}
	wg.Wait()

	sort.Slice(result.Failed, func(a, b int) bool {
		return result.Failed[a].Index < result.Failed[b].Index
	})
	return result
}
