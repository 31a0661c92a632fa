// Package metrics collects fan-out counters and reports them to Redis.
// Each command writes one JSON snapshot under metrics:<service> that expires
// when the process stops refreshing it.
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for service metrics.
	KeyPrefix = "metrics:"
	// TTL is how long metrics stay in Redis if not refreshed.
	TTL = 2 * time.Minute
	// DefaultReportInterval is the default interval for writing metrics to Redis.
	DefaultReportInterval = 30 * time.Second
)

// ServiceMetrics is the snapshot written to Redis.
type ServiceMetrics struct {
	ServiceName string    `json:"service_name"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	Status      string    `json:"status"`

	DeliveriesReceived  uint64 `json:"deliveries_received"`
	DeliveriesProcessed uint64 `json:"deliveries_processed"`
	ActionsSucceeded    uint64 `json:"actions_succeeded"`
	ProcessingErrors    uint64 `json:"processing_errors"`

	DeliveriesPerSecond    float64 `json:"deliveries_per_second"`
	AvgProcessingLatencyNs float64 `json:"avg_processing_latency_ns"`

	CustomCounters map[string]uint64 `json:"custom_counters,omitempty"`
}

// Collector collects and reports metrics for a service.
// All Record methods are safe for concurrent use.
type Collector struct {
	serviceName    string
	redis          *redis.Client
	startedAt      time.Time
	reportInterval time.Duration

	deliveriesReceived  atomic.Uint64
	deliveriesProcessed atomic.Uint64
	actionsSucceeded    atomic.Uint64
	processingErrors    atomic.Uint64

	totalLatencyNs atomic.Uint64
	latencyCount   atomic.Uint64

	// guards the rate window
	rateMu             sync.Mutex
	lastReportTime     time.Time
	lastProcessedCount uint64

	customMu       sync.RWMutex
	customCounters map[string]*atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewCollector creates a new metrics collector. A nil redis client makes
// reporting a no-op while counters still accumulate.
func NewCollector(serviceName string, redisClient *redis.Client) *Collector {
	now := time.Now().UTC()
	return &Collector{
		serviceName:    serviceName,
		redis:          redisClient,
		startedAt:      now,
		reportInterval: DefaultReportInterval,
		lastReportTime: now,
		customCounters: make(map[string]*atomic.Uint64),
		stopCh:         make(chan struct{}),
	}
}

// SetReportInterval sets the interval for writing metrics to Redis.
// Must be called before Start.
func (c *Collector) SetReportInterval(interval time.Duration) {
	c.reportInterval = interval
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.Flush(context.Background()) // final write
				return
			case <-c.stopCh:
				c.Flush(context.Background()) // final write
				return
			case <-ticker.C:
				c.Flush(ctx)
			}
		}
	}()
}

// Stop stops reporting and waits for the final write.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// RecordReceived counts one inbound delivery.
func (c *Collector) RecordReceived() {
	c.deliveriesReceived.Add(1)
}

// RecordProcessed counts one handled delivery and its latency.
func (c *Collector) RecordProcessed(latency time.Duration) {
	c.deliveriesProcessed.Add(1)
	c.totalLatencyNs.Add(uint64(latency.Nanoseconds()))
	c.latencyCount.Add(1)
}

// RecordPublished counts one successful transport action (subscribe or publish).
func (c *Collector) RecordPublished() {
	c.actionsSucceeded.Add(1)
}

// RecordError increments the processing errors counter.
func (c *Collector) RecordError() {
	c.processingErrors.Add(1)
}

// IncrementCustom increments a custom counter by name.
func (c *Collector) IncrementCustom(name string) {
	c.AddCustom(name, 1)
}

// AddCustom adds a value to a custom counter.
func (c *Collector) AddCustom(name string, value uint64) {
	c.customMu.RLock()
	counter, exists := c.customCounters[name]
	c.customMu.RUnlock()

	if !exists {
		c.customMu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = c.customCounters[name]; !exists {
			counter = &atomic.Uint64{}
			c.customCounters[name] = counter
		}
		c.customMu.Unlock()
	}
	counter.Add(value)
}

// Snapshot returns current metrics without writing to Redis.
func (c *Collector) Snapshot() *ServiceMetrics {
	now := time.Now().UTC()
	processed := c.deliveriesProcessed.Load()

	c.rateMu.Lock()
	elapsed := now.Sub(c.lastReportTime).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(processed-c.lastProcessedCount) / elapsed
	}
	c.rateMu.Unlock()

	var avgLatencyNs float64
	if n := c.latencyCount.Load(); n > 0 {
		avgLatencyNs = float64(c.totalLatencyNs.Load()) / float64(n)
	}

	c.customMu.RLock()
	custom := make(map[string]uint64, len(c.customCounters))
	for name, counter := range c.customCounters {
		custom[name] = counter.Load()
	}
	c.customMu.RUnlock()

	return &ServiceMetrics{
		ServiceName:            c.serviceName,
		StartedAt:              c.startedAt,
		LastUpdated:            now,
		Status:                 "healthy",
		DeliveriesReceived:     c.deliveriesReceived.Load(),
		DeliveriesProcessed:    processed,
		ActionsSucceeded:       c.actionsSucceeded.Load(),
		ProcessingErrors:       c.processingErrors.Load(),
		DeliveriesPerSecond:    rate,
		AvgProcessingLatencyNs: avgLatencyNs,
		CustomCounters:         custom,
	}
}

// Flush writes the current snapshot to Redis and resets the rate window.
func (c *Collector) Flush(ctx context.Context) {
	if c.redis == nil {
		return
	}

	snap := c.Snapshot()

	c.rateMu.Lock()
	c.lastReportTime = snap.LastUpdated
	c.lastProcessedCount = snap.DeliveriesProcessed
	c.rateMu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Failed to marshal metrics", "service", c.serviceName, "error", err)
		return
	}

	key := KeyPrefix + c.serviceName
	if err := c.redis.Set(ctx, key, data, TTL).Err(); err != nil {
		slog.Error("Failed to write metrics to Redis", "service", c.serviceName, "error", err)
		return
	}

	slog.Debug("Metrics written to Redis", "service", c.serviceName, "key", key)
}
