package metrics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

type EventType string

const (
	EventRedirectServed EventType = "redirect_served"
	EventFallbackServed EventType = "fallback_served"
	EventCacheRefreshed EventType = "cache_refreshed"
	EventBotServed      EventType = "bot_served"
)

type MetricEvent struct {
	Type        EventType
	Timestamp   time.Time
	Destination string
	Reason      string
	Duration    time.Duration
	Candidates  int
	FromStore   bool
	Failed      bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	prom    *Prometheus
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewCollector creates a collector. prom may be nil to skip the Prometheus
// mirror.
func NewCollector(bufferSize int, logger *slog.Logger, prom *Prometheus) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		prom:    prom,
		logger:  logger,
	}
}

// Emit queues event without blocking. Events are dropped when the buffer is
// full.
func (c *Collector) Emit(event MetricEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full buffer.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRedirectServed:
		c.metrics.RecordRedirect(event.Destination, event.Duration)

	case EventFallbackServed:
		c.metrics.RecordFallback(event.Reason, event.Duration)

	case EventCacheRefreshed:
		c.metrics.RecordRefresh(event.Timestamp, event.Candidates, event.FromStore, event.Failed)

	case EventBotServed:
		c.metrics.RecordBotHit()

	default:
		c.logger.Debug("unknown metric event", slog.String("type", string(event.Type)))
		return
	}

	if c.prom != nil {
		c.prom.Observe(event)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot(strategy string) Snapshot {
	snap := c.metrics.Snapshot(strategy)
	snap.DroppedEvents = c.dropped.Load()
	return snap
}
