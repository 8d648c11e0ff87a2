package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/resume-studio/pkg/kafka"
)

// Publisher sends a batch of events to the broker.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorConfig sizes the in-memory buffer and batching.
type CollectorConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

// Collector buffers events in a channel and publishes them in batches,
// flushing when a batch fills or the interval elapses. Track never blocks:
// events are dropped when the buffer is full. A nil *Collector is valid and
// discards everything.
type Collector struct {
	publisher     Publisher
	eventCh       chan any
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}
	closeOnce     sync.Once
	dropped       atomic.Int64
	published     atomic.Int64
}

func NewCollector(publisher Publisher, cfg CollectorConfig) *Collector {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 10000
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan any, cfg.BufferSize),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publishing loop. It runs until ctx is cancelled or
// Close is called, flushing whatever is buffered before it exits.
func (c *Collector) Start(ctx context.Context) {
	if c == nil {
		return
	}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		batch := make([]kafka.Event, 0, c.batchSize)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					c.finalFlush(batch)
					return
				}
				batch = append(batch, toKafka(event))
				if len(batch) >= c.batchSize {
					batch = c.flush(ctx, batch)
				}
			case <-ticker.C:
				batch = c.flush(ctx, batch)
			case <-ctx.Done():
				c.finalFlush(c.drain(batch))
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track enqueues an event without blocking.
func (c *Collector) Track(event any) {
	if c == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.dropped.Add(1)
		c.logger.Warn("analytics event dropped (buffer full)", "type", eventType(event))
	}
}

// Close stops accepting events and waits for the final flush. Start must
// have been called.
func (c *Collector) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (c *Collector) Dropped() int64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Published returns how many events reached the broker.
func (c *Collector) Published() int64 {
	if c == nil {
		return 0
	}
	return c.published.Load()
}

func (c *Collector) drain(batch []kafka.Event) []kafka.Event {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toKafka(event))
		default:
			return batch
		}
	}
}

func (c *Collector) finalFlush(batch []kafka.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.flush(ctx, batch)
}

// flush publishes batch and returns an empty slice to reuse. A failed
// batch is logged and dropped; analytics never hold up requests.
func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.dropped.Add(int64(len(batch)))
		c.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
	} else {
		c.published.Add(int64(len(batch)))
		c.logger.Debug("batch flushed", "events", len(batch))
	}
	return make([]kafka.Event, 0, c.batchSize)
}

func toKafka(event any) kafka.Event {
	return kafka.Event{Key: string(eventType(event)), Value: event}
}
