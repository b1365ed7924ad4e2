// Package album merges Telegram media group updates that arrive as separate
// events into a single batch released after a fixed quiescence window.
package album

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/metrics"
)

// DefaultLatency is the window measured from the first event of a group.
const DefaultLatency = 500 * time.Millisecond

// Admission tells the caller what happened to an admitted event.
type Admission int

const (
	// DeliverImmediately means the event has no group and the caller handles it now.
	DeliverImmediately Admission = iota
	// Buffered means the event was queued and will ride along with its group.
	Buffered
)

func (a Admission) String() string {
	if a == Buffered {
		return "buffered"
	}
	return "deliver_immediately"
}

// Batch is one released media group.
type Batch[E any] struct {
	Key    string
	Events []E
	// Last marks the batch as the final delivery of its group.
	Last bool
}

// DeliverFunc consumes a released batch.
type DeliverFunc[E any] func(ctx context.Context, b Batch[E]) error

// Options configures a Coordinator.
type Options[E any] struct {
	Latency time.Duration
	Deliver DeliverFunc[E]
}

type group[E any] struct {
	ctx    context.Context
	events []E
	timer  *time.Timer
}

// Coordinator buffers grouped events per key. Each group gets one timer
// started by its first event; later events never reset it.
type Coordinator[E any] struct {
	latency time.Duration
	deliver DeliverFunc[E]

	mu         sync.Mutex
	groups     map[string]*group[E]
	delivering map[string]int
	closed     bool
	wg         sync.WaitGroup
}

// New builds a Coordinator. Deliver is required.
func New[E any](opts Options[E]) (*Coordinator[E], error) {
	if opts.Deliver == nil {
		return nil, fmt.Errorf("album: deliver func is required")
	}
	if opts.Latency <= 0 {
		opts.Latency = DefaultLatency
	}
	return &Coordinator[E]{
		latency:    opts.Latency,
		deliver:    opts.Deliver,
		groups:     make(map[string]*group[E]),
		delivering: make(map[string]int),
	}, nil
}

// Admit routes ev. An empty key is delivered by the caller immediately.
func (c *Coordinator[E]) Admit(ctx context.Context, key string, ev E) Admission {
	if key == "" {
		return DeliverImmediately
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return DeliverImmediately
	}

	if g, ok := c.groups[key]; ok {
		g.events = append(g.events, ev)
		return Buffered
	}

	if c.delivering[key] > 0 {
		metrics.AlbumLate.Inc()
		logger.LogEvent(ctx, logger.Album, slog.LevelWarn, "album.late",
			slog.String("group", key),
		)
	}

	g := &group[E]{
		ctx:    context.WithoutCancel(ctx),
		events: []E{ev},
	}
	c.groups[key] = g
	c.wg.Add(1)
	g.timer = time.AfterFunc(c.latency, func() { c.release(key, g) })
	metrics.AlbumPending.Inc()
	return Buffered
}

// release detaches the group and hands it to Deliver exactly once.
func (c *Coordinator[E]) release(key string, g *group[E]) {
	defer c.wg.Done()

	c.mu.Lock()
	if cur, ok := c.groups[key]; !ok || cur != g {
		c.mu.Unlock()
		return
	}
	delete(c.groups, key)
	c.delivering[key]++
	events := append([]E(nil), g.events...)
	c.mu.Unlock()

	metrics.AlbumPending.Dec()
	metrics.AlbumReleases.Inc()

	defer func() {
		c.mu.Lock()
		c.delivering[key]--
		if c.delivering[key] <= 0 {
			delete(c.delivering, key)
		}
		c.mu.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.LogEvent(g.ctx, logger.Album, slog.LevelError, "album.panic",
				slog.String("group", key),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	start := time.Now()
	err := c.deliver(g.ctx, Batch[E]{Key: key, Events: events, Last: true})
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("group", key),
		slog.Int("events", len(events)),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs, logger.Err(err))
		logger.LogEvent(g.ctx, logger.Album, slog.LevelError, "album.release", attrs...)
		return
	}
	logger.LogEvent(g.ctx, logger.Album, slog.LevelDebug, "album.release", attrs...)
}

// Pending reports groups buffered or being delivered.
func (c *Coordinator[E]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.groups) + len(c.delivering)
}

// Close stops accepting groups, releases the buffered ones right away and
// waits until every delivery has returned.
func (c *Coordinator[E]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.closed = true
	var flush []func()
	for key, g := range c.groups {
		if g.timer.Stop() {
			flush = append(flush, func() { c.release(key, g) })
		}
	}
	c.mu.Unlock()

	for _, fn := range flush {
		fn()
	}
	c.wg.Wait()
}
