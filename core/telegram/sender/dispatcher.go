// Package sender runs best-effort Bot API calls on a small worker pool.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/core/metrics"
	"github.com/m3rciful/appealbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the job did not fit in the queue.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes a Dispatcher. Zero values take defaults.
type Options struct {
	QueueSize  int
	Workers    int
	MaxRetries int
	// RetryBackoff grows linearly with the attempt number. A flood wait
	// requested by Telegram takes precedence when longer.
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o *Options) defaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes queued calls and retries transient failures.
type Dispatcher struct {
	opts Options

	mu     sync.RWMutex
	closed bool
	jobs   chan job

	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts.defaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.do(j)
			}
		}()
	}
	return d
}

// Enqueue queues run without blocking. action and endpoint label the logs.
// run may be called more than once.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount is the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close drains the queue and waits for the workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) do(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	attempt := 1
	for ; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			logJob(j, slog.LevelDebug, "send.ok", slog.Int("attempt", attempt), slog.Duration("duration", logger.Took(start)))
			return
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}
		delay := max(d.opts.RetryBackoff*time.Duration(attempt), netutil.RetryAfter(err))
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			break
		}
		logJob(j, slog.LevelDebug, "send.retry",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error_kind", string(netutil.Classify(err))),
		)
		if !sleep(ctx, delay) {
			err = errors.Join(err, ctx.Err())
			break
		}
	}

	d.failed.Add(1)
	metrics.SenderFailures.Inc()
	logJob(j, slog.LevelError, "send.fail",
		slog.Int("attempts", min(attempt, attempts)),
		slog.Duration("duration", logger.Took(start)),
		slog.String("error_kind", string(netutil.Classify(err))),
		slog.String("error", netutil.Redact(err)),
	)
}

func logJob(j job, level slog.Level, event string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{slog.String("action", j.action), slog.String("endpoint", j.endpoint)}, attrs...)
	logger.Event(j.ctx, "tg.sender", level, event, attrs...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
