package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the chat's lane has no free slot.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes the dispatcher. Zero values pick defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

// Dispatcher runs outbound Telegram calls on a fixed set of lanes. A chat is
// pinned to one lane, so its replies leave in the order they were queued.
type Dispatcher struct {
	opts  Options
	lanes []chan job

	mu     sync.RWMutex
	closed bool
	done   sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the lane workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	depth := max(opts.QueueSize/opts.Workers, 1)

	d := &Dispatcher{opts: opts, lanes: make([]chan job, opts.Workers)}
	d.done.Add(len(d.lanes))
	for i := range d.lanes {
		lane := make(chan job, depth)
		d.lanes[i] = lane
		go func() {
			defer d.done.Done()
			for j := range lane {
				d.execute(j)
			}
		}()
	}
	return d
}

// Enqueue queues run on the lane of the chat found in ctx. run may be called
// more than once when the call fails transiently.
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
	case d.laneFor(ctx) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) laneFor(ctx context.Context) chan job {
	key := logger.ChatIDFrom(ctx)
	if key == 0 {
		key = logger.UserIDFrom(ctx)
	}
	if key < 0 {
		key = -key
	}
	return d.lanes[key%int64(len(d.lanes))]
}

// ErrorCount reports how many jobs failed for good.
func (d *Dispatcher) ErrorCount() uint64 { return d.failed.Load() }

// Close drains queued jobs and stops the workers. Later calls do nothing.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, lane := range d.lanes {
			close(lane)
		}
	}
	d.mu.Unlock()
	d.done.Wait()
}

func (d *Dispatcher) execute(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	logger.Debug(j.ctx, component, "send.start", j.attrs()...)

	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			d.logDelivered(j, attempt, time.Since(start))
			return
		}
		wait, ok := d.backoff(err, attempt)
		if !ok || attempt == attempts {
			break
		}
		logger.Debug(j.ctx, component, "send.retry.backoff",
			append(j.attrs(), slog.Int("attempt", attempt), slog.Duration("delay", wait))...)
		if !sleep(ctx, wait) {
			err = ctx.Err()
			break
		}
	}

	d.failed.Add(1)
	kind := classifyError(err)
	metrics.IncSendFailure(kind)
	logger.Error(j.ctx, component, "send.fail", append(j.attrs(),
		slog.String("error", sanitizeErrorMessage(err)),
		slog.String("error_kind", kind),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", logger.RoundMS(time.Since(start))),
	)...)
}

func (d *Dispatcher) logDelivered(j job, attempt int, took time.Duration) {
	attrs := append(j.attrs(), slog.Duration("elapsed", logger.RoundMS(took)))
	if attempt == 1 {
		logger.Debug(j.ctx, component, "send.success", attrs...)
		return
	}
	logger.Info(j.ctx, component, "send.retry.success", append(attrs, slog.Int("attempt", attempt))...)
}

// backoff obeys Telegram's retry_after and otherwise grows linearly for transient errors.
func (d *Dispatcher) backoff(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	if !retryable(err) {
		return 0, false
	}
	return d.opts.RetryBackoff * time.Duration(attempt), true
}

// sleep waits for d or until ctx ends, reporting whether the full wait elapsed.
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
