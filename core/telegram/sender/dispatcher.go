// Package sender runs outbound Bot API calls on a small worker pool.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the chat's worker queue has no room.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tunes the dispatcher. Zero values pick defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds one job including its retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
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
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	out := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		out = append(out, slog.String("endpoint", j.endpoint))
	}
	return append(out, extra...)
}

// Dispatcher executes sends asynchronously with retries. A chat is pinned
// to one worker so its replies arrive in order.
type Dispatcher struct {
	opts   Options
	policy netutil.Policy
	queues []chan job
	wg     sync.WaitGroup
	errs   atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts: opts,
		policy: netutil.Policy{
			MaxRetries: opts.MaxRetries,
			Initial:    opts.RetryBackoff,
			MaxElapsed: opts.MaxDuration,
		},
		queues: make([]chan job, opts.Workers),
	}
	depth := max(opts.QueueSize/opts.Workers, 1)
	for i := range d.queues {
		d.queues[i] = make(chan job, depth)
		d.wg.Add(1)
		go d.work(d.queues[i])
	}
	return d
}

// Enqueue schedules run on the worker owning the chat in ctx. run may be
// called more than once.
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
	case d.queueFor(ctx) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) queueFor(ctx context.Context) chan job {
	key := logger.ChatIDFrom(ctx)
	if key == 0 {
		key = logger.UserIDFrom(ctx)
	}
	if key < 0 {
		key = -key
	}
	return d.queues[key%int64(len(d.queues))]
}

// ErrorCount returns how many jobs failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops intake and waits for queued jobs to finish. It is idempotent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := netutil.Do(ctx, d.policy, j.run, func(attempt int, err error, wait time.Duration) {
		logger.Debug(j.ctx, "tg.sender", "send.retry.backoff", j.attrs(
			slog.Int("attempt", attempt),
			slog.Duration("delay", wait),
			slog.String("err", netutil.ErrorText(err)),
		)...)
	})
	elapsed := slog.Duration("elapsed", logger.RoundMS(time.Since(start)))
	switch {
	case err != nil:
		d.errs.Add(1)
		logger.Error(j.ctx, "tg.sender", "send.fail", j.attrs(
			slog.String("err", netutil.ErrorText(err)),
			slog.String("error_kind", netutil.Classify(err)),
			slog.Int("attempts", attempts),
			elapsed,
		)...)
	case attempts > 1:
		logger.Info(j.ctx, "tg.sender", "send.retry.success", j.attrs(slog.Int("attempts", attempts), elapsed)...)
	default:
		logger.Debug(j.ctx, "tg.sender", "send.success", j.attrs(elapsed)...)
	}
}
