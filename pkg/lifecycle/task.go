// Package lifecycle provides the start/stop controller shared by the recurring
// background mechanisms.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/sessionguard/pkg/clock"
	"github.com/Veraticus/sessionguard/pkg/metrics"
)

// TickFunc is the work performed on every tick.
type TickFunc func(ctx context.Context)

// Option configures a Task.
type Option func(*Task)

// WithClock sets the clock used to arm tickers.
func WithClock(c clock.Clock) Option {
	return func(t *Task) { t.clock = c }
}

// WithLogger sets the logger used for tick diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(t *Task) { t.logger = l }
}

// WithContext sets the context handed to every tick. Stop does not cancel it.
func WithContext(ctx context.Context) Option {
	return func(t *Task) { t.ctx = ctx }
}

// Task runs a TickFunc on a fixed period. It owns at most one armed ticker;
// a nil handle means no timer is armed.
type Task struct {
	name   string
	fn     TickFunc
	clock  clock.Clock
	logger *slog.Logger
	ctx    context.Context

	mu         sync.Mutex
	handle     *handle
	lastTickAt time.Time

	// inTick is shared by all handles so a tick from a replaced handle
	// never overlaps one from its successor.
	inTick atomic.Bool
}

type handle struct {
	ticker clock.Ticker
	period time.Duration
	done   chan struct{}
}

// NewTask creates a stopped task.
func NewTask(name string, fn TickFunc, opts ...Option) *Task {
	t := &Task{
		name:   name,
		fn:     fn,
		clock:  clock.Real(),
		logger: slog.New(slog.DiscardHandler),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the task name used in logs and metrics.
func (t *Task) Name() string {
	return t.name
}

// Start arms the ticker. It returns false without side effects if the task is
// already running or the period is not positive.
func (t *Task) Start(period time.Duration) bool {
	if period <= 0 {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil {
		return false
	}
	t.arm(period)
	return true
}

// Stop cancels the ticker. It is safe to call on a task that was never
// started. A tick already executing is allowed to finish.
func (t *Task) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disarm()
}

// Restart replaces any armed ticker with one using the new period. A period
// that is not positive leaves the task stopped.
func (t *Task) Restart(period time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.disarm()
	if period <= 0 {
		return false
	}
	t.arm(period)
	return true
}

// Running reports whether a ticker is armed.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handle != nil
}

// Period returns the armed period, or zero when stopped.
func (t *Task) Period() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle == nil {
		return 0
	}
	return t.handle.period
}

// LastTickAt returns when the last tick started. Diagnostic only.
func (t *Task) LastTickAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTickAt
}

// arm must be called with t.mu held and no handle armed.
func (t *Task) arm(period time.Duration) {
	h := &handle{
		ticker: t.clock.NewTicker(period),
		period: period,
		done:   make(chan struct{}),
	}
	t.handle = h
	go t.loop(h)

	metrics.SetRunning(t.name, true)
	t.logger.Debug("task started", "task", t.name, "period", period)
}

// disarm must be called with t.mu held.
func (t *Task) disarm() bool {
	if t.handle == nil {
		return false
	}
	t.handle.ticker.Stop()
	close(t.handle.done)
	t.handle = nil

	metrics.SetRunning(t.name, false)
	t.logger.Debug("task stopped", "task", t.name)
	return true
}

func (t *Task) loop(h *handle) {
	for {
		select {
		case <-h.done:
			return
		case <-h.ticker.C():
			// Stop may have raced with the tick; done wins.
			select {
			case <-h.done:
				return
			default:
			}
			t.tick()
		}
	}
}

// tick runs fn inside the failure boundary. Nothing fn does can unregister
// the ticker.
func (t *Task) tick() {
	if !t.inTick.CompareAndSwap(false, true) {
		metrics.IncSkippedTick(t.name)
		t.logger.Debug("tick skipped, previous tick still running", "task", t.name)
		return
	}
	defer t.inTick.Store(false)

	defer func() {
		if r := recover(); r != nil {
			metrics.IncTickPanic(t.name)
			t.logger.Error("tick panicked", "task", t.name, "panic", r)
		}
	}()

	t.mu.Lock()
	t.lastTickAt = t.clock.Now()
	t.mu.Unlock()

	metrics.IncTick(t.name)
	t.fn(t.ctx)
}
