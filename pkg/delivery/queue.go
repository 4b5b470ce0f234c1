package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/sessionguard/pkg/clock"
	"github.com/Veraticus/sessionguard/pkg/interfaces"
	"github.com/Veraticus/sessionguard/pkg/metrics"
)

// DefaultPace is the delay between two deliveries.
const DefaultPace = time.Second

// Stats is a snapshot of queue counters.
type Stats struct {
	Pending   int
	Delivered int
	Failed    int
	Dropped   int
	// Cycles counts transitions from idle to draining.
	Cycles int
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithPace sets the delay between deliveries.
func WithPace(d time.Duration) QueueOption {
	return func(q *Queue) { q.pace = d }
}

// WithClock sets the clock used for pacing.
func WithClock(c clock.Clock) QueueOption {
	return func(q *Queue) { q.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

// WithReporter sets the status reporter notified around each send.
func WithReporter(r interfaces.StatusReporter) QueueOption {
	return func(q *Queue) { q.reporter = r }
}

// Queue delivers items one at a time in FIFO order with a fixed pause
// between them. At most one drain goroutine exists per queue.
type Queue struct {
	sender   Sender
	pace     time.Duration
	clock    clock.Clock
	logger   *slog.Logger
	reporter interfaces.StatusReporter

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	pending    []Item
	processing bool
	closed     bool
	done       chan struct{}
	stats      Stats
}

// NewQueue creates an idle queue that delivers through sender.
func NewQueue(sender Sender, opts ...QueueOption) *Queue {
	q := &Queue{
		sender: sender,
		pace:   DefaultPace,
		clock:  clock.Real(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	return q
}

// Enqueue appends item and starts draining if the queue is idle. It never
// waits for delivery.
func (q *Queue) Enqueue(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.stats.Dropped++
		metrics.IncDelivery("dropped")
		return ErrQueueClosed
	}

	q.pending = append(q.pending, item)
	if q.processing {
		return nil
	}

	q.processing = true
	q.stats.Cycles++
	q.done = make(chan struct{})
	go q.drain(q.done)
	return nil
}

// Processing reports whether a drain goroutine is active.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Stats returns a snapshot of the counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Pending = len(q.pending)
	return s
}

// Close stops draining and drops whatever is still pending. It waits for
// the drain goroutine to exit. Calling Close more than once is safe.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	dropped := len(q.pending)
	q.stats.Dropped += dropped
	q.pending = nil
	done := q.done
	q.mu.Unlock()

	q.cancel()
	if done != nil {
		<-done
	}

	for i := 0; i < dropped; i++ {
		metrics.IncDelivery("dropped")
	}
	if dropped > 0 {
		q.logger.Warn("delivery queue closed with pending items", "dropped", dropped)
	}
	return nil
}

func (q *Queue) drain(done chan struct{}) {
	defer close(done)

	for {
		q.mu.Lock()
		if q.closed || len(q.pending) == 0 {
			q.processing = false
			q.mu.Unlock()
			return
		}
		item := q.pending[0]
		q.pending[0] = Item{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.deliver(item)

		select {
		case <-q.clock.After(q.pace):
		case <-q.ctx.Done():
		}
	}
}

// send calls the sender inside the failure boundary: a panic becomes an
// ordinary delivery failure and the drain loop moves on to the next item.
func (q *Queue) send(item Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sender panicked: %v", r)
		}
	}()
	return q.sender.Send(q.ctx, item)
}

func (q *Queue) deliver(item Item) {
	if q.reporter != nil {
		q.reporter.ReportSending()
	}

	err := q.send(item)

	q.mu.Lock()
	switch {
	case err == nil:
		q.stats.Delivered++
	case errors.Is(err, ErrPermissionDenied):
		q.stats.Dropped++
	default:
		q.stats.Failed++
	}
	q.mu.Unlock()

	switch {
	case err == nil:
		metrics.IncDelivery("delivered")
		if q.reporter != nil {
			q.reporter.ReportSuccess()
		}
	case errors.Is(err, ErrPermissionDenied):
		metrics.IncDelivery("dropped")
		q.logger.Warn("notification dropped", "title", item.Title, "error", err)
		if q.reporter != nil {
			q.reporter.ReportFailure()
		}
	default:
		metrics.IncDelivery("failed")
		q.logger.Error("notification delivery failed", "title", item.Title, "error", err)
		if q.reporter != nil {
			q.reporter.ReportFailure()
		}
	}
}
