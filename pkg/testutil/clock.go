package testutil

import (
	"sync"
	"time"

	"github.com/Veraticus/sessionguard/pkg/clock"
)

// FakeClock is a manually advanced clock.Clock for tests. Tickers and After
// channels fire only from Advance.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	waiters []*fakeWaiter
}

type fakeTicker struct {
	clock   *FakeClock
	period  time.Duration
	next    time.Time
	c       chan time.Time
	stopped bool
}

type fakeWaiter struct {
	deadline time.Time
	c        chan time.Time
}

// Ensure FakeClock implements clock.Clock
var _ clock.Clock = (*FakeClock)(nil)

// NewFakeClock creates a fake clock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake current time.
func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker creates a ticker that fires as Advance crosses each period.
func (f *FakeClock) NewTicker(d time.Duration) clock.Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		clock:  f,
		period: d,
		next:   f.now.Add(d),
		c:      make(chan time.Time, 1),
	}
	f.tickers = append(f.tickers, t)
	return t
}

// After returns a channel that receives once Advance reaches now+d.
func (f *FakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := &fakeWaiter{deadline: f.now.Add(d), c: make(chan time.Time, 1)}
	if d <= 0 {
		w.c <- f.now
		return w.c
	}
	f.waiters = append(f.waiters, w)
	return w.c
}

// Advance moves the clock forward and fires due tickers and waiters. Like
// time.Ticker, a ticker whose previous tick was not consumed drops ticks.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)

	for _, t := range f.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(f.now) {
			select {
			case t.c <- t.next:
			default:
			}
			t.next = t.next.Add(t.period)
		}
	}

	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.deadline.After(f.now) {
			w.c <- f.now
			continue
		}
		remaining = append(remaining, w)
	}
	f.waiters = remaining
}

// ActiveTickers returns the periods of tickers that have not been stopped.
func (f *FakeClock) ActiveTickers() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()

	var periods []time.Duration
	for _, t := range f.tickers {
		if !t.stopped {
			periods = append(periods, t.period)
		}
	}
	return periods
}

// Waiters returns the number of pending After channels.
func (f *FakeClock) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}
