// Package activity tracks the most recent user interaction.
package activity

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Veraticus/sessionguard/pkg/clock"
)

// Kind is an interaction signal type.
type Kind int

const (
	PointerDown Kind = iota
	PointerMove
	KeyPress
	Scroll
	TouchStart
	Click
)

var kindNames = [...]string{
	PointerDown: "pointer-down",
	PointerMove: "pointer-move",
	KeyPress:    "key-press",
	Scroll:      "scroll",
	TouchStart:  "touch-start",
	Click:       "click",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Kinds returns the fixed set of signal kinds that count as activity.
func Kinds() []Kind {
	return []Kind{PointerDown, PointerMove, KeyPress, Scroll, TouchStart, Click}
}

// ParseKind returns the kind named s.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if kindNames[k] == s {
			return k, true
		}
	}
	return 0, false
}

// Handler receives a signal.
type Handler func(kind Kind)

// Source delivers interaction signals to subscribers.
type Source interface {
	Subscribe(kind Kind, h Handler) (unsubscribe func())
}

// SubscribeAll subscribes h to every kind in Kinds. The returned function
// releases every subscription once; later calls do nothing.
func SubscribeAll(src Source, h Handler) func() {
	kinds := Kinds()
	unsubs := make([]func(), 0, len(kinds))
	for _, k := range kinds {
		unsubs = append(unsubs, src.Subscribe(k, h))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, u := range unsubs {
				u()
			}
		})
	}
}

// Tracker holds the last activity timestamp. It is safe for concurrent use.
type Tracker struct {
	clock clock.Clock
	last  atomic.Int64 // unix nanoseconds
}

// NewTracker creates a tracker whose last activity is the current time.
func NewTracker(c clock.Clock) *Tracker {
	if c == nil {
		c = clock.Real()
	}
	t := &Tracker{clock: c}
	t.last.Store(c.Now().UnixNano())
	return t
}

// RecordActivity sets the last activity time to now. It never moves the
// timestamp backwards.
func (t *Tracker) RecordActivity() {
	now := t.clock.Now().UnixNano()
	for {
		prev := t.last.Load()
		if now <= prev || t.last.CompareAndSwap(prev, now) {
			return
		}
	}
}

// LastActivity returns the last time activity was recorded.
func (t *Tracker) LastActivity() time.Time {
	return time.Unix(0, t.last.Load())
}

// Idle reports whether no activity happened within threshold.
func (t *Tracker) Idle(threshold time.Duration) bool {
	return t.clock.Now().Sub(t.LastActivity()) >= threshold
}

// Mount subscribes the tracker to every signal kind of src. The returned
// unmount function removes all of those subscriptions.
func (t *Tracker) Mount(src Source) (unmount func()) {
	return SubscribeAll(src, func(Kind) { t.RecordActivity() })
}
