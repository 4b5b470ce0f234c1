package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/sessionguard/pkg/delivery"
)

// Source is the backend the watcher polls.
type Source interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]Notification, error)
}

// Enqueuer accepts items for delivery.
type Enqueuer interface {
	Enqueue(item delivery.Item) error
}

// UnreadReporter displays the unread count.
type UnreadReporter interface {
	ReportUnread(n int)
}

// Watcher turns growth of the unread count into delivery items. Its Refresh
// method is the refresh poller's callback.
type Watcher struct {
	source   Source
	queue    Enqueuer
	reporter UnreadReporter
	logger   *slog.Logger

	// refreshMu serializes refreshes; mu guards icon and last and is never
	// held across a backend call.
	refreshMu sync.Mutex
	mu        sync.Mutex
	icon      string
	last      int
}

// NewWatcher creates a watcher. reporter may be nil.
func NewWatcher(source Source, queue Enqueuer, reporter UnreadReporter, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{source: source, queue: queue, reporter: reporter, logger: logger}
}

// SetIcon sets the icon attached to every produced item.
func (w *Watcher) SetIcon(icon string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.icon = icon
}

// Refresh fetches the unread count and enqueues the new notifications. No
// user being signed in is not an error.
func (w *Watcher) Refresh(ctx context.Context) error {
	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	unread, err := w.source.Count(ctx)
	if errors.Is(err, ErrNoToken) {
		w.logger.Debug("skipping inbox refresh, not signed in")
		return nil
	}
	if err != nil {
		return err
	}

	if w.reporter != nil {
		w.reporter.ReportUnread(unread)
	}

	w.mu.Lock()
	last := w.last
	w.last = unread
	icon := w.icon
	w.mu.Unlock()

	// The first count after startup only establishes the baseline.
	if unread <= last || last == 0 {
		return nil
	}

	items, err := w.source.List(ctx)
	if err != nil {
		return err
	}

	added := min(unread-last, len(items))
	var enqueueErr error
	for _, n := range items[:added] {
		if err := w.queue.Enqueue(delivery.Item{Title: n.Title, Body: n.Body, Icon: icon}); err != nil {
			enqueueErr = fmt.Errorf("enqueue %q: %w", n.Title, err)
		}
	}
	w.logger.Info("new inbox notifications", "count", added, "unread", unread)
	return enqueueErr
}

// Unread returns the last observed unread count.
func (w *Watcher) Unread() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Reset forgets the baseline, for example after a logout.
func (w *Watcher) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = 0
	if w.reporter != nil {
		w.reporter.ReportUnread(0)
	}
}
