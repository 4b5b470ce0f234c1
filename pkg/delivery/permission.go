package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Permission is the user's consent to receive notifications.
type Permission interface {
	Granted(ctx context.Context) bool
	Request(ctx context.Context) (bool, error)
}

// GatedSender checks permission before the first send and remembers the
// outcome for the rest of the process lifetime.
type GatedSender struct {
	next   Sender
	perm   Permission
	logger *slog.Logger

	mu      sync.Mutex
	decided bool
	granted bool
}

// NewGatedSender wraps next with a permission check.
func NewGatedSender(next Sender, perm Permission, logger *slog.Logger) *GatedSender {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GatedSender{next: next, perm: perm, logger: logger}
}

// Send delivers item when permission is granted and returns
// ErrPermissionDenied otherwise.
func (g *GatedSender) Send(ctx context.Context, item Item) error {
	if !g.allowed(ctx) {
		return fmt.Errorf("drop %q: %w", item.Title, ErrPermissionDenied)
	}
	return g.next.Send(ctx, item)
}

// Decided reports whether the permission check has run and its outcome.
func (g *GatedSender) Decided() (decided, granted bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decided, g.granted
}

func (g *GatedSender) allowed(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.decided {
		return g.granted
	}
	g.decided = true

	if g.perm.Granted(ctx) {
		g.granted = true
		return true
	}

	granted, err := g.perm.Request(ctx)
	if err != nil {
		// A failed request counts as a denial.
		g.logger.Warn("notification permission request failed", "error", err)
		granted = false
	}
	g.granted = granted
	if !granted {
		g.logger.Warn("notification permission denied, notifications disabled")
	}
	return g.granted
}
