// Package delivery serializes notification items onto a single outbound
// channel.
package delivery

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned when the user has not allowed
	// notifications. The item is dropped and never retried.
	ErrPermissionDenied = errors.New("notification permission denied")

	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("delivery queue closed")
)

// Item is a single notification. Duplicate items are delivered twice.
type Item struct {
	Title string
	Body  string
	Icon  string
}

// Sender delivers one item to an external channel.
type Sender interface {
	Send(ctx context.Context, item Item) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, item Item) error

// Send calls f(ctx, item).
func (f SenderFunc) Send(ctx context.Context, item Item) error {
	return f(ctx, item)
}
