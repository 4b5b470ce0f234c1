package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
)

// StdoutSender prints items instead of delivering them. It is used when no
// ntfy topic is configured.
type StdoutSender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdoutSender creates a sender writing to w, or os.Stdout when w is nil.
func NewStdoutSender(w io.Writer) *StdoutSender {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutSender{w: w}
}

// Send prints the item.
func (s *StdoutSender) Send(_ context.Context, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "[NOTIFICATION] %s: %s\n", item.Title, item.Body)
	return err
}
