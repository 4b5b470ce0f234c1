package status

import (
	"bytes"

	"github.com/Veraticus/sessionguard/pkg/interfaces"
)

// Common ANSI escape sequences for screen clearing
var screenClearSequences = [][]byte{
	[]byte("\033[2J"),     // Clear entire screen
	[]byte("\033[3J"),     // Clear entire screen and scrollback
	[]byte("\033[0J"),     // Clear from cursor to end of screen
	[]byte("\033[1J"),     // Clear from cursor to beginning of screen
	[]byte("\033c"),       // Reset terminal
	[]byte("\033[?1049h"), // Enter alternate screen
}

// ScreenWatcher scans the wrapped program's output for screen clears so the
// status line can be redrawn after it is wiped.
type ScreenWatcher struct {
	handler interfaces.ScreenEventHandler
	// Tail of the previous chunk for sequences split across reads
	buffer []byte
}

// Ensure ScreenWatcher implements DataHandler
var _ interfaces.DataHandler = (*ScreenWatcher)(nil)

// NewScreenWatcher creates a watcher reporting to handler.
func NewScreenWatcher(handler interfaces.ScreenEventHandler) *ScreenWatcher {
	return &ScreenWatcher{
		handler: handler,
		buffer:  make([]byte, 0, 256),
	}
}

// HandleData implements interfaces.DataHandler. It is called from the single
// output copy goroutine.
func (w *ScreenWatcher) HandleData(data []byte) {
	if w.handler == nil {
		return
	}

	w.buffer = append(w.buffer, data...)

	for _, seq := range screenClearSequences {
		if bytes.Contains(w.buffer, seq) {
			w.handler.HandleScreenClear()
			// Drop what was matched so the same clear is not reported twice.
			w.buffer = w.buffer[:0]
			return
		}
	}

	// The longest sequence we're looking for is 8 bytes
	if len(w.buffer) > 16 {
		w.buffer = append(w.buffer[:0], w.buffer[len(w.buffer)-16:]...)
	}
}
