package status

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/sessionguard/pkg/interfaces"
)

// AckDuration is how long the refresh acknowledgement stays on screen.
const AckDuration = 2 * time.Second

// Status represents the current notification status
type Status int

const (
	StatusIdle Status = iota
	StatusSending
	StatusSuccess
	StatusFailed
)

// Indicator manages the status display in the terminal
type Indicator struct {
	mu      sync.Mutex
	status  Status
	enabled bool
	writer  io.Writer

	// Session state
	isIdle   bool
	isLocked bool
	unread   int

	// Transient acknowledgement text, cleared by flashTimer
	flash         string
	flashTimer    *time.Timer
	flashDuration time.Duration

	// Activity tracking for dynamic refresh
	lastActivity time.Time
	refreshChan  chan struct{}
}

// NewIndicator creates a new status indicator
func NewIndicator(writer io.Writer, enabled bool) *Indicator {
	return &Indicator{
		status:        StatusIdle,
		writer:        writer,
		enabled:       enabled,
		flashDuration: AckDuration,
		refreshChan:   make(chan struct{}, 1),
	}
}

// SetStatus updates the current delivery status
func (i *Indicator) SetStatus(status Status) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.status = status

	// Best effort - don't fail if we can't update the display
	_ = i.draw()
}

// draw renders the status indicator. Callers hold i.mu.
func (i *Indicator) draw() error {
	if !i.enabled || i.writer == nil {
		return nil
	}

	statusText := i.getStatusText()
	if statusText == "" {
		return nil
	}

	// \0337 - DECSC: Save cursor position and attributes
	// \033[r - Reset scroll region to full screen
	// \033[999;1H - Move to line 999, column 1 (clamped to the last line)
	// \033[2K - Clear entire line
	// \0338 - DECRC: Restore cursor position and attributes
	sequence := fmt.Sprintf("\0337\033[r\033[999;1H\033[2K%s\0338", statusText)

	if _, err := fmt.Fprint(i.writer, sequence); err != nil {
		return err
	}

	return nil
}

// getStatusText returns the appropriate status text with color
func (i *Indicator) getStatusText() string {
	var parts []string

	switch {
	case i.isLocked:
		parts = append(parts, "\033[31m⏻ locked\033[0m") // Red
	case i.isIdle:
		parts = append(parts, "\033[33mⓏ\033[0m") // Yellow Z for idle
	default:
		parts = append(parts, "\033[32m▶\033[0m") // Green play for active
	}

	switch i.status {
	case StatusSending:
		parts = append(parts, "\033[33m⟳ notify\033[0m")
	case StatusSuccess:
		parts = append(parts, "\033[32m✓ notify\033[0m")
	case StatusFailed:
		parts = append(parts, "\033[31m✗ notify\033[0m")
	}

	if i.unread > 0 {
		parts = append(parts, fmt.Sprintf("\033[36m✉ %d\033[0m", i.unread))
	}

	if i.flash != "" {
		parts = append(parts, "\033[32m"+i.flash+"\033[0m")
	}

	return strings.Join(parts, " ")
}

// Text returns the current status line without escape sequences.
func (i *Indicator) Text() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return stripANSI(i.getStatusText())
}

// Clear removes the status indicator
func (i *Indicator) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.flashTimer != nil {
		i.flashTimer.Stop()
		i.flashTimer = nil
	}

	if !i.enabled || i.writer == nil {
		return nil
	}

	sequence := "\0337\033[999;1H\033[2K\0338"
	if _, err := fmt.Fprint(i.writer, sequence); err != nil {
		return err
	}

	return nil
}

// StartAutoRefresh starts a goroutine that refreshes the display periodically
func (i *Indicator) StartAutoRefresh(stopChan <-chan struct{}) {
	go func() {
		normalInterval := 2 * time.Second
		activeInterval := 100 * time.Millisecond

		ticker := time.NewTicker(normalInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				i.mu.Lock()
				isActive := time.Since(i.lastActivity) < 500*time.Millisecond
				_ = i.draw() // Best effort
				i.mu.Unlock()

				if isActive {
					ticker.Reset(activeInterval)
				} else {
					ticker.Reset(normalInterval)
				}
			case <-i.refreshChan:
				i.mu.Lock()
				_ = i.draw()
				i.mu.Unlock()
			case <-stopChan:
				_ = i.Clear() // Best effort
				return
			}
		}
	}()
}

// HandleScreenClear implements interfaces.ScreenEventHandler
func (i *Indicator) HandleScreenClear() {
	i.mu.Lock()
	i.lastActivity = time.Now()
	i.mu.Unlock()

	if i.enabled {
		select {
		case i.refreshChan <- struct{}{}:
		default:
			// Channel is full, refresh already pending
		}
	}
}

// SetIdleState updates the idle state
func (i *Indicator) SetIdleState(isIdle bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.isIdle = isIdle
	_ = i.draw()
}

// SetLocked updates the lock state
func (i *Indicator) SetLocked(locked bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.isLocked = locked
	_ = i.draw()
}

// SetUnread updates the unread notification count
func (i *Indicator) SetUnread(n int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.unread = n
	_ = i.draw()
}

// Flash shows text until d has passed. A new flash replaces the previous one
// and restarts the countdown.
func (i *Indicator) Flash(text string, d time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.flashTimer != nil {
		i.flashTimer.Stop()
	}
	i.flash = text
	i.flashTimer = time.AfterFunc(d, i.clearFlash)
	_ = i.draw()
}

func (i *Indicator) clearFlash() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.flash = ""
	i.flashTimer = nil
	_ = i.draw()
}

// Acknowledge implements refresh.Acknowledger
func (i *Indicator) Acknowledge() {
	i.Flash("↻ refreshed", i.flashDuration)
}

// MarkActivity marks that there has been recent activity
func (i *Indicator) MarkActivity() {
	i.mu.Lock()
	i.lastActivity = time.Now()
	i.mu.Unlock()
}

func stripANSI(s string) string {
	var b strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\033':
			inEscape = true
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Ensure Indicator implements ScreenEventHandler
var _ interfaces.ScreenEventHandler = (*Indicator)(nil)
