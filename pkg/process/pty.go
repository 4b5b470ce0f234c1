// Package process hosts the wrapped admin client inside a pseudo terminal.
package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// PTYManager handles PTY-based process execution
type PTYManager struct {
	cmd         *exec.Cmd
	pty         *os.File
	mu          sync.Mutex
	stopChan    chan struct{}
	wg          sync.WaitGroup
	restoreFunc func() error
	logger      *slog.Logger
}

// Ensure PTYManager implements PTY
var _ PTY = (*PTYManager)(nil)

// NewPTYManager creates a new PTY manager
func NewPTYManager(logger *slog.Logger) *PTYManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PTYManager{
		stopChan: make(chan struct{}),
		logger:   logger,
	}
}

// Start starts a process with PTY
func (p *PTYManager) Start(command string, args []string, env []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return fmt.Errorf("process already started")
	}

	cmd := exec.Command(command, args...)
	cmd.Env = env

	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to start PTY: %w", err)
	}
	p.cmd, p.pty = cmd, f

	// Some environments have no controlling terminal
	if err := p.copyTerminalSize(); err != nil {
		p.logger.Debug("failed to copy terminal size", "error", err)
	}

	p.wg.Add(1)
	go p.monitorTerminalSize()

	return nil
}

// File returns the PTY master
func (p *PTYManager) File() *os.File {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pty
}

// Wait waits for the process to complete
func (p *PTYManager) Wait() error {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil {
		return fmt.Errorf("process not started")
	}

	err := cmd.Wait()

	close(p.stopChan)
	p.wg.Wait()

	p.mu.Lock()
	if p.pty != nil {
		_ = p.pty.Close()
	}
	p.mu.Unlock()

	return err
}

// ProcessState returns the process state
func (p *PTYManager) ProcessState() *os.ProcessState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.ProcessState
}

// Process returns the underlying process
func (p *PTYManager) Process() *os.Process {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return nil
	}
	return p.cmd.Process
}

// Restore puts the host terminal back into the mode it had before CopyIO.
func (p *PTYManager) Restore() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.restoreFunc == nil {
		return nil
	}
	err := p.restoreFunc()
	p.restoreFunc = nil
	return err
}

// copyTerminalSize copies the terminal size from stdin to the PTY
func (p *PTYManager) copyTerminalSize() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal")
	}
	size, err := pty.GetsizeFull(os.Stdin)
	if err != nil {
		return err
	}
	return pty.Setsize(p.pty, size)
}

// monitorTerminalSize monitors for terminal size changes
func (p *PTYManager) monitorTerminalSize() {
	defer p.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGWINCH)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			p.mu.Lock()
			if p.pty != nil {
				if err := p.copyTerminalSize(); err != nil {
					p.logger.Debug("failed to resize PTY", "error", err)
				}
			}
			p.mu.Unlock()
		case <-p.stopChan:
			return
		}
	}
}

// CopyIO connects the host streams to the PTY. Keystrokes are passed to
// inputHandler before they reach the child and child output is passed to
// outputHandler. It returns when the child's output ends.
func (p *PTYManager) CopyIO(stdin io.Reader, stdout io.Writer, inputHandler, outputHandler func([]byte)) error {
	ptyFile := p.File()
	if ptyFile == nil {
		return fmt.Errorf("PTY not initialized")
	}

	if file, ok := stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		fd := int(file.Fd())
		state, err := term.MakeRaw(fd)
		if err != nil {
			p.logger.Warn("failed to set raw mode", "error", err)
		} else {
			p.mu.Lock()
			p.restoreFunc = func() error { return term.Restore(fd, state) }
			p.mu.Unlock()
			defer func() { _ = p.Restore() }()
		}
	}

	// The stdin copy blocks on the host terminal and is left to finish on
	// its own once the PTY is closed.
	go func() {
		if _, err := io.Copy(ptyFile, &handlerReader{reader: stdin, handler: inputHandler}); err != nil {
			p.logger.Debug("stdin copy stopped", "error", err)
		}
	}()

	_, err := io.Copy(stdout, &handlerReader{reader: ptyFile, handler: outputHandler})
	if err != nil && !isClosedPTY(err) {
		return fmt.Errorf("stdout copy error: %w", err)
	}
	return nil
}

// isClosedPTY reports whether err is how Linux signals a PTY master whose
// child has exited.
func isClosedPTY(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}

// handlerReader passes every chunk it reads to handler. The handler must
// not retain the slice.
type handlerReader struct {
	reader  io.Reader
	handler func([]byte)
}

func (r *handlerReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 && r.handler != nil {
		r.handler(p[:n])
	}
	return n, err
}
