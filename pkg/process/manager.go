package process

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Veraticus/sessionguard/pkg/interfaces"
)

// wrappedEnv marks a child started by sessionguard.
const wrappedEnv = "SESSIONGUARD_WRAPPED"

// Manager manages the wrapped admin client
type Manager struct {
	ptyManager    PTY
	inputHandler  interfaces.DataHandler
	outputHandler interfaces.DataHandler
	stdin         io.Reader
	stdout        io.Writer
	logger        *slog.Logger

	exitCode int
	mu       sync.Mutex
	sigChan  chan os.Signal
	done     chan struct{}
}

// NewManager creates a new process manager. inputHandler sees the user's
// keystrokes and outputHandler sees the child's output; either may be nil.
func NewManager(inputHandler, outputHandler interfaces.DataHandler, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		ptyManager:    NewPTYManager(logger),
		inputHandler:  inputHandler,
		outputHandler: outputHandler,
		stdin:         os.Stdin,
		stdout:        os.Stdout,
		logger:        logger,
		done:          make(chan struct{}),
	}
}

// Start starts the admin client
func (m *Manager) Start(command string, args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if os.Getenv(wrappedEnv) == "1" {
		return fmt.Errorf("already wrapped by sessionguard")
	}

	env := append(os.Environ(), wrappedEnv+"=1")

	if err := m.ptyManager.Start(command, args, env); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	go func() {
		if err := m.ptyManager.CopyIO(m.stdin, m.stdout, handlerFunc(m.inputHandler), handlerFunc(m.outputHandler)); err != nil {
			m.logger.Error("I/O error", "error", err)
		}
	}()

	m.setupSignalForwarding()

	return nil
}

func handlerFunc(h interfaces.DataHandler) func([]byte) {
	if h == nil {
		return nil
	}
	return h.HandleData
}

// Wait waits for the process to exit
func (m *Manager) Wait() error {
	if m.ptyManager == nil {
		return fmt.Errorf("process not started")
	}

	err := m.ptyManager.Wait()

	m.mu.Lock()
	if state := m.ptyManager.ProcessState(); state != nil {
		m.exitCode = state.ExitCode()
	}
	m.mu.Unlock()

	_ = m.ptyManager.Restore()

	close(m.done)
	m.cleanupSignals()

	return err
}

// ExitCode returns the exit code of the process
func (m *Manager) ExitCode() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exitCode
}

// setupSignalForwarding sets up signal forwarding to the child process
func (m *Manager) setupSignalForwarding() {
	m.sigChan = make(chan os.Signal, 1)
	signal.Notify(m.sigChan,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGQUIT,
		syscall.SIGUSR1,
		syscall.SIGUSR2,
	)

	go m.forwardSignals()
}

// forwardSignals forwards signals to the child process
func (m *Manager) forwardSignals() {
	for {
		select {
		case sig, ok := <-m.sigChan:
			if !ok {
				return
			}
			if proc := m.ptyManager.Process(); proc != nil {
				if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					m.logger.Warn("signal forward error", "signal", sig, "error", err)
				}
			}
		case <-m.done:
			return
		}
	}
}

// cleanupSignals stops signal forwarding
func (m *Manager) cleanupSignals() {
	if m.sigChan != nil {
		signal.Stop(m.sigChan)
	}
}

// Stop terminates the child, escalating to a kill when SIGTERM cannot be
// delivered, and restores the host terminal.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ptyManager == nil {
		return nil
	}

	_ = m.ptyManager.Restore()

	proc := m.ptyManager.Process()
	if proc == nil {
		return nil
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return proc.Kill()
	}
	return nil
}
