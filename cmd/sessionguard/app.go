package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/Veraticus/sessionguard/pkg/activity"
	"github.com/Veraticus/sessionguard/pkg/clock"
	"github.com/Veraticus/sessionguard/pkg/config"
	"github.com/Veraticus/sessionguard/pkg/control"
	"github.com/Veraticus/sessionguard/pkg/delivery"
	"github.com/Veraticus/sessionguard/pkg/inactivity"
	"github.com/Veraticus/sessionguard/pkg/inbox"
	"github.com/Veraticus/sessionguard/pkg/logging"
	"github.com/Veraticus/sessionguard/pkg/metrics"
	"github.com/Veraticus/sessionguard/pkg/process"
	"github.com/Veraticus/sessionguard/pkg/refresh"
	"github.com/Veraticus/sessionguard/pkg/status"
)

// shutdownTimeout bounds the control server shutdown.
const shutdownTimeout = 2 * time.Second

// Options tune how dependencies are built. The zero value is the production
// setup.
type Options struct {
	// ConfigPath is watched for changes when non-empty.
	ConfigPath string
	// Debug logs to stderr when no log file is configured.
	Debug bool
	Clock clock.Clock
	// Registerer receives the metrics, prometheus.DefaultRegisterer if nil.
	Registerer prometheus.Registerer
	// StatusWriter is where the status line is drawn, os.Stderr if nil.
	StatusWriter io.Writer
	// Sender replaces the notification sender chain.
	Sender delivery.Sender
	// Runner executes the lock command.
	Runner CommandRunner
}

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Store           *config.Store
	Logger          *logging.Logger
	Clock           clock.Clock
	Bus             *activity.Bus
	Tracker         *activity.Tracker
	InputDecoder    *activity.InputDecoder
	StatusIndicator *status.Indicator
	StatusReporter  *status.Reporter
	ScreenWatcher   *status.ScreenWatcher
	Sender          delivery.Sender
	Queue           *delivery.Queue
	Inbox           *inbox.Client
	InboxWatcher    *inbox.Watcher
	Poller          *refresh.Poller
	Session         *Session
	Monitor         *inactivity.Monitor
	ProcessManager  *process.Manager
	ConfigWatcher   *config.Watcher
	Control         *control.Server

	unsubscribers []func()
	stopChan      chan struct{}
	closeOnce     sync.Once
}

// NewDependencies creates all dependencies with the given configuration
func NewDependencies(cfg *config.Config, opts Options) (*Dependencies, error) {
	deps := &Dependencies{
		Store:    config.NewStore(cfg),
		Clock:    opts.Clock,
		stopChan: make(chan struct{}),
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}

	logOpts := logging.FromConfig(cfg.Log)
	logOpts.Stderr = opts.Debug
	logger, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	deps.Logger = logger

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := metrics.Register(reg); err != nil {
		deps.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	// Activity plumbing: stdin bytes are decoded into signals on the bus,
	// and the tracker records every one of them.
	deps.Bus = activity.NewBus()
	deps.Tracker = activity.NewTracker(deps.Clock)
	deps.InputDecoder = activity.NewInputDecoder(deps.Bus)
	deps.unsubscribers = append(deps.unsubscribers, deps.Tracker.Mount(deps.Bus))

	// The status line is drawn on stderr, only when that is a terminal.
	statusWriter := opts.StatusWriter
	statusEnabled := cfg.Display.StatusLine
	if statusWriter == nil {
		statusWriter = os.Stderr
		statusEnabled = statusEnabled && term.IsTerminal(int(os.Stderr.Fd()))
	}
	deps.StatusIndicator = status.NewIndicator(statusWriter, statusEnabled)
	deps.StatusReporter = status.NewReporter(deps.StatusIndicator)
	deps.ScreenWatcher = status.NewScreenWatcher(deps.StatusIndicator)
	deps.StatusIndicator.StartAutoRefresh(deps.stopChan)

	deps.Sender = opts.Sender
	if deps.Sender == nil {
		deps.Sender = newSender(cfg, logger)
	}
	deps.Queue = delivery.NewQueue(deps.Sender,
		delivery.WithClock(deps.Clock),
		delivery.WithLogger(logger.With("component", "delivery")),
		delivery.WithReporter(deps.StatusReporter),
	)

	deps.Inbox = inbox.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	if cfg.API.Token != "" {
		deps.Inbox.SetToken(cfg.API.Token)
	}
	deps.InboxWatcher = inbox.NewWatcher(deps.Inbox, deps.Queue, deps.StatusReporter,
		logger.With("component", "inbox"))
	deps.InboxWatcher.SetIcon(cfg.Notifications.Icon)

	deps.Poller = refresh.New(deps.InboxWatcher, deps.Store,
		refresh.WithClock(deps.Clock),
		refresh.WithAcknowledger(deps.StatusIndicator),
		refresh.WithLogger(logger.With("component", "refresh")),
	)

	deps.ProcessManager = process.NewManager(deps.InputDecoder, deps.ScreenWatcher,
		logger.With("component", "process"))

	deps.Session = NewSession(SessionDeps{
		Locker:      deps.StatusIndicator,
		Queue:       deps.Queue,
		Tokens:      deps.Inbox,
		Inbox:       deps.InboxWatcher,
		Child:       deps.ProcessManager,
		LockCommand: func() string { return deps.Store.Snapshot().Security.LockCommand },
		Icon:        func() string { return deps.Store.Snapshot().Notifications.Icon },
		Run:         opts.Runner,
		Logger:      logger.With("component", "session"),
	})
	deps.unsubscribers = append(deps.unsubscribers, activity.SubscribeAll(deps.Bus, deps.Session.HandleActivity))

	deps.Monitor = inactivity.New(deps.Tracker, deps.Store, deps.Session,
		inactivity.WithClock(deps.Clock),
		inactivity.WithLogger(logger.With("component", "inactivity")),
	)

	deps.unsubscribers = append(deps.unsubscribers, deps.Store.Subscribe(deps.reconfigure))

	if cfg.Control.Listen != "" {
		router := control.NewRouter(control.Deps{
			Monitor:  deps.Monitor,
			Poller:   deps.Poller,
			Queue:    deps.Queue,
			Activity: deps.Tracker,
			Signals:  deps.Bus,
			Inbox:    deps.InboxWatcher,
			Metrics:  metrics.Handler(),
			Logger:   logger.With("component", "control"),
		})
		srv, err := control.Listen(cfg.Control.Listen, router)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("start control server: %w", err)
		}
		deps.Control = srv
		logger.Info("control server listening", "addr", srv.Addr())
	}

	if opts.ConfigPath != "" {
		w, err := config.NewWatcher(opts.ConfigPath, deps.Store, logger.With("component", "config"))
		if err != nil {
			// Hot reload is optional; the session still runs without it.
			logger.Warn("config watcher disabled", "path", opts.ConfigPath, "error", err)
		} else {
			deps.ConfigWatcher = w
		}
	}

	return deps, nil
}

// newSender picks ntfy delivery behind a permission gate, or records
// notifications in the log when ntfy is not configured.
func newSender(cfg *config.Config, logger *logging.Logger) delivery.Sender {
	n := cfg.Notifications
	if n.Enabled && !cfg.Quiet && n.NtfyTopic != "" {
		client := delivery.NewNtfyClient(n.NtfyServer, n.NtfyTopic)
		perm := delivery.NewNtfyPermission(n.NtfyServer, n.NtfyTopic)
		return delivery.NewGatedSender(client, perm, logger.With("component", "permission"))
	}
	return delivery.NewStdoutSender(logger.Writer())
}

// reconfigure restarts the mechanisms whose settings changed.
func (d *Dependencies) reconfigure(old, updated *config.Config) {
	if old.Security != updated.Security {
		d.Monitor.Reconfigure()
	}
	if old.Display.AutoRefresh != updated.Display.AutoRefresh ||
		old.Display.RefreshInterval != updated.Display.RefreshInterval {
		d.Poller.Reconfigure()
	}
	if old.Notifications.Icon != updated.Notifications.Icon {
		d.InboxWatcher.SetIcon(updated.Notifications.Icon)
	}
}

// Close cleans up all dependencies. It is safe to call more than once.
func (d *Dependencies) Close() {
	d.closeOnce.Do(d.close)
}

func (d *Dependencies) close() {
	for i := len(d.unsubscribers) - 1; i >= 0; i-- {
		d.unsubscribers[i]()
	}
	d.unsubscribers = nil

	if d.ConfigWatcher != nil {
		_ = d.ConfigWatcher.Close()
	}
	if d.Monitor != nil {
		d.Monitor.Stop()
	}
	if d.Poller != nil {
		d.Poller.Stop()
	}
	if d.Queue != nil {
		_ = d.Queue.Close()
	}
	if d.Control != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := d.Control.Shutdown(ctx); err != nil {
			d.Logger.Warn("control server shutdown", "error", err)
		}
		cancel()
	}

	// Stop status indicator refresh
	if d.stopChan != nil {
		close(d.stopChan)
		d.stopChan = nil
	}
	if d.StatusIndicator != nil {
		_ = d.StatusIndicator.Clear() // Best effort
	}

	if d.Logger != nil {
		_ = d.Logger.Close()
	}
}

// Application represents the main application
type Application struct {
	deps *Dependencies
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies) *Application {
	return &Application{
		deps: deps,
	}
}

// Run starts the background mechanisms, then the wrapped client, and waits
// for the client to exit.
func (a *Application) Run(command string, args []string) error {
	d := a.deps
	if d.Monitor.Start() {
		d.Logger.Info("inactivity monitor started", "settings", d.Store.InactivitySettings())
	}
	if d.Poller.Start() {
		d.Logger.Info("refresh poller started", "settings", d.Store.RefreshSettings())
	}

	if err := d.ProcessManager.Start(command, args); err != nil {
		return err
	}
	d.Logger.Info("child started", "command", command, "args", args)

	return d.ProcessManager.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop() error {
	return a.deps.ProcessManager.Stop()
}

// ExitCode returns the exit code of the wrapped process
func (a *Application) ExitCode() int {
	return a.deps.ProcessManager.ExitCode()
}
