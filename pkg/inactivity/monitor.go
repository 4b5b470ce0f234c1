// Package inactivity locks and ends sessions after periods without user
// activity.
package inactivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/sessionguard/pkg/clock"
	"github.com/Veraticus/sessionguard/pkg/lifecycle"
	"github.com/Veraticus/sessionguard/pkg/metrics"
)

// DefaultPeriod is how often the monitor evaluates its thresholds.
const DefaultPeriod = 60 * time.Second

// Settings are the inactivity thresholds, in minutes.
type Settings struct {
	AutoLockEnabled       bool
	LockTimeoutMinutes    int
	SessionTimeoutEnabled bool
	SessionTimeoutMinutes int
}

// LockThreshold returns the idle duration after which the session locks, or
// zero when locking is off. A zero or negative timeout counts as off.
func (s Settings) LockThreshold() time.Duration {
	if !s.AutoLockEnabled || s.LockTimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(s.LockTimeoutMinutes) * time.Minute
}

// SessionThreshold returns the idle duration after which the session ends,
// or zero when the session timeout is off.
func (s Settings) SessionThreshold() time.Duration {
	if !s.SessionTimeoutEnabled || s.SessionTimeoutMinutes <= 0 {
		return 0
	}
	return time.Duration(s.SessionTimeoutMinutes) * time.Minute
}

// Active reports whether any threshold is in effect.
func (s Settings) Active() bool {
	return s.LockThreshold() > 0 || s.SessionThreshold() > 0
}

// SettingsSource supplies the current thresholds. It is read on every tick.
type SettingsSource interface {
	InactivitySettings() Settings
}

// ActivityReader exposes the last user interaction.
type ActivityReader interface {
	LastActivity() time.Time
}

// Session receives the monitor's side effects.
type Session interface {
	Lock()
	Timeout()
	Logout()
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock sets the clock used for elapsed time and the tick timer.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithPeriod overrides the tick period.
func WithPeriod(d time.Duration) Option {
	return func(m *Monitor) { m.period = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// Monitor polls the activity tracker and fires lock and timeout callbacks.
type Monitor struct {
	activity ActivityReader
	settings SettingsSource
	session  Session
	clock    clock.Clock
	period   time.Duration
	logger   *slog.Logger
	task     *lifecycle.Task
}

// New creates a stopped monitor.
func New(activity ActivityReader, settings SettingsSource, session Session, opts ...Option) *Monitor {
	m := &Monitor{
		activity: activity,
		settings: settings,
		session:  session,
		clock:    clock.Real(),
		period:   DefaultPeriod,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.task = lifecycle.NewTask("inactivity", func(_ context.Context) { m.Check() },
		lifecycle.WithClock(m.clock),
		lifecycle.WithLogger(m.logger),
	)
	return m
}

// Start arms the recurring check. It does nothing when no threshold is
// configured or the monitor is already running.
func (m *Monitor) Start() bool {
	if !m.settings.InactivitySettings().Active() {
		return false
	}
	return m.task.Start(m.period)
}

// Stop cancels the recurring check.
func (m *Monitor) Stop() bool {
	return m.task.Stop()
}

// Reconfigure re-evaluates the settings: the monitor is stopped and started
// again only if a threshold is still active.
func (m *Monitor) Reconfigure() {
	m.task.Stop()
	if m.Start() {
		m.logger.Info("inactivity monitor reconfigured", "settings", m.settings.InactivitySettings())
	} else {
		m.logger.Info("inactivity monitor disabled")
	}
}

// Running reports whether the recurring check is armed.
func (m *Monitor) Running() bool {
	return m.task.Running()
}

// Check evaluates both thresholds once. The lock check runs before the
// timeout check and both may fire in the same call.
func (m *Monitor) Check() {
	s := m.settings.InactivitySettings()
	elapsed := m.clock.Now().Sub(m.activity.LastActivity())

	if limit := s.LockThreshold(); limit > 0 && elapsed >= limit {
		m.logger.Info("inactivity lock threshold reached", "idle", elapsed, "threshold", limit)
		metrics.IncSessionEvent("lock")
		m.session.Lock()
	}

	if limit := s.SessionThreshold(); limit > 0 && elapsed >= limit {
		m.logger.Info("session timeout reached", "idle", elapsed, "threshold", limit)
		metrics.IncSessionEvent("timeout")
		m.session.Timeout()
		metrics.IncSessionEvent("logout")
		m.session.Logout()
	}
}
