// Package refresh periodically reloads data from the admin backend.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/sessionguard/pkg/clock"
	"github.com/Veraticus/sessionguard/pkg/lifecycle"
	"github.com/Veraticus/sessionguard/pkg/metrics"
)

// Settings control the refresh cadence.
type Settings struct {
	Enabled         bool
	IntervalSeconds int
}

// Interval returns the tick period, or zero when refreshing is off.
func (s Settings) Interval() time.Duration {
	if !s.Enabled || s.IntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(s.IntervalSeconds) * time.Second
}

// SettingsSource supplies the current refresh settings.
type SettingsSource interface {
	RefreshSettings() Settings
}

// Refresher reloads data.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context) error

// Refresh calls f(ctx).
func (f RefresherFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// Acknowledger shows that a refresh completed.
type Acknowledger interface {
	Acknowledge()
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock sets the clock used for the tick timer.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithAcknowledger sets the acknowledgement shown after a successful refresh.
func WithAcknowledger(a Acknowledger) Option {
	return func(p *Poller) { p.ack = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// WithEnabled sets the caller's enabled flag. It defaults to true.
func WithEnabled(enabled bool) Option {
	return func(p *Poller) { p.enabled = enabled }
}

// Poller calls a Refresher on a fixed interval.
type Poller struct {
	refresher Refresher
	settings  SettingsSource
	clock     clock.Clock
	ack       Acknowledger
	logger    *slog.Logger
	task      *lifecycle.Task

	mu      sync.Mutex
	enabled bool
}

// New creates a stopped poller.
func New(refresher Refresher, settings SettingsSource, opts ...Option) *Poller {
	p := &Poller{
		refresher: refresher,
		settings:  settings,
		clock:     clock.Real(),
		logger:    slog.New(slog.DiscardHandler),
		enabled:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.task = lifecycle.NewTask("refresh", func(ctx context.Context) {
		_ = p.run(ctx, "scheduled")
	},
		lifecycle.WithClock(p.clock),
		lifecycle.WithLogger(p.logger),
	)
	return p
}

// Start arms the refresh timer. It does nothing when refreshing is disabled
// by settings or by the caller, or when the poller is already running.
func (p *Poller) Start() bool {
	interval := p.interval()
	if interval <= 0 {
		return false
	}
	return p.task.Start(interval)
}

// Stop cancels the refresh timer.
func (p *Poller) Stop() bool {
	return p.task.Stop()
}

// Running reports whether the refresh timer is armed.
func (p *Poller) Running() bool {
	return p.task.Running()
}

// Reconfigure stops the poller and starts it again with the current
// settings if refreshing is still enabled.
func (p *Poller) Reconfigure() {
	p.task.Stop()
	if p.Start() {
		p.logger.Info("refresh poller reconfigured", "interval", p.task.Period())
	} else {
		p.logger.Info("refresh poller disabled")
	}
}

// SetEnabled changes the caller's enabled flag and reconfigures.
func (p *Poller) SetEnabled(enabled bool) {
	p.mu.Lock()
	p.enabled = enabled
	p.mu.Unlock()
	p.Reconfigure()
}

// ManualRefresh refreshes immediately without touching the timer. The
// error is reported like a scheduled failure and also returned.
func (p *Poller) ManualRefresh(ctx context.Context) error {
	return p.run(ctx, "manual")
}

func (p *Poller) interval() time.Duration {
	p.mu.Lock()
	enabled := p.enabled
	p.mu.Unlock()
	if !enabled {
		return 0
	}
	return p.settings.RefreshSettings().Interval()
}

func (p *Poller) run(ctx context.Context, trigger string) error {
	if err := p.refresher.Refresh(ctx); err != nil {
		metrics.IncRefresh(trigger, "failure")
		p.logger.Error("refresh failed", "trigger", trigger, "error", err)
		return err
	}

	metrics.IncRefresh(trigger, "success")
	p.logger.Debug("refresh completed", "trigger", trigger)
	if p.ack != nil {
		p.ack.Acknowledge()
	}
	return nil
}
