package inactivity

import (
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/sessionguard/pkg/activity"
	"github.com/Veraticus/sessionguard/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

type mutableSettings struct {
	mu sync.Mutex
	s  Settings
}

func (m *mutableSettings) InactivitySettings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

func (m *mutableSettings) set(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
}

type fixture struct {
	clock    *testutil.FakeClock
	tracker  *activity.Tracker
	settings *mutableSettings
	session  *testutil.MockSession
	monitor  *Monitor
}

func newFixture(s Settings) *fixture {
	clk := testutil.NewFakeClock(epoch)
	f := &fixture{
		clock:    clk,
		tracker:  activity.NewTracker(clk),
		settings: &mutableSettings{s: s},
		session:  testutil.NewMockSession(),
	}
	f.monitor = New(f.tracker, f.settings, f.session, WithClock(clk))
	return f
}

func TestSettings_Thresholds(t *testing.T) {
	tests := []struct {
		name        string
		settings    Settings
		wantLock    time.Duration
		wantSession time.Duration
		wantActive  bool
	}{
		{
			name:       "all disabled",
			settings:   Settings{LockTimeoutMinutes: 30, SessionTimeoutMinutes: 1440},
			wantActive: false,
		},
		{
			name:       "lock enabled",
			settings:   Settings{AutoLockEnabled: true, LockTimeoutMinutes: 30},
			wantLock:   30 * time.Minute,
			wantActive: true,
		},
		{
			name:        "session enabled",
			settings:    Settings{SessionTimeoutEnabled: true, SessionTimeoutMinutes: 1440},
			wantSession: 24 * time.Hour,
			wantActive:  true,
		},
		{
			name:       "zero threshold counts as disabled",
			settings:   Settings{AutoLockEnabled: true, SessionTimeoutEnabled: true},
			wantActive: false,
		},
		{
			name:       "negative threshold counts as disabled",
			settings:   Settings{AutoLockEnabled: true, LockTimeoutMinutes: -5},
			wantActive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLock, tt.settings.LockThreshold())
			assert.Equal(t, tt.wantSession, tt.settings.SessionThreshold())
			assert.Equal(t, tt.wantActive, tt.settings.Active())
		})
	}
}

func TestMonitor_StartRequiresThreshold(t *testing.T) {
	f := newFixture(Settings{})

	assert.False(t, f.monitor.Start())
	assert.False(t, f.monitor.Running())
	assert.Empty(t, f.clock.ActiveTickers())
}

func TestMonitor_StartIdempotent(t *testing.T) {
	f := newFixture(Settings{AutoLockEnabled: true, LockTimeoutMinutes: 1})
	defer f.monitor.Stop()

	assert.True(t, f.monitor.Start())
	assert.False(t, f.monitor.Start())
	assert.Equal(t, []time.Duration{DefaultPeriod}, f.clock.ActiveTickers())
}

func TestMonitor_StopIdempotent(t *testing.T) {
	f := newFixture(Settings{AutoLockEnabled: true, LockTimeoutMinutes: 1})

	assert.False(t, f.monitor.Stop(), "stop before start")
	require.True(t, f.monitor.Start())
	assert.True(t, f.monitor.Stop())
	assert.False(t, f.monitor.Stop())
	assert.False(t, f.monitor.Running())
}

func TestMonitor_LockThreshold(t *testing.T) {
	f := newFixture(Settings{AutoLockEnabled: true, LockTimeoutMinutes: 1})

	f.clock.Advance(30 * time.Second)
	f.monitor.Check()
	assert.Zero(t, f.session.Count("lock"))

	f.clock.Advance(31 * time.Second)
	f.monitor.Check()
	assert.Equal(t, 1, f.session.Count("lock"))

	// Lock does not reset the clock: still idle, fires again.
	f.clock.Advance(60 * time.Second)
	f.monitor.Check()
	assert.Equal(t, 2, f.session.Count("lock"))

	// Activity resumes; the next check inside a fresh minute stays quiet.
	f.tracker.RecordActivity()
	f.clock.Advance(59 * time.Second)
	f.monitor.Check()
	assert.Equal(t, 2, f.session.Count("lock"))

	f.clock.Advance(time.Second)
	f.monitor.Check()
	assert.Equal(t, 3, f.session.Count("lock"))
}

func TestMonitor_LockFiresFromTimer(t *testing.T) {
	f := newFixture(Settings{AutoLockEnabled: true, LockTimeoutMinutes: 1})
	require.True(t, f.monitor.Start())
	defer f.monitor.Stop()

	f.clock.Advance(DefaultPeriod)
	require.Eventually(t, func() bool { return f.session.Count("lock") == 1 }, time.Second, time.Millisecond)
	assert.True(t, f.monitor.Running(), "lock must not stop the monitor")
}

func TestMonitor_DisabledSessionTimeoutNeverLogsOut(t *testing.T) {
	f := newFixture(Settings{
		AutoLockEnabled:       true,
		LockTimeoutMinutes:    1,
		SessionTimeoutEnabled: false,
		SessionTimeoutMinutes: 1,
	})

	f.clock.Advance(365 * 24 * time.Hour)
	f.monitor.Check()

	assert.Zero(t, f.session.Count("logout"))
	assert.Zero(t, f.session.Count("timeout"))
	assert.Equal(t, 1, f.session.Count("lock"))
}

func TestMonitor_TimeoutThenLogout(t *testing.T) {
	f := newFixture(Settings{SessionTimeoutEnabled: true, SessionTimeoutMinutes: 5})

	f.clock.Advance(4 * time.Minute)
	f.monitor.Check()
	assert.Empty(t, f.session.Events())

	f.clock.Advance(time.Minute)
	f.monitor.Check()
	assert.Equal(t, []string{"timeout", "logout"}, f.session.Events())
}

func TestMonitor_LockBeforeTimeoutInSameTick(t *testing.T) {
	f := newFixture(Settings{
		AutoLockEnabled:       true,
		LockTimeoutMinutes:    1,
		SessionTimeoutEnabled: true,
		SessionTimeoutMinutes: 2,
	})

	f.clock.Advance(3 * time.Minute)
	f.monitor.Check()

	assert.Equal(t, []string{"lock", "timeout", "logout"}, f.session.Events())
}

func TestMonitor_ZeroThresholdDoesNotFireImmediately(t *testing.T) {
	f := newFixture(Settings{AutoLockEnabled: true, SessionTimeoutEnabled: true})

	f.monitor.Check()
	f.clock.Advance(time.Hour)
	f.monitor.Check()

	assert.Empty(t, f.session.Events())
}

func TestMonitor_SettingsReadEveryTick(t *testing.T) {
	f := newFixture(Settings{AutoLockEnabled: true, LockTimeoutMinutes: 10})

	f.clock.Advance(5 * time.Minute)
	f.monitor.Check()
	assert.Zero(t, f.session.Count("lock"))

	f.settings.set(Settings{AutoLockEnabled: true, LockTimeoutMinutes: 2})
	f.monitor.Check()
	assert.Equal(t, 1, f.session.Count("lock"))
}

func TestMonitor_Reconfigure(t *testing.T) {
	f := newFixture(Settings{AutoLockEnabled: true, LockTimeoutMinutes: 1})

	require.True(t, f.monitor.Start())

	f.monitor.Reconfigure()
	assert.True(t, f.monitor.Running())
	assert.Len(t, f.clock.ActiveTickers(), 1, "reconfigure must not leak a ticker")

	f.settings.set(Settings{})
	f.monitor.Reconfigure()
	assert.False(t, f.monitor.Running())
	assert.Empty(t, f.clock.ActiveTickers())

	f.settings.set(Settings{SessionTimeoutEnabled: true, SessionTimeoutMinutes: 30})
	f.monitor.Reconfigure()
	assert.True(t, f.monitor.Running())
	assert.Len(t, f.clock.ActiveTickers(), 1)

	f.monitor.Stop()
}

type panickingSession struct {
	testutil.MockSession
	once sync.Once
}

func (p *panickingSession) Lock() {
	p.MockSession.Lock()
	p.once.Do(func() { panic("lock screen crashed") })
}

func TestMonitor_CollaboratorPanicKeepsTimer(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	tracker := activity.NewTracker(clk)
	session := &panickingSession{}
	m := New(tracker, &mutableSettings{s: Settings{AutoLockEnabled: true, LockTimeoutMinutes: 1}}, session,
		WithClock(clk), WithPeriod(time.Minute))
	require.True(t, m.Start())
	defer m.Stop()

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return session.Count("lock") == 1 }, time.Second, time.Millisecond)

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return session.Count("lock") == 2 }, time.Second, time.Millisecond)
	assert.True(t, m.Running())
}
