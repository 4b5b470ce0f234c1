package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/sessionguard/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func TestTask_StartTwiceArmsOneTicker(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	var ticks atomic.Int32
	task := NewTask("test", func(context.Context) { ticks.Add(1) }, WithClock(clk))
	defer task.Stop()

	assert.True(t, task.Start(time.Second))
	assert.False(t, task.Start(time.Second), "second Start must be a no-op")
	assert.Len(t, clk.ActiveTickers(), 1)

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)

	// No second timer means no double fire.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), ticks.Load())
}

func TestTask_StopIdempotent(t *testing.T) {
	task := NewTask("test", func(context.Context) {})

	assert.False(t, task.Stop(), "Stop on a never started task")
	assert.False(t, task.Running())

	require.True(t, task.Start(time.Hour))
	assert.True(t, task.Stop())
	assert.False(t, task.Stop())
	assert.False(t, task.Running())
	assert.Zero(t, task.Period())
}

func TestTask_StartRejectsNonPositivePeriod(t *testing.T) {
	task := NewTask("test", func(context.Context) {})

	assert.False(t, task.Start(0))
	assert.False(t, task.Start(-time.Second))
	assert.False(t, task.Running())
}

func TestTask_StopPreventsNextTick(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	var ticks atomic.Int32
	task := NewTask("test", func(context.Context) { ticks.Add(1) }, WithClock(clk))

	require.True(t, task.Start(time.Second))
	task.Stop()
	assert.Empty(t, clk.ActiveTickers())

	clk.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, ticks.Load())
}

func TestTask_RestartReplacesTicker(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	task := NewTask("test", func(context.Context) {}, WithClock(clk))
	defer task.Stop()

	require.True(t, task.Start(60*time.Second))
	require.True(t, task.Restart(10*time.Second))

	assert.Equal(t, []time.Duration{10 * time.Second}, clk.ActiveTickers())
	assert.Equal(t, 10*time.Second, task.Period())

	assert.False(t, task.Restart(0))
	assert.False(t, task.Running())
	assert.Empty(t, clk.ActiveTickers())
}

func TestTask_PanicDoesNotStopTimer(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	var ticks atomic.Int32
	task := NewTask("test", func(context.Context) {
		if ticks.Add(1) == 1 {
			panic("boom")
		}
	}, WithClock(clk))
	defer task.Stop()

	require.True(t, task.Start(time.Second))

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return ticks.Load() == 2 }, time.Second, time.Millisecond)
	assert.True(t, task.Running())
}

func TestTask_OverlappingTickSkipped(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	release := make(chan struct{})
	var started atomic.Int32
	task := NewTask("test", func(context.Context) {
		started.Add(1)
		<-release
	}, WithClock(clk))

	require.True(t, task.Start(time.Second))
	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return started.Load() == 1 }, time.Second, time.Millisecond)

	// Replace the handle while the first tick is still blocked; the new
	// handle's tick must not overlap it.
	require.True(t, task.Restart(time.Second))
	clk.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), started.Load())

	close(release)
	task.Stop()
}

func TestTask_StopDoesNotAbortInFlightTick(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	var ctxErr error
	var mu sync.Mutex

	task := NewTask("test", func(ctx context.Context) {
		close(entered)
		<-release
		mu.Lock()
		ctxErr = ctx.Err()
		mu.Unlock()
		finished.Store(true)
	}, WithClock(clk))

	require.True(t, task.Start(time.Second))
	clk.Advance(time.Second)
	<-entered

	task.Stop()
	close(release)

	require.Eventually(t, finished.Load, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, ctxErr)
}

func TestTask_LastTickAt(t *testing.T) {
	clk := testutil.NewFakeClock(epoch)
	done := make(chan struct{}, 1)
	task := NewTask("test", func(context.Context) { done <- struct{}{} }, WithClock(clk))
	defer task.Stop()

	assert.True(t, task.LastTickAt().IsZero())

	require.True(t, task.Start(time.Minute))
	clk.Advance(time.Minute)
	<-done

	assert.Equal(t, epoch.Add(time.Minute), task.LastTickAt())
}
