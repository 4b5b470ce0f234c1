// Package metrics exposes Prometheus collectors for the background mechanisms.
package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level collectors. They are registered via Register.
var (
	regOK atomic.Bool

	taskTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionguard",
			Subsystem: "task",
			Name:      "ticks_total",
			Help:      "Number of ticks executed per background task.",
		}, []string{"task"},
	)
	taskSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionguard",
			Subsystem: "task",
			Name:      "skipped_ticks_total",
			Help:      "Ticks dropped because the previous tick was still running.",
		}, []string{"task"},
	)
	taskPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionguard",
			Subsystem: "task",
			Name:      "panics_total",
			Help:      "Ticks that panicked and were recovered at the tick boundary.",
		}, []string{"task"},
	)
	taskRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sessionguard",
			Subsystem: "task",
			Name:      "running",
			Help:      "1 while the task has an armed timer, 0 otherwise.",
		}, []string{"task"},
	)
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionguard",
			Subsystem: "delivery",
			Name:      "items_total",
			Help:      "Notification items by outcome (delivered, failed, dropped).",
		}, []string{"result"},
	)
	refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionguard",
			Subsystem: "refresh",
			Name:      "runs_total",
			Help:      "Refresh callback invocations by trigger and outcome.",
		}, []string{"trigger", "result"},
	)
	sessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sessionguard",
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Inactivity events fired (lock, timeout, logout).",
		}, []string{"event"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{taskTicks, taskSkipped, taskPanics, taskRunning, deliveries, refreshes, sessionEvents}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics gathered from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncTick(task string) {
	if regOK.Load() {
		taskTicks.WithLabelValues(task).Inc()
	}
}

func IncSkippedTick(task string) {
	if regOK.Load() {
		taskSkipped.WithLabelValues(task).Inc()
	}
}

func IncTickPanic(task string) {
	if regOK.Load() {
		taskPanics.WithLabelValues(task).Inc()
	}
}

func SetRunning(task string, running bool) {
	if regOK.Load() {
		var v float64
		if running {
			v = 1
		}
		taskRunning.WithLabelValues(task).Set(v)
	}
}

func IncDelivery(result string) {
	if regOK.Load() {
		deliveries.WithLabelValues(result).Inc()
	}
}

func IncRefresh(trigger, result string) {
	if regOK.Load() {
		refreshes.WithLabelValues(trigger, result).Inc()
	}
}

func IncSessionEvent(event string) {
	if regOK.Load() {
		sessionEvents.WithLabelValues(event).Inc()
	}
}
