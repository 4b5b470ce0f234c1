package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	// idempotent: calling again should be no-op
	require.NoError(t, Register(reg))

	IncTick("monitor")
	IncTick("monitor")
	IncSkippedTick("monitor")
	IncTickPanic("poller")
	SetRunning("poller", true)
	IncDelivery("delivered")
	IncRefresh("timer", "ok")
	IncSessionEvent("lock")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	wantNames := map[string]bool{
		"sessionguard_task_ticks_total":         false,
		"sessionguard_task_skipped_ticks_total": false,
		"sessionguard_task_panics_total":        false,
		"sessionguard_task_running":             false,
		"sessionguard_delivery_items_total":     false,
		"sessionguard_refresh_runs_total":       false,
		"sessionguard_session_events_total":     false,
	}
	for _, mf := range mfs {
		if _, ok := wantNames[mf.GetName()]; ok {
			wantNames[mf.GetName()] = true
			assert.NotEmpty(t, mf.GetMetric(), "metric %s has no samples", mf.GetName())
		}
	}
	for n, ok := range wantNames {
		assert.True(t, ok, "expected to find metric %s", n)
	}

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), "sessionguard_task_ticks_total{task=\"monitor\"} 2"))
}
