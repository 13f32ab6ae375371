package export

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

func startHealth(t *testing.T) *HealthMetrics {
	t.Helper()

	h := NewHealthMetrics(testLog(), HealthConfig{
		Addr: "127.0.0.1:0",
	})

	require.NoError(t, h.Start(context.Background()))

	t.Cleanup(func() {
		h.Stop()
	})

	// Give server a moment to start serving.
	time.Sleep(50 * time.Millisecond)

	return h
}

func TestHealthMetrics_StartStop(t *testing.T) {
	h := startHealth(t)
	assert.True(t, h.running.Load())
	assert.NotEmpty(t, h.Addr())
}

func TestHealthMetrics_CounterIncrement(t *testing.T) {
	h := startHealth(t)

	h.RecordsSubmitted.WithLabelValues("eth0").Add(3)
	h.Flushes.WithLabelValues("eth0", TriggerEntries).Inc()
	h.FlushErrors.WithLabelValues("eth0", FailurePush).Inc()
	h.PendingEntries.WithLabelValues("eth0").Set(7)
	h.InterfacesActive.Set(2)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", h.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	bodyStr := string(body)
	assert.Contains(t, bodyStr, `tsexporter_records_submitted_total{interface="eth0"} 3`)
	assert.Contains(t, bodyStr, `tsexporter_flushes_total{interface="eth0",trigger="entries"} 1`)
	assert.Contains(t, bodyStr, `tsexporter_flush_errors_total{interface="eth0",kind="push"} 1`)
	assert.Contains(t, bodyStr, `tsexporter_pending_entries{interface="eth0"} 7`)
	assert.Contains(t, bodyStr, "tsexporter_interfaces_active 2")
}

func TestHealthMetrics_HealthzResponse(t *testing.T) {
	h := startHealth(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", h.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestHealthMetrics_StopIdempotent(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{})

	assert.NoError(t, h.Stop())
	assert.NoError(t, h.Stop())
}

func TestHealthMetrics_AddrBeforeStart(t *testing.T) {
	h := NewHealthMetrics(testLog(), HealthConfig{
		Addr: ":9999",
	})

	assert.Equal(t, ":9999", h.Addr())
}
