package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveCycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCycle("up", OutcomeSynced, 20*time.Millisecond)
	m.ObserveCycle("up", OutcomeSynced, 30*time.Millisecond)
	m.ObserveCycle("down", OutcomeFailed, time.Second)
	m.IncCaptureRetry()

	out := scrape(t, reg)
	require.Contains(t, out, `cliprelay_sync_cycles_total{direction="up",outcome="synced"} 2`)
	require.Contains(t, out, `cliprelay_sync_cycles_total{direction="down",outcome="failed"} 1`)
	require.Contains(t, out, `cliprelay_sync_cycle_seconds_count{direction="up"} 2`)
	require.Contains(t, out, `cliprelay_capture_retries_total 1`)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle("up", OutcomeSynced, time.Second)
	m.AddPayloadBytes("up", 10)
	m.IncCaptureRetry()
	m.IncApplyRetry()
}

func TestPayloadBytes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.AddPayloadBytes("down", 512)
	require.Contains(t, scrape(t, reg), `cliprelay_payload_bytes_total{direction="down"} 512`)
}
