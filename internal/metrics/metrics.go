// Package metrics exposes Prometheus collectors for sync activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cliprelay"

// Cycle outcomes.
const (
	OutcomeSynced   = "synced"
	OutcomeNoOp     = "noop"
	OutcomeEcho     = "echo"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing,
// so components can take one optionally.
type Metrics struct {
	cycles         *prometheus.CounterVec
	cycleSeconds   *prometheus.HistogramVec
	payloadBytes   *prometheus.CounterVec
	captureRetries prometheus.Counter
	applyRetries   prometheus.Counter
}

// New registers the collectors with reg. Use a fresh prometheus.NewRegistry()
// per instance in tests to avoid duplicate registration panics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_cycles_total",
			Help:      "Sync cycles by direction and outcome.",
		}, []string{"direction", "outcome"}),
		cycleSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_cycle_seconds",
			Help:      "Duration of sync cycles.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"direction"}),
		payloadBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_total",
			Help:      "Payload bytes transferred to or from the remote store.",
		}, []string{"direction"}),
		captureRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_retries_total",
			Help:      "Clipboard reads that had to be retried.",
		}),
		applyRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "apply_retries_total",
			Help:      "Clipboard writes that had to be retried.",
		}),
	}
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(direction, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(direction, outcome).Inc()
	m.cycleSeconds.WithLabelValues(direction).Observe(d.Seconds())
}

// AddPayloadBytes counts payload traffic.
func (m *Metrics) AddPayloadBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.payloadBytes.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) IncCaptureRetry() {
	if m == nil {
		return
	}
	m.captureRetries.Inc()
}

func (m *Metrics) IncApplyRetry() {
	if m == nil {
		return
	}
	m.applyRetries.Inc()
}

// Handler serves the collectors registered with g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
