package genai

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for generation calls.
// A nil *Metrics records nothing.
type Metrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the generation collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brandstudio",
			Subsystem: "genai",
			Name:      "attempts_total",
			Help:      "Upstream requests sent, by endpoint and outcome.",
		}, []string{"endpoint", "kind", "outcome"}),
		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brandstudio",
			Subsystem: "genai",
			Name:      "retries_total",
			Help:      "Backoff sleeps scheduled after a retryable failure.",
		}, []string{"endpoint", "kind"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brandstudio",
			Subsystem: "genai",
			Name:      "failures_total",
			Help:      "Generations that failed after retries and fallbacks.",
		}, []string{"kind"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "brandstudio",
			Subsystem: "genai",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a generation including retries.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"kind", "status"}),
	}
}

func (m *Metrics) attempt(endpoint, kind string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.attempts.WithLabelValues(endpoint, kind, outcome).Inc()
}

func (m *Metrics) retry(endpoint, kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(endpoint, kind).Inc()
}

func (m *Metrics) finished(kind string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.failures.WithLabelValues(kind).Inc()
	}
	m.duration.WithLabelValues(kind, status).Observe(elapsed.Seconds())
}
