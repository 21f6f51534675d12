package recommend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments upstream calls. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catfood",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Calls to the ranking service by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "catfood",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency of ranking service calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

func (m *Metrics) observe(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.latency.Observe(time.Since(started).Seconds())
}
