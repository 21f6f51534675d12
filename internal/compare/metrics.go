package compare

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts basket operations. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	basketSize prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "catfood",
			Subsystem: "compare",
			Name:      "operations_total",
			Help:      "Basket operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		basketSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "catfood",
			Subsystem: "compare",
			Name:      "basket_size",
			Help:      "Number of entries in a basket after a mutation.",
			Buckets:   prometheus.LinearBuckets(0, 1, MaxItems+1),
		}),
	}
	reg.MustRegister(m.operations, m.basketSize)
	return m
}

func (m *Metrics) observe(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) size(n int) {
	if m == nil {
		return
	}
	m.basketSize.Observe(float64(n))
}

func outcome(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &verr):
		return "invalid"
	}
	return "error"
}
