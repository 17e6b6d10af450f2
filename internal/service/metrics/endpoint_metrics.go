package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EndpointMetrics tracks latency and failures of the risk API endpoints.
type EndpointMetrics struct {
	Latency *prometheus.HistogramVec
	Errors  *prometheus.CounterVec
}

func NewEndpointMetrics(reg prometheus.Registerer) *EndpointMetrics {
	f := promauto.With(reg)
	return &EndpointMetrics{
		Latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "risklens",
				Subsystem: "risk_api",
				Name:      "latency_seconds",
				Help:      "Latency of risk endpoints",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
		Errors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "risklens",
				Subsystem: "risk_api",
				Name:      "errors_total",
				Help:      "Errors by risk endpoint and kind",
			},
			[]string{"endpoint", "kind"},
		),
	}
}

// Observe records one call. A nil receiver is a no-op.
func (m *EndpointMetrics) Observe(endpoint string, start time.Time, errKind string) {
	if m == nil {
		return
	}
	m.Latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if errKind != "" {
		m.Errors.WithLabelValues(endpoint, errKind).Inc()
	}
}
