package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"RiskLens/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	analyses    *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	riskScore   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on a custom registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risklens_analyses_total",
				Help: "Completed analyses by mode and resulting signal",
			},
			[]string{"mode", "signal"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "risklens_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		riskScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "risklens_risk_score",
				Help: "Latest composite risk score for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "risklens_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts a completed run. Symbol stays out of the labels to bound cardinality.
func (r *Recorder) RecordAnalysis(mode, _ string, sig models.Signal) {
	r.analyses.WithLabelValues(mode, string(sig)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRiskScore records the latest risk score for a symbol.
func (r *Recorder) RecordRiskScore(symbol string, value float64) {
	r.riskScore.WithLabelValues(symbol).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything; used by the CLI where nothing scrapes.
type Nop struct{}

func (Nop) RecordAnalysis(string, string, models.Signal) {}
func (Nop) RecordError(string)                           {}
func (Nop) RecordRiskScore(string, float64)              {}
func (Nop) RecordLatency(string, float64)                {}
