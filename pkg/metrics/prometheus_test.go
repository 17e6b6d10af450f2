package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"RiskLens/internal/domain/models"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordAnalysis(models.ModeAnalyze, "SPY", models.SignalBuy)
	r.RecordAnalysis(models.ModeAnalyze, "BTC-USD", models.SignalBuy)
	r.RecordError("load_series")
	r.RecordRiskScore("SPY", 0.31)
	r.RecordRiskScore("SPY", 0.42)
	r.RecordLatency(models.ModeValidate, 1.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.analyses.WithLabelValues(models.ModeAnalyze, string(models.SignalBuy))))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("load_series")))
	assert.Equal(t, 0.42, testutil.ToFloat64(r.riskScore.WithLabelValues("SPY")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}
