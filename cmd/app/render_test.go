package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"RiskLens/internal/domain/models"
)

func init() { color.NoColor = true }

func TestRenderReport(t *testing.T) {
	rep := &models.RiskReport{
		Symbol: "SPY",
		Mode:   models.ModeAnalyze,
		Latest: &models.CompositeRiskScore{
			Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Value:     0.82,
			Signal:    models.SignalSell,
			Factors: [4]models.FactorScore{
				{Kind: models.FactorValuation, Value: 0.9, Defined: true},
				{Kind: models.FactorMomentum, Value: 0.7, Defined: true},
				{Kind: models.FactorVolatility, Value: 0.6, Defined: true},
				{Kind: models.FactorVolume, Value: 0.5},
			},
		},
		Metadata: &models.AnalysisMetadata{LastPrice: 510, FairValue: 450, Returns: map[string]float64{"30d": 0.05, "7d": -0.01}},
		Interpretation: &models.Interpretation{
			Light: models.LightRed, Status: "BUBBLE TERRITORY", Action: "Take profits", Summary: "SPY looks stretched.",
		},
	}

	var buf bytes.Buffer
	renderReport(&buf, rep)
	out := buf.String()
	assert.Contains(t, out, "SPY  [analyze]")
	assert.Contains(t, out, "0.820  SELL")
	assert.Contains(t, out, "2024-03-01")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "30d +5.00%  7d -1.00%")
	assert.Contains(t, out, "BUBBLE TERRITORY")
	assert.NotContains(t, out, "backtest")
}

func TestRenderSuite(t *testing.T) {
	sum := &models.SuiteSummary{
		Entries: []models.SuiteEntry{
			{Symbol: "SPY", Grade: models.GradeB, OverallScore: 64.2, LastRisk: 0.45, Signal: models.SignalHold},
			{Symbol: "NOPE", Error: "series not found"},
		},
		MeanOverallScore:  64.2,
		GradeDistribution: map[models.Grade]int{models.GradeB: 1},
		Failed:            1,
	}

	var buf bytes.Buffer
	renderSuite(&buf, sum)
	out := buf.String()
	assert.Contains(t, out, "SPY")
	assert.Contains(t, out, "64.2")
	assert.Contains(t, out, "series not found")
	assert.Contains(t, out, "grades B:1  failed 1")
}
