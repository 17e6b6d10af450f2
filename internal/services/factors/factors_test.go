package factors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/features"
	"RiskLens/internal/testutil"
)

func TestValuationMatchesNormalCDF(t *testing.T) {
	tests := []struct {
		name      string
		resid     float64
		std       float64
		want      float64
		tolerance float64
	}{
		{"at fair value", 0, 0.2, 0.5, 1e-12},
		{"one sigma above", 0.2, 0.2, 0.8413, 1e-4},
		{"one sigma below", -0.2, 0.2, 0.1587, 1e-4},
		{"two sigma above", 0.5, 0.25, 0.977249868, 1e-6},
		{"zero std", 0.3, 0, 0.5, 0},
		{"nan residual", math.NaN(), 0.1, 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Valuation(tt.resid, tt.std), tt.tolerance)
		})
	}
}

func TestMomentumFollowsTrend(t *testing.T) {
	cfg := models.DefaultRiskConfig().Factors
	up := Momentum(testutil.Exponential("UP", 300, 10, 0.01), cfg)
	down := Momentum(testutil.Exponential("DOWN", 300, 10, -0.01), cfg)

	assert.False(t, features.Defined(up[0]))
	assert.GreaterOrEqual(t, up[299], 2.0/3.0)
	assert.LessOrEqual(t, down[299], 1.0/3.0)
	for _, v := range up[20:] {
		if features.Defined(v) {
			assert.True(t, v >= 0 && v <= 1)
		}
	}
}

func TestMomentumPartialIndicators(t *testing.T) {
	cfg := models.DefaultRiskConfig().Factors
	got := Momentum(testutil.Exponential("UP", 20, 10, 0.01), cfg)
	assert.InDelta(t, 1.0, got[14], 1e-9, "only RSI is defined")
}

func TestVolatilityRisesAfterShock(t *testing.T) {
	cfg := models.DefaultRiskConfig().Factors
	s := testutil.Series("SHOCK", 320, func(i int) float64 {
		amp := 0.002
		if i >= 300 {
			amp = 0.08
		}
		return 100 * (1 + amp*math.Sin(float64(i)))
	})
	got := Volatility(s, cfg)
	assert.False(t, features.Defined(got[100]))
	require.True(t, features.Defined(got[319]))
	assert.Greater(t, got[319], 0.9)

	calm := 0.0
	for _, v := range got[200:300] {
		calm += v
	}
	assert.Less(t, calm/100, 0.75)
}

func TestVolumeDivergence(t *testing.T) {
	cfg := models.DefaultRiskConfig().Factors
	build := func(volStep float64) *models.PriceSeries {
		s := testutil.Series("DIV", 60, func(i int) float64 {
			return 100 * math.Exp(0.01*float64(i)+0.005*math.Sin(float64(i)))
		})
		for i := range s.Bars {
			s.Bars[i].Volume = 1e6 * math.Exp(volStep*float64(i))
		}
		return s
	}

	falling := Volume(build(-0.05), cfg)
	rising := Volume(build(0.05), cfg)
	assert.False(t, features.Defined(falling[19]))
	assert.Greater(t, falling[59], 0.5, "price up on falling volume is risky")
	assert.Less(t, rising[59], 0.5, "price up on rising volume confirms")
}

func TestVolumeMissing(t *testing.T) {
	got := Volume(testutil.Constant("NOVOL", 50, 10), models.DefaultRiskConfig().Factors)
	for _, v := range got {
		assert.False(t, features.Defined(v))
	}
}
