package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/testutil"
)

func scoresOf(vals ...float64) [4]models.FactorScore {
	var out [4]models.FactorScore
	for i, v := range vals {
		out[i] = models.FactorScore{Kind: models.FactorKinds[i], Value: v, Defined: true}
	}
	return out
}

func TestCombineDefaultWeights(t *testing.T) {
	w := models.DefaultRiskConfig().Factors.Weights
	assert.InDelta(t, 0.28, Combine(scoresOf(0.2, 0.5, 0.3, 0.1), w), 1e-12)
	assert.InDelta(t, 1.0, Combine(scoresOf(1, 1, 1, 1), w), 1e-12)
	assert.Equal(t, 0.0, Combine(scoresOf(0, 0, 0, 0), w))
}

func TestCombineClips(t *testing.T) {
	w := models.FactorWeights{Valuation: 0.7, Momentum: 0.7}
	assert.Equal(t, 1.0, Combine(scoresOf(1, 1, 0, 0), w))
}

func TestEffectiveWeightsWithoutVolume(t *testing.T) {
	w := EffectiveWeights(models.DefaultRiskConfig().Factors.Weights, false)
	assert.Equal(t, 0.0, w.Volume)
	assert.InDelta(t, 1.0, w.Valuation+w.Momentum+w.Volatility, 1e-12)
	assert.InDelta(t, 0.40/0.85, w.Valuation, 1e-12)
}

func TestClassifyBoundaries(t *testing.T) {
	th := models.DefaultThresholds()
	tests := []struct {
		v    float64
		want models.Signal
	}{
		{0.0, models.SignalStrongBuy},
		{0.29, models.SignalStrongBuy},
		{0.30, models.SignalBuy},
		{0.40, models.SignalHold},
		{0.5999, models.SignalHold},
		{0.60, models.SignalReduce},
		{0.75, models.SignalSell},
		{1.0, models.SignalSell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.v, th), "value %v", tt.v)
	}
}

func TestAnalyzeInsufficientHistory(t *testing.T) {
	_, err := Analyze(testutil.RandomWalk("RW", 150, 1), models.DefaultRiskConfig())
	assert.True(t, errors.Is(err, models.ErrInsufficientHistory))
}

func TestAnalyzeBoundsAndWarmup(t *testing.T) {
	cfg := models.DefaultRiskConfig()
	a, err := Analyze(testutil.RandomWalk("RW", 500, 5), cfg)
	require.NoError(t, err)
	require.Len(t, a.Scores, 301)
	require.Len(t, a.Estimates, 301)

	for i, s := range a.Scores {
		assert.Equal(t, a.Estimates[i].Index, s.Index)
		assert.GreaterOrEqual(t, s.Value, 0.0)
		assert.LessOrEqual(t, s.Value, 1.0)
		assert.Equal(t, s.Index < cfg.WarmupPeriod, s.Warmup)
		assert.Equal(t, cfg.Thresholds.Classify(s.Value), s.Signal)
	}
	assert.Len(t, a.Reliable(), 300)

	latest, ok := a.Latest()
	require.True(t, ok)
	assert.Equal(t, latest.Value, a.Metadata.LastRisk)
	assert.False(t, a.Metadata.VolumeMissing)
	assert.Contains(t, a.Metadata.Returns, "365d")
	assert.NotNil(t, a.Metadata.MA200Distance)
	assert.GreaterOrEqual(t, a.Metadata.MaxDrawdown, a.Metadata.CurrentDrawdown)
}

func TestAnalyzeIsCausal(t *testing.T) {
	cfg := models.DefaultRiskConfig()
	full := testutil.RandomWalk("RW", 420, 9)
	a, err := Analyze(full, cfg)
	require.NoError(t, err)

	for _, cut := range []int{230, 333, 419} {
		b, err := Analyze(full.Slice(0, cut+1), cfg)
		require.NoError(t, err)
		want, ok := a.ScoreAt(cut)
		require.True(t, ok)
		got, ok := b.Latest()
		require.True(t, ok)
		assert.Equal(t, want.Index, got.Index)
		assert.InDelta(t, want.Value, got.Value, 1e-9, "index %d", cut)
		assert.Equal(t, want.Signal, got.Signal)
	}
}

func TestAnalyzeFlatSeries(t *testing.T) {
	a, err := Analyze(testutil.Constant("FLAT", 260, 25), models.DefaultRiskConfig())
	require.NoError(t, err)
	for _, s := range a.Scores {
		assert.Equal(t, 0.5, s.Factor(models.FactorValuation))
		assert.Equal(t, 0.5, s.Factor(models.FactorVolume))
	}
	assert.True(t, a.Metadata.VolumeMissing)
	assert.Equal(t, 0.0, a.Metadata.EffectiveWeights.Volume)
	assert.Equal(t, 0.0, a.Metadata.MaxDrawdown)
}

func TestRating(t *testing.T) {
	assert.Equal(t, models.SignalBuy, Rating(0.1))
	assert.Equal(t, models.SignalHold, Rating(0.75))
	assert.Equal(t, models.SignalSell, Rating(0.8))
}
