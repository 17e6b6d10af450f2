// Package factors computes the four 0..1 risk sub-scores. Every series returned here is
// aligned to the input bars and causal; NaN marks positions where a factor is not yet defined.
package factors

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/features"
)

// Neutral is the value of a factor with no information.
const Neutral = 0.5

// Valuation maps a residual and its standard deviation to Φ(z). A zero std yields z = 0.
func Valuation(residual, std float64) float64 {
	if std <= 0 || !features.Defined(residual) || !features.Defined(std) {
		return ValuationFromZ(0)
	}
	return ValuationFromZ(residual / std)
}

// ValuationFromZ is the standard normal CDF.
func ValuationFromZ(z float64) float64 {
	return distuv.UnitNormal.CDF(z)
}

// Momentum blends RSI, stochastic %K and the range-normalized MACD histogram.
func Momentum(s *models.PriceSeries, cfg models.FactorConfig) []float64 {
	closes := s.Closes()
	rsi := features.RSI(closes, cfg.RSIPeriod)
	stoch := features.Stochastic(s.Highs(), s.Lows(), closes, cfg.StochPeriod, cfg.StochSmooth)
	hist := features.MACDHistogram(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	macd := features.RollingMinMaxNormalize(hist, cfg.Lookback, cfg.MinLookback)

	w := cfg.MomentumWeights
	out := make([]float64, len(closes))
	for t := range out {
		out[t] = weightedMean(
			[]float64{rsi[t] / 100, stoch[t] / 100, macd[t]},
			[]float64{w.RSI, w.Stochastic, w.MACD},
		)
	}
	return out
}

// Volatility averages the trailing percentile ranks of ATR and Bollinger bandwidth.
func Volatility(s *models.PriceSeries, cfg models.FactorConfig) []float64 {
	closes := s.Closes()
	atr := features.ATR(s.Highs(), s.Lows(), closes, cfg.ATRPeriod)
	bbw := features.BollingerWidth(closes, cfg.BollingerPeriod, cfg.BollingerK)
	atrRank := features.RollingPercentileRank(atr, cfg.Lookback, cfg.MinLookback)
	bbRank := features.RollingPercentileRank(bbw, cfg.Lookback, cfg.MinLookback)

	out := make([]float64, len(closes))
	for t := range out {
		out[t] = weightedMean([]float64{atrRank[t], bbRank[t]}, []float64{1, 1})
	}
	return out
}

// Volume scores price/volume divergence over the rolling window. Series without volume are
// undefined everywhere.
func Volume(s *models.PriceSeries, cfg models.FactorConfig) []float64 {
	n := s.Len()
	out := make([]float64, n)
	for t := range out {
		out[t] = math.NaN()
	}
	if !s.HasVolume() {
		return out
	}
	W := cfg.VolumeWindow
	half := W / 2
	closes := s.Closes()
	vols := s.Volumes()
	rets := features.ComputeLogReturns(closes)
	for t := W; t < n; t++ {
		sigma := features.RealizedVolatility(rets, t-1, W, 1)
		p := 0.0
		if sigma > 0 {
			p = math.Tanh(math.Log(closes[t]/closes[t-W]) / (sigma * math.Sqrt(float64(W))))
		}
		recent := mean(vols[t-half+1 : t+1])
		prior := mean(vols[t-W+1 : t-half+1])
		if recent <= 0 || prior <= 0 {
			out[t] = Neutral
			continue
		}
		v := math.Tanh(math.Log(recent / prior))
		out[t] = 0.5 + 0.5*p*(-v)
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// weightedMean averages the defined values; NaN when none are defined.
func weightedMean(values, weights []float64) float64 {
	sum, wsum := 0.0, 0.0
	for i, v := range values {
		if !features.Defined(v) || weights[i] <= 0 {
			continue
		}
		sum += weights[i] * v
		wsum += weights[i]
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}
