package scoring

import (
	"math"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/ensemble"
	"RiskLens/internal/services/factors"
	"RiskLens/internal/services/features"
)

// EffectiveWeights drops the volume weight and renormalizes the rest when the series has no volume.
func EffectiveWeights(w models.FactorWeights, hasVolume bool) models.FactorWeights {
	if hasVolume {
		return w
	}
	rest := w.Valuation + w.Momentum + w.Volatility
	if rest <= 0 {
		return models.FactorWeights{}
	}
	return models.FactorWeights{
		Valuation:  w.Valuation / rest,
		Momentum:   w.Momentum / rest,
		Volatility: w.Volatility / rest,
	}
}

// Combine returns the weighted sum of the factor values clipped to [0,1].
func Combine(f [4]models.FactorScore, w models.FactorWeights) float64 {
	v := w.Valuation*f[0].Value + w.Momentum*f[1].Value + w.Volatility*f[2].Value + w.Volume*f[3].Value
	return clip01(v)
}

// Classify maps a composite value to a Signal using the configured thresholds.
func Classify(v float64, th models.Thresholds) models.Signal {
	return th.Classify(v)
}

func clip01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func factorScore(kind models.FactorKind, v float64) models.FactorScore {
	if !features.Defined(v) {
		return models.FactorScore{Kind: kind, Value: factors.Neutral}
	}
	return models.FactorScore{Kind: kind, Value: clip01(v), Defined: true}
}

// Analyze scores every timestep of the series from index MinHistory-1 on.
// Each score depends only on observations at or before its own index.
func Analyze(series *models.PriceSeries, cfg models.RiskConfig) (*models.Analysis, error) {
	if n := series.Len(); n < cfg.MinHistory {
		return nil, &models.InsufficientHistoryError{Component: "scoring", Have: n, Need: cfg.MinHistory}
	}
	ens, err := ensemble.Fit(series, cfg)
	if err != nil {
		return nil, err
	}
	mom := factors.Momentum(series, cfg.Factors)
	vol := factors.Volatility(series, cfg.Factors)
	volu := factors.Volume(series, cfg.Factors)
	hasVolume := series.HasVolume()
	weights := EffectiveWeights(cfg.Factors.Weights, hasVolume)

	scores := make([]models.CompositeRiskScore, len(ens.Estimates))
	for i, e := range ens.Estimates {
		t := e.Index
		valuation := models.FactorScore{Kind: models.FactorValuation, Value: factors.ValuationFromZ(e.ZScore), Defined: !e.Degenerate}
		fs := [4]models.FactorScore{
			valuation,
			factorScore(models.FactorMomentum, mom[t]),
			factorScore(models.FactorVolatility, vol[t]),
			factorScore(models.FactorVolume, volu[t]),
		}
		v := Combine(fs, weights)
		scores[i] = models.CompositeRiskScore{
			Index:     t,
			Timestamp: series.Bars[t].Date,
			Value:     v,
			Factors:   fs,
			Signal:    cfg.Thresholds.Classify(v),
			Warmup:    t < cfg.WarmupPeriod,
		}
	}

	a := &models.Analysis{
		Symbol:    series.Symbol,
		Interval:  series.Interval,
		Scores:    scores,
		Estimates: ens.Estimates,
		Fits:      ens.Fits,
	}
	a.Metadata = describe(series, a, weights)
	return a, nil
}
