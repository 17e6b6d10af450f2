package scoring

import (
	"fmt"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/features"
)

var returnHorizons = []int{7, 30, 90, 365}

func describe(series *models.PriceSeries, a *models.Analysis, weights models.FactorWeights) models.AnalysisMetadata {
	closes := series.Closes()
	n := len(closes)
	last := closes[n-1]
	meta := models.AnalysisMetadata{
		Observations:     n,
		Start:            series.Bars[0].Date,
		End:              series.Bars[n-1].Date,
		LastPrice:        last,
		Returns:          make(map[string]float64, len(returnHorizons)),
		VolumeMissing:    !series.HasVolume(),
		RangeMissing:     !series.HasRange(),
		EffectiveWeights: weights,
	}
	if s, ok := a.Latest(); ok {
		meta.LastRisk = s.Value
		meta.Rating = Rating(s.Value)
	}
	if len(a.Estimates) > 0 {
		meta.FairValue = a.Estimates[len(a.Estimates)-1].FairValue
	}
	for _, d := range returnHorizons {
		if n >= d && closes[n-d] > 0 {
			meta.Returns[fmt.Sprintf("%dd", d)] = last/closes[n-d] - 1
		}
	}
	meta.MA50Distance = maDistance(closes, 50)
	meta.MA200Distance = maDistance(closes, 200)
	meta.CurrentDrawdown, meta.MaxDrawdown = drawdowns(closes)
	return meta
}

// Rating is the coarse three-way reading of a risk value.
func Rating(v float64) models.Signal {
	switch {
	case v < 0.3:
		return models.SignalBuy
	case v > 0.75:
		return models.SignalSell
	default:
		return models.SignalHold
	}
}

func maDistance(closes []float64, period int) *float64 {
	ma := features.SMA(closes, period)
	m := ma[len(ma)-1]
	if !features.Defined(m) || m <= 0 {
		return nil
	}
	d := closes[len(closes)-1]/m - 1
	return &d
}

// drawdowns returns the current and maximum decline from the running peak as positive fractions.
func drawdowns(closes []float64) (current, maxDD float64) {
	peak := 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		dd := 1 - c/peak
		if dd > maxDD {
			maxDD = dd
		}
		current = dd
	}
	return current, maxDD
}
