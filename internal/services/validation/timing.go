package validation

import (
	"fmt"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/features"
)

// timingQuality checks whether buy signals land near local lows and sell signals near local highs.
func timingQuality(closes []float64, a *models.Analysis, cfg models.ValidationConfig) models.TimingQuality {
	if len(closes) < cfg.TimingMinHistory {
		return models.TimingQuality{TestOutcome: models.NotRun(fmt.Sprintf("need %d observations, have %d", cfg.TimingMinHistory, len(closes)))}
	}
	lows := features.RollingMin(closes, cfg.TimingWindow)
	highs := features.RollingMax(closes, cfg.TimingWindow)
	pct := features.RollingPercentileRank(closes, cfg.PercentileLookback, 1)

	reliable := a.Reliable()
	sellSignal := models.SignalSell
	hasSell := false
	for _, s := range reliable {
		if s.Signal == models.SignalSell {
			hasSell = true
			break
		}
	}
	if !hasSell {
		sellSignal = models.SignalReduce
	}

	buys, goodBuys, sells, goodSells := 0, 0, 0, 0
	pctSum := 0.0
	for _, s := range reliable {
		t := s.Index
		if !features.Defined(lows[t]) {
			continue
		}
		switch {
		case s.Signal.IsBuy():
			buys++
			if closes[t] <= lows[t]*(1+cfg.TimingTolerance) {
				goodBuys++
			}
			pctSum += pct[t]
		case s.Signal == sellSignal:
			sells++
			if closes[t] >= highs[t]*(1-cfg.TimingTolerance) {
				goodSells++
			}
		}
	}
	if buys+sells == 0 {
		return models.TimingQuality{TestOutcome: models.NotRun("no buy or sell signals in reliable span")}
	}

	res := models.TimingQuality{
		TestOutcome: models.TestOutcome{Status: models.TestPassed, Samples: buys + sells},
		BuySignals:  buys,
		SellSignals: sells,
	}
	pctScore := 0.0
	if buys > 0 {
		res.BuyTimingPct = 100 * float64(goodBuys) / float64(buys)
		res.AvgPercentile = pctSum / float64(buys)
		pctScore = 1 - res.AvgPercentile
	}
	if sells > 0 {
		res.SellTimingPct = 100 * float64(goodSells) / float64(sells)
	}
	res.SubScore = 0.5*res.BuyTimingPct/100 + 0.3*res.SellTimingPct/100 + 0.2*clamp01(pctScore)
	return res
}
