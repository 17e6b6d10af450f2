package validation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"RiskLens/internal/domain/models"
)

func notEnough(have, need int) string {
	return fmt.Sprintf("need %d reliable observations, have %d", need, have)
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// regressionAccuracy measures how well the ensemble fair value tracks price over the reliable span.
func regressionAccuracy(closes []float64, a *models.Analysis, cfg models.ValidationConfig) models.RegressionAccuracy {
	k := firstReliable(a)
	est := a.Estimates[k:]
	if len(est) < cfg.MinSamples {
		return models.RegressionAccuracy{TestOutcome: models.NotRun(notEnough(len(est), cfg.MinSamples))}
	}

	logp := make([]float64, len(est))
	fair := make([]float64, len(est))
	ape := 0.0
	for i, e := range est {
		logp[i] = math.Log(closes[e.Index])
		fair[i] = e.LogFairValue
		ape += math.Abs(e.FairValue-closes[e.Index]) / closes[e.Index]
	}
	// R² against a flat price is float noise over a zero denominator.
	degenerate := stat.StdDev(logp, nil) < degenerateStd
	r2 := 0.0
	if !degenerate {
		r2 = stat.RSquaredFrom(fair, logp, nil)
	}
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2, degenerate = 0, true
	}

	h := cfg.ForwardHorizon
	hits, total := 0, 0
	for i := range est {
		j := k + i - h
		if j < 0 {
			continue
		}
		prev := a.Estimates[j]
		t := est[i].Index
		move := math.Log(closes[t]) - math.Log(closes[prev.Index])
		if math.Abs(move) < degenerateStd {
			continue
		}
		total++
		if sign(est[i].LogFairValue-prev.LogFairValue) == sign(move) {
			hits++
		}
	}

	res := models.RegressionAccuracy{
		TestOutcome: models.TestOutcome{Status: models.TestPassed, Samples: len(est)},
		R2:          r2,
		MAPE:        100 * ape / float64(len(est)),
		Degenerate:  degenerate,
	}
	if total > 0 {
		res.DirectionalAccuracy = float64(hits) / float64(total)
	} else {
		res.DirectionalAccuracy = 0.5
		res.Degenerate = true
	}
	res.SubScore = 0.4*clamp01(res.R2) + 0.4*clamp01((res.DirectionalAccuracy-0.5)/0.5) + 0.2*clamp01(1-res.MAPE/50)
	return res
}
