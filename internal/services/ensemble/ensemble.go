package ensemble

import (
	"math"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/features"
)

// Residual standard deviations at or below this are treated as zero.
const degenerateStd = 1e-12

type variant struct {
	kind   models.ModelKind
	weight float64
	decay  []float64 // nil for ordinary least squares
	arena  *lsq
}

// running accumulates prefix sums of a residual stream so any trailing window's
// population standard deviation is O(1).
type running struct {
	sum, sum2 []float64
}

func newRunning(n int) *running {
	return &running{sum: make([]float64, n+1), sum2: make([]float64, n+1)}
}

func (r *running) push(i int, v float64) {
	r.sum[i+1] = r.sum[i] + v
	r.sum2[i+1] = r.sum2[i] + v*v
}

// std returns the population std and sample count over steps [lo, hi].
func (r *running) std(lo, hi int) (float64, int) {
	c := hi - lo + 1
	if c <= 0 {
		return 0, 0
	}
	n := float64(c)
	mean := (r.sum[hi+1] - r.sum[lo]) / n
	v := (r.sum2[hi+1]-r.sum2[lo])/n - mean*mean
	if v < 0 {
		v = 0
	}
	return math.Sqrt(v), c
}

func zScore(resid, std float64, count, minSamples int) (float64, bool) {
	if count < minSamples || std <= degenerateStd {
		return 0, true
	}
	return resid / std, false
}

// Fit runs the linear, quadratic and adaptive fair-value regressions causally over the series:
// the estimate at t uses only observations in the window ending at t.
// The first estimate is at index MinHistory-1.
func Fit(series *models.PriceSeries, cfg models.RiskConfig) (*models.EnsembleResult, error) {
	n := series.Len()
	if n < cfg.MinHistory {
		return nil, &models.InsufficientHistoryError{Component: "ensemble", Have: n, Need: cfg.MinHistory}
	}
	ec := cfg.Ensemble
	logp := features.LogPrices(series.Closes())
	off := cfg.MinHistory - 1
	steps := n - off

	variants := []variant{
		{kind: models.ModelLinear, weight: ec.Weights.Linear, arena: newLSQ(1)},
		{kind: models.ModelQuadratic, weight: ec.Weights.Quadratic, arena: newLSQ(2)},
		{kind: models.ModelAdaptive, weight: ec.Weights.Adaptive, arena: newLSQ(ec.AdaptiveDegree), decay: decayWeights(n, ec.AdaptiveHalfLife)},
	}

	fits := make([]models.RegressionFit, len(variants))
	resids := make([]*running, len(variants))
	for k, v := range variants {
		fits[k] = models.RegressionFit{
			Kind:        v.kind,
			Offset:      off,
			FairValue:   make([]float64, steps),
			Residual:    make([]float64, steps),
			ResidualStd: make([]float64, steps),
		}
		resids[k] = newRunning(steps)
	}
	ensemble := newRunning(steps)
	estimates := make([]models.EnsembleEstimate, steps)

	xs := make([]float64, 0, n)
	ws := make([]float64, 0, n)
	for i := 0; i < steps; i++ {
		t := off + i
		start := 0
		if ec.RegressionWindow > 0 && t-ec.RegressionWindow+1 > 0 {
			start = t - ec.RegressionWindow + 1
		}
		span := float64(t - start)
		if span < 1 {
			span = 1
		}
		xs = xs[:0]
		for j := start; j <= t; j++ {
			xs = append(xs, float64(j-t)/span)
		}
		ys := logp[start : t+1]
		lo := start - off
		if lo < 0 {
			lo = 0
		}

		logFair := 0.0
		for k := range variants {
			v := &variants[k]
			var w []float64
			if v.decay != nil {
				ws = ws[:0]
				for j := start; j <= t; j++ {
					ws = append(ws, v.decay[t-j])
				}
				w = ws
			}
			coef, _ := v.arena.solve(xs, ys, w)
			fair := coef[0]
			r := logp[t] - fair
			resids[k].push(i, r)
			std, _ := resids[k].std(lo, i)

			fits[k].FairValue[i] = fair
			fits[k].Residual[i] = r
			fits[k].ResidualStd[i] = std
			if i == steps-1 {
				fits[k].Params = append([]float64(nil), coef...)
				fits[k].WindowStart = start
				fits[k].WindowEnd = t
			}
			logFair += v.weight * fair
		}

		r := logp[t] - logFair
		ensemble.push(i, r)
		std, count := ensemble.std(lo, i)
		z, degenerate := zScore(r, std, count, ec.MinResidualSamples)
		estimates[i] = models.EnsembleEstimate{
			Index:        t,
			Date:         series.Bars[t].Date,
			FairValue:    math.Exp(logFair),
			LogFairValue: logFair,
			Residual:     r,
			ResidualStd:  std,
			ZScore:       z,
			Degenerate:   degenerate,
		}
	}
	return &models.EnsembleResult{Fits: fits, Estimates: estimates}, nil
}

// decayWeights returns 0.5^(k/halfLife) for lags k in [0, n).
func decayWeights(n int, halfLife float64) []float64 {
	out := make([]float64, n)
	for k := range out {
		out[k] = math.Pow(0.5, float64(k)/halfLife)
	}
	return out
}
