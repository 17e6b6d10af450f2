package validation

import (
	"errors"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/features"
)

const (
	momentumShare = 0.30
	pumpQuantile  = 0.8
	crashQuantile = 0.2
)

type forwardSample struct {
	index  int
	score  float64
	signal models.Signal
	fwd    float64
}

func forwardSamples(closes []float64, a *models.Analysis, horizon int) []forwardSample {
	var out []forwardSample
	for _, s := range a.Reliable() {
		t := s.Index
		if t+horizon >= len(closes) {
			break
		}
		out = append(out, forwardSample{index: t, score: s.Value, signal: s.Signal, fwd: closes[t+horizon]/closes[t] - 1})
	}
	return out
}

// predictivePower relates each reliable score to the return over the following horizon.
// A useful risk score correlates negatively with forward returns.
func predictivePower(closes []float64, a *models.Analysis, cfg models.ValidationConfig) models.PredictivePower {
	h := cfg.ForwardHorizon
	samples := forwardSamples(closes, a, h)
	if len(samples) < cfg.MinSamples {
		return models.PredictivePower{TestOutcome: models.NotRun(notEnough(len(samples), cfg.MinSamples)), ForwardHorizon: h, PValue: 1}
	}

	x := make([]float64, len(samples))
	y := make([]float64, len(samples))
	for i, s := range samples {
		x[i], y[i] = s.score, s.fwd
	}

	res := models.PredictivePower{
		TestOutcome:    models.TestOutcome{Status: models.TestPassed, Samples: len(samples)},
		ForwardHorizon: h,
		PValue:         1,
	}
	r, err := pearson(x, y)
	switch {
	case errors.Is(err, models.ErrDegenerateStatistic):
		res.Degenerate = true
	default:
		res.Correlation = r
		res.PValue = pValue(r, len(samples))
	}
	if rs, err := spearman(x, y); err == nil {
		res.SpearmanCorrelation = rs
	}

	res.Buckets = buckets(samples)
	res.ForwardReturnSpread = spread(res.Buckets)
	res.RegimeType = regimeType(closes, samples)

	q80, q20 := quantile(y, pumpQuantile), quantile(y, crashQuantile)
	var pump, crash []float64
	for _, s := range samples {
		if s.fwd > q80 {
			pump = append(pump, s.score)
		}
		if s.fwd < q20 {
			crash = append(crash, s.score)
		}
	}
	res.AvgRiskPump = mean(pump)
	res.AvgRiskCrash = mean(crash)

	res.SubScore = 0.4*boolScore(res.ForwardReturnSpread > 0) +
		0.3*clamp01(-res.Correlation/0.3) +
		0.3*boolScore(res.Correlation < 0 && res.PValue < cfg.SignificanceLevel)
	return res
}

func buckets(samples []forwardSample) []models.SignalBucket {
	var out []models.SignalBucket
	for _, sig := range models.Signals {
		var sum float64
		count, wins := 0, 0
		for _, s := range samples {
			if s.signal != sig {
				continue
			}
			count++
			sum += s.fwd
			if s.fwd > 0 {
				wins++
			}
		}
		if count == 0 {
			continue
		}
		out = append(out, models.SignalBucket{
			Signal:            sig,
			Count:             count,
			MeanForwardReturn: sum / float64(count),
			WinRate:           float64(wins) / float64(count),
		})
	}
	return out
}

// spread is the mean forward return after buy signals minus after SELL, falling back to REDUCE.
func spread(bs []models.SignalBucket) float64 {
	var buySum float64
	buyCount := 0
	var sell, reduce *models.SignalBucket
	for i := range bs {
		b := &bs[i]
		switch b.Signal {
		case models.SignalStrongBuy, models.SignalBuy:
			buySum += b.MeanForwardReturn * float64(b.Count)
			buyCount += b.Count
		case models.SignalSell:
			sell = b
		case models.SignalReduce:
			reduce = b
		}
	}
	if sell == nil {
		sell = reduce
	}
	if buyCount == 0 || sell == nil {
		return 0
	}
	return buySum/float64(buyCount) - sell.MeanForwardReturn
}

// regimeType labels the asset MOMENTUM when it closes above its 200-bar average often enough.
func regimeType(closes []float64, samples []forwardSample) string {
	sma := features.SMA(closes, 200)
	above, defined := 0, 0
	for _, s := range samples {
		m := sma[s.index]
		if !features.Defined(m) {
			continue
		}
		defined++
		if closes[s.index] > m {
			above++
		}
	}
	if defined > 0 && float64(above)/float64(defined) > momentumShare {
		return models.RegimeMomentum
	}
	return models.RegimeMeanReversion
}
