package validation

import (
	"math"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/features"
)

// Calibrate compares scores with the reference percentile ranks they should track.
func Calibrate(scores, ranks []float64, minSamples int) models.Calibration {
	if len(scores) < minSamples || len(scores) != len(ranks) {
		return models.Calibration{TestOutcome: models.NotRun(notEnough(len(scores), minSamples))}
	}
	res := models.Calibration{TestOutcome: models.TestOutcome{Status: models.TestPassed, Samples: len(scores)}}
	// A flat score or reference series has no correlation.
	res.Correlation, _ = pearson(scores, ranks)
	abs := 0.0
	for i := range scores {
		abs += math.Abs(scores[i] - ranks[i])
	}
	res.MeanAbsError = abs / float64(len(scores))
	res.SubScore = 0.5*clamp01(res.Correlation) + 0.5*clamp01(1-res.MeanAbsError/0.5)
	return res
}

// calibration checks the score against the expanding historical percentile rank of price.
func calibration(closes []float64, a *models.Analysis, cfg models.ValidationConfig) models.Calibration {
	ranks := features.ExpandingPercentileRank(closes, 1)
	reliable := a.Reliable()
	scores := make([]float64, len(reliable))
	ref := make([]float64, len(reliable))
	for i, s := range reliable {
		scores[i] = s.Value
		ref[i] = ranks[s.Index]
	}
	return Calibrate(scores, ref, cfg.MinSamples)
}
