package validation

import (
	"errors"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/scoring"
)

// Validate re-drives the scorer over the series and grades its statistical quality.
// Sub-tests whose preconditions fail are reported not_run and contribute nothing to the score.
func Validate(series *models.PriceSeries, cfg models.RiskConfig) (*models.ValidationReport, error) {
	report, _, err := ValidateWithAnalysis(series, cfg)
	return report, err
}

// ValidateWithAnalysis is Validate that also returns the analysis it graded.
// The analysis is nil when the series is shorter than the scorer's minimum history.
func ValidateWithAnalysis(series *models.PriceSeries, cfg models.RiskConfig) (*models.ValidationReport, *models.Analysis, error) {
	report := &models.ValidationReport{Symbol: series.Symbol, Observations: series.Len()}
	vc := cfg.Validation

	a, err := scoring.Analyze(series, cfg)
	switch {
	case errors.Is(err, models.ErrInsufficientHistory):
		a = nil
		out := models.NotRun(err.Error())
		report.RegressionAccuracy.TestOutcome = out
		report.PredictivePower.TestOutcome = out
		report.PredictivePower.PValue = 1
		report.TimingQuality.TestOutcome = out
		report.Calibration.TestOutcome = out
		report.WalkForward.TestOutcome = out
	case err != nil:
		return nil, nil, err
	default:
		closes := series.Closes()
		report.RegressionAccuracy = regressionAccuracy(closes, a, vc)
		report.PredictivePower = predictivePower(closes, a, vc)
		report.TimingQuality = timingQuality(closes, a, vc)
		report.Calibration = calibration(closes, a, vc)
		report.WalkForward = walkForward(series, cfg)
	}
	report.OverallScore = OverallScore(report, vc.Weights)
	report.Grade = models.GradeFor(report.OverallScore)
	return report, a, nil
}

// OverallScore weights each sub-test's score into [0,100].
func OverallScore(r *models.ValidationReport, w models.ScoreWeights) float64 {
	part := func(o models.TestOutcome, weight float64) float64 {
		if !o.Ran() {
			return 0
		}
		return weight * clamp01(o.SubScore)
	}
	return part(r.RegressionAccuracy.TestOutcome, w.Regression) +
		part(r.PredictivePower.TestOutcome, w.Predictive) +
		part(r.TimingQuality.TestOutcome, w.Timing) +
		part(r.Calibration.TestOutcome, w.Calibration) +
		part(r.WalkForward.TestOutcome, w.WalkForward)
}

func firstReliable(a *models.Analysis) int {
	return len(a.Scores) - len(a.Reliable())
}
