package validation

import (
	"fmt"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/backtest"
	"RiskLens/internal/services/scoring"
)

// Fold is one walk-forward partition of half-open index windows.
type Fold struct {
	TrainStart int
	TestStart  int
	TestEnd    int
}

// BuildFolds partitions n observations into train+test folds advancing by step.
func BuildFolds(n int, cfg models.ValidationConfig) ([]Fold, error) {
	var folds []Fold
	for start := 0; start+cfg.TrainBars+cfg.TestBars <= n; start += cfg.StepBars {
		folds = append(folds, Fold{
			TrainStart: start,
			TestStart:  start + cfg.TrainBars,
			TestEnd:    start + cfg.TrainBars + cfg.TestBars,
		})
	}
	if len(folds) < cfg.MinFolds {
		return nil, fmt.Errorf("%d folds available, need %d: %w", len(folds), cfg.MinFolds, models.ErrInsufficientHistory)
	}
	return folds, nil
}

// walkForward re-scores each fold from its train start and backtests the test span only.
func walkForward(series *models.PriceSeries, cfg models.RiskConfig) models.WalkForward {
	folds, err := BuildFolds(series.Len(), cfg.Validation)
	if err != nil {
		return models.WalkForward{TestOutcome: models.NotRun(err.Error())}
	}
	policy := backtest.DefaultPolicy()
	res := models.WalkForward{TestOutcome: models.TestOutcome{Status: models.TestPassed}}
	beats := 0
	outSum := 0.0
	for i, f := range folds {
		sub := series.Slice(f.TrainStart, f.TestEnd)
		a, err := scoring.Analyze(sub, cfg)
		if err != nil {
			return models.WalkForward{TestOutcome: models.NotRun(fmt.Sprintf("fold %d: %v", i, err))}
		}
		local := f.TestStart - f.TrainStart
		var test []models.CompositeRiskScore
		for _, s := range a.Scores {
			if s.Index >= local && !s.Warmup {
				test = append(test, s)
			}
		}
		bt, err := backtest.RunScores(sub, test, policy, cfg.Backtest)
		if err != nil {
			return models.WalkForward{TestOutcome: models.NotRun(fmt.Sprintf("fold %d: %v", i, err))}
		}
		if bt.Outperformance > 0 {
			beats++
		}
		outSum += bt.Outperformance
		res.Folds = append(res.Folds, models.FoldResult{
			Fold:             i,
			TrainStart:       f.TrainStart,
			TestStart:        f.TestStart,
			TestEnd:          f.TestEnd,
			StartDate:        series.Bars[f.TestStart].Date,
			EndDate:          series.Bars[f.TestEnd-1].Date,
			StrategyReturn:   bt.CumulativeReturn,
			BuyAndHoldReturn: bt.BuyAndHoldReturn,
			Outperformance:   bt.Outperformance,
		})
	}
	res.Samples = len(folds)
	res.ConsistencyPct = 100 * float64(beats) / float64(len(folds))
	res.AvgOutperformance = outSum / float64(len(folds))
	res.SubScore = 0.7*res.ConsistencyPct/100 + 0.3*boolScore(res.AvgOutperformance > 0)
	return res
}
