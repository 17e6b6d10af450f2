package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"RiskLens/internal/domain/models"
	"RiskLens/internal/services/scoring"
)

// Run scores the series causally and replays the policy over every reliable score.
func Run(series *models.PriceSeries, policy models.SignalPolicy, cfg models.RiskConfig) (*models.BacktestResult, error) {
	a, err := scoring.Analyze(series, cfg)
	if err != nil {
		return nil, err
	}
	return RunScores(series, a.Reliable(), policy, cfg.Backtest)
}

// RunScores replays a contiguous, ascending run of scores. The exposure chosen from the score
// at t earns the return from t to t+1, so the last score only closes the replay.
func RunScores(series *models.PriceSeries, scores []models.CompositeRiskScore, policy models.SignalPolicy, cfg models.BacktestConfig) (*models.BacktestResult, error) {
	if len(scores) < 2 {
		return nil, &models.InsufficientHistoryError{Component: "backtest", Have: len(scores), Need: 2}
	}
	closes := series.Closes()
	first, last := scores[0].Index, scores[len(scores)-1].Index
	periods := last - first

	equity := 1.0
	exposure := cfg.InitialExposure
	curve := make([]float64, 0, periods+1)
	curve = append(curve, equity)
	returns := make([]float64, 0, periods)
	var trades []models.TradeLogEntry
	exposureSum := 0.0

	segStart, segLen := equity, 0
	wins, invested := 0, 0
	closeSegment := func(exp float64) {
		if exp > 0 && segLen > 0 {
			invested++
			if equity > segStart {
				wins++
			}
		}
		segStart, segLen = equity, 0
	}

	for i := 0; i < len(scores)-1; i++ {
		s := scores[i]
		t := s.Index
		before := equity
		if target := policy.Target(s.Signal, exposure); target != exposure {
			closeSegment(exposure)
			fee := cfg.FeeRate * math.Abs(target-exposure)
			equity *= 1 - fee
			trades = append(trades, models.TradeLogEntry{
				Index:        t,
				Date:         s.Timestamp,
				Signal:       s.Signal,
				Score:        s.Value,
				Price:        closes[t],
				FromExposure: exposure,
				ToExposure:   target,
				Fee:          fee,
			})
			exposure = target
			segStart = equity
		}
		r := closes[t+1]/closes[t] - 1
		equity *= 1 + exposure*r
		segLen++
		returns = append(returns, equity/before-1)
		curve = append(curve, equity)
		exposureSum += exposure
	}
	closeSegment(exposure)

	res := &models.BacktestResult{
		Symbol:                series.Symbol,
		Policy:                policy.Name,
		Start:                 series.Bars[first].Date,
		End:                   series.Bars[last].Date,
		Periods:               periods,
		CumulativeReturn:      equity - 1,
		BuyAndHoldReturn:      closes[last]/closes[first] - 1,
		SharpeRatio:           Sharpe(returns, cfg.PeriodsPerYear),
		MaxDrawdown:           MaxDrawdown(curve),
		BuyAndHoldMaxDrawdown: MaxDrawdown(closes[first : last+1]),
		TradeCount:            len(trades),
		TradeLog:              trades,
		EntryTiming:           EntryTimingOf(closes, scores),
	}
	res.Outperformance = res.CumulativeReturn - res.BuyAndHoldReturn
	if invested > 0 {
		res.WinRate = float64(wins) / float64(invested)
	}
	if periods > 0 {
		res.AvgExposure = exposureSum / float64(periods)
	}
	return res, nil
}

// Return standard deviations below this are treated as zero.
const degenerateStd = 1e-12

// Sharpe annualizes mean/std of periodic returns. Zero variance yields 0.
func Sharpe(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std < degenerateStd || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(periodsPerYear)
}

// MaxDrawdown is the largest peak-to-trough decline of a value curve as a positive fraction.
func MaxDrawdown(curve []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := 1 - v/peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
