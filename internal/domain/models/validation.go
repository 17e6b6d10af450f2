package models

import "time"

// TestStatus reports whether a validation sub-test ran.
type TestStatus string

const (
	TestPassed TestStatus = "passed"
	TestNotRun TestStatus = "not_run"
)

// Grade is the letter summary of a validation overall score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// GradeFor maps an overall score in [0,100] to a letter grade.
func GradeFor(score float64) Grade {
	switch {
	case score >= 75:
		return GradeA
	case score >= 60:
		return GradeB
	case score >= 50:
		return GradeC
	default:
		return GradeD
	}
}

// TestOutcome is the status block shared by every sub-test.
type TestOutcome struct {
	Status   TestStatus `json:"status"`
	Reason   string     `json:"reason,omitempty"`
	Samples  int        `json:"samples"`
	SubScore float64    `json:"sub_score"`
}

// Ran reports whether the sub-test produced numbers.
func (o TestOutcome) Ran() bool { return o.Status == TestPassed }

// NotRun builds an outcome for a sub-test whose precondition failed.
func NotRun(reason string) TestOutcome {
	return TestOutcome{Status: TestNotRun, Reason: reason}
}

type RegressionAccuracy struct {
	TestOutcome
	R2                  float64 `json:"r2"`
	DirectionalAccuracy float64 `json:"directional_accuracy"`
	MAPE                float64 `json:"mape"`
	Degenerate          bool    `json:"degenerate,omitempty"`
}

// SignalBucket aggregates forward returns observed after one signal.
type SignalBucket struct {
	Signal            Signal  `json:"signal"`
	Count             int     `json:"count"`
	MeanForwardReturn float64 `json:"mean_forward_return"`
	WinRate           float64 `json:"win_rate"`
}

// Regime types of an asset's trend behaviour.
const (
	RegimeMomentum      = "MOMENTUM"
	RegimeMeanReversion = "MEAN_REVERSION"
)

type PredictivePower struct {
	TestOutcome
	ForwardHorizon      int            `json:"forward_horizon"`
	Correlation         float64        `json:"correlation"`
	PValue              float64        `json:"p_value"`
	ForwardReturnSpread float64        `json:"forward_return_spread"`
	SpearmanCorrelation float64        `json:"spearman_correlation"`
	RegimeType          string         `json:"regime_type,omitempty"`
	AvgRiskPump         float64        `json:"avg_risk_pump"`
	AvgRiskCrash        float64        `json:"avg_risk_crash"`
	Buckets             []SignalBucket `json:"buckets,omitempty"`
	Degenerate          bool           `json:"degenerate,omitempty"`
}

type TimingQuality struct {
	TestOutcome
	BuyTimingPct  float64 `json:"buy_timing_pct"`
	SellTimingPct float64 `json:"sell_timing_pct"`
	AvgPercentile float64 `json:"avg_percentile"`
	BuySignals    int     `json:"buy_signals"`
	SellSignals   int     `json:"sell_signals"`
}

type Calibration struct {
	TestOutcome
	Correlation  float64 `json:"correlation"`
	MeanAbsError float64 `json:"mean_abs_error"`
}

// FoldResult is one walk-forward fold. Index windows are half-open.
type FoldResult struct {
	Fold             int       `json:"fold"`
	TrainStart       int       `json:"train_start"`
	TestStart        int       `json:"test_start"`
	TestEnd          int       `json:"test_end"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	StrategyReturn   float64   `json:"strategy_return"`
	BuyAndHoldReturn float64   `json:"buy_and_hold_return"`
	Outperformance   float64   `json:"outperformance"`
}

type WalkForward struct {
	TestOutcome
	ConsistencyPct    float64      `json:"consistency_pct"`
	AvgOutperformance float64      `json:"avg_outperformance"`
	Folds             []FoldResult `json:"folds,omitempty"`
}

// ValidationReport is the graded outcome of every sub-test for one series.
type ValidationReport struct {
	Symbol             string             `json:"symbol"`
	Observations       int                `json:"observations"`
	RegressionAccuracy RegressionAccuracy `json:"regression_accuracy"`
	PredictivePower    PredictivePower    `json:"predictive_power"`
	TimingQuality      TimingQuality      `json:"timing_quality"`
	Calibration        Calibration        `json:"calibration"`
	WalkForward        WalkForward        `json:"walk_forward"`
	OverallScore       float64            `json:"overall_score"`
	Grade              Grade              `json:"grade"`
}
