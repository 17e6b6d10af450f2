package models

import (
	"fmt"
	"math"
	"time"

	"github.com/creasty/defaults"
)

// RiskConfig is the immutable tuning surface passed by value into every analysis entry point.
type RiskConfig struct {
	MinHistory   int           `yaml:"min_history" json:"min_history" default:"200" validate:"gte=3"`
	WarmupPeriod int           `yaml:"warmup_period" json:"warmup_period" default:"200" validate:"gte=0"`
	MaxGap       time.Duration `yaml:"max_gap" json:"max_gap"`

	Ensemble   EnsembleConfig   `yaml:"ensemble" json:"ensemble"`
	Factors    FactorConfig     `yaml:"factors" json:"factors"`
	Thresholds Thresholds       `yaml:"thresholds" json:"thresholds"`
	Backtest   BacktestConfig   `yaml:"backtest" json:"backtest"`
	Validation ValidationConfig `yaml:"validation" json:"validation"`
}

// VoteWeights are the ensemble voting weights of the three regression variants.
type VoteWeights struct {
	Linear    float64 `yaml:"linear" json:"linear" default:"0.25"`
	Quadratic float64 `yaml:"quadratic" json:"quadratic" default:"0.25"`
	Adaptive  float64 `yaml:"adaptive" json:"adaptive" default:"0.50"`
}

// EnsembleConfig tunes the fair-value regression ensemble.
type EnsembleConfig struct {
	Weights VoteWeights `yaml:"weights" json:"weights"`
	// RegressionWindow is the trailing fit window; 0 means expanding.
	RegressionWindow   int     `yaml:"regression_window" json:"regression_window" validate:"gte=0"`
	AdaptiveHalfLife   float64 `yaml:"adaptive_half_life" json:"adaptive_half_life" default:"126" validate:"gt=0"`
	AdaptiveDegree     int     `yaml:"adaptive_degree" json:"adaptive_degree" default:"1" validate:"oneof=1 2"`
	MinResidualSamples int     `yaml:"min_residual_samples" json:"min_residual_samples" default:"10" validate:"gte=2"`
}

// FactorWeights are the composite weights of the four risk factors.
type FactorWeights struct {
	Valuation  float64 `yaml:"valuation" json:"valuation" default:"0.40"`
	Momentum   float64 `yaml:"momentum" json:"momentum" default:"0.25"`
	Volatility float64 `yaml:"volatility" json:"volatility" default:"0.20"`
	Volume     float64 `yaml:"volume" json:"volume" default:"0.15"`
}

// MomentumWeights weight the momentum sub-indicators.
type MomentumWeights struct {
	RSI        float64 `yaml:"rsi" json:"rsi" default:"1"`
	Stochastic float64 `yaml:"stochastic" json:"stochastic" default:"1"`
	MACD       float64 `yaml:"macd" json:"macd" default:"1"`
}

// FactorConfig tunes the indicator windows behind the factors.
type FactorConfig struct {
	Weights         FactorWeights   `yaml:"weights" json:"weights"`
	MomentumWeights MomentumWeights `yaml:"momentum_weights" json:"momentum_weights"`
	Lookback        int             `yaml:"lookback" json:"lookback" default:"252" validate:"gte=2"`
	MinLookback     int             `yaml:"min_lookback" json:"min_lookback" default:"126" validate:"gte=2"`
	RSIPeriod       int             `yaml:"rsi_period" json:"rsi_period" default:"14" validate:"gte=2"`
	StochPeriod     int             `yaml:"stoch_period" json:"stoch_period" default:"14" validate:"gte=2"`
	StochSmooth     int             `yaml:"stoch_smooth" json:"stoch_smooth" default:"3" validate:"gte=1"`
	MACDFast        int             `yaml:"macd_fast" json:"macd_fast" default:"12" validate:"gte=1"`
	MACDSlow        int             `yaml:"macd_slow" json:"macd_slow" default:"26" validate:"gte=2"`
	MACDSignal      int             `yaml:"macd_signal" json:"macd_signal" default:"9" validate:"gte=1"`
	ATRPeriod       int             `yaml:"atr_period" json:"atr_period" default:"14" validate:"gte=1"`
	BollingerPeriod int             `yaml:"bollinger_period" json:"bollinger_period" default:"20" validate:"gte=2"`
	BollingerK      float64         `yaml:"bollinger_k" json:"bollinger_k" default:"2" validate:"gt=0"`
	VolumeWindow    int             `yaml:"volume_window" json:"volume_window" default:"20" validate:"gte=4"`
}

// BacktestConfig tunes the signal replay.
type BacktestConfig struct {
	InitialExposure float64 `yaml:"initial_exposure" json:"initial_exposure" default:"1" validate:"gte=0"`
	FeeRate         float64 `yaml:"fee_rate" json:"fee_rate" validate:"gte=0,lt=1"`
	PeriodsPerYear  float64 `yaml:"periods_per_year" json:"periods_per_year" default:"252" validate:"gt=0"`
}

// ScoreWeights weight each validation sub-test in the overall score; they sum to 100.
type ScoreWeights struct {
	Regression  float64 `yaml:"regression" json:"regression" default:"15"`
	Predictive  float64 `yaml:"predictive" json:"predictive" default:"30"`
	Timing      float64 `yaml:"timing" json:"timing" default:"20"`
	Calibration float64 `yaml:"calibration" json:"calibration" default:"15"`
	WalkForward float64 `yaml:"walk_forward" json:"walk_forward" default:"20"`
}

// ValidationConfig tunes the statistical validator.
type ValidationConfig struct {
	ForwardHorizon     int          `yaml:"forward_horizon" json:"forward_horizon" default:"30" validate:"gte=1"`
	MinSamples         int          `yaml:"min_samples" json:"min_samples" default:"30" validate:"gte=3"`
	SignificanceLevel  float64      `yaml:"significance_level" json:"significance_level" default:"0.05" validate:"gt=0,lt=1"`
	TimingWindow       int          `yaml:"timing_window" json:"timing_window" default:"30" validate:"gte=2"`
	TimingTolerance    float64      `yaml:"timing_tolerance" json:"timing_tolerance" default:"0.05" validate:"gte=0"`
	TimingMinHistory   int          `yaml:"timing_min_history" json:"timing_min_history" default:"504" validate:"gte=0"`
	PercentileLookback int          `yaml:"percentile_lookback" json:"percentile_lookback" default:"252" validate:"gte=2"`
	TrainBars          int          `yaml:"train_bars" json:"train_bars" default:"504" validate:"gte=3"`
	TestBars           int          `yaml:"test_bars" json:"test_bars" default:"126" validate:"gte=2"`
	StepBars           int          `yaml:"step_bars" json:"step_bars" default:"126" validate:"gte=1"`
	MinFolds           int          `yaml:"min_folds" json:"min_folds" default:"2" validate:"gte=1"`
	Weights            ScoreWeights `yaml:"weights" json:"weights"`
}

// DefaultRiskConfig returns the standard configuration.
func DefaultRiskConfig() RiskConfig {
	var c RiskConfig
	defaults.MustSet(&c)
	return c
}

const weightTolerance = 1e-6

// Validate checks cross-field rules that struct tags cannot express.
func (c RiskConfig) Validate() error {
	if c.MinHistory < 3 {
		return fmt.Errorf("min_history must be >= 3, got %d", c.MinHistory)
	}
	w := c.Ensemble.Weights
	if w.Linear < 0 || w.Quadratic < 0 || w.Adaptive < 0 {
		return fmt.Errorf("ensemble weights must be non-negative, got %+v", w)
	}
	if s := w.Linear + w.Quadratic + w.Adaptive; math.Abs(s-1) > weightTolerance {
		return fmt.Errorf("ensemble weights must sum to 1, got %.6f", s)
	}
	if c.Ensemble.AdaptiveDegree != 1 && c.Ensemble.AdaptiveDegree != 2 {
		return fmt.Errorf("ensemble.adaptive_degree must be 1 or 2, got %d", c.Ensemble.AdaptiveDegree)
	}
	if c.Ensemble.RegressionWindow != 0 && c.Ensemble.RegressionWindow < c.MinHistory {
		return fmt.Errorf("ensemble.regression_window must be 0 or >= min_history (%d), got %d", c.MinHistory, c.Ensemble.RegressionWindow)
	}
	fw := c.Factors.Weights
	if fw.Valuation < 0 || fw.Momentum < 0 || fw.Volatility < 0 || fw.Volume < 0 {
		return fmt.Errorf("factor weights must be non-negative, got %+v", fw)
	}
	if s := fw.Valuation + fw.Momentum + fw.Volatility + fw.Volume; math.Abs(s-1) > weightTolerance {
		return fmt.Errorf("factor weights must sum to 1, got %.6f", s)
	}
	mw := c.Factors.MomentumWeights
	if mw.RSI < 0 || mw.Stochastic < 0 || mw.MACD < 0 || mw.RSI+mw.Stochastic+mw.MACD == 0 {
		return fmt.Errorf("momentum weights must be non-negative with a positive sum, got %+v", mw)
	}
	if c.Factors.MACDFast >= c.Factors.MACDSlow {
		return fmt.Errorf("factors.macd_fast must be < macd_slow")
	}
	if c.Factors.MinLookback > c.Factors.Lookback {
		return fmt.Errorf("factors.min_lookback must be <= lookback")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.Validation.TrainBars < c.MinHistory {
		return fmt.Errorf("validation.train_bars must be >= min_history (%d), got %d", c.MinHistory, c.Validation.TrainBars)
	}
	sw := c.Validation.Weights
	if s := sw.Regression + sw.Predictive + sw.Timing + sw.Calibration + sw.WalkForward; math.Abs(s-100) > 1e-6 {
		return fmt.Errorf("validation weights must sum to 100, got %.4f", s)
	}
	return nil
}
