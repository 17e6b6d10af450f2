package models

import "time"

// FactorKind names one component of the composite risk score.
type FactorKind string

const (
	FactorValuation  FactorKind = "valuation"
	FactorMomentum   FactorKind = "momentum"
	FactorVolatility FactorKind = "volatility"
	FactorVolume     FactorKind = "volume"
)

// FactorKinds lists the factors in breakdown order.
var FactorKinds = [4]FactorKind{FactorValuation, FactorMomentum, FactorVolatility, FactorVolume}

// FactorScore is one factor's sub-score in [0,1].
type FactorScore struct {
	Kind  FactorKind `json:"kind"`
	Value float64    `json:"value"`
	// Defined is false when the underlying indicator had no data yet and Value is the neutral 0.5.
	Defined bool `json:"defined"`
}

// CompositeRiskScore is the weighted combination of all factors at one timestep.
type CompositeRiskScore struct {
	Index     int            `json:"index"`
	Timestamp time.Time      `json:"timestamp"`
	Value     float64        `json:"value"`
	Factors   [4]FactorScore `json:"factors"`
	Signal    Signal         `json:"signal"`
	Warmup    bool           `json:"warmup"`
}

// Factor returns the value of the given factor.
func (c CompositeRiskScore) Factor(kind FactorKind) float64 {
	for _, f := range c.Factors {
		if f.Kind == kind {
			return f.Value
		}
	}
	return 0.5
}

// AnalysisMetadata is descriptive context about the latest observation.
type AnalysisMetadata struct {
	Observations     int                `json:"observations"`
	Start            time.Time          `json:"start"`
	End              time.Time          `json:"end"`
	LastPrice        float64            `json:"last_price"`
	LastRisk         float64            `json:"last_risk"`
	FairValue        float64            `json:"fair_value"`
	Rating           Signal             `json:"rating"`
	Returns          map[string]float64 `json:"returns"`
	MA50Distance     *float64           `json:"ma50_distance,omitempty"`
	MA200Distance    *float64           `json:"ma200_distance,omitempty"`
	CurrentDrawdown  float64            `json:"current_drawdown"`
	MaxDrawdown      float64            `json:"max_drawdown"`
	VolumeMissing    bool               `json:"volume_missing"`
	RangeMissing     bool               `json:"range_missing"`
	EffectiveWeights FactorWeights      `json:"effective_weights"`
}

// Analysis is the full causal scoring output for one series.
// Scores and Estimates share indices; Scores[i].Index == Estimates[i].Index.
type Analysis struct {
	Symbol    string               `json:"symbol"`
	Interval  Interval             `json:"interval"`
	Scores    []CompositeRiskScore `json:"scores"`
	Estimates []EnsembleEstimate   `json:"estimates"`
	Fits      []RegressionFit      `json:"-"`
	Metadata  AnalysisMetadata     `json:"metadata"`
}

// Latest returns the most recent score.
func (a *Analysis) Latest() (CompositeRiskScore, bool) {
	if len(a.Scores) == 0 {
		return CompositeRiskScore{}, false
	}
	return a.Scores[len(a.Scores)-1], true
}

// Reliable returns the scores past warmup.
func (a *Analysis) Reliable() []CompositeRiskScore {
	for i, s := range a.Scores {
		if !s.Warmup {
			return a.Scores[i:]
		}
	}
	return nil
}

// ScoreAt returns the score computed at series index t.
func (a *Analysis) ScoreAt(t int) (CompositeRiskScore, bool) {
	if len(a.Scores) == 0 {
		return CompositeRiskScore{}, false
	}
	i := t - a.Scores[0].Index
	if i < 0 || i >= len(a.Scores) {
		return CompositeRiskScore{}, false
	}
	return a.Scores[i], true
}
