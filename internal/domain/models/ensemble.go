package models

import "time"

// ModelKind names one regression variant of the fair-value ensemble.
type ModelKind string

const (
	ModelLinear    ModelKind = "linear"
	ModelQuadratic ModelKind = "quadratic"
	ModelAdaptive  ModelKind = "adaptive"
)

// ModelKinds lists the ensemble variants in voting order.
var ModelKinds = []ModelKind{ModelLinear, ModelQuadratic, ModelAdaptive}

// RegressionFit holds one variant's output over a series.
// FairValue, Residual and ResidualStd are aligned to series index Offset+i.
type RegressionFit struct {
	Kind ModelKind `json:"kind"`
	// Params are the log-space coefficients of the latest window, constant term first,
	// expressed against window-local time scaled to [-1, 0].
	Params      []float64 `json:"params"`
	WindowStart int       `json:"window_start"`
	WindowEnd   int       `json:"window_end"`
	Offset      int       `json:"offset"`
	FairValue   []float64 `json:"fair_value"`
	Residual    []float64 `json:"residual"`
	ResidualStd []float64 `json:"residual_std"`
}

// At returns the log fair value and residual at series index t.
func (f *RegressionFit) At(t int) (fair, resid float64, ok bool) {
	i := t - f.Offset
	if i < 0 || i >= len(f.FairValue) {
		return 0, 0, false
	}
	return f.FairValue[i], f.Residual[i], true
}

// EnsembleEstimate is the weighted vote of the regression variants at one timestep.
type EnsembleEstimate struct {
	Index        int       `json:"index"`
	Date         time.Time `json:"date"`
	FairValue    float64   `json:"fair_value"`
	LogFairValue float64   `json:"log_fair_value"`
	Residual     float64   `json:"residual"`
	ResidualStd  float64   `json:"residual_std"`
	ZScore       float64   `json:"z_score"`
	Degenerate   bool      `json:"degenerate,omitempty"`
}

// EnsembleResult is the output of one ensemble fit over a series.
type EnsembleResult struct {
	Fits      []RegressionFit    `json:"fits"`
	Estimates []EnsembleEstimate `json:"estimates"`
}

// Offset returns the series index of the first estimate.
func (r *EnsembleResult) Offset() int {
	if len(r.Estimates) == 0 {
		return 0
	}
	return r.Estimates[0].Index
}

// Fit returns the variant of the given kind.
func (r *EnsembleResult) Fit(kind ModelKind) (*RegressionFit, bool) {
	for i := range r.Fits {
		if r.Fits[i].Kind == kind {
			return &r.Fits[i], true
		}
	}
	return nil, false
}
