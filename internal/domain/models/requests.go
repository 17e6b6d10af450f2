package models

import "time"

// Requests for risk HTTP endpoints and the request topic. Defined in domain for consistency and reuse.

// Run modes accepted by the use case.
const (
	ModeAnalyze  = "analyze"
	ModeBacktest = "backtest"
	ModeValidate = "validate"
)

type AnalyzeRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Interval string `query:"interval" json:"interval" default:"1d" validate:"oneof=1h 1d 1w"`
	Bars     int    `query:"bars" json:"bars" default:"3000" validate:"gte=1,lte=20000"`
}

type BacktestRequest struct {
	Symbol   string  `query:"symbol" json:"symbol" validate:"required"`
	Interval string  `query:"interval" json:"interval" default:"1d" validate:"oneof=1h 1d 1w"`
	Bars     int     `query:"bars" json:"bars" default:"3000" validate:"gte=1,lte=20000"`
	Policy   string  `query:"policy" json:"policy" default:"default" validate:"oneof=default tiered hold"`
	Fee      float64 `query:"fee" json:"fee" validate:"gte=0,lt=1"`
}

type ValidateRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required"`
	Interval string `query:"interval" json:"interval" default:"1d" validate:"oneof=1h 1d 1w"`
	Bars     int    `query:"bars" json:"bars" default:"5000" validate:"gte=1,lte=20000"`
}

type SuiteRequest struct {
	// Symbols is a comma separated list; empty means the default suite.
	Symbols  string `query:"symbols" json:"symbols"`
	Interval string `query:"interval" json:"interval" default:"1d" validate:"oneof=1h 1d 1w"`
	Bars     int    `query:"bars" json:"bars" default:"5000" validate:"gte=1,lte=20000"`
}

// RiskRequest is the message carried on the request topic.
type RiskRequest struct {
	Symbol   string  `json:"symbol" validate:"required"`
	Mode     string  `json:"mode" default:"analyze" validate:"oneof=analyze backtest validate"`
	Interval string  `json:"interval" default:"1d" validate:"oneof=1h 1d 1w"`
	Bars     int     `json:"bars" default:"5000" validate:"gte=1,lte=20000"`
	Policy   string  `json:"policy" default:"default" validate:"oneof=default tiered hold"`
	Fee      float64 `json:"fee" validate:"gte=0,lt=1"`
}

// Job states of a queued risk request.
const (
	JobQueued   = "queued"
	JobRunning  = "running"
	JobRetrying = "retrying"
	JobDone     = "done"
	JobFailed   = "failed"
)

// JobStatus tracks one queued risk request.
type JobStatus struct {
	ID        string      `json:"id"`
	State     string      `json:"state"`
	Request   RiskRequest `json:"request"`
	Report    *RiskReport `json:"report,omitempty"`
	Error     string      `json:"error,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// RiskReport is the envelope published for every completed request.
type RiskReport struct {
	Symbol         string              `json:"symbol"`
	Mode           string              `json:"mode"`
	Latest         *CompositeRiskScore `json:"latest,omitempty"`
	Metadata       *AnalysisMetadata   `json:"metadata,omitempty"`
	Backtest       *BacktestResult     `json:"backtest,omitempty"`
	Validation     *ValidationReport   `json:"validation,omitempty"`
	Interpretation *Interpretation     `json:"interpretation,omitempty"`
}

// SuiteEntry is one symbol's row in a suite run.
type SuiteEntry struct {
	Symbol       string  `json:"symbol"`
	OverallScore float64 `json:"overall_score"`
	Grade        Grade   `json:"grade"`
	LastRisk     float64 `json:"last_risk"`
	Signal       Signal  `json:"signal"`
	Error        string  `json:"error,omitempty"`
}

// SuiteSummary aggregates a suite run after every worker has joined.
type SuiteSummary struct {
	Entries           []SuiteEntry  `json:"entries"`
	MeanOverallScore  float64       `json:"mean_overall_score"`
	GradeDistribution map[Grade]int `json:"grade_distribution"`
	Failed            int           `json:"failed"`
}
