package models

// TrafficLight is the coarse colour band of a risk value.
type TrafficLight string

const (
	LightGreen  TrafficLight = "green"
	LightYellow TrafficLight = "yellow"
	LightRed    TrafficLight = "red"
)

// InterpretationInput is what an interpreter sees about one analysis.
type InterpretationInput struct {
	Symbol     string             `json:"symbol"`
	Latest     CompositeRiskScore `json:"latest"`
	Metadata   AnalysisMetadata   `json:"metadata"`
	Validation *ValidationReport  `json:"validation,omitempty"`
}

// Interpretation is a natural-language reading of a risk score.
type Interpretation struct {
	Source  string       `json:"source"`
	Light   TrafficLight `json:"light"`
	Status  string       `json:"status"`
	Action  string       `json:"action"`
	Summary string       `json:"summary"`
}
