// Package interpreter turns a risk analysis into a short natural-language reading.
package interpreter

import (
	"context"
	"fmt"

	"RiskLens/internal/domain/models"
)

const (
	SourceRules    = "rules"
	SourceExternal = "external"
)

type band struct {
	upper   float64
	status  string
	action  string
	details string
}

// bands are matched in order on risk < upper.
var bands = []band{
	{0.2, "EXTREME OPPORTUNITY", "Strong Buy (Heavy DCA)", "Price is significantly below its fair value trend, in the historical bottom zone."},
	{0.4, "OPPORTUNITY", "Buy (Standard DCA)", "Price is below fair value. A reasonable area to accumulate."},
	{0.6, "FAIR VALUE", "Hold / Light DCA", "Price is near its fair value trend."},
	{0.8, "ELEVATED RISK", "Caution / Take Profit", "Price is above fair value and upside may be limited."},
}

var top = band{status: "BUBBLE TERRITORY", action: "Sell / Hedge", details: "Price is significantly extended with a high probability of mean reversion."}

// Light maps a risk value onto a traffic light.
func Light(risk float64) models.TrafficLight {
	switch {
	case risk < 0.4:
		return models.LightGreen
	case risk < 0.6:
		return models.LightYellow
	default:
		return models.LightRed
	}
}

func bandFor(risk float64) band {
	for _, b := range bands {
		if risk < b.upper {
			return b
		}
	}
	return top
}

// RuleBased interprets scores from fixed risk bands. It never fails.
type RuleBased struct{}

func NewRuleBased() *RuleBased { return &RuleBased{} }

func (RuleBased) Interpret(_ context.Context, in models.InterpretationInput) (models.Interpretation, error) {
	risk := in.Latest.Value
	b := bandFor(risk)
	summary := fmt.Sprintf("%s at %.2f carries a composite risk of %.2f (%s). %s",
		in.Symbol, in.Metadata.LastPrice, risk, in.Latest.Signal, b.details)
	if in.Latest.Warmup {
		summary += " The score is still warming up and should not be traded on."
	}
	if v := in.Validation; v != nil && v.Grade != "" {
		summary += fmt.Sprintf(" Historical validation grades the model %s (%.0f/100).", v.Grade, v.OverallScore)
	}
	return models.Interpretation{
		Source:  SourceRules,
		Light:   Light(risk),
		Status:  b.status,
		Action:  b.action,
		Summary: summary,
	}, nil
}
