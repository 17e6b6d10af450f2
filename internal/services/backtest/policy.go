package backtest

import (
	"fmt"

	"RiskLens/internal/domain/models"
)

// Policy names accepted by PolicyByName.
const (
	PolicyDefault = "default"
	PolicyTiered  = "tiered"
	PolicyHold    = "hold"
)

// DefaultPolicy is fully invested on buy signals and keeps a 30% position on SELL.
func DefaultPolicy() models.SignalPolicy {
	return models.SignalPolicy{Name: PolicyDefault, Exposures: map[models.Signal]float64{
		models.SignalStrongBuy: 1.0,
		models.SignalBuy:       1.0,
		models.SignalSell:      0.3,
	}}
}

// TieredPolicy scales exposure down step by step as risk rises.
func TieredPolicy() models.SignalPolicy {
	return models.SignalPolicy{Name: PolicyTiered, Exposures: map[models.Signal]float64{
		models.SignalStrongBuy: 1.0,
		models.SignalBuy:       0.8,
		models.SignalReduce:    0.5,
		models.SignalSell:      0.2,
	}}
}

// HoldPolicy never changes exposure.
func HoldPolicy() models.SignalPolicy {
	return models.SignalPolicy{Name: PolicyHold, Exposures: map[models.Signal]float64{}}
}

// PolicyByName resolves a named policy; empty selects the default.
func PolicyByName(name string) (models.SignalPolicy, error) {
	switch name {
	case "", PolicyDefault:
		return DefaultPolicy(), nil
	case PolicyTiered:
		return TieredPolicy(), nil
	case PolicyHold:
		return HoldPolicy(), nil
	default:
		return models.SignalPolicy{}, fmt.Errorf("unknown policy %q", name)
	}
}
