package models

import (
	"fmt"
	"time"
)

// Trade is one print from a live market feed.
type Trade struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	Price  float64   `json:"price"`
	Volume float64   `json:"volume"`
}

// Validate rejects prints that cannot be folded into a bar.
func (t Trade) Validate() error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("trade: empty symbol")
	case t.Time.IsZero():
		return fmt.Errorf("trade %s: missing time", t.Symbol)
	case !finite(t.Price, t.Volume) || t.Price <= 0:
		return fmt.Errorf("trade %s: invalid price %v", t.Symbol, t.Price)
	case t.Volume < 0:
		return fmt.Errorf("trade %s: negative volume %v", t.Symbol, t.Volume)
	}
	return nil
}
