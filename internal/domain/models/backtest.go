package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalPolicy maps signals to target exposure in [0,1]. Signals without an entry keep the current exposure.
type SignalPolicy struct {
	Name      string             `json:"name"`
	Exposures map[Signal]float64 `json:"exposures"`
}

// Target returns the exposure the policy wants after observing sig.
func (p SignalPolicy) Target(sig Signal, current float64) float64 {
	if e, ok := p.Exposures[sig]; ok {
		return e
	}
	return current
}

// TradeLogEntry records one exposure change.
type TradeLogEntry struct {
	Index        int       `json:"index"`
	Date         time.Time `json:"date"`
	Signal       Signal    `json:"signal"`
	Score        float64   `json:"score"`
	Price        float64   `json:"price"`
	FromExposure float64   `json:"from_exposure"`
	ToExposure   float64   `json:"to_exposure"`
	Fee          float64   `json:"fee"`
}

// BacktestResult summarizes one replay of a signal stream. Immutable after computation.
type BacktestResult struct {
	Symbol                string          `json:"symbol"`
	Policy                string          `json:"policy"`
	Start                 time.Time       `json:"start"`
	End                   time.Time       `json:"end"`
	Periods               int             `json:"periods"`
	CumulativeReturn      float64         `json:"cumulative_return"`
	BuyAndHoldReturn      float64         `json:"buy_and_hold_return"`
	Outperformance        float64         `json:"outperformance"`
	SharpeRatio           float64         `json:"sharpe_ratio"`
	MaxDrawdown           float64         `json:"max_drawdown"`
	BuyAndHoldMaxDrawdown float64         `json:"buy_and_hold_max_drawdown"`
	WinRate               float64         `json:"win_rate"`
	TradeCount            int             `json:"trade_count"`
	AvgExposure           float64         `json:"avg_exposure"`
	TradeLog              []TradeLogEntry `json:"trade_log"`
	EntryTiming           *EntryTiming    `json:"entry_timing,omitempty"`
}

// EntryTiming compares deploying one unit of capital per bar-slot three ways.
// Multiples are final value divided by capital deployed.
type EntryTiming struct {
	LumpSumMultiple  decimal.Decimal `json:"lump_sum_multiple"`
	DCAMultiple      decimal.Decimal `json:"dca_multiple"`
	ValueDCAMultiple decimal.Decimal `json:"value_dca_multiple"`
	DCABuys          int             `json:"dca_buys"`
	ValueDCABuys     int             `json:"value_dca_buys"`
	Best             string          `json:"best"`
}
