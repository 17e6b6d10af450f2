package models

import "fmt"

// Signal is the discrete action classification of a composite risk score.
type Signal string

const (
	SignalStrongBuy Signal = "STRONG_BUY"
	SignalBuy       Signal = "BUY"
	SignalHold      Signal = "HOLD"
	SignalReduce    Signal = "REDUCE"
	SignalSell      Signal = "SELL"
)

// Signals lists every signal from lowest to highest risk.
var Signals = []Signal{SignalStrongBuy, SignalBuy, SignalHold, SignalReduce, SignalSell}

// IsBuy reports whether s is an accumulation signal.
func (s Signal) IsBuy() bool { return s == SignalStrongBuy || s == SignalBuy }

// IsSell reports whether s is a distribution signal.
func (s Signal) IsSell() bool { return s == SignalReduce || s == SignalSell }

// ParseSignal converts a raw string into a Signal.
func ParseSignal(s string) (Signal, error) {
	for _, sig := range Signals {
		if string(sig) == s {
			return sig, nil
		}
	}
	return "", fmt.Errorf("unknown signal %q", s)
}

// Thresholds are the lower bounds (inclusive) of BUY, HOLD, REDUCE and SELL.
// Anything below Buy is STRONG_BUY.
type Thresholds struct {
	Buy    float64 `yaml:"buy" json:"buy" default:"0.30"`
	Hold   float64 `yaml:"hold" json:"hold" default:"0.40"`
	Reduce float64 `yaml:"reduce" json:"reduce" default:"0.60"`
	Sell   float64 `yaml:"sell" json:"sell" default:"0.75"`
}

// DefaultThresholds returns the standard signal boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{Buy: 0.30, Hold: 0.40, Reduce: 0.60, Sell: 0.75}
}

// Classify maps a composite value onto a Signal.
func (t Thresholds) Classify(v float64) Signal {
	switch {
	case v < t.Buy:
		return SignalStrongBuy
	case v < t.Hold:
		return SignalBuy
	case v < t.Reduce:
		return SignalHold
	case v < t.Sell:
		return SignalReduce
	default:
		return SignalSell
	}
}

// Validate checks the boundaries are ordered inside [0,1].
func (t Thresholds) Validate() error {
	if !(0 <= t.Buy && t.Buy <= t.Hold && t.Hold <= t.Reduce && t.Reduce <= t.Sell && t.Sell <= 1) {
		return fmt.Errorf("thresholds must satisfy 0 <= buy <= hold <= reduce <= sell <= 1, got %+v", t)
	}
	return nil
}
