package models

import (
	"fmt"
	"math"
	"time"
)

// PriceBar represents one OHLCV observation.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is an ascending, duplicate-free sequence of bars for one symbol.
type PriceSeries struct {
	Symbol   string     `json:"symbol"`
	Interval Interval   `json:"interval"`
	Bars     []PriceBar `json:"bars"`
}

// Len returns the number of observations.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Closes returns the close column.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs returns the high column, falling back to close where high is missing.
func (s *PriceSeries) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
		if b.High <= 0 {
			out[i] = b.Close
		}
	}
	return out
}

// Lows returns the low column, falling back to close where low is missing.
func (s *PriceSeries) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
		if b.Low <= 0 {
			out[i] = b.Close
		}
	}
	return out
}

// Volumes returns the volume column.
func (s *PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// HasVolume reports whether any bar carries a positive volume.
func (s *PriceSeries) HasVolume() bool {
	for _, b := range s.Bars {
		if b.Volume > 0 {
			return true
		}
	}
	return false
}

// HasRange reports whether the series carries intrabar high/low data.
func (s *PriceSeries) HasRange() bool {
	for _, b := range s.Bars {
		if b.High > 0 && b.Low > 0 && b.High != b.Low {
			return true
		}
	}
	return false
}

// Slice returns a view over bars [from, to). The bars are shared, not copied.
func (s *PriceSeries) Slice(from, to int) *PriceSeries {
	return &PriceSeries{Symbol: s.Symbol, Interval: s.Interval, Bars: s.Bars[from:to]}
}

// Validate rejects structurally invalid input. maxGap of zero disables the calendar gap check.
func (s *PriceSeries) Validate(maxGap time.Duration) error {
	if len(s.Bars) == 0 {
		return &MalformedSeriesError{Symbol: s.Symbol, Index: -1, Reason: "series is empty"}
	}
	for i, b := range s.Bars {
		if b.Date.IsZero() {
			return &MalformedSeriesError{Symbol: s.Symbol, Index: i, Reason: "missing date"}
		}
		if !finite(b.Open, b.High, b.Low, b.Close, b.Volume) {
			return &MalformedSeriesError{Symbol: s.Symbol, Index: i, Reason: "non-finite value"}
		}
		if b.Close <= 0 {
			return &MalformedSeriesError{Symbol: s.Symbol, Index: i, Reason: fmt.Sprintf("non-positive close %v", b.Close)}
		}
		if b.Volume < 0 {
			return &MalformedSeriesError{Symbol: s.Symbol, Index: i, Reason: fmt.Sprintf("negative volume %v", b.Volume)}
		}
		if b.High > 0 && b.Low > 0 && b.High < b.Low {
			return &MalformedSeriesError{Symbol: s.Symbol, Index: i, Reason: "high below low"}
		}
		if i == 0 {
			continue
		}
		prev := s.Bars[i-1].Date
		if !b.Date.After(prev) {
			return &MalformedSeriesError{Symbol: s.Symbol, Index: i, Reason: "dates not strictly ascending"}
		}
		if maxGap > 0 && b.Date.Sub(prev) > maxGap {
			return &MalformedSeriesError{Symbol: s.Symbol, Index: i, Reason: fmt.Sprintf("gap of %s exceeds %s", b.Date.Sub(prev), maxGap)}
		}
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
