package features

import (
	"math"
	"time"

	"RiskLens/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// LogPrices returns ln(C_t) for every close.
func LogPrices(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = math.Log(c)
	}
	return out
}

// RealizedVolatility computes the sample standard deviation of the last window log returns
// ending at index end (inclusive), annualized by barsPerYear (pass 1 for per-bar sigma).
func RealizedVolatility(logReturns []float64, end, window int, barsPerYear float64) float64 {
	if window <= 1 || end >= len(logReturns) || end-window+1 < 0 {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := end - window + 1; i <= end; i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear returns the approximate number of bars per year for an interval.
func BarsPerYear(iv models.Interval) float64 {
	switch iv {
	case models.Interval1h:
		return 365 * 24
	case models.Interval1w:
		return 52
	default:
		return 252
	}
}

// BarStart returns the UTC start of the bar containing t. Weekly bars start on Monday.
func BarStart(t time.Time, iv models.Interval) time.Time {
	t = t.UTC()
	switch iv {
	case models.Interval1h:
		return t.Truncate(time.Hour)
	case models.Interval1w:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}
