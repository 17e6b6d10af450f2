package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// All indicators below are causal: out[t] depends only on inputs at indices <= t.
// Positions where an indicator is not yet defined hold NaN.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Defined reports whether an indicator value is usable.
func Defined(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// SMA is the simple moving average over period bars.
func SMA(x []float64, period int) []float64 {
	out := nanSlice(len(x))
	if period <= 0 {
		return out
	}
	sum := 0.0
	valid := 0
	for i, v := range x {
		if Defined(v) {
			sum += v
			valid++
		}
		if i >= period {
			if old := x[i-period]; Defined(old) {
				sum -= old
				valid--
			}
		}
		if i >= period-1 && valid == period {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA is the exponential moving average seeded with the SMA of the first period defined values.
// Leading NaNs in x are skipped.
func EMA(x []float64, period int) []float64 {
	out := nanSlice(len(x))
	if period <= 0 {
		return out
	}
	start := 0
	for start < len(x) && !Defined(x[start]) {
		start++
	}
	seedEnd := start + period - 1
	if seedEnd >= len(x) {
		return out
	}
	sum := 0.0
	for i := start; i <= seedEnd; i++ {
		sum += x[i]
	}
	alpha := 2 / float64(period+1)
	prev := sum / float64(period)
	out[seedEnd] = prev
	for i := seedEnd + 1; i < len(x); i++ {
		prev = alpha*x[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// RSI is the relative strength index with Wilder smoothing, in [0,100].
func RSI(closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n <= period {
		return out
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)
	p := float64(period)
	for i := period + 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		g, l := 0.0, 0.0
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Stochastic returns the smoothed %K in [0,100]. Pass closes as highs and lows for close-only series.
func Stochastic(highs, lows, closes []float64, period, smooth int) []float64 {
	n := len(closes)
	raw := nanSlice(n)
	if period < 1 {
		return raw
	}
	for i := period - 1; i < n; i++ {
		hh, ll := highs[i], lows[i]
		for j := i - period + 1; j < i; j++ {
			hh = math.Max(hh, highs[j])
			ll = math.Min(ll, lows[j])
		}
		if hh == ll {
			raw[i] = 50
			continue
		}
		raw[i] = 100 * (closes[i] - ll) / (hh - ll)
	}
	if smooth <= 1 {
		return raw
	}
	return SMA(raw, smooth)
}

// MACDHistogram returns MACD(fast, slow) minus its signal EMA.
func MACDHistogram(closes []float64, fast, slow, signal int) []float64 {
	ef := EMA(closes, fast)
	es := EMA(closes, slow)
	line := nanSlice(len(closes))
	for i := range closes {
		if Defined(ef[i]) && Defined(es[i]) {
			line[i] = ef[i] - es[i]
		}
	}
	sig := EMA(line, signal)
	out := nanSlice(len(closes))
	for i := range closes {
		if Defined(line[i]) && Defined(sig[i]) {
			out[i] = line[i] - sig[i]
		}
	}
	return out
}

// ATR is the average true range with Wilder smoothing.
func ATR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period <= 0 || n <= period {
		return out
	}
	tr := make([]float64, n)
	tr[0] = highs[0] - lows[0]
	for i := 1; i < n; i++ {
		prev := closes[i-1]
		tr[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
	}
	sum := 0.0
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	p := float64(period)
	prev := sum / p
	out[period] = prev
	for i := period + 1; i < n; i++ {
		prev = (prev*(p-1) + tr[i]) / p
		out[i] = prev
	}
	return out
}

// BollingerWidth returns (upper - lower) / middle for bands of k population standard deviations.
func BollingerWidth(closes []float64, period int, k float64) []float64 {
	n := len(closes)
	out := nanSlice(n)
	if period < 2 {
		return out
	}
	for i := period - 1; i < n; i++ {
		mean, std := stat.PopMeanStdDev(closes[i-period+1:i+1], nil)
		if mean == 0 {
			continue
		}
		out[i] = 2 * k * std / mean
	}
	return out
}

// RollingPercentileRank ranks x[t] among the defined values of the trailing lookback window
// (including t), using average ranks for ties. Result is in (0,1].
func RollingPercentileRank(x []float64, lookback, minPeriods int) []float64 {
	n := len(x)
	out := nanSlice(n)
	for t := 0; t < n; t++ {
		if !Defined(x[t]) {
			continue
		}
		from := t - lookback + 1
		if from < 0 {
			from = 0
		}
		out[t] = percentileRank(x[from:t+1], x[t], minPeriods)
	}
	return out
}

// ExpandingPercentileRank ranks x[t] among every defined value at indices <= t.
func ExpandingPercentileRank(x []float64, minPeriods int) []float64 {
	out := nanSlice(len(x))
	for t := range x {
		if Defined(x[t]) {
			out[t] = percentileRank(x[:t+1], x[t], minPeriods)
		}
	}
	return out
}

func percentileRank(window []float64, v float64, minPeriods int) float64 {
	count, less, equal := 0, 0, 0
	for _, w := range window {
		if !Defined(w) {
			continue
		}
		count++
		switch {
		case w < v:
			less++
		case w == v:
			equal++
		}
	}
	if count == 0 || count < minPeriods {
		return math.NaN()
	}
	rank := float64(less) + float64(equal+1)/2
	return rank / float64(count)
}

// RollingMinMaxNormalize maps x[t] into [0,1] against the min and max of the trailing window.
// A flat window maps to 0.5.
func RollingMinMaxNormalize(x []float64, lookback, minPeriods int) []float64 {
	n := len(x)
	out := nanSlice(n)
	for t := 0; t < n; t++ {
		if !Defined(x[t]) {
			continue
		}
		from := t - lookback + 1
		if from < 0 {
			from = 0
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		count := 0
		for _, v := range x[from : t+1] {
			if !Defined(v) {
				continue
			}
			count++
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if count < minPeriods {
			continue
		}
		if hi == lo {
			out[t] = 0.5
			continue
		}
		out[t] = (x[t] - lo) / (hi - lo)
	}
	return out
}

// RollingMin returns the minimum of the trailing window including t.
func RollingMin(x []float64, window int) []float64 {
	return rollingExtreme(x, window, math.Min)
}

// RollingMax returns the maximum of the trailing window including t.
func RollingMax(x []float64, window int) []float64 {
	return rollingExtreme(x, window, math.Max)
}

func rollingExtreme(x []float64, window int, pick func(a, b float64) float64) []float64 {
	out := nanSlice(len(x))
	if window < 1 {
		return out
	}
	for t := window - 1; t < len(x); t++ {
		v := x[t]
		for j := t - window + 1; j < t; j++ {
			v = pick(v, x[j])
		}
		out[t] = v
	}
	return out
}
