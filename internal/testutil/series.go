// Package testutil builds deterministic synthetic price series for tests.
package testutil

import (
	"math"
	"math/rand"
	"time"

	"RiskLens/internal/domain/models"
)

// Epoch is the date of the first synthetic bar.
var Epoch = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

// Series builds a daily close-only series whose close at i is f(i). Volume is zero.
func Series(symbol string, n int, f func(i int) float64) *models.PriceSeries {
	s := &models.PriceSeries{Symbol: symbol, Interval: models.Interval1d, Bars: make([]models.PriceBar, n)}
	for i := 0; i < n; i++ {
		c := f(i)
		s.Bars[i] = models.PriceBar{Date: Epoch.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c}
	}
	return s
}

// Constant builds a flat series.
func Constant(symbol string, n int, price float64) *models.PriceSeries {
	return Series(symbol, n, func(int) float64 { return price })
}

// Exponential builds p0·e^(g·i).
func Exponential(symbol string, n int, p0, g float64) *models.PriceSeries {
	return Series(symbol, n, func(i int) float64 { return p0 * math.Exp(g*float64(i)) })
}

// RandomWalk builds a seeded geometric random walk with drift, a slow cycle, intrabar range and volume.
func RandomWalk(symbol string, n int, seed int64) *models.PriceSeries {
	rng := rand.New(rand.NewSource(seed))
	s := &models.PriceSeries{Symbol: symbol, Interval: models.Interval1d, Bars: make([]models.PriceBar, n)}
	logp := math.Log(100)
	prev := 100.0
	for i := 0; i < n; i++ {
		cycle := 0.004 * math.Sin(2*math.Pi*float64(i)/365)
		logp += 0.0004 + cycle + 0.02*rng.NormFloat64()
		c := math.Exp(logp)
		hi := math.Max(c, prev) * (1 + 0.01*math.Abs(rng.NormFloat64()))
		lo := math.Min(c, prev) * (1 - 0.01*math.Abs(rng.NormFloat64()))
		s.Bars[i] = models.PriceBar{
			Date:   Epoch.AddDate(0, 0, i),
			Open:   prev,
			High:   hi,
			Low:    lo,
			Close:  c,
			Volume: 1e6 * math.Exp(0.3*rng.NormFloat64()),
		}
		prev = c
	}
	return s
}
