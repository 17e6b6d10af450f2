package validation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"RiskLens/internal/domain/models"
)

const degenerateStd = 1e-12

// pearson returns the correlation of x and y, or ErrDegenerateStatistic when either side is flat.
func pearson(x, y []float64) (float64, error) {
	if len(x) < 3 || len(x) != len(y) {
		return 0, models.ErrDegenerateStatistic
	}
	if stat.StdDev(x, nil) < degenerateStd || stat.StdDev(y, nil) < degenerateStd {
		return 0, models.ErrDegenerateStatistic
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, models.ErrDegenerateStatistic
	}
	return math.Max(-1, math.Min(1, r)), nil
}

// spearman is the Pearson correlation of average ranks.
func spearman(x, y []float64) (float64, error) {
	return pearson(ranks(x), ranks(y))
}

func ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	out := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = r
		}
		i = j + 1
	}
	return out
}

// pValue is the two-sided Student-t p-value of a correlation r over n samples.
func pValue(r float64, n int) float64 {
	if n <= 2 {
		return 1
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	tStat := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * (1 - dist.CDF(math.Abs(tStat)))
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// quantile returns the empirical p-quantile of x without modifying it.
func quantile(x []float64, p float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func boolScore(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
