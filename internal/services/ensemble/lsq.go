package ensemble

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// lsq is a reusable least-squares arena for one polynomial degree.
// Buffers grow to the largest window seen and are reused across timesteps.
type lsq struct {
	degree int
	qr     mat.QR
	design []float64
	rhs    []float64
	coef   mat.VecDense
	out    []float64
}

func newLSQ(degree int) *lsq {
	return &lsq{degree: degree, out: make([]float64, degree+1)}
}

func grow(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}

// solve fits ys ~ Σ c_k xs^k, optionally weighted, and returns the coefficients constant term first.
// The returned slice is owned by the arena and is overwritten by the next call.
// ok is false when the system was singular and the weighted mean was used instead.
func (l *lsq) solve(xs, ys, ws []float64) (coef []float64, ok bool) {
	r, c := len(xs), l.degree+1
	if r >= c {
		l.design = grow(l.design, r*c)
		l.rhs = grow(l.rhs, r)
		for i, x := range xs {
			sw := 1.0
			if ws != nil {
				sw = math.Sqrt(ws[i])
			}
			p := sw
			for j := 0; j < c; j++ {
				l.design[i*c+j] = p
				p *= x
			}
			l.rhs[i] = sw * ys[i]
		}
		a := mat.NewDense(r, c, l.design)
		b := mat.NewVecDense(r, l.rhs)
		l.qr.Factorize(a)
		err := l.qr.SolveVecTo(&l.coef, false, b)
		var cond mat.Condition
		if err == nil || (errors.As(err, &cond) && !math.IsInf(float64(cond), 1)) {
			copy(l.out, l.coef.RawVector().Data)
			return l.out, true
		}
	}
	for i := range l.out {
		l.out[i] = 0
	}
	l.out[0] = stat.Mean(ys, ws)
	return l.out, false
}
