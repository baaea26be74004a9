package kalman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"tsadjust/linalg"
	"tsadjust/ssf"
)

// Whitener turns series following a stationary state-space model into
// independent standardized innovations. The covariance recursion does not
// depend on the data, so it runs once and is reused for y and for every
// regression variable.
type Whitener struct {
	sys    *ssf.StateSpace
	sqrtF  []float64
	gain   [][]float64 // M(t)/f(t)
	logDet float64
}

// NewWhitener runs the covariance recursion of s over n steps. s must have no
// diffuse part.
func NewWhitener(s *ssf.StateSpace, n int) (*Whitener, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if s.DiffuseDim() > 0 {
		return nil, ErrDiffuse
	}
	dim := s.Dim()
	w := &Whitener{sys: s, sqrtF: make([]float64, n), gain: make([][]float64, n)}
	p := linalg.SymCopy(s.Init.Pf0)
	zv := mat.NewVecDense(dim, nil)
	converged := false
	for t := 0; t < n; t++ {
		if converged && s.IsTimeInvariant() {
			w.sqrtF[t], w.gain[t] = w.sqrtF[t-1], w.gain[t-1]
			w.logDet += 2 * math.Log(w.sqrtF[t])
			continue
		}
		copy(zv.RawVector().Data, s.Z(t))
		m := make([]float64, dim)
		mat.NewVecDense(dim, m).MulVec(p, zv)
		f := floats.Dot(s.Z(t), m) + s.H(t)
		if !(f > 0) {
			return nil, fmt.Errorf("t=%d, f=%g: %w", t, f, ErrNonPositiveVariance)
		}
		w.sqrtF[t] = math.Sqrt(f)
		w.logDet += math.Log(f)
		floats.Scale(1/f, m)
		w.gain[t] = m
		p.SymRankOne(p, -f, mat.NewVecDense(dim, m))
		s.TVT(t, p)
		if t > 0 && math.Abs(w.sqrtF[t]-w.sqrtF[t-1]) < 1e-15*w.sqrtF[t] && floats.EqualApprox(m, w.gain[t-1], 1e-15) {
			converged = true
		}
	}
	return w, nil
}

// Len returns the number of steps.
func (w *Whitener) Len() int { return len(w.sqrtF) }

// LogDet returns sum(log f(t)), the log-determinant of the covariance of the
// series.
func (w *Whitener) LogDet() float64 { return w.logDet }

// Apply returns the standardized innovations e(t)/sqrt(f(t)) of x.
func (w *Whitener) Apply(x []float64) ([]float64, error) {
	if len(x) != len(w.sqrtF) {
		return nil, fmt.Errorf("series of length %d for a whitener of length %d: %w", len(x), len(w.sqrtF), linalg.ErrDimensionMismatch)
	}
	a := append([]float64(nil), w.sys.Init.A0...)
	out := make([]float64, len(x))
	for t, v := range x {
		e := v - w.sys.ZX(t, a)
		out[t] = e / w.sqrtF[t]
		floats.AddScaled(a, e, w.gain[t])
		w.sys.TX(t, a)
	}
	return out, nil
}

// ApplyColumns whitens every column of x.
func (w *Whitener) ApplyColumns(x *mat.Dense) (*mat.Dense, error) {
	if x == nil || x.IsEmpty() {
		return nil, nil
	}
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		wc, err := w.Apply(col)
		if err != nil {
			return nil, err
		}
		out.SetCol(j, wc)
	}
	return out, nil
}
