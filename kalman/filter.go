package kalman

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"tsadjust/linalg"
	"tsadjust/ssf"
)

var (
	// ErrNonPositiveVariance is returned when a prediction error variance is
	// not positive.
	ErrNonPositiveVariance = errors.New("kalman: non-positive prediction error variance")
	// ErrDiffuse is returned when an operation needs a fully initialized
	// state and the diffuse part is not exhausted.
	ErrDiffuse = errors.New("kalman: diffuse part not exhausted")
)

// Mode selects the covariance propagation.
type Mode int

const (
	// Direct propagates P.
	Direct Mode = iota
	// SquareRoot propagates L with P = L*L'.
	SquareRoot
)

func (m Mode) String() string {
	if m == SquareRoot {
		return "square-root"
	}
	return "direct"
}

// DefaultDiffuseTolerance is the threshold on fi below which an observation
// is treated as carrying no diffuse information.
const DefaultDiffuseTolerance = 1e-9

// Filter runs the diffuse Kalman filter. The zero value is a direct filter
// with the default tolerance.
type Filter struct {
	Mode             Mode
	DiffuseTolerance float64
}

func (f Filter) tolerance() float64 {
	if f.DiffuseTolerance > 0 {
		return f.DiffuseTolerance
	}
	return DefaultDiffuseTolerance
}

// filterState is the running prediction. Exactly one of p and l is used,
// depending on the mode.
type filterState struct {
	a []float64
	p *mat.SymDense
	l *mat.Dense
	b *mat.Dense
}

func (st *filterState) covariance() *mat.SymDense {
	if st.p != nil {
		return linalg.SymCopy(st.p)
	}
	return linalg.XXt(st.l)
}

// Run filters y through the system s.
func (f Filter) Run(s *ssf.StateSpace, y []float64) (*FilteringResults, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	n, dim := len(y), s.Dim()
	res := &FilteringResults{
		A:       make([][]float64, n),
		P:       make([]*mat.SymDense, n),
		B:       make([]*mat.Dense, n),
		M:       make([][]float64, n),
		Mi:      make([][]float64, n),
		E:       make([]float64, n),
		F:       make([]float64, n),
		Fi:      make([]float64, n),
		Missing: make([]bool, n),
		Diffuse: make([]bool, n),
	}

	st := &filterState{a: append([]float64(nil), s.Init.A0...)}
	switch f.Mode {
	case SquareRoot:
		l, err := linalg.Cholesky(s.Init.Pf0, 1e-12)
		if err != nil {
			return nil, fmt.Errorf("initial covariance: %w", err)
		}
		st.l = mat.DenseCopyOf(l)
	default:
		st.p = linalg.SymCopy(s.Init.Pf0)
	}
	if s.DiffuseDim() > 0 {
		st.b = mat.DenseCopyOf(s.Init.B0)
	}
	res.DiffuseEnd = n
	if st.b == nil {
		res.DiffuseEnd = 0
	}

	tol := f.tolerance()
	for t := 0; t < n; t++ {
		res.A[t] = append([]float64(nil), st.a...)
		res.P[t] = st.covariance()
		if st.b != nil {
			res.B[t] = mat.DenseCopyOf(st.b)
		}

		z := s.Z(t)
		h := s.H(t)
		if math.IsNaN(y[t]) {
			res.Missing[t] = true
			res.E[t] = math.NaN()
			f.predict(s, t, st, nil, 0)
			res.markDiffuseEnd(t, st)
			continue
		}

		m := make([]float64, dim)
		pz := mat.NewVecDense(dim, m)
		pz.MulVec(res.P[t], mat.NewVecDense(dim, append([]float64(nil), z...)))
		fv := floats.Dot(z, m) + h
		e := y[t] - s.ZX(t, st.a)
		res.M[t], res.F[t], res.E[t] = m, fv, e

		if st.b != nil {
			_, k := st.b.Dims()
			zb := make([]float64, k)
			bz := mat.NewVecDense(k, zb)
			bz.MulVec(st.b.T(), mat.NewVecDense(dim, append([]float64(nil), z...)))
			fi := floats.Dot(zb, zb)
			if fi > tol {
				mi := make([]float64, dim)
				mat.NewVecDense(dim, mi).MulVec(st.b, bz)
				res.Mi[t], res.Fi[t], res.Diffuse[t] = mi, fi, true
				res.DiffuseLogDet += math.Log(fi)
				res.DiffuseCount++

				floats.AddScaled(st.a, e/fi, mi)
				f.diffuseUpdate(s, t, st, m, mi, fv, fi, h)
				if st.b = reduceDiffuse(st.b, zb); st.b != nil {
					s.TM(t, st.b)
				}
				res.markDiffuseEnd(t, st)
				continue
			}
		}

		if !(fv > 0) {
			return nil, fmt.Errorf("t=%d, f=%g: %w", t, fv, ErrNonPositiveVariance)
		}
		res.SSQ += e * e / fv
		res.LogDet += math.Log(fv)
		res.Count++
		floats.AddScaled(st.a, e/fv, m)
		f.predict(s, t, st, m, fv)
		res.markDiffuseEnd(t, st)
	}

	res.AEnd = append([]float64(nil), st.a...)
	res.PEnd = st.covariance()
	if st.b != nil {
		res.BEnd = mat.DenseCopyOf(st.b)
	}
	return res, nil
}

func (r *FilteringResults) markDiffuseEnd(t int, st *filterState) {
	if st.b == nil && r.DiffuseEnd > t+1 {
		r.DiffuseEnd = t + 1
	}
}

// predict applies the ordinary measurement update of the covariance (when
// m != nil) and the transition to t+1. The state mean must already be
// updated.
func (f Filter) predict(s *ssf.StateSpace, t int, st *filterState, m []float64, fv float64) {
	s.TX(t, st.a)
	if st.b != nil {
		s.TM(t, st.b)
	}
	if st.p != nil {
		if m != nil {
			st.p.SymRankOne(st.p, -1/fv, mat.NewVecDense(len(m), m))
		}
		s.TVT(t, st.p)
		return
	}
	st.l = sqrtPredict(s, t, st.l, m)
}

// diffuseUpdate updates P* after a diffuse observation and predicts it:
//
//	P* <- P* + Mi*Mi'*f/fi^2 - (M*Mi' + Mi*M')/fi
func (f Filter) diffuseUpdate(s *ssf.StateSpace, t int, st *filterState, m, mi []float64, fv, fi, h float64) {
	dim := len(m)
	s.TX(t, st.a)
	if st.p != nil {
		sum, diff := make([]float64, dim), make([]float64, dim)
		floats.AddTo(sum, m, mi)
		floats.SubTo(diff, m, mi)
		// M*Mi' + Mi*M' = ((M+Mi)(M+Mi)' - (M-Mi)(M-Mi)')/2
		st.p.SymRankOne(st.p, fv/(fi*fi), mat.NewVecDense(dim, mi))
		st.p.SymRankOne(st.p, -0.5/fi, mat.NewVecDense(dim, sum))
		st.p.SymRankOne(st.p, 0.5/fi, mat.NewVecDense(dim, diff))
		s.TVT(t, st.p)
		return
	}
	// P* factor: [(I - k z')L, k sqrt(h)], k = Mi/fi
	z := s.Z(t)
	_, c := st.l.Dims()
	w := mat.NewDense(dim, c+1, nil)
	var zl mat.VecDense
	zl.MulVec(st.l.T(), mat.NewVecDense(dim, append([]float64(nil), z...)))
	for i := 0; i < dim; i++ {
		ki := mi[i] / fi
		for j := 0; j < c; j++ {
			w.Set(i, j, st.l.At(i, j)-ki*zl.AtVec(j))
		}
		w.Set(i, c, ki*math.Sqrt(h))
	}
	st.l = sqrtPredict(s, t, w, nil)
}

// sqrtPredict returns the lower factor of T*(P - M*M'/f)*T' + S*S' from a
// factor l of P, with the rank-one downdate skipped when m is nil. The
// downdate goes through the array
//
//	[ sqrt(h)  z'L  0 ]
//	[ 0        T*L  S ]
//
// whose triangularization is [sqrt(f) 0; T*M/sqrt(f) L(t+1)].
func sqrtPredict(s *ssf.StateSpace, t int, l *mat.Dense, m []float64) *mat.Dense {
	dim, c := l.Dims()
	sm := s.S(t)
	_, k := sm.Dims()
	tl := mat.DenseCopyOf(l)
	s.TM(t, tl)

	if m == nil {
		pre := mat.NewDense(dim, c+k, nil)
		pre.Slice(0, dim, 0, c).(*mat.Dense).Copy(tl)
		pre.Slice(0, dim, c, c+k).(*mat.Dense).Copy(sm)
		return mat.DenseCopyOf(linalg.LowerTriangularize(pre))
	}

	z := s.Z(t)
	pre := mat.NewDense(dim+1, 1+c+k, nil)
	pre.Set(0, 0, math.Sqrt(s.H(t)))
	var zl mat.VecDense
	zl.MulVec(l.T(), mat.NewVecDense(dim, append([]float64(nil), z...)))
	for j := 0; j < c; j++ {
		pre.Set(0, 1+j, zl.AtVec(j))
	}
	pre.Slice(1, dim+1, 1, 1+c).(*mat.Dense).Copy(tl)
	pre.Slice(1, dim+1, 1+c, 1+c+k).(*mat.Dense).Copy(sm)
	post := linalg.LowerTriangularize(pre)
	return mat.DenseCopyOf(post.SliceTri(1, dim+1))
}

// reduceDiffuse removes the direction z from the diffuse factor: with H the
// reflector mapping b'z onto e1, B*H has its first column along Pinf*z and
// the remaining columns orthogonal to z. Returns nil when no column is left.
func reduceDiffuse(b *mat.Dense, zb []float64) *mat.Dense {
	r, k := b.Dims()
	if k == 1 {
		return nil
	}
	hh := linalg.NewHouseholder(zb)
	hh.ApplyRight(b)
	return mat.DenseCopyOf(b.Slice(0, r, 1, k))
}
