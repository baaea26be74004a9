package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"tsadjust/linalg"
	"tsadjust/ssf"
)

// Smoother runs the backward recursion of the fixed-interval smoother over a
// filter run.
//
// In the diffuse region the recursion carries r0, r1 and N0, N1, N2, the
// coefficients of the expansion of r and N in powers of 1/k, and the state
// variance is
//
//	V = P - P*N0*P - Pinf*N1*P - (Pinf*N1*P)' - Pinf*N2*Pinf
type Smoother struct {
	// Variances requests the smoothed covariances; without it N is never
	// computed on the fast path.
	Variances bool
	// Reference uses dense L matrices and always computes the full N
	// recursion. It is slower and used to check the fast path.
	Reference bool
}

// SmoothingResults holds the smoothed states and, optionally, covariances.
type SmoothingResults struct {
	A [][]float64
	V []*mat.SymDense
}

// Component returns the smoothed series of state element i.
func (r *SmoothingResults) Component(i int) []float64 {
	out := make([]float64, len(r.A))
	for t, a := range r.A {
		out[t] = a[i]
	}
	return out
}

// Projection returns w'a(t) and, when variances are available, w'V(t)w.
func (r *SmoothingResults) Projection(w []float64) ([]float64, []float64) {
	n := len(r.A)
	mean := make([]float64, n)
	for t, a := range r.A {
		mean[t] = floats.Dot(w, a)
	}
	if r.V == nil {
		return mean, nil
	}
	variance := make([]float64, n)
	wv := mat.NewVecDense(len(w), append([]float64(nil), w...))
	for t, v := range r.V {
		variance[t] = mat.Inner(wv, v, wv)
	}
	return mean, variance
}

// Run smooths the filter output fr of the system s.
func (sm Smoother) Run(s *ssf.StateSpace, fr *FilteringResults) (*SmoothingResults, error) {
	if fr == nil || fr.Len() == 0 {
		return nil, fmt.Errorf("smoothing an empty filter run: %w", ssf.ErrInvalidSystem)
	}
	if fr.P[0] == nil {
		return nil, fmt.Errorf("filter run without stored covariances: %w", ssf.ErrInvalidSystem)
	}
	if sm.Reference {
		return sm.reference(s, fr), nil
	}
	return sm.fast(s, fr), nil
}

func (sm Smoother) fast(s *ssf.StateSpace, fr *FilteringResults) *SmoothingResults {
	n, dim := fr.Len(), s.Dim()
	out := &SmoothingResults{A: make([][]float64, n)}
	if sm.Variances {
		out.V = make([]*mat.SymDense, n)
	}
	r0 := make([]float64, dim)
	r1 := make([]float64, dim)
	var n0, n1, n2 *mat.SymDense
	if sm.Variances {
		n0, n1, n2 = mat.NewSymDense(dim, nil), mat.NewSymDense(dim, nil), mat.NewSymDense(dim, nil)
	}

	for t := n - 1; t >= 0; t-- {
		z := s.Z(t)
		diffuse := fr.B[t] != nil
		s.XT(t, r0)
		if diffuse {
			s.XT(t, r1)
		}

		switch {
		case fr.Missing[t]:
			if sm.Variances {
				n0 = tnt(s, t, n0)
				if diffuse {
					n1, n2 = tnt(s, t, n1), tnt(s, t, n2)
				}
			}

		case fr.Diffuse[t]:
			m, mi, f, fi, e := fr.M[t], fr.Mi[t], fr.F[t], fr.Fi[t], fr.E[t]
			mit0 := floats.Dot(mi, r0)
			mt0 := floats.Dot(m, r0)
			mit1 := floats.Dot(mi, r1)
			// r1 first: it uses T'r0 before r0 is updated
			floats.AddScaled(r1, e/fi-mit1/fi-(mt0-mit0*f/fi)/fi, z)
			floats.AddScaled(r0, -mit0/fi, z)

			if sm.Variances {
				k0 := gain(s, t, mi, 1/fi)
				k1 := gain(s, t, m, 1/fi)
				floats.AddScaled(k1, -f/fi, k0)
				c := f / fi

				v0 := tnk(s, t, n0, k1)
				v1 := tnk(s, t, n1, k1)
				k1n0k0 := inner(k1, n0, k0)
				k1n0k1 := inner(k1, n0, k1)
				k1n1k0 := inner(k1, n1, k0)

				nn2 := lnl(s, t, n2, k0, z)
				nn2.SymRankOne(nn2, -c/fi, vec(z))
				addSymRank2(nn2, -1, z, v1)
				addSymRank2(nn2, c, z, v0)
				nn2.SymRankOne(nn2, 2*k1n1k0+k1n0k1-2*c*k1n0k0, vec(z))

				nn1 := lnl(s, t, n1, k0, z)
				nn1.SymRankOne(nn1, 1/fi, vec(z))
				addSymRank2(nn1, -1, z, v0)
				nn1.SymRankOne(nn1, 2*k1n0k0, vec(z))

				n0 = lnl(s, t, n0, k0, z)
				n1, n2 = nn1, nn2
			}

		default:
			m, f, e := fr.M[t], fr.F[t], fr.E[t]
			mt0 := floats.Dot(m, r0)
			floats.AddScaled(r0, (e-mt0)/f, z)
			if diffuse {
				floats.AddScaled(r1, -floats.Dot(m, r1)/f, z)
			}
			if sm.Variances {
				k := gain(s, t, m, 1/f)
				n0 = lnl(s, t, n0, k, z)
				n0.SymRankOne(n0, 1/f, vec(z))
				if diffuse {
					n1, n2 = lnl(s, t, n1, k, z), lnl(s, t, n2, k, z)
				}
			}
		}

		out.A[t] = smoothedState(fr, t, r0, r1, diffuse)
		if sm.Variances {
			out.V[t] = smoothedVariance(fr, t, n0, n1, n2, diffuse)
		}
	}
	return out
}

func (sm Smoother) reference(s *ssf.StateSpace, fr *FilteringResults) *SmoothingResults {
	n, dim := fr.Len(), s.Dim()
	out := &SmoothingResults{A: make([][]float64, n)}
	if sm.Variances {
		out.V = make([]*mat.SymDense, n)
	}
	r0 := mat.NewVecDense(dim, nil)
	r1 := mat.NewVecDense(dim, nil)
	n0 := mat.NewDense(dim, dim, nil)
	n1 := mat.NewDense(dim, dim, nil)
	n2 := mat.NewDense(dim, dim, nil)
	zero := mat.NewDense(dim, dim, nil)

	for t := n - 1; t >= 0; t-- {
		tm := mat.DenseCopyOf(s.T(t))
		z := mat.NewVecDense(dim, append([]float64(nil), s.Z(t)...))
		diffuse := fr.B[t] != nil

		switch {
		case fr.Missing[t]:
			r0 = mulVecT(tm, r0)
			r1 = mulVecT(tm, r1)
			n0 = sandwich(tm, n0, tm)
			n1 = sandwich(tm, n1, tm)
			n2 = sandwich(tm, n2, tm)

		case fr.Diffuse[t]:
			m, mi := vec(fr.M[t]), vec(fr.Mi[t])
			f, fi, e := fr.F[t], fr.Fi[t], fr.E[t]
			k0 := mat.NewVecDense(dim, nil)
			k0.MulVec(tm, mi)
			k0.ScaleVec(1/fi, k0)
			k1 := mat.NewVecDense(dim, nil)
			k1.AddScaledVec(m, -f/fi, mi)
			k1.MulVec(tm, k1)
			k1.ScaleVec(1/fi, k1)

			l0 := mat.NewDense(dim, dim, nil)
			l0.Outer(-1, k0, z)
			l0.Add(l0, tm)
			l1 := mat.NewDense(dim, dim, nil)
			l1.Outer(-1, k1, z)
			l2 := mat.NewDense(dim, dim, nil)
			l2.Scale(-f/fi, l1)

			nr1 := mulVecT(l0, r1)
			nr1.AddVec(nr1, mulVecT(l1, r0))
			nr1.AddScaledVec(nr1, e/fi, z)
			r0, r1 = mulVecT(l0, r0), nr1

			zz := mat.NewDense(dim, dim, nil)
			zz.Outer(1, z, z)
			nn1 := sum(
				scaled(1/fi, zz),
				sandwich(l0, n1, l0),
				sandwich(l1, n0, l0),
				sandwich(l0, n0, l1),
			)
			nn2 := sum(
				scaled(-f/(fi*fi), zz),
				sandwich(l0, n2, l0),
				sandwich(l1, n1, l0),
				sandwich(l0, n1, l1),
				sandwich(l1, n0, l1),
				sandwich(l2, n0, l0),
				sandwich(l0, n0, l2),
			)
			n0, n1, n2 = sandwich(l0, n0, l0), nn1, nn2

		default:
			m := vec(fr.M[t])
			f, e := fr.F[t], fr.E[t]
			k := mat.NewVecDense(dim, nil)
			k.MulVec(tm, m)
			k.ScaleVec(1/f, k)
			l := mat.NewDense(dim, dim, nil)
			l.Outer(-1, k, z)
			l.Add(l, tm)

			nr0 := mulVecT(l, r0)
			nr0.AddScaledVec(nr0, e/f, z)
			r0 = nr0
			zz := mat.NewDense(dim, dim, nil)
			zz.Outer(1/f, z, z)
			n0 = sum(zz, sandwich(l, n0, l))
			if diffuse {
				r1 = mulVecT(l, r1)
				n1 = sandwich(l, n1, l)
				n2 = sandwich(l, n2, l)
			} else {
				r1.Zero()
				n1, n2 = zero, zero
			}
		}

		out.A[t] = smoothedState(fr, t, r0.RawVector().Data, r1.RawVector().Data, diffuse)
		if sm.Variances {
			out.V[t] = smoothedVariance(fr, t, symmetric(n0), symmetric(n1), symmetric(n2), diffuse)
		}
	}
	return out
}

// smoothedState returns a + P*r0 + Pinf*r1.
func smoothedState(fr *FilteringResults, t int, r0, r1 []float64, diffuse bool) []float64 {
	dim := len(r0)
	a := mat.NewVecDense(dim, append([]float64(nil), fr.A[t]...))
	var pr mat.VecDense
	pr.MulVec(fr.P[t], vec(r0))
	a.AddVec(a, &pr)
	if diffuse {
		b := fr.B[t]
		var br mat.VecDense
		br.MulVec(b.T(), vec(r1))
		pr.MulVec(b, &br)
		a.AddVec(a, &pr)
	}
	return a.RawVector().Data
}

// smoothedVariance returns P - P*N0*P and, in the diffuse region, the
// additional terms in N1 and N2.
func smoothedVariance(fr *FilteringResults, t int, n0, n1, n2 *mat.SymDense, diffuse bool) *mat.SymDense {
	p := fr.P[t]
	dim := p.SymmetricDim()
	v := mat.NewDense(dim, dim, nil)
	v.Copy(p)
	var tmp, pnp mat.Dense
	tmp.Mul(p, n0)
	pnp.Mul(&tmp, p)
	v.Sub(v, &pnp)
	if diffuse {
		pinf := linalg.XXt(fr.B[t])
		var cross mat.Dense
		tmp.Mul(pinf, n1)
		cross.Mul(&tmp, p)
		v.Sub(v, &cross)
		v.Sub(v, cross.T())
		tmp.Mul(pinf, n2)
		pnp.Mul(&tmp, pinf)
		v.Sub(v, &pnp)
	}
	out := mat.NewSymDense(dim, nil)
	linalg.Symmetrize(out, v)
	return out
}

func vec(x []float64) *mat.VecDense {
	return mat.NewVecDense(len(x), append([]float64(nil), x...))
}

// gain returns c*T*x.
func gain(s *ssf.StateSpace, t int, x []float64, c float64) []float64 {
	k := append([]float64(nil), x...)
	s.TX(t, k)
	floats.Scale(c, k)
	return k
}

// transposeColumns replaces every column x of m by T'x.
func transposeColumns(s *ssf.StateSpace, t int, m *mat.Dense) {
	r, c := m.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		s.XT(t, col)
		m.SetCol(j, col)
	}
}

// tnt returns T'*N*T.
func tnt(s *ssf.StateSpace, t int, n *mat.SymDense) *mat.SymDense {
	dim := n.SymmetricDim()
	y := mat.NewDense(dim, dim, nil)
	y.Copy(n)
	transposeColumns(s, t, y) // T'N
	yt := mat.DenseCopyOf(y.T())
	transposeColumns(s, t, yt) // T'(T'N)' = T'NT
	out := mat.NewSymDense(dim, nil)
	linalg.Symmetrize(out, yt)
	return out
}

// tnk returns T'*N*k.
func tnk(s *ssf.StateSpace, t int, n *mat.SymDense, k []float64) []float64 {
	dim := len(k)
	out := make([]float64, dim)
	mat.NewVecDense(dim, out).MulVec(n, vec(k))
	s.XT(t, out)
	return out
}

// lnl returns L'*N*L for L = T - k*z':
//
//	T'NT - u*z' - z*u' + (k'Nk)*z*z',  u = T'Nk
func lnl(s *ssf.StateSpace, t int, n *mat.SymDense, k, z []float64) *mat.SymDense {
	out := tnt(s, t, n)
	u := tnk(s, t, n, k)
	addSymRank2(out, -1, z, u)
	out.SymRankOne(out, inner(k, n, k), vec(z))
	return out
}

// addSymRank2 adds alpha*(x*y' + y*x') to s.
func addSymRank2(s *mat.SymDense, alpha float64, x, y []float64) {
	dim := len(x)
	sum, diff := make([]float64, dim), make([]float64, dim)
	floats.AddTo(sum, x, y)
	floats.SubTo(diff, x, y)
	s.SymRankOne(s, alpha/2, vec(sum))
	s.SymRankOne(s, -alpha/2, vec(diff))
}

func inner(x []float64, n *mat.SymDense, y []float64) float64 {
	return mat.Inner(vec(x), n, vec(y))
}

func mulVecT(l *mat.Dense, r *mat.VecDense) *mat.VecDense {
	dim, _ := l.Dims()
	out := mat.NewVecDense(dim, nil)
	out.MulVec(l.T(), r)
	return out
}

// sandwich returns a'*n*b.
func sandwich(a, n, b *mat.Dense) *mat.Dense {
	var tmp, out mat.Dense
	tmp.Mul(a.T(), n)
	out.Mul(&tmp, b)
	return &out
}

func scaled(c float64, m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(c, m)
	return &out
}

func sum(ms ...*mat.Dense) *mat.Dense {
	r, c := ms[0].Dims()
	out := mat.NewDense(r, c, nil)
	for _, m := range ms {
		out.Add(out, m)
	}
	return out
}

func symmetric(m *mat.Dense) *mat.SymDense {
	r, _ := m.Dims()
	out := mat.NewSymDense(r, nil)
	linalg.Symmetrize(out, m)
	return out
}
