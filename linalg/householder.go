package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Householder is the reflector H = I - Beta*V*V' mapping a vector x onto
// Alpha*e1.
type Householder struct {
	V     []float64
	Beta  float64
	Alpha float64
}

// NewHouseholder builds the reflector annihilating x[1:]. A zero vector gives
// the identity (Beta = 0).
func NewHouseholder(x []float64) Householder {
	n := len(x)
	v := append([]float64(nil), x...)
	if n == 0 {
		return Householder{V: v}
	}
	norm := 0.0
	for _, xi := range x {
		norm += xi * xi
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return Householder{V: v}
	}
	alpha := -math.Copysign(norm, x[0])
	v[0] -= alpha
	vv := 0.0
	for _, vi := range v {
		vv += vi * vi
	}
	return Householder{V: v, Beta: 2 / vv, Alpha: alpha}
}

// ApplyRight replaces m by m*H, in place. The number of columns of m must be
// len(V).
func (h Householder) ApplyRight(m *mat.Dense) {
	if h.Beta == 0 {
		return
	}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		s := 0.0
		for j := 0; j < c; j++ {
			s += m.At(i, j) * h.V[j]
		}
		s *= h.Beta
		for j := 0; j < c; j++ {
			m.Set(i, j, m.At(i, j)-s*h.V[j])
		}
	}
}

// LowerTriangularize returns the r x r lower triangular L with L*L' = A*A' for
// an r x c matrix A with c >= r. The diagonal of L is non-negative. A is not
// modified. This is the array step of the square-root filter.
func LowerTriangularize(a mat.Matrix) *mat.TriDense {
	r, c := a.Dims()
	at := mat.DenseCopyOf(a.T())
	if c < r {
		// pad with zero columns so that the QR of A' is well formed
		pad := mat.NewDense(r, r, nil)
		pad.Slice(0, c, 0, r).(*mat.Dense).Copy(at)
		at = pad
	}
	var qr mat.QR
	qr.Factorize(at)
	var rfull mat.Dense
	qr.RTo(&rfull)

	l := mat.NewTriDense(r, mat.Lower, nil)
	for j := 0; j < r; j++ {
		sign := 1.0
		if rfull.At(j, j) < 0 {
			sign = -1
		}
		for i := j; i < r; i++ {
			// L = R', with column j of L scaled by the sign of R_jj
			l.SetTri(i, j, sign*rfull.At(j, i))
		}
	}
	return l
}
