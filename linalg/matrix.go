package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrSingularMatrix is returned when a factorization meets a pivot that is
	// not positive beyond the tolerance.
	ErrSingularMatrix = errors.New("linalg: singular matrix")
	// ErrDimensionMismatch is returned when operands do not conform.
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")
)

// Identity returns the n x n identity matrix.
func Identity(n int) *mat.Dense {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return mat.NewDense(n, n, data)
}

// Symmetrize stores (a + a')/2 into dst. a must be square with the size of dst.
// This is the covariance re-enforcement step of the filters: round-off makes
// T*P*T' slightly asymmetric and the asymmetry grows over many steps.
func Symmetrize(dst *mat.SymDense, a mat.Matrix) {
	n := dst.SymmetricDim()
	for i := 0; i < n; i++ {
		dst.SetSym(i, i, a.At(i, i))
		for j := i + 1; j < n; j++ {
			dst.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
}

// SymCopy returns a copy of s.
func SymCopy(s mat.Symmetric) *mat.SymDense {
	n := s.SymmetricDim()
	c := mat.NewSymDense(n, nil)
	c.CopySym(s)
	return c
}

// XtX returns x'x.
func XtX(x mat.Matrix) *mat.SymDense {
	_, c := x.Dims()
	s := mat.NewSymDense(c, nil)
	s.SymOuterK(1, x.T())
	return s
}

// XXt returns xx'.
func XXt(x mat.Matrix) *mat.SymDense {
	r, _ := x.Dims()
	s := mat.NewSymDense(r, nil)
	s.SymOuterK(1, x)
	return s
}

// Cholesky computes the lower triangular factor L of a symmetric positive
// semi-definite matrix s, s = L*L'. Pivots smaller than tol (relative to the
// largest diagonal element) produce a zero column. A pivot below -tol returns
// ErrSingularMatrix.
func Cholesky(s mat.Symmetric, tol float64) (*mat.TriDense, error) {
	n := s.SymmetricDim()
	l := mat.NewTriDense(n, mat.Lower, nil)

	scale := 0.0
	for i := 0; i < n; i++ {
		scale = math.Max(scale, math.Abs(s.At(i, i)))
	}
	if scale == 0 {
		return l, nil
	}
	eps := tol * scale

	for j := 0; j < n; j++ {
		d := s.At(j, j)
		for k := 0; k < j; k++ {
			d -= l.At(j, k) * l.At(j, k)
		}
		if d < -eps {
			return nil, ErrSingularMatrix
		}
		if d <= eps {
			// zero column: the remaining entries of this column stay at 0
			continue
		}
		ljj := math.Sqrt(d)
		l.SetTri(j, j, ljj)
		for i := j + 1; i < n; i++ {
			v := s.At(i, j)
			for k := 0; k < j; k++ {
				v -= l.At(i, k) * l.At(j, k)
			}
			l.SetTri(i, j, v/ljj)
		}
	}
	return l, nil
}

// SolveLower solves l*x = b for a lower triangular l.
func SolveLower(l *mat.TriDense, b mat.Vector) (*mat.VecDense, error) {
	var x mat.VecDense
	if err := checkSolve(x.SolveVec(l, b)); err != nil {
		return nil, err
	}
	return &x, nil
}

// SolveUpper solves u*x = b for an upper triangular u.
func SolveUpper(u *mat.TriDense, b mat.Vector) (*mat.VecDense, error) {
	var x mat.VecDense
	if err := checkSolve(x.SolveVec(u, b)); err != nil {
		return nil, err
	}
	return &x, nil
}

// checkSolve keeps gonum's ill-conditioning warnings as successes and turns
// everything else into ErrSingularMatrix.
func checkSolve(err error) error {
	if err == nil {
		return nil
	}
	var c mat.Condition
	if errors.As(err, &c) && !math.IsInf(float64(c), 0) {
		return nil
	}
	return ErrSingularMatrix
}

// LogDetTriangular returns sum(log|t_ii|) for a triangular matrix.
func LogDetTriangular(t mat.Triangular) float64 {
	n, _ := t.Triangle()
	s := 0.0
	for i := 0; i < n; i++ {
		s += math.Log(math.Abs(t.At(i, i)))
	}
	return s
}
