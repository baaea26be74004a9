package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCholeskyPositiveDefinite(t *testing.T) {
	s := mat.NewSymDense(3, []float64{
		4, 2, 0.4,
		2, 5, 1,
		0.4, 1, 3,
	})
	l, err := Cholesky(s, 1e-12)
	require.NoError(t, err)

	var llt mat.Dense
	llt.Mul(l, l.T())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, s.At(i, j), llt.At(i, j), 1e-12)
		}
	}
}

func TestCholeskySemiDefinite(t *testing.T) {
	// rank one: v*v'
	v := []float64{1, 2, 3}
	s := mat.NewSymDense(3, nil)
	s.SymRankOne(s, 1, mat.NewVecDense(3, v))

	l, err := Cholesky(s, 1e-12)
	require.NoError(t, err)
	assert.InDelta(t, 0, l.At(1, 1), 1e-12)
	assert.InDelta(t, 0, l.At(2, 2), 1e-12)

	var llt mat.Dense
	llt.Mul(l, l.T())
	assert.True(t, mat.EqualApprox(s, &llt, 1e-12))
}

func TestCholeskyIndefinite(t *testing.T) {
	s := mat.NewSymDense(2, []float64{1, 2, 2, 1})
	_, err := Cholesky(s, 1e-12)
	assert.ErrorIs(t, err, ErrSingularMatrix)
}

func TestSymmetrize(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 4, 3})
	s := mat.NewSymDense(2, nil)
	Symmetrize(s, a)
	assert.Equal(t, 3.0, s.At(0, 1))
	assert.Equal(t, 3.0, s.At(1, 0))
	assert.Equal(t, 1.0, s.At(0, 0))
}

func TestLeastSquaresExactFit(t *testing.T) {
	// y = 1 + 2*t
	n := 10
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, float64(i))
		y[i] = 1 + 2*float64(i)
	}
	ls, err := Solve(x, y, 0)
	require.NoError(t, err)
	require.Equal(t, 2, ls.Rank())
	assert.InDelta(t, 1, ls.Coefficients[0], 1e-12)
	assert.InDelta(t, 2, ls.Coefficients[1], 1e-12)
	assert.InDelta(t, 0, ls.SSQ, 1e-20)
}

func TestLeastSquaresRankDetection(t *testing.T) {
	n := 8
	x := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, float64(i))
		x.Set(i, 2, 2+3*float64(i)) // linear combination of the first two
		y[i] = math.Sin(float64(i))
	}
	ls, err := Solve(x, y, 1e-10)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ls.Used)
	assert.Equal(t, []int{2}, ls.Redundant)

	// the fit is the same as without the redundant column
	ref, err := Solve(x.Slice(0, n, 0, 2).(*mat.Dense), y, 1e-10)
	require.NoError(t, err)
	assert.InDelta(t, ref.SSQ, ls.SSQ, 1e-12)
}

func TestLeastSquaresNoRegressors(t *testing.T) {
	y := []float64{1, 2, 3}
	ls, err := Solve(nil, y, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, ls.Rank())
	assert.InDelta(t, 14, ls.SSQ, 1e-15)

	zero := mat.NewDense(3, 1, nil)
	ls, err = Solve(zero, y, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, ls.Rank())
	assert.Equal(t, []int{0}, ls.Redundant)
}

func TestUnscaledCovariance(t *testing.T) {
	n := 6
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, float64(i*i))
		y[i] = float64(i)
	}
	ls, err := Solve(x, y, 0)
	require.NoError(t, err)
	cov, err := ls.UnscaledCovariance()
	require.NoError(t, err)

	var xtxInv mat.Dense
	require.NoError(t, xtxInv.Inverse(XtX(x)))
	assert.True(t, mat.EqualApprox(cov, &xtxInv, 1e-10))
}

func TestHouseholder(t *testing.T) {
	x := []float64{3, 1, -2, 0.5}
	h := NewHouseholder(x)
	m := mat.NewDense(1, 4, append([]float64(nil), x...))
	h.ApplyRight(m)
	assert.InDelta(t, h.Alpha, m.At(0, 0), 1e-14)
	for j := 1; j < 4; j++ {
		assert.InDelta(t, 0, m.At(0, j), 1e-14)
	}
	assert.InDelta(t, math.Sqrt(9+1+4+0.25), math.Abs(h.Alpha), 1e-14)
}

func TestLowerTriangularize(t *testing.T) {
	a := mat.NewDense(3, 5, []float64{
		1, 2, 0, 1, 3,
		0, 1, 4, 2, 1,
		2, 0, 1, 1, 1,
	})
	l := LowerTriangularize(a)

	var llt, aat mat.Dense
	llt.Mul(l, l.T())
	aat.Mul(a, a.T())
	assert.True(t, mat.EqualApprox(&llt, &aat, 1e-12))
	for i := 0; i < 3; i++ {
		assert.GreaterOrEqual(t, l.At(i, i), 0.0)
	}
}
