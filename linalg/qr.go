package linalg

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// DefaultRankTolerance is the relative tolerance on |R_ii| used to detect
// redundant columns.
const DefaultRankTolerance = 1e-13

// LeastSquares is the QR solution of min ||y - X*b||.
type LeastSquares struct {
	// Used lists the columns of X kept in the regression, in order.
	Used []int
	// Redundant lists the columns dropped by the rank detection.
	Redundant []int
	// Coefficients has one entry per used column.
	Coefficients []float64
	// R is the upper triangular factor of the used columns.
	R *mat.TriDense
	// Residuals is y - X*b.
	Residuals []float64
	// SSQ is the sum of squared residuals.
	SSQ float64
}

// Rank returns the number of used columns.
func (ls *LeastSquares) Rank() int { return len(ls.Used) }

// Solve computes the least-squares fit of y on the columns of x. Columns whose
// diagonal element in R is below tol times the largest one are declared
// redundant and removed, one at a time, before the decomposition is redone.
// A nil or zero-column x gives the no-regressor solution.
func Solve(x *mat.Dense, y []float64, tol float64) (*LeastSquares, error) {
	n := len(y)
	if tol <= 0 {
		tol = DefaultRankTolerance
	}
	if x == nil || x.IsEmpty() {
		return noRegressors(y), nil
	}
	r, c := x.Dims()
	if r != n {
		return nil, fmt.Errorf("rows of X (%d) != len(y) (%d): %w", r, n, ErrDimensionMismatch)
	}
	if c > n {
		return nil, fmt.Errorf("%d regressors for %d observations: %w", c, n, ErrSingularMatrix)
	}

	used := make([]int, 0, c)
	var redundant []int
	for j := 0; j < c; j++ {
		if floats.Norm(mat.Col(nil, j, x), 2) == 0 {
			redundant = append(redundant, j)
			continue
		}
		used = append(used, j)
	}

	for len(used) > 0 {
		xs := selectColumns(x, used)
		var qr mat.QR
		qr.Factorize(xs)

		k := len(used)
		var rfull mat.Dense
		qr.RTo(&rfull)

		dmax := 0.0
		for i := 0; i < k; i++ {
			dmax = math.Max(dmax, math.Abs(rfull.At(i, i)))
		}
		drop := -1
		for i := 0; i < k; i++ {
			if math.Abs(rfull.At(i, i)) <= tol*dmax {
				drop = i
				break
			}
		}
		if drop >= 0 {
			redundant = append(redundant, used[drop])
			used = append(used[:drop], used[drop+1:]...)
			continue
		}

		var b mat.VecDense
		if err := checkSolve(qr.SolveVecTo(&b, false, mat.NewVecDense(n, append([]float64(nil), y...)))); err != nil {
			return nil, fmt.Errorf("qr solve: %w", err)
		}

		rt := mat.NewTriDense(k, mat.Upper, nil)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				rt.SetTri(i, j, rfull.At(i, j))
			}
		}

		res := make([]float64, n)
		ssq := 0.0
		for t := 0; t < n; t++ {
			e := y[t]
			for i := 0; i < k; i++ {
				e -= xs.At(t, i) * b.AtVec(i)
			}
			res[t] = e
			ssq += e * e
		}
		sort.Ints(redundant)
		return &LeastSquares{
			Used:         used,
			Redundant:    redundant,
			Coefficients: mat.Col(nil, 0, &b),
			R:            rt,
			Residuals:    res,
			SSQ:          ssq,
		}, nil
	}

	ls := noRegressors(y)
	sort.Ints(redundant)
	ls.Redundant = redundant
	return ls, nil
}

// UnscaledCovariance returns (R'R)^-1, the covariance of the coefficients for
// a unit innovation variance.
func (ls *LeastSquares) UnscaledCovariance() (*mat.SymDense, error) {
	k := ls.Rank()
	if k == 0 {
		return nil, nil
	}
	// (R'R)^-1 = R^-1 R^-T
	var rinv mat.TriDense
	if err := checkSolve(rinv.InverseTri(ls.R)); err != nil {
		return nil, err
	}
	cov := mat.NewSymDense(k, nil)
	cov.SymOuterK(1, &rinv)
	return cov, nil
}

func noRegressors(y []float64) *LeastSquares {
	res := append([]float64(nil), y...)
	ssq := 0.0
	for _, v := range y {
		ssq += v * v
	}
	return &LeastSquares{Residuals: res, SSQ: ssq}
}

// selectColumns copies the given columns of x into a new matrix.
func selectColumns(x *mat.Dense, cols []int) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for j, c := range cols {
		for i := 0; i < r; i++ {
			out.Set(i, j, x.At(i, c))
		}
	}
	return out
}
