package likelihood

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"tsadjust/linalg"
)

// Regression is an ordinary least-squares fit.
type Regression struct {
	Coefficients []float64 // intercept first when present
	StdErrors    []float64
	Residuals    []float64
	SSQ          float64
	N, K         int // observations, estimated coefficients
	Intercept    bool
	R2           float64
	AdjustedR2   float64
	Redundant    []int

	cov *mat.SymDense
}

// OLS regresses y on the columns of x, with a constant first when intercept
// is set. The fit goes through the same QR as the GLS computer.
func OLS(y []float64, x *mat.Dense, intercept bool) (*Regression, error) {
	n := len(y)
	design := x
	if intercept {
		cols := 0
		if x != nil && !x.IsEmpty() {
			_, cols = x.Dims()
		}
		design = mat.NewDense(n, cols+1, nil)
		for t := 0; t < n; t++ {
			design.Set(t, 0, 1)
			for j := 0; j < cols; j++ {
				design.Set(t, j+1, x.At(t, j))
			}
		}
	}
	ls, err := linalg.Solve(design, y, 0)
	if err != nil {
		return nil, fmt.Errorf("ols: %w", err)
	}
	k := ls.Rank()
	if n <= k {
		return nil, fmt.Errorf("ols: %d observations for %d coefficients: %w", n, k, linalg.ErrSingularMatrix)
	}
	cov, err := ls.UnscaledCovariance()
	if err != nil {
		return nil, fmt.Errorf("ols: %w", err)
	}
	s2 := ls.SSQ / float64(n-k)
	se := make([]float64, k)
	if cov != nil {
		cov.ScaleSym(s2, cov)
		for i := range se {
			se[i] = math.Sqrt(cov.At(i, i))
		}
	}

	var tss float64
	if intercept {
		mean := stat.Mean(y, nil)
		for _, v := range y {
			tss += (v - mean) * (v - mean)
		}
	} else {
		for _, v := range y {
			tss += v * v
		}
	}
	r2 := 1 - ls.SSQ/tss
	dfTotal := float64(n)
	if intercept {
		dfTotal--
	}
	return &Regression{
		Coefficients: ls.Coefficients,
		StdErrors:    se,
		Residuals:    ls.Residuals,
		SSQ:          ls.SSQ,
		N:            n,
		K:            k,
		Intercept:    intercept,
		R2:           r2,
		AdjustedR2:   1 - (1-r2)*dfTotal/float64(n-k),
		Redundant:    ls.Redundant,
		cov:          cov,
	}, nil
}

// Covariance returns the covariance of the coefficients.
func (r *Regression) Covariance() *mat.SymDense { return r.cov }

// TStat returns the t-statistic of coefficient j and its two-sided p-value.
func (r *Regression) TStat(j int) (float64, float64) {
	t := r.Coefficients[j] / r.StdErrors[j]
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(r.N - r.K)}
	return t, 2 * dist.Survival(math.Abs(t))
}

// OverallF tests that every coefficient but the intercept is zero. It is
// computed from R2.
func (r *Regression) OverallF() FTestResult {
	q := r.K
	if r.Intercept {
		q--
	}
	df2 := r.N - r.K
	f := (r.R2 / float64(q)) / ((1 - r.R2) / float64(df2))
	return newFTestResult(f, q, df2)
}

// FTestResult holds an F test of linear restrictions.
type FTestResult struct {
	FStatistic  float64
	DF1, DF2    int
	PValue      float64
	Significant bool // p-value < 0.05
}

func newFTestResult(f float64, df1, df2 int) FTestResult {
	dist := distuv.F{D1: float64(df1), D2: float64(df2)}
	p := dist.Survival(f)
	return FTestResult{FStatistic: f, DF1: df1, DF2: df2, PValue: p, Significant: p < 0.05}
}

// FTest compares a restricted model, with q restrictions, to the
// unrestricted one with df residual degrees of freedom:
//
//	F = ((RSS_r - RSS_u)/q) / (RSS_u/df)
func FTest(ssqRestricted, ssqUnrestricted float64, q, df int) (FTestResult, error) {
	if q <= 0 || df <= 0 {
		return FTestResult{}, fmt.Errorf("f test with %d restrictions and %d degrees of freedom", q, df)
	}
	if !(ssqUnrestricted > 0) {
		return FTestResult{}, fmt.Errorf("f test with unrestricted RSS %g", ssqUnrestricted)
	}
	f := ((ssqRestricted - ssqUnrestricted) / float64(q)) / (ssqUnrestricted / float64(df))
	return newFTestResult(f, q, df), nil
}

// FTestDrop tests that the given columns of x have zero coefficients by
// refitting without them.
func FTestDrop(y []float64, x *mat.Dense, intercept bool, drop []int) (FTestResult, error) {
	full, err := OLS(y, x, intercept)
	if err != nil {
		return FTestResult{}, err
	}
	_, c := x.Dims()
	skip := make(map[int]bool, len(drop))
	for _, j := range drop {
		if j < 0 || j >= c {
			return FTestResult{}, fmt.Errorf("column %d out of range [0,%d)", j, c)
		}
		skip[j] = true
	}
	var keep []int
	for j := 0; j < c; j++ {
		if !skip[j] {
			keep = append(keep, j)
		}
	}
	var reduced *mat.Dense
	if len(keep) > 0 {
		reduced = mat.NewDense(len(y), len(keep), nil)
		for k, j := range keep {
			reduced.SetCol(k, mat.Col(nil, j, x))
		}
	}
	restricted, err := OLS(y, reduced, intercept)
	if err != nil {
		return FTestResult{}, err
	}
	return FTest(restricted.SSQ, full.SSQ, len(skip), full.N-full.K)
}

// NormalEquations solves (X'X)b = X'y directly, falling back to the SVD
// pseudo-inverse when X'X is singular.
func NormalEquations(y []float64, x *mat.Dense) ([]float64, error) {
	n, k := x.Dims()
	if n != len(y) {
		return nil, fmt.Errorf("rows of X (%d) != len(y) (%d): %w", n, len(y), linalg.ErrDimensionMismatch)
	}
	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	var b mat.VecDense

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(linalg.XtX(x)); err == nil {
		var xty mat.VecDense
		xty.MulVec(x.T(), yv)
		b.MulVec(&xtxInv, &xty)
		return b.RawVector().Data, nil
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, fmt.Errorf("normal equations: svd factorization failed: %w", linalg.ErrSingularMatrix)
	}
	rank := svd.Rank(1e-12)
	if rank == 0 {
		return nil, linalg.ErrSingularMatrix
	}
	var sol mat.Dense
	svd.SolveTo(&sol, yv, rank)
	out := make([]float64, k)
	mat.Col(out, 0, &sol)
	return out, nil
}
