package likelihood

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"tsadjust/linalg"
)

// ErrGLSFailed is returned when the generalized least-squares problem
// cannot be solved. Estimation treats it as a rejected trial point.
var ErrGLSFailed = errors.New("likelihood: generalized least squares failed")

var log2Pi = math.Log(2 * math.Pi)

// Concentrated is the likelihood of y = X*b + u, u ~ N(0, sigma2*Omega),
// evaluated at the GLS estimate of b and the ML estimate of sigma2. The
// first Missing columns of X are the dummies of the missing observations.
type Concentrated struct {
	// N is the number of observations, missing values excluded.
	N int
	// Missing is the number of missing-value dummies leading X.
	Missing int
	// Columns is the number of columns of X, dummies included.
	Columns int

	// Used and Redundant index the columns of X.
	Used      []int
	Redundant []int
	// Coefficients is aligned with Used.
	Coefficients []float64
	R            *mat.TriDense

	// Residuals are the whitened GLS residuals.
	Residuals []float64
	SSQ       float64
	// LogDet is log|Omega| over the observed values.
	LogDet float64
	// Factor is the scale applied to y before the fit; 1 when the results
	// are in the units of y.
	Factor float64
}

// LogLikelihood returns
//
//	-0.5*(N*log(2*pi) + N*log(SSQ/N) + N + LogDet)
func (c *Concentrated) LogLikelihood() float64 {
	n := float64(c.N)
	return -0.5 * (n*log2Pi + n*math.Log(c.SSQ/n) + n + c.LogDet)
}

// Sigma2 returns the ML estimate of the scale, SSQ/N.
func (c *Concentrated) Sigma2() float64 { return c.SSQ / float64(c.N) }

// Rank returns the number of estimated coefficients, dummies included.
func (c *Concentrated) Rank() int { return len(c.Used) }

// RegressionCount returns the number of estimated coefficients of the
// regression variables proper.
func (c *Concentrated) RegressionCount() int {
	k := 0
	for _, j := range c.Used {
		if j >= c.Missing {
			k++
		}
	}
	return k
}

// Rescale returns the results in the units of y.
func (c *Concentrated) Rescale() *Concentrated {
	if c.Factor == 1 {
		return c
	}
	k := c.Factor
	out := *c
	out.Coefficients = append([]float64(nil), c.Coefficients...)
	floats.Scale(k, out.Coefficients)
	out.Residuals = append([]float64(nil), c.Residuals...)
	floats.Scale(k, out.Residuals)
	out.SSQ = c.SSQ * k * k
	out.Factor = 1
	return &out
}

// Coefficient returns the estimate of column j of X and whether it was
// estimated.
func (c *Concentrated) Coefficient(j int) (float64, bool) {
	for i, u := range c.Used {
		if u == j {
			return c.Coefficients[i], true
		}
	}
	return math.NaN(), false
}

// Covariance returns the covariance of the coefficients, aligned with Used,
// with the scale estimated by SSQ/(N - k) over the regression variables.
func (c *Concentrated) Covariance() (*mat.SymDense, error) {
	ls := linalg.LeastSquares{Used: c.Used, R: c.R}
	cov, err := ls.UnscaledCovariance()
	if err != nil || cov == nil {
		return cov, err
	}
	cov.ScaleSym(c.SSQ/float64(c.degreesOfFreedom()), cov)
	return cov, nil
}

func (c *Concentrated) degreesOfFreedom() int {
	df := c.N - c.RegressionCount()
	if df < 1 {
		return 1
	}
	return df
}

// Coefficient is one row of a coefficient table.
type Coefficient struct {
	Column int
	Value  float64
	StdErr float64
	T      float64
	PValue float64
}

// Table returns the estimates of the regression variables with their
// t-statistics and two-sided p-values. Missing-value dummies are left out.
func (c *Concentrated) Table() ([]Coefficient, error) {
	cov, err := c.Covariance()
	if err != nil {
		return nil, err
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(c.degreesOfFreedom())}
	var out []Coefficient
	for i, j := range c.Used {
		if j < c.Missing {
			continue
		}
		se := math.Sqrt(cov.At(i, i))
		t := c.Coefficients[i] / se
		out = append(out, Coefficient{
			Column: j,
			Value:  c.Coefficients[i],
			StdErr: se,
			T:      t,
			PValue: 2 * dist.Survival(math.Abs(t)),
		})
	}
	return out, nil
}

// Computer evaluates concentrated likelihoods.
type Computer struct {
	// Rescale divides y by its root mean square before the fit.
	Rescale bool
	// RankTolerance is passed to the QR rank detection.
	RankTolerance float64
	// CorrectMissing adds the log-determinant of the missing-value dummies
	// block, which makes the result equal to the likelihood of the observed
	// values alone.
	CorrectMissing bool
}

// Compute returns the concentrated likelihood of the whitened series y on
// the whitened regressors x. logdet is log|Omega| of the whitening
// transformation and missing the number of leading dummy columns of x.
func (c Computer) Compute(y []float64, x *mat.Dense, logdet float64, missing int) (*Concentrated, error) {
	n := len(y)
	cols := 0
	if x != nil && !x.IsEmpty() {
		_, cols = x.Dims()
	}
	if missing < 0 || missing > cols {
		return nil, fmt.Errorf("%d missing-value dummies for %d columns: %w", missing, cols, linalg.ErrDimensionMismatch)
	}
	if n-missing <= 0 {
		return nil, fmt.Errorf("no observed values: %w", ErrGLSFailed)
	}

	factor := 1.0
	ys := y
	if c.Rescale {
		if k := floats.Norm(y, 2) / math.Sqrt(float64(n)); k > 0 && !math.IsInf(k, 0) {
			factor = k
			ys = append([]float64(nil), y...)
			floats.Scale(1/k, ys)
		}
	}

	ls, err := linalg.Solve(x, ys, c.RankTolerance)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGLSFailed, err)
	}
	if !(ls.SSQ > 0) || math.IsInf(ls.SSQ, 0) {
		return nil, fmt.Errorf("sum of squares %g: %w", ls.SSQ, ErrGLSFailed)
	}

	if c.CorrectMissing {
		for i, j := range ls.Used {
			if j < missing {
				logdet += 2 * math.Log(math.Abs(ls.R.At(i, i)))
			}
		}
	}

	return &Concentrated{
		N:            n - missing,
		Missing:      missing,
		Columns:      cols,
		Used:         ls.Used,
		Redundant:    ls.Redundant,
		Coefficients: ls.Coefficients,
		R:            ls.R,
		Residuals:    ls.Residuals,
		SSQ:          ls.SSQ,
		LogDet:       logdet,
		Factor:       factor,
	}, nil
}
