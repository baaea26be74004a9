package regarima

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"tsadjust/arima"
	"tsadjust/linalg"
	"tsadjust/polynomial"
)

// Model is a series with its regression variables and the structure of its
// ARIMA errors. It is immutable once built.
type Model struct {
	y       []float64
	x       *mat.Dense
	names   []string
	spec    arima.Spec
	missing []int
}

// NewModel validates and copies the inputs. y holds NaN for missing values,
// x (possibly nil) has one row per observation and names, when given, one
// entry per column of x. spec.Mean adds a mean to the differenced series.
func NewModel(y []float64, x *mat.Dense, spec arima.Spec, names ...string) (*Model, error) {
	const op = "model"
	if err := spec.Validate(); err != nil {
		return nil, newError(KindInvalidInput, op, err)
	}
	n := len(y)
	m := &Model{y: append([]float64(nil), y...), spec: spec}
	for t, v := range y {
		if math.IsNaN(v) {
			m.missing = append(m.missing, t)
		} else if math.IsInf(v, 0) {
			return nil, newError(KindInvalidInput, op, fmt.Errorf("infinite value at %d", t))
		}
	}

	k := 0
	if x != nil && !x.IsEmpty() {
		r, c := x.Dims()
		if r != n {
			return nil, newError(KindInvalidInput, op, fmt.Errorf("%d rows of regressors for %d observations: %w", r, n, linalg.ErrDimensionMismatch))
		}
		m.x = mat.DenseCopyOf(x)
		k = c
	}
	switch {
	case len(names) == 0:
		for j := 0; j < k; j++ {
			m.names = append(m.names, fmt.Sprintf("x%d", j+1))
		}
	case len(names) == k:
		m.names = append([]string(nil), names...)
	default:
		return nil, newError(KindInvalidInput, op, fmt.Errorf("%d names for %d regressors", len(names), k))
	}

	nobs := n - spec.DifferencingOrder() - len(m.missing)
	if need := m.regressionCount() + spec.ParameterCount() + 1; nobs <= need {
		return nil, newError(KindInvalidInput, op, fmt.Errorf("%d usable observations for %d unknowns", nobs, need))
	}
	return m, nil
}

// Y returns a copy of the series.
func (m *Model) Y() []float64 { return append([]float64(nil), m.y...) }

// X returns the regressors, nil when there are none. It must not be
// modified.
func (m *Model) X() *mat.Dense { return m.x }

// Spec returns the ARIMA structure.
func (m *Model) Spec() arima.Spec { return m.spec }

// Len returns the number of observations.
func (m *Model) Len() int { return len(m.y) }

// Missing returns the positions of the missing values.
func (m *Model) Missing() []int { return append([]int(nil), m.missing...) }

// VariableNames returns the names of the regression variables, the mean
// first when present.
func (m *Model) VariableNames() []string {
	var out []string
	if m.spec.Mean {
		out = append(out, "mean")
	}
	return append(out, m.names...)
}

func (m *Model) regressionCount() int {
	k := len(m.names)
	if m.spec.Mean {
		k++
	}
	return k
}

// meanVariable returns the regressor of the mean in levels: the solution of
// delta(B)x(t) = 1 with zero initial values.
func meanVariable(delta polynomial.Polynomial, n int) []float64 {
	x := make([]float64, n)
	for t := range x {
		v := 1.0
		for i := 1; i <= delta.Degree() && i <= t; i++ {
			v -= delta[i] * x[t-i]
		}
		x[t] = v
	}
	return x
}

// regressors returns the regression variables in levels over n periods:
// the mean first, then x. xFuture supplies the rows of x beyond the sample.
func (m *Model) regressors(n int, xFuture *mat.Dense) (*mat.Dense, error) {
	k := m.regressionCount()
	if k == 0 {
		return nil, nil
	}
	out := mat.NewDense(n, k, nil)
	col := 0
	if m.spec.Mean {
		out.SetCol(0, meanVariable(arima.Differencing(m.spec), n))
		col++
	}
	if m.x == nil {
		return out, nil
	}
	nx, c := m.x.Dims()
	for t := 0; t < n; t++ {
		for j := 0; j < c; j++ {
			switch {
			case t < nx:
				out.Set(t, col+j, m.x.At(t, j))
			case xFuture == nil:
				return nil, fmt.Errorf("no future values of the regressors for period %d: %w", t, linalg.ErrDimensionMismatch)
			default:
				r, fc := xFuture.Dims()
				if fc != c || t-nx >= r {
					return nil, fmt.Errorf("future regressors %dx%d, need %d columns and %d rows: %w", r, fc, c, n-nx, linalg.ErrDimensionMismatch)
				}
				out.Set(t, col+j, xFuture.At(t-nx, j))
			}
		}
	}
	return out, nil
}

// design returns the differenced series, with the missing values set to 0,
// and the differenced regression matrix: one additive-outlier dummy per
// missing value first, then the regression variables.
func (m *Model) design() ([]float64, *mat.Dense) {
	n := len(m.y)
	delta := arima.Differencing(m.spec)
	y := append([]float64(nil), m.y...)
	for _, t := range m.missing {
		y[t] = 0
	}
	dy := delta.Apply(y)
	nd := len(dy)

	reg, _ := m.regressors(n, nil)
	k := len(m.missing) + m.regressionCount()
	if k == 0 {
		return dy, nil
	}
	dx := mat.NewDense(nd, k, nil)
	col := make([]float64, n)
	for j, t := range m.missing {
		for i := range col {
			col[i] = 0
		}
		col[t] = 1
		dx.SetCol(j, delta.Apply(col))
	}
	if reg != nil {
		_, c := reg.Dims()
		for j := 0; j < c; j++ {
			mat.Col(col, j, reg)
			dx.SetCol(len(m.missing)+j, delta.Apply(col))
		}
	}
	return dy, dx
}
