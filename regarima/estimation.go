package regarima

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"tsadjust/arima"
	"tsadjust/kalman"
	"tsadjust/likelihood"
	"tsadjust/ssf"
)

// Estimation is the outcome of Processor.Estimate.
type Estimation struct {
	Model *Model
	Arima *arima.Model
	// Likelihood is in the units of the series.
	Likelihood *likelihood.Concentrated
	Statistics likelihood.Statistics
	Iterations int
	Converged  bool
	// Stabilized reports that the optimum was unstable and has been
	// replaced by its stabilized version.
	Stabilized bool
	// Free lists the estimated ARIMA parameters; Gradient, Hessian and
	// StdErrors are aligned with it.
	Free      []int
	Gradient  []float64
	Hessian   *mat.SymDense
	StdErrors []float64
}

// RegressionCoefficient is one estimated regression effect.
type RegressionCoefficient struct {
	Name   string
	Value  float64
	StdErr float64
	T      float64
	PValue float64
}

// Coefficients returns the regression variables table. Redundant variables
// are left out.
func (e *Estimation) Coefficients() ([]RegressionCoefficient, error) {
	table, err := e.Likelihood.Table()
	if err != nil {
		return nil, err
	}
	names := e.Model.VariableNames()
	out := make([]RegressionCoefficient, 0, len(table))
	for _, row := range table {
		out = append(out, RegressionCoefficient{
			Name:   names[row.Column-e.Likelihood.Missing],
			Value:  row.Value,
			StdErr: row.StdErr,
			T:      row.T,
			PValue: row.PValue,
		})
	}
	return out, nil
}

// regressionCoefficients returns one coefficient per regression variable,
// 0 for the redundant ones.
func (e *Estimation) regressionCoefficients() []float64 {
	k := e.Model.regressionCount()
	b := make([]float64, k)
	for j := range b {
		if v, ok := e.Likelihood.Coefficient(e.Likelihood.Missing + j); ok {
			b[j] = v
		}
	}
	return b
}

// regressionEffect returns X*b over the first n periods.
func (e *Estimation) regressionEffect(n int, xFuture *mat.Dense) ([]float64, error) {
	out := make([]float64, n)
	reg, err := e.Model.regressors(n, xFuture)
	if err != nil || reg == nil {
		return out, err
	}
	b := e.regressionCoefficients()
	mat.NewVecDense(n, out).MulVec(reg, mat.NewVecDense(len(b), b))
	return out, nil
}

// RegressionEffect returns the estimated regression effect on the series.
func (e *Estimation) RegressionEffect() []float64 {
	out, _ := e.regressionEffect(e.Model.Len(), nil)
	return out
}

// Interpolated returns the series with the missing values replaced by
// their estimates.
func (e *Estimation) Interpolated() []float64 {
	y := e.Model.Y()
	for j, t := range e.Model.missing {
		// the series is zero at t and the dummy absorbs minus the value
		if v, ok := e.Likelihood.Coefficient(j); ok {
			y[t] = -v
		}
	}
	return y
}

// Linearized returns the interpolated series minus the regression effect.
func (e *Estimation) Linearized() []float64 {
	y := e.Interpolated()
	reg := e.RegressionEffect()
	for t := range y {
		y[t] -= reg[t]
	}
	return y
}

// Residuals returns the standardized one-step-ahead residuals.
func (e *Estimation) Residuals() []float64 {
	return append([]float64(nil), e.Likelihood.Residuals...)
}

// LjungBox tests the residuals up to lag k.
func (e *Estimation) LjungBox(k int) (likelihood.LjungBoxResult, error) {
	return likelihood.LjungBox(e.Likelihood.Residuals, k, len(e.Free))
}

// Forecast returns the forecasts of the series h periods ahead and their
// standard errors. xFuture holds the h future rows of the regressors and
// may be nil when the model has none.
func (e *Estimation) Forecast(h int, xFuture *mat.Dense) ([]float64, []float64, error) {
	const op = "forecast"
	if h <= 0 {
		return nil, nil, newError(KindInvalidInput, op, fmt.Errorf("horizon must be > 0, got %d", h))
	}
	n := e.Model.Len()
	reg, err := e.regressionEffect(n+h, xFuture)
	if err != nil {
		return nil, nil, newError(KindInvalidInput, op, err)
	}
	lin := e.Model.Y()
	for t := range lin {
		lin[t] -= reg[t]
	}

	s, err := ssf.Arima(e.Arima)
	if err != nil {
		return nil, nil, newError(KindNumerical, op, err)
	}
	fr, err := kalman.Filter{}.Run(s, lin)
	if err != nil {
		return nil, nil, newError(KindNumerical, op, err)
	}
	mean, variance, err := kalman.Forecast(s, fr, h)
	if err != nil {
		return nil, nil, newError(KindNumerical, op, err)
	}
	sigma2 := e.Likelihood.Sigma2()
	stderr := make([]float64, h)
	for j := range mean {
		mean[j] += reg[n+j]
		stderr[j] = math.Sqrt(variance[j] * sigma2)
	}
	return mean, stderr, nil
}
