package arima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"tsadjust/linalg"
)

// ErrSeriesTooShort is returned when a series has too few observations for
// the requested orders.
var ErrSeriesTooShort = errors.New("arima: series too short")

// StartModulus is the smallest root modulus kept by the starting values.
const StartModulus = 1 / 0.98

// HannanRissanen computes starting values for a model of the given spec from
// the stationary (already differenced) series w.
//
// A long autoregression gives estimates of the innovations; w is then
// regressed on its own regular and seasonal lags and on the lagged
// innovations, treating the seasonal and regular blocks additively. The
// resulting polynomials are stabilized.
func HannanRissanen(w []float64, spec Spec) (*Model, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	np := spec.ParameterCount()
	if np == 0 {
		return NewModel(spec, nil)
	}
	for _, v := range w {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("hannan-rissanen on a series with missing values: %w", ErrInvalidSpec)
		}
	}

	x := append([]float64(nil), w...)
	if spec.Mean {
		mu := stat.Mean(x, nil)
		for i := range x {
			x[i] -= mu
		}
	}
	n := len(x)
	maxLag := max(spec.ArOrder(), spec.MaOrder())

	e := make([]float64, n)
	start := maxLag
	if spec.Regular.Q+spec.Seasonal.Q > 0 {
		m := min(max(2*maxLag, maxLag+1), n/3)
		if m < 1 {
			return nil, ErrSeriesTooShort
		}
		res, err := longAR(x, m)
		if err != nil {
			return nil, err
		}
		copy(e[m:], res)
		start = m + maxLag
	}
	rows := n - start
	if rows <= np {
		return nil, fmt.Errorf("%d usable observations for %d parameters: %w", rows, np, ErrSeriesTooShort)
	}

	lags := make([]lagTerm, 0, np)
	for _, b := range spec.Blocks() {
		src := e
		if b.Kind.IsAR() {
			src = x
		}
		for i := 1; i <= b.Len; i++ {
			lags = append(lags, lagTerm{src: src, lag: i * b.Lag, ar: b.Kind.IsAR()})
		}
	}

	design := mat.NewDense(rows, np, nil)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := start + r
		y[r] = x[t]
		for j, l := range lags {
			design.Set(r, j, l.src[t-l.lag])
		}
	}
	ls, err := linalg.Solve(design, y, 0)
	if err != nil {
		return nil, fmt.Errorf("hannan-rissanen regression: %w", err)
	}
	params := make([]float64, np)
	for k, j := range ls.Used {
		if lags[j].ar {
			params[j] = -ls.Coefficients[k]
		} else {
			params[j] = ls.Coefficients[k]
		}
	}
	model, err := NewModel(spec, params)
	if err != nil {
		return nil, err
	}
	model, _, err = Stabilize(model, StartModulus)
	return model, err
}

type lagTerm struct {
	src []float64
	lag int
	ar  bool
}

// longAR fits an AR(m) by least squares and returns the residuals for
// t = m..n-1.
func longAR(x []float64, m int) ([]float64, error) {
	n := len(x)
	rows := n - m
	if rows <= m {
		return nil, ErrSeriesTooShort
	}
	design := mat.NewDense(rows, m, nil)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := m + r
		y[r] = x[t]
		for i := 1; i <= m; i++ {
			design.Set(r, i-1, x[t-i])
		}
	}
	ls, err := linalg.Solve(design, y, 0)
	if err != nil {
		return nil, fmt.Errorf("long autoregression: %w", err)
	}
	return ls.Residuals, nil
}
