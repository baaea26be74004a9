package ssf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"tsadjust/arima"
	"tsadjust/polynomial"
)

// companion is the transition of an ARIMA state: a shift of the forecasts
// plus the AR recursion in the last row.
type companion struct {
	row []float64 // last row of T
	t   *mat.Dense
	s   *mat.Dense
}

func newCompanion(ar polynomial.Polynomial, psi []float64, stdev float64) *companion {
	r := len(psi)
	row := make([]float64, r)
	for j := 0; j < r; j++ {
		row[j] = -ar.Coefficient(r - j)
	}
	t := mat.NewDense(r, r, nil)
	for i := 0; i+1 < r; i++ {
		t.Set(i, i+1, 1)
	}
	t.SetRow(r-1, row)
	s := mat.NewDense(r, 1, nil)
	for i, v := range psi {
		s.Set(i, 0, v*stdev)
	}
	return &companion{row: row, t: t, s: s}
}

func (c *companion) IsTimeInvariant() bool { return true }
func (c *companion) T(int) mat.Matrix      { return c.t }
func (c *companion) S(int) mat.Matrix      { return c.s }

func (c *companion) TX(_ int, x []float64) {
	r := len(x)
	last := 0.0
	for j, v := range c.row {
		if v != 0 {
			last += v * x[j]
		}
	}
	copy(x, x[1:])
	x[r-1] = last
}

func (c *companion) XT(_ int, x []float64) {
	r := len(x)
	xr := x[r-1]
	for j := r - 1; j >= 1; j-- {
		x[j] = x[j-1] + c.row[j]*xr
	}
	x[0] = c.row[0] * xr
}

// firstElement is the loading of ARIMA states, y(t) = a(t)[0], optionally
// with a measurement error.
type firstElement struct {
	z []float64
	h float64
}

func (f *firstElement) Z(int) []float64 { return f.z }
func (f *firstElement) H(int) float64   { return f.h }

// Arima returns the state-space form of an ARIMA model with unit innovation
// variance. The differencing of the model gives the diffuse part of the
// initialization.
func Arima(m *arima.Model) (*StateSpace, error) {
	stationary, delta := m.StationaryTransformation()
	return ArimaFromPolynomials(stationary.AR, delta, stationary.MA, 1)
}

// Arma returns the state-space form of a stationary ARMA model; the
// initialization has no diffuse part.
func Arma(a *arima.ArmaModel) (*StateSpace, error) {
	return ArimaFromPolynomials(a.AR, polynomial.One(), a.MA, a.Variance)
}

// ArimaFromPolynomials builds the form of ar(B)*delta(B) y = ma(B) e with
// var(e) = variance. ar must be stationary; every root of delta is treated as
// a unit root.
func ArimaFromPolynomials(ar, delta, ma polynomial.Polynomial, variance float64) (*StateSpace, error) {
	if variance < 0 {
		return nil, fmt.Errorf("negative innovation variance %g: %w", variance, ErrInvalidSystem)
	}
	ar, delta, ma = ar.Trim(), delta.Trim(), ma.Trim()
	full := ar.Times(delta)
	d := delta.Degree()
	r := max(full.Degree(), ma.Degree()+1)

	psi := polynomial.Expand(ma, full, r)
	stdev := math.Sqrt(variance)
	dyn := newCompanion(full, psi, stdev)

	pf0, err := stationaryCovariance(ar, delta, ma, r)
	if err != nil {
		return nil, err
	}
	pf0.ScaleSym(variance, pf0)

	var b0 *mat.Dense
	if d > 0 {
		b0 = diffuseFactor(delta, r)
	}

	z := make([]float64, r)
	z[0] = 1
	return &StateSpace{
		Dynamics:    dyn,
		Measurement: &firstElement{z: z},
		Init:        Initialization{A0: make([]float64, r), Pf0: pf0, B0: b0},
	}, nil
}

// stationaryCovariance returns cov(s) where s(i) = sum_j c(i-j) u(j|0),
// c = 1/delta and u(j|0) are the forecasts at time 0 of the stationary ARMA
// process ar(B) u = ma(B) e (unit variance).
func stationaryCovariance(ar, delta, ma polynomial.Polynomial, r int) (*mat.SymDense, error) {
	arma := &arima.ArmaModel{AR: ar, MA: ma, Variance: 1}
	gamma, err := arma.AutoCovariance(r)
	if err != nil {
		return nil, err
	}
	psi := arma.Psi(r)

	// cov(u(a|0), u(b|0)) = gamma(b-a) - sum_{m<a} psi(m) psi(m+b-a), a <= b
	cu := mat.NewSymDense(r, nil)
	for a := 0; a < r; a++ {
		for b := a; b < r; b++ {
			v := gamma[b-a]
			for m := 0; m < a; m++ {
				v -= psi[m] * psi[m+b-a]
			}
			cu.SetSym(a, b, v)
		}
	}
	if delta.Degree() == 0 {
		return cu, nil
	}

	c := polynomial.Expand(polynomial.One(), delta, r)
	lc := mat.NewDense(r, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j <= i; j++ {
			lc.Set(i, j, c[i-j])
		}
	}
	// C*Cu*C'
	var tmp mat.Dense
	tmp.Mul(lc, cu)
	var full mat.Dense
	full.Mul(&tmp, lc.T())
	out := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			out.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return out, nil
}

// diffuseFactor returns the r x d matrix whose row t holds the coefficients
// of the starting values y(-1)..y(-d) in y(t) under the recursion
// delta(B) y = 0.
func diffuseFactor(delta polynomial.Polynomial, r int) *mat.Dense {
	d := delta.Degree()
	b := mat.NewDense(r, d, nil)
	for k := 0; k < d; k++ {
		// h(-j) = 1 if j == k+1
		h := make([]float64, r+d) // h[d+t] = h(t)
		h[d-1-k] = 1
		for t := 0; t < r; t++ {
			v := 0.0
			for j := 1; j <= d; j++ {
				v -= delta[j] * h[d+t-j]
			}
			h[d+t] = v / delta[0]
			b.Set(t, k, h[d+t])
		}
	}
	return b
}
