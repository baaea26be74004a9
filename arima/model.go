package arima

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"tsadjust/polynomial"
)

// ErrNotStationary is returned when an autocovariance is requested for a
// model whose AR polynomial has a root on or inside the unit circle.
var ErrNotStationary = errors.New("arima: model is not stationary")

// Model is a seasonal ARIMA model with its parameters.
type Model struct {
	spec   Spec
	params []float64
}

// NewModel validates spec and the number of parameters. The parameter slice
// is copied.
func NewModel(spec Spec, params []float64) (*Model, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(params) != spec.ParameterCount() {
		return nil, fmt.Errorf("%d parameters for %v, want %d: %w", len(params), spec, spec.ParameterCount(), ErrInvalidSpec)
	}
	return &Model{spec: spec, params: append([]float64(nil), params...)}, nil
}

// DefaultModel returns the model with the usual default starting values:
// -0.1 for every AR coefficient and -0.2 for every MA coefficient.
func DefaultModel(spec Spec) (*Model, error) {
	p := make([]float64, spec.ParameterCount())
	for _, b := range spec.Blocks() {
		v := -0.2
		if b.Kind.IsAR() {
			v = -0.1
		}
		for i := 0; i < b.Len; i++ {
			p[b.Offset+i] = v
		}
	}
	return NewModel(spec, p)
}

// Spec returns the orders.
func (m *Model) Spec() Spec { return m.spec }

// Parameters returns a copy of the flat parameter vector.
func (m *Model) Parameters() []float64 {
	return append([]float64(nil), m.params...)
}

// WithParameters returns a model with the same spec and new parameters.
func (m *Model) WithParameters(p []float64) (*Model, error) {
	return NewModel(m.spec, p)
}

// Block returns the coefficients of one parameter block.
func (m *Model) Block(k BlockKind) []float64 {
	b := m.spec.Blocks()[k]
	return append([]float64(nil), m.params[b.Offset:b.Offset+b.Len]...)
}

// Phi returns the regular AR polynomial phi(B).
func (m *Model) Phi() polynomial.Polynomial { return polynomial.OnePlus(m.Block(RegularAR)) }

// Theta returns the regular MA polynomial theta(B).
func (m *Model) Theta() polynomial.Polynomial { return polynomial.OnePlus(m.Block(RegularMA)) }

// SeasonalPhi returns Phi(B^s).
func (m *Model) SeasonalPhi() polynomial.Polynomial {
	return polynomial.OnePlus(m.Block(SeasonalAR)).Seasonal(m.spec.Period)
}

// SeasonalTheta returns Theta(B^s).
func (m *Model) SeasonalTheta() polynomial.Polynomial {
	return polynomial.OnePlus(m.Block(SeasonalMA)).Seasonal(m.spec.Period)
}

// AR returns phi(B)Phi(B^s).
func (m *Model) AR() polynomial.Polynomial { return m.Phi().Times(m.SeasonalPhi()) }

// MA returns theta(B)Theta(B^s).
func (m *Model) MA() polynomial.Polynomial { return m.Theta().Times(m.SeasonalTheta()) }

// Differencing returns (1-B)^d (1-B^s)^D.
func (m *Model) Differencing() polynomial.Polynomial {
	return Differencing(m.spec)
}

// Differencing returns the differencing polynomial of a spec.
func Differencing(s Spec) polynomial.Polynomial {
	d := polynomial.New(1, -1).Power(s.Regular.D)
	if s.Seasonal.D > 0 {
		d = d.Times(polynomial.New(1, -1).Seasonal(s.Period).Power(s.Seasonal.D))
	}
	return d
}

// FullAR returns the non-stationary AR polynomial phi(B)Phi(B^s)delta(B).
func (m *Model) FullAR() polynomial.Polynomial { return m.AR().Times(m.Differencing()) }

// StationaryTransformation splits the model into its stationary ARMA part,
// with unit innovation variance, and the differencing polynomial that
// removes the unit roots.
func (m *Model) StationaryTransformation() (*ArmaModel, polynomial.Polynomial) {
	return &ArmaModel{AR: m.AR(), MA: m.MA(), Variance: 1}, m.Differencing()
}

// Psi returns the first n psi-weights of the full (possibly non-stationary)
// model, i.e. the responses of y to a unit innovation.
func (m *Model) Psi(n int) []float64 {
	return polynomial.Expand(m.MA(), m.FullAR(), n)
}

// IsStationary reports whether both AR blocks have their roots outside the
// unit circle.
func (m *Model) IsStationary() bool {
	return m.Phi().IsStable(1) && polynomial.OnePlus(m.Block(SeasonalAR)).IsStable(1)
}

// IsInvertible reports whether both MA blocks have their roots outside the
// unit circle.
func (m *Model) IsInvertible() bool {
	return m.Theta().IsStable(1) && polynomial.OnePlus(m.Block(SeasonalMA)).IsStable(1)
}

// String formats the spec and the parameters.
func (m *Model) String() string {
	return fmt.Sprintf("%v %.6g", m.spec, m.params)
}

// ArmaModel is a stationary ARMA process AR(B) y(t) = MA(B) e(t) with
// innovation variance Variance.
type ArmaModel struct {
	AR       polynomial.Polynomial
	MA       polynomial.Polynomial
	Variance float64
}

// Psi returns the first n psi-weights MA/AR. This is the impulse response of
// the process to a unit innovation.
func (a *ArmaModel) Psi(n int) []float64 {
	return polynomial.Expand(a.MA, a.AR, n)
}

// AutoCovariance returns gamma(0..n-1).
//
// The first p+1 autocovariances solve the linear system
//
//	gamma(k) + sum_i ar(i)*gamma(k-i) = v * sum_{j>=k} ma(j)*psi(j-k),  k = 0..p
//
// and the remaining ones follow from the same recursion.
func (a *ArmaModel) AutoCovariance(n int) ([]float64, error) {
	ar := a.AR.Trim()
	ma := a.MA.Trim()
	if ar[0] != 1 {
		return nil, fmt.Errorf("AR polynomial must start with 1: %w", ErrInvalidSpec)
	}
	if !ar.IsStable(1) {
		return nil, ErrNotStationary
	}
	p, q := ar.Degree(), ma.Degree()
	v := a.Variance
	psi := polynomial.Expand(ma, ar, q+1)

	// right-hand side c(k) for k = 0..max(p, q)
	m := max(p, q) + 1
	c := make([]float64, m)
	for k := 0; k <= q; k++ {
		s := 0.0
		for j := k; j <= q; j++ {
			s += ma[j] * psi[j-k]
		}
		c[k] = v * s
	}

	out := make([]float64, max(n, p+1))
	if p == 0 {
		for k := 0; k <= q && k < len(out); k++ {
			out[k] = c[k]
		}
		return out[:n], nil
	}

	sys := mat.NewDense(p+1, p+1, nil)
	for k := 0; k <= p; k++ {
		for i := 0; i <= p; i++ {
			j := k - i
			if j < 0 {
				j = -j
			}
			sys.Set(k, j, sys.At(k, j)+ar[i])
		}
	}
	var g mat.VecDense
	if err := g.SolveVec(sys, mat.NewVecDense(p+1, append([]float64(nil), c[:p+1]...))); err != nil {
		return nil, ErrNotStationary
	}
	for k := 0; k <= p; k++ {
		out[k] = g.AtVec(k)
	}
	for k := p + 1; k < len(out); k++ {
		s := 0.0
		if k < m {
			s = c[k]
		}
		for i := 1; i <= p; i++ {
			s -= ar[i] * out[k-i]
		}
		out[k] = s
	}
	return out[:n], nil
}

// Spectrum returns the pseudo-spectrum v*|MA|^2/|AR|^2 at frequency w. For
// non-stationary AR polynomials the value is infinite at the unit roots.
func (a *ArmaModel) Spectrum(w float64) float64 {
	num := polynomial.SymmetricOf(a.MA).At(w)
	den := polynomial.SymmetricOf(a.AR).At(w)
	return a.Variance * num / den
}

// IsStationary reports whether AR has every root outside the unit circle.
func (a *ArmaModel) IsStationary() bool {
	return a.AR.IsStable(1)
}
