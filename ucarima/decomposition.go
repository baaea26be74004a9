// Package ucarima splits a seasonal ARIMA model into unobserved components
// (trend, seasonal, transitory and irregular) whose pseudo-spectra add up to
// the spectrum of the model, and estimates them with the Kalman smoother.
package ucarima

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"tsadjust/arima"
	"tsadjust/linalg"
	"tsadjust/polynomial"
	"tsadjust/ssf"
)

var (
	// ErrNotAdmissible is returned when the irregular left by the canonical
	// reduction has a negative spectrum.
	ErrNotAdmissible = errors.New("ucarima: decomposition is not admissible")
	// ErrNoComponent is returned when a component is absent from a
	// decomposition.
	ErrNoComponent = errors.New("ucarima: no such component")
)

// Kind identifies a component.
type Kind int

const (
	Trend Kind = iota
	Seasonal
	Transitory
	Irregular
)

func (k Kind) String() string {
	switch k {
	case Trend:
		return "trend"
	case Seasonal:
		return "seasonal"
	case Transitory:
		return "transitory"
	case Irregular:
		return "irregular"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Component is the ARIMA model AR(B)*Delta(B) c = MA(B) e with
// var(e) = Variance, in units of the innovation variance of the
// decomposed model.
type Component struct {
	Kind Kind
	// AR holds the stationary roots, Delta the unit roots.
	AR       polynomial.Polynomial
	Delta    polynomial.Polynomial
	MA       polynomial.Polynomial
	Variance float64
	// Spectrum is the numerator Variance*MA(B)*MA(F) of the pseudo-spectrum.
	Spectrum polynomial.Symmetric
}

// Denominator returns AR(B)*Delta(B).
func (c Component) Denominator() polynomial.Polynomial {
	return c.AR.Times(c.Delta)
}

// PseudoSpectrum returns the spectrum of the component at frequency w.
func (c Component) PseudoSpectrum(w float64) float64 {
	return c.Spectrum.At(w) / polynomial.SymmetricOf(c.Denominator()).At(w)
}

// IsWhiteNoise reports whether the component has no dynamics.
func (c Component) IsWhiteNoise() bool {
	return c.Denominator().Degree() == 0 && c.MA.Degree() == 0
}

// StateSpace returns the state-space form of the component.
func (c Component) StateSpace() (*ssf.StateSpace, error) {
	return ssf.ArimaFromPolynomials(c.AR, c.Delta, c.MA, c.Variance)
}

// Decomposition is the canonical decomposition of a model. The irregular is
// always the last component.
type Decomposition struct {
	Model      *arima.Model
	Components []Component
}

// Component returns the component of the given kind.
func (d *Decomposition) Component(k Kind) (Component, bool) {
	for _, c := range d.Components {
		if c.Kind == k {
			return c, true
		}
	}
	return Component{}, false
}

// Spectrum returns the sum of the component spectra at frequency w.
func (d *Decomposition) Spectrum(w float64) float64 {
	s := 0.0
	for _, c := range d.Components {
		s += c.PseudoSpectrum(w)
	}
	return s
}

const (
	DefaultModulus           = 0.5
	DefaultSeasonalTolerance = 2 * math.Pi / 180
	DefaultGrid              = 600
)

// Decomposer assigns the AR roots of a model to the components and computes
// the canonical decomposition. The zero value uses the defaults.
type Decomposer struct {
	// TrendModulus is the smallest inverse modulus of a real positive AR
	// root given to the trend.
	TrendModulus float64
	// SeasonalModulus is the smallest inverse modulus of an AR root at a
	// seasonal frequency given to the seasonal.
	SeasonalModulus float64
	// SeasonalTolerance is the largest distance, in radians, between the
	// argument of a seasonal root and a seasonal frequency.
	SeasonalTolerance float64
	// Grid is the number of frequencies of the search for spectral minima.
	Grid int
}

func (dc Decomposer) withDefaults() Decomposer {
	if dc.TrendModulus <= 0 {
		dc.TrendModulus = DefaultModulus
	}
	if dc.SeasonalModulus <= 0 {
		dc.SeasonalModulus = DefaultModulus
	}
	if dc.SeasonalTolerance <= 0 {
		dc.SeasonalTolerance = DefaultSeasonalTolerance
	}
	if dc.Grid <= 0 {
		dc.Grid = DefaultGrid
	}
	return dc
}

func (dc Decomposer) classify(r complex128, period int) Kind {
	rho := 1 / cmplx.Abs(r)
	w := math.Abs(cmplx.Phase(r))
	if w <= dc.SeasonalTolerance && rho >= dc.TrendModulus {
		return Trend
	}
	if period > 1 && rho >= dc.SeasonalModulus {
		for k := 1; k <= period/2; k++ {
			if math.Abs(w-2*math.Pi*float64(k)/float64(period)) <= dc.SeasonalTolerance {
				return Seasonal
			}
		}
	}
	return Transitory
}

// Decompose computes the canonical decomposition of m.
//
// The pseudo-spectrum MA(B)MA(F)/AR(B)AR(F) is split in partial fractions
// over the AR factors of the components. The minimum of each component
// spectrum is then moved to the irregular, which leaves every component
// but the irregular with a spectral zero.
func (dc Decomposer) Decompose(m *arima.Model) (*Decomposition, error) {
	dc = dc.withDefaults()
	spec := m.Spec()

	var roots [3][]complex128
	for _, p := range []polynomial.Polynomial{m.Phi(), m.SeasonalPhi()} {
		if p.Degree() == 0 {
			continue
		}
		rs, err := p.Roots()
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
			k := dc.classify(r, spec.Period)
			roots[k] = append(roots[k], r)
		}
	}
	deltas := [3]polynomial.Polynomial{
		polynomial.New(1, -1).Power(spec.Regular.D + spec.Seasonal.D),
		polynomial.One(),
		polynomial.One(),
	}
	if spec.Seasonal.D > 0 {
		sum := make(polynomial.Polynomial, spec.Period)
		for i := range sum {
			sum[i] = 1
		}
		deltas[Seasonal] = sum.Power(spec.Seasonal.D)
	}

	var comps []Component
	var dens []polynomial.Symmetric
	for k := Trend; k <= Transitory; k++ {
		c := Component{Kind: k, AR: polynomial.FromRoots(roots[k]), Delta: deltas[k]}
		if c.Denominator().Degree() == 0 {
			continue
		}
		comps = append(comps, c)
		dens = append(dens, polynomial.SymmetricOf(c.Denominator()))
	}

	num := polynomial.SymmetricOf(m.MA())
	q, irr, err := partialFractions(num, dens)
	if err != nil {
		return nil, err
	}
	for j := range comps {
		_, low := q[j].MinimumRatio(dens[j], dc.Grid)
		q[j] = q[j].Minus(dens[j].Scale(low))
		irr = irr.Plus(polynomial.Symmetric{low})
		comps[j].Spectrum = q[j]
		if comps[j].MA, comps[j].Variance, err = factorize(q[j]); err != nil {
			return nil, fmt.Errorf("%v: %w", comps[j].Kind, err)
		}
	}

	noise := Component{Kind: Irregular, AR: polynomial.One(), Delta: polynomial.One(), MA: polynomial.One()}
	if irr.Degree() == 0 {
		v := irr.Coefficient(0)
		if v < -1e-9 {
			return nil, fmt.Errorf("irregular variance %g: %w", v, ErrNotAdmissible)
		}
		noise.Variance = math.Max(v, 0)
		noise.Spectrum = polynomial.Symmetric{noise.Variance}
	} else {
		if _, low := irr.Minimum(dc.Grid); low < -1e-9 {
			return nil, fmt.Errorf("irregular spectrum minimum %g: %w", low, ErrNotAdmissible)
		}
		noise.Spectrum = irr
		if noise.MA, noise.Variance, err = factorize(irr); err != nil {
			return nil, fmt.Errorf("irregular: %w", err)
		}
	}
	return &Decomposition{Model: m, Components: append(comps, noise)}, nil
}

// factorize returns the MA polynomial and variance of a non-negative
// spectrum numerator; a null numerator gives a null variance.
func factorize(s polynomial.Symmetric) (polynomial.Polynomial, float64, error) {
	zero := true
	for _, c := range s {
		if math.Abs(c) > 1e-12 {
			zero = false
			break
		}
	}
	if zero {
		return polynomial.One(), 0, nil
	}
	ma, v, err := s.Factorize()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrNotAdmissible, err)
	}
	return ma, v, nil
}

// unit returns B^i + F^i, or 1 for i = 0.
func unit(i int) polynomial.Symmetric {
	s := make(polynomial.Symmetric, i+1)
	s[i] = 1
	return s
}

// partialFractions solves
//
//	num = rem*prod(den) + sum_j q_j*prod_{k!=j}(den_k)
//
// with deg q_j < deg den_j. The remainder is null unless num has at least
// the degree of prod(den).
func partialFractions(num polynomial.Symmetric, dens []polynomial.Symmetric) ([]polynomial.Symmetric, polynomial.Symmetric, error) {
	full := polynomial.Symmetric{1}
	others := make([]polynomial.Symmetric, len(dens))
	degD := 0
	for j, d := range dens {
		full = full.Times(d)
		degD += d.Degree()
		o := polynomial.Symmetric{1}
		for k, dk := range dens {
			if k != j {
				o = o.Times(dk)
			}
		}
		others[j] = o
	}
	degN := num.Degree()
	nrem := 0
	if degN >= degD {
		nrem = degN - degD + 1
	}
	size := max(degD-1, degN) + 1

	a := mat.NewDense(size, size, nil)
	col := 0
	setCol := func(s polynomial.Symmetric) {
		for i := 0; i < size; i++ {
			a.Set(i, col, s.Coefficient(i))
		}
		col++
	}
	for j, d := range dens {
		for i := 0; i < d.Degree(); i++ {
			setCol(unit(i).Times(others[j]))
		}
	}
	for i := 0; i < nrem; i++ {
		setCol(unit(i).Times(full))
	}
	b := make([]float64, size)
	for i := range b {
		b[i] = num.Coefficient(i)
	}

	ls, err := linalg.Solve(a, b, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("partial fractions: %w", err)
	}
	if len(ls.Redundant) > 0 {
		return nil, nil, fmt.Errorf("partial fractions: components share AR roots: %w", linalg.ErrSingularMatrix)
	}
	x := make([]float64, size)
	for k, j := range ls.Used {
		x[j] = ls.Coefficients[k]
	}

	q := make([]polynomial.Symmetric, len(dens))
	off := 0
	for j, d := range dens {
		q[j] = append(polynomial.Symmetric(nil), x[off:off+d.Degree()]...)
		off += d.Degree()
	}
	rem := polynomial.Symmetric{0}
	if nrem > 0 {
		rem = append(polynomial.Symmetric(nil), x[off:]...)
	}
	return q, rem, nil
}
