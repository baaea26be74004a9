package arima

import (
	"errors"
	"fmt"
	"math"

	"tsadjust/polynomial"
)

// ErrOutOfDomain is returned when a point maps to a non-stationary or
// non-invertible model.
var ErrOutOfDomain = errors.New("arima: parameters out of domain")

// Mapping converts between a point of the optimization domain and the flat
// parameter vector of a model.
type Mapping interface {
	// Dim is the dimension of the domain.
	Dim() int
	// ToParameters maps a domain point to model parameters.
	ToParameters(x []float64) ([]float64, error)
	// FromParameters maps model parameters to a domain point.
	FromParameters(p []float64) ([]float64, error)
	// Validate reports whether x is inside the domain.
	Validate(x []float64) error
}

// DirectMapping uses the parameters themselves as the domain. Order-one
// blocks must satisfy |c| < 1 and longer blocks must have their roots
// outside the unit circle.
//
// Fixed holds one value per model parameter; NaN marks a free parameter and
// a nil slice leaves every parameter free. Only the free parameters are part
// of the domain.
type DirectMapping struct {
	Spec  Spec
	Fixed []float64
}

// Dim returns the number of free parameters.
func (d DirectMapping) Dim() int {
	return len(freeIndices(d.Spec, d.Fixed))
}

// ToParameters merges x with the fixed values and validates the result.
func (d DirectMapping) ToParameters(x []float64) ([]float64, error) {
	p, err := mergeFixed(d.Spec, d.Fixed, x)
	if err != nil {
		return nil, err
	}
	if err := validateBlocks(d.Spec, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FromParameters extracts the free parameters.
func (d DirectMapping) FromParameters(p []float64) ([]float64, error) {
	if len(p) != d.Spec.ParameterCount() {
		return nil, fmt.Errorf("%d parameters for %v: %w", len(p), d.Spec, ErrInvalidSpec)
	}
	idx := freeIndices(d.Spec, d.Fixed)
	x := make([]float64, len(idx))
	for i, j := range idx {
		x[i] = p[j]
	}
	return x, nil
}

// Validate checks x against the stationarity and invertibility regions.
func (d DirectMapping) Validate(x []float64) error {
	_, err := d.ToParameters(x)
	return err
}

// StationaryMapping maps R^n onto the stationary and invertible region. Each
// block is parametrized by its partial autocorrelations r_i = tanh(x_i),
// turned into coefficients by the Durbin-Levinson recursion. Every point of
// R^n is valid, which suits unconstrained minimizers.
type StationaryMapping struct {
	Spec Spec
}

// Dim returns the number of parameters.
func (s StationaryMapping) Dim() int { return s.Spec.ParameterCount() }

// ToParameters maps x to stationary and invertible parameters.
func (s StationaryMapping) ToParameters(x []float64) ([]float64, error) {
	if len(x) != s.Dim() {
		return nil, fmt.Errorf("%d values for %d parameters: %w", len(x), s.Dim(), ErrInvalidSpec)
	}
	p := make([]float64, len(x))
	for _, b := range s.Spec.Blocks() {
		if b.Len == 0 {
			continue
		}
		r := make([]float64, b.Len)
		for i := range r {
			r[i] = math.Tanh(x[b.Offset+i])
		}
		copy(p[b.Offset:], pacfToCoefficients(r))
	}
	return p, nil
}

// FromParameters maps stationary and invertible parameters back to R^n.
func (s StationaryMapping) FromParameters(p []float64) ([]float64, error) {
	if len(p) != s.Dim() {
		return nil, fmt.Errorf("%d values for %d parameters: %w", len(p), s.Dim(), ErrInvalidSpec)
	}
	x := make([]float64, len(p))
	for _, b := range s.Spec.Blocks() {
		if b.Len == 0 {
			continue
		}
		r, err := coefficientsToPACF(p[b.Offset : b.Offset+b.Len])
		if err != nil {
			return nil, err
		}
		for i, v := range r {
			x[b.Offset+i] = math.Atanh(v)
		}
	}
	return x, nil
}

// Validate only checks the dimension: the whole space is valid.
func (s StationaryMapping) Validate(x []float64) error {
	if len(x) != s.Dim() {
		return fmt.Errorf("%d values for %d parameters: %w", len(x), s.Dim(), ErrInvalidSpec)
	}
	return nil
}

// pacfToCoefficients runs the Durbin-Levinson recursion and returns the
// coefficients c of 1 + c1*B + ... + ck*B^k.
func pacfToCoefficients(r []float64) []float64 {
	k := len(r)
	a := make([]float64, k)
	prev := make([]float64, k)
	for j := 0; j < k; j++ {
		copy(prev, a)
		a[j] = r[j]
		for i := 0; i < j; i++ {
			a[i] = prev[i] - r[j]*prev[j-1-i]
		}
	}
	c := make([]float64, k)
	for i, v := range a {
		c[i] = -v
	}
	return c
}

// coefficientsToPACF inverts pacfToCoefficients.
func coefficientsToPACF(c []float64) ([]float64, error) {
	k := len(c)
	a := make([]float64, k)
	for i, v := range c {
		a[i] = -v
	}
	r := make([]float64, k)
	for j := k - 1; j >= 0; j-- {
		rj := a[j]
		if math.Abs(rj) >= 1 {
			return nil, ErrOutOfDomain
		}
		r[j] = rj
		d := 1 - rj*rj
		prev := make([]float64, j)
		for i := 0; i < j; i++ {
			prev[i] = (a[i] + rj*a[j-1-i]) / d
		}
		copy(a, prev)
	}
	return r, nil
}

// Stabilize reflects the roots of every unstable block outside the unit
// circle, to a modulus of at least minModulus (> 1). The second result
// reports whether any block changed.
func Stabilize(m *Model, minModulus float64) (*Model, bool, error) {
	p := m.Parameters()
	changed := false
	for _, b := range m.spec.Blocks() {
		if b.Len == 0 {
			continue
		}
		poly := polynomial.OnePlus(p[b.Offset : b.Offset+b.Len])
		if poly.IsStable(minModulus) {
			continue
		}
		s, ok, err := poly.Stabilize(minModulus)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		for i := 0; i < b.Len; i++ {
			p[b.Offset+i] = s.Coefficient(i+1) / s[0]
		}
		changed = true
	}
	if !changed {
		return m, false, nil
	}
	sm, err := m.WithParameters(p)
	return sm, true, err
}

func validateBlocks(spec Spec, p []float64) error {
	for _, b := range spec.Blocks() {
		if b.Len == 0 {
			continue
		}
		c := p[b.Offset : b.Offset+b.Len]
		for _, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("non-finite parameter: %w", ErrOutOfDomain)
			}
		}
		if !polynomial.OnePlus(c).IsStable(1) {
			return fmt.Errorf("block %d %v: %w", b.Kind, c, ErrOutOfDomain)
		}
	}
	return nil
}

func freeIndices(spec Spec, fixed []float64) []int {
	n := spec.ParameterCount()
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if fixed == nil || math.IsNaN(fixed[i]) {
			idx = append(idx, i)
		}
	}
	return idx
}

func mergeFixed(spec Spec, fixed, x []float64) ([]float64, error) {
	n := spec.ParameterCount()
	if fixed != nil && len(fixed) != n {
		return nil, fmt.Errorf("%d fixed values for %d parameters: %w", len(fixed), n, ErrInvalidSpec)
	}
	idx := freeIndices(spec, fixed)
	if len(x) != len(idx) {
		return nil, fmt.Errorf("%d values for %d free parameters: %w", len(x), len(idx), ErrInvalidSpec)
	}
	p := make([]float64, n)
	copy(p, fixed)
	for i, j := range idx {
		p[j] = x[i]
	}
	return p, nil
}
