package polynomial

import (
	"errors"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrZeroPolynomial is returned when an operation needs a non-zero
// polynomial.
var ErrZeroPolynomial = errors.New("polynomial: zero polynomial")

// Epsilon is the magnitude below which a leading coefficient is considered
// zero.
const Epsilon = 1e-13

// Polynomial holds coefficients in increasing powers of B.
type Polynomial []float64

// One returns the constant polynomial 1.
func One() Polynomial { return Polynomial{1} }

// New returns the polynomial with the given coefficients.
func New(c ...float64) Polynomial {
	return append(Polynomial(nil), c...)
}

// OnePlus returns 1 + c[0]*B + c[1]*B^2 + ...; this is how the coefficient
// blocks of an ARIMA model become polynomials.
func OnePlus(c []float64) Polynomial {
	p := make(Polynomial, len(c)+1)
	p[0] = 1
	copy(p[1:], c)
	return p
}

// Degree returns the degree, ignoring trailing zeros. The zero polynomial has
// degree 0.
func (p Polynomial) Degree() int {
	for i := len(p) - 1; i > 0; i-- {
		if math.Abs(p[i]) > Epsilon {
			return i
		}
	}
	return 0
}

// Trim drops the trailing (near) zero coefficients.
func (p Polynomial) Trim() Polynomial {
	if len(p) == 0 {
		return Polynomial{0}
	}
	return append(Polynomial(nil), p[:p.Degree()+1]...)
}

// Coefficient returns c[i], or 0 beyond the degree.
func (p Polynomial) Coefficient(i int) float64 {
	if i < 0 || i >= len(p) {
		return 0
	}
	return p[i]
}

// Tail returns the coefficients of B^1..B^n, the parameter block of an
// ARIMA polynomial.
func (p Polynomial) Tail() []float64 {
	if len(p) <= 1 {
		return nil
	}
	return append([]float64(nil), p[1:p.Degree()+1]...)
}

// IsZero reports whether every coefficient is (near) zero.
func (p Polynomial) IsZero() bool {
	for _, c := range p {
		if math.Abs(c) > Epsilon {
			return false
		}
	}
	return true
}

// At evaluates p at x (Horner).
func (p Polynomial) At(x float64) float64 {
	s := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		s = s*x + p[i]
	}
	return s
}

// AtComplex evaluates p at z.
func (p Polynomial) AtComplex(z complex128) complex128 {
	var s complex128
	for i := len(p) - 1; i >= 0; i-- {
		s = s*z + complex(p[i], 0)
	}
	return s
}

// Times returns p*q.
func (p Polynomial) Times(q Polynomial) Polynomial {
	if len(p) == 0 || len(q) == 0 {
		return Polynomial{0}
	}
	r := make(Polynomial, len(p)+len(q)-1)
	for i, a := range p {
		if a == 0 {
			continue
		}
		for j, b := range q {
			r[i+j] += a * b
		}
	}
	return r
}

// Plus returns p+q.
func (p Polynomial) Plus(q Polynomial) Polynomial {
	n := max(len(p), len(q))
	r := make(Polynomial, n)
	copy(r, p)
	for i, b := range q {
		r[i] += b
	}
	return r
}

// Minus returns p-q.
func (p Polynomial) Minus(q Polynomial) Polynomial {
	return p.Plus(q.Scale(-1))
}

// Scale returns k*p.
func (p Polynomial) Scale(k float64) Polynomial {
	r := append(Polynomial(nil), p...)
	floats.Scale(k, r)
	return r
}

// Power returns p^n for n >= 0.
func (p Polynomial) Power(n int) Polynomial {
	r := One()
	for i := 0; i < n; i++ {
		r = r.Times(p)
	}
	return r
}

// Seasonal returns p(B^s).
func (p Polynomial) Seasonal(s int) Polynomial {
	if s <= 1 {
		return append(Polynomial(nil), p...)
	}
	r := make(Polynomial, (len(p)-1)*s+1)
	for i, c := range p {
		r[i*s] = c
	}
	return r
}

// Divide returns the quotient and remainder of p/q.
func (p Polynomial) Divide(q Polynomial) (quo, rem Polynomial, err error) {
	q = q.Trim()
	if q.IsZero() {
		return nil, nil, ErrZeroPolynomial
	}
	dq := q.Degree()
	rem = p.Trim()
	dp := rem.Degree()
	if dp < dq {
		return Polynomial{0}, rem, nil
	}
	quo = make(Polynomial, dp-dq+1)
	lead := q[dq]
	for i := dp - dq; i >= 0; i-- {
		c := rem[i+dq] / lead
		quo[i] = c
		for j := 0; j <= dq; j++ {
			rem[i+j] -= c * q[j]
		}
	}
	if dq == 0 {
		return quo, Polynomial{0}, nil
	}
	return quo, rem[:dq].Trim(), nil
}

// Expand returns the first n coefficients of the power series num/den.
// den[0] must be non-zero.
func Expand(num, den Polynomial, n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	d0 := den[0]
	for k := 0; k < n; k++ {
		s := num.Coefficient(k)
		for i := 1; i < len(den) && i <= k; i++ {
			s -= den[i] * out[k-i]
		}
		out[k] = s / d0
	}
	return out
}

// Roots returns the roots of p, computed as the eigenvalues of the companion
// matrix. Constant polynomials have no roots.
func (p Polynomial) Roots() ([]complex128, error) {
	p = p.Trim()
	n := p.Degree()
	switch {
	case n == 0 && p.IsZero():
		return nil, ErrZeroPolynomial
	case n == 0:
		return nil, nil
	case n == 1:
		return []complex128{complex(-p[0]/p[1], 0)}, nil
	}
	lead := p[n]
	c := mat.NewDense(n, n, nil)
	for i := 1; i < n; i++ {
		c.Set(i, i-1, 1)
	}
	for i := 0; i < n; i++ {
		c.Set(i, n-1, -p[i]/lead)
	}
	var eig mat.Eigen
	if !eig.Factorize(c, mat.EigenNone) {
		return nil, errors.New("polynomial: eigenvalue decomposition failed")
	}
	return eig.Values(nil), nil
}

// FromRoots returns c * prod(1 - B/r_i), with c[0] = 1. Conjugate pairs are
// expected for complex roots; the imaginary residue is discarded.
func FromRoots(roots []complex128) Polynomial {
	acc := []complex128{1}
	for _, r := range roots {
		next := make([]complex128, len(acc)+1)
		inv := -1 / r
		for i, a := range acc {
			next[i] += a
			next[i+1] += a * inv
		}
		acc = next
	}
	p := make(Polynomial, len(acc))
	for i, a := range acc {
		p[i] = real(a)
	}
	return p
}

// IsStable reports whether every root of p lies strictly outside the circle
// of the given radius (1 for stationarity/invertibility). Order one is
// checked without root finding.
func (p Polynomial) IsStable(radius float64) bool {
	p = p.Trim()
	switch p.Degree() {
	case 0:
		return !p.IsZero()
	case 1:
		return math.Abs(p[1]/p[0]) < 1/radius
	}
	roots, err := p.Roots()
	if err != nil {
		return false
	}
	for _, r := range roots {
		if cmplx.Abs(r) <= radius {
			return false
		}
	}
	return true
}

// Stabilize reflects the roots inside the unit circle (r -> 1/conj(r)) and
// pushes roots whose modulus is below minModulus out to minModulus. The
// constant term is preserved. The second result reports whether p changed.
func (p Polynomial) Stabilize(minModulus float64) (Polynomial, bool, error) {
	p = p.Trim()
	if p.Degree() == 0 {
		return p, false, nil
	}
	roots, err := p.Roots()
	if err != nil {
		return nil, false, err
	}
	changed := false
	for i, r := range roots {
		m := cmplx.Abs(r)
		if m < 1 {
			r = 1 / cmplx.Conj(r)
			m = 1 / m
			changed = true
		}
		if m < minModulus {
			r *= complex(minModulus/m, 0)
			changed = true
		}
		roots[i] = r
	}
	if !changed {
		return p, false, nil
	}
	return FromRoots(roots).Scale(p[0]), true, nil
}

// SplitRoots partitions the roots of p by a predicate, returning the monic
// (c[0] = 1) factors built on the selected and on the remaining roots. The
// scale p[0] is left on the second factor.
func (p Polynomial) SplitRoots(selected func(complex128) bool) (Polynomial, Polynomial, error) {
	roots, err := p.Roots()
	if err != nil {
		return nil, nil, err
	}
	var in, out []complex128
	for _, r := range roots {
		if selected(r) {
			in = append(in, r)
		} else {
			out = append(out, r)
		}
	}
	return FromRoots(in), FromRoots(out).Scale(p.Trim()[0]), nil
}

// EqualApprox reports whether p and q agree within tol, ignoring trailing
// zeros.
func (p Polynomial) EqualApprox(q Polynomial, tol float64) bool {
	n := max(len(p), len(q))
	for i := 0; i < n; i++ {
		if math.Abs(p.Coefficient(i)-q.Coefficient(i)) > tol {
			return false
		}
	}
	return true
}

// sortByArgument orders roots by their complex argument.
func sortByArgument(roots []complex128) {
	sort.Slice(roots, func(i, j int) bool {
		return cmplx.Phase(roots[i]) < cmplx.Phase(roots[j])
	})
}

// Apply filters x with p(B): out[t] = sum_i c[i]*x[t+deg-i], for the
// len(x)-deg positions where every lag is available. A NaN input makes the
// affected outputs NaN.
func (p Polynomial) Apply(x []float64) []float64 {
	d := p.Degree()
	if len(x) <= d {
		return nil
	}
	out := make([]float64, len(x)-d)
	for t := range out {
		s := 0.0
		for i := 0; i <= d; i++ {
			if p[i] != 0 {
				s += p[i] * x[t+d-i]
			}
		}
		out[t] = s
	}
	return out
}
