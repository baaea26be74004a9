package polynomial

import (
	"errors"
	"math"
	"math/cmplx"
	"sort"
)

// ErrNotFactorizable is returned when a symmetric filter is negative at some
// frequency and has no spectral factor.
var ErrNotFactorizable = errors.New("polynomial: symmetric filter is not positive")

// Symmetric is the filter c[0] + sum_k c[k]*(B^k + F^k), F = B^-1. The
// pseudo-spectrum of an ARMA model is a ratio of two of them.
type Symmetric []float64

// SymmetricOf returns p(B)*p(F).
func SymmetricOf(p Polynomial) Symmetric {
	n := len(p)
	s := make(Symmetric, n)
	for k := 0; k < n; k++ {
		for i := 0; i+k < n; i++ {
			s[k] += p[i] * p[i+k]
		}
	}
	return s
}

// Degree returns the largest k with c[k] != 0.
func (s Symmetric) Degree() int {
	return Polynomial(s).Degree()
}

// Coefficient returns c[|k|].
func (s Symmetric) Coefficient(k int) float64 {
	if k < 0 {
		k = -k
	}
	return Polynomial(s).Coefficient(k)
}

// Plus returns s+t.
func (s Symmetric) Plus(t Symmetric) Symmetric {
	return Symmetric(Polynomial(s).Plus(Polynomial(t)))
}

// Minus returns s-t.
func (s Symmetric) Minus(t Symmetric) Symmetric {
	return Symmetric(Polynomial(s).Minus(Polynomial(t)))
}

// Scale returns k*s.
func (s Symmetric) Scale(k float64) Symmetric {
	return Symmetric(Polynomial(s).Scale(k))
}

// Times returns the product of two symmetric filters.
func (s Symmetric) Times(t Symmetric) Symmetric {
	ls, lt := s.Laurent(), t.Laurent()
	full := Polynomial(ls).Times(Polynomial(lt))
	mid := len(s) - 1 + len(t) - 1
	out := make(Symmetric, mid+1)
	for k := 0; k <= mid; k++ {
		out[k] = full[mid+k]
	}
	return out
}

// Laurent returns the 2n+1 coefficients of B^-n..B^n.
func (s Symmetric) Laurent() []float64 {
	n := len(s) - 1
	out := make([]float64, 2*n+1)
	for k := 0; k <= n; k++ {
		out[n+k] = s[k]
		out[n-k] = s[k]
	}
	return out
}

// At evaluates the filter at frequency w (radians): c[0] + 2*sum c[k]*cos(k*w).
func (s Symmetric) At(w float64) float64 {
	v := 0.0
	for k := len(s) - 1; k > 0; k-- {
		v += s[k] * math.Cos(float64(k)*w)
	}
	return s.Coefficient(0) + 2*v
}

// Minimum returns the frequency in [0, pi] where the filter is smallest and
// the value there. A grid search of the given size is refined by golden
// section search around the best grid point.
func (s Symmetric) Minimum(grid int) (w, value float64) {
	if grid < 2 {
		grid = 2
	}
	step := math.Pi / float64(grid)
	best := 0
	value = s.At(0)
	for i := 1; i <= grid; i++ {
		if v := s.At(float64(i) * step); v < value {
			value, best = v, i
		}
	}
	lo := math.Max(0, float64(best-1)*step)
	hi := math.Min(math.Pi, float64(best+1)*step)
	w = goldenSection(s.At, lo, hi, 1e-12)
	if v := s.At(w); v < value {
		return w, v
	}
	return float64(best) * step, value
}

// MinimumRatio returns the frequency in [0, pi] where s/den is smallest and
// the value there. Frequencies where den vanishes are skipped.
func (s Symmetric) MinimumRatio(den Symmetric, grid int) (w, value float64) {
	if grid < 2 {
		grid = 2
	}
	f := func(w float64) float64 {
		d := den.At(w)
		if math.Abs(d) < 1e-12 {
			return math.Inf(1)
		}
		return s.At(w) / d
	}
	step := math.Pi / float64(grid)
	best := 0
	value = f(0)
	for i := 1; i <= grid; i++ {
		if v := f(float64(i) * step); v < value {
			value, best = v, i
		}
	}
	lo := math.Max(0, float64(best-1)*step)
	hi := math.Min(math.Pi, float64(best+1)*step)
	w = goldenSection(f, lo, hi, 1e-12)
	if v := f(w); v < value {
		return w, v
	}
	return float64(best) * step, value
}

func goldenSection(f func(float64) float64, a, b, tol float64) float64 {
	g := (math.Sqrt(5) - 1) / 2
	c := b - g*(b-a)
	d := a + g*(b-a)
	fc, fd := f(c), f(d)
	for b-a > tol {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - g*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + g*(b-a)
			fd = f(d)
		}
	}
	return (a + b) / 2
}

// Factorize finds the polynomial m with m[0] = 1 and roots outside or on the
// unit circle, and the scale v, such that v*m(B)*m(F) = s.
//
// The roots of B^n*s(B) come in pairs (r, 1/r). The factor keeps the root of
// larger modulus of each pair; roots on the unit circle are double and one of
// each pair is kept.
func (s Symmetric) Factorize() (Polynomial, float64, error) {
	n := s.Degree()
	if n == 0 {
		if s.Coefficient(0) <= 0 {
			return nil, 0, ErrNotFactorizable
		}
		return One(), s.Coefficient(0), nil
	}
	s = s[:n+1]
	roots, err := Polynomial(s.Laurent()).Roots()
	if err != nil {
		return nil, 0, err
	}

	const unitTol = 1e-6
	var outside, upper, real1 []complex128
	for _, r := range roots {
		m := cmplx.Abs(r)
		switch {
		case math.Abs(m-1) <= unitTol && math.Abs(imag(r)) <= unitTol:
			real1 = append(real1, complex(math.Copysign(1, real(r)), 0))
		case math.Abs(m-1) <= unitTol && imag(r) > 0:
			upper = append(upper, r/complex(m, 0))
		case math.Abs(m-1) <= unitTol:
		case m > 1:
			outside = append(outside, r)
		}
	}
	if len(upper)%2 != 0 || len(real1)%2 != 0 {
		return nil, 0, ErrNotFactorizable
	}
	selected := outside
	sortByArgument(upper)
	for i := 0; i < len(upper); i += 2 {
		selected = append(selected, upper[i], cmplx.Conj(upper[i]))
	}
	sort.Slice(real1, func(i, j int) bool { return real(real1[i]) < real(real1[j]) })
	for i := 0; i < len(real1); i += 2 {
		selected = append(selected, real1[i])
	}
	if len(selected) != n {
		return nil, 0, ErrNotFactorizable
	}

	m := FromRoots(selected)
	ss := 0.0
	for _, c := range m {
		ss += c * c
	}
	v := s.Coefficient(0) / ss
	if v <= 0 {
		return nil, 0, ErrNotFactorizable
	}
	return m, v, nil
}
