package ssf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type compositeDynamics struct {
	parts   []Dynamics
	dims    []int
	offsets []int
	n, k    int
	t, s    *mat.Dense // cached for time-invariant parts
}

func (c *compositeDynamics) IsTimeInvariant() bool {
	for _, p := range c.parts {
		if !p.IsTimeInvariant() {
			return false
		}
	}
	return true
}

func (c *compositeDynamics) T(t int) mat.Matrix {
	if c.t != nil {
		return c.t
	}
	m := mat.NewDense(c.n, c.n, nil)
	for i, p := range c.parts {
		o, d := c.offsets[i], c.dims[i]
		m.Slice(o, o+d, o, o+d).(*mat.Dense).Copy(p.T(t))
	}
	return m
}

func (c *compositeDynamics) S(t int) mat.Matrix {
	if c.s != nil {
		return c.s
	}
	m := mat.NewDense(c.n, c.k, nil)
	col := 0
	for i, p := range c.parts {
		o, d := c.offsets[i], c.dims[i]
		st := p.S(t)
		_, kc := st.Dims()
		m.Slice(o, o+d, col, col+kc).(*mat.Dense).Copy(st)
		col += kc
	}
	return m
}

func (c *compositeDynamics) TX(t int, x []float64) {
	for i, p := range c.parts {
		p.TX(t, x[c.offsets[i]:c.offsets[i]+c.dims[i]])
	}
}

func (c *compositeDynamics) XT(t int, x []float64) {
	for i, p := range c.parts {
		p.XT(t, x[c.offsets[i]:c.offsets[i]+c.dims[i]])
	}
}

type compositeMeasurement struct {
	parts   []Measurement
	offsets []int
	z       []float64
	h       float64
	varying bool
}

func (c *compositeMeasurement) Z(t int) []float64 {
	if !c.varying {
		return c.z
	}
	z := make([]float64, len(c.z))
	for i, p := range c.parts {
		copy(z[c.offsets[i]:], p.Z(t))
	}
	return z
}

func (c *compositeMeasurement) H(t int) float64 {
	h := c.h
	for _, p := range c.parts {
		h += p.H(t)
	}
	return h
}

// Composite stacks independent systems whose observations add up, plus a
// measurement error of variance h. The state of part i starts at offsets[i].
// Loadings are assumed time-invariant unless varyingZ is set.
func Composite(h float64, varyingZ bool, parts ...*StateSpace) (*StateSpace, []int, error) {
	if len(parts) == 0 {
		return nil, nil, fmt.Errorf("no component: %w", ErrInvalidSystem)
	}
	dyn := &compositeDynamics{}
	meas := &compositeMeasurement{h: h, varying: varyingZ}
	var a0 []float64
	for _, p := range parts {
		if err := p.Validate(); err != nil {
			return nil, nil, err
		}
		dyn.parts = append(dyn.parts, p.Dynamics)
		dyn.dims = append(dyn.dims, p.Dim())
		dyn.offsets = append(dyn.offsets, dyn.n)
		_, kc := p.S(0).Dims()
		dyn.n += p.Dim()
		dyn.k += kc
		meas.parts = append(meas.parts, p.Measurement)
		meas.z = append(meas.z, p.Z(0)...)
		a0 = append(a0, p.Init.A0...)
	}
	meas.offsets = dyn.offsets
	if dyn.IsTimeInvariant() {
		dyn.t = dyn.T(0).(*mat.Dense)
		dyn.s = dyn.S(0).(*mat.Dense)
	}

	pf0 := mat.NewSymDense(dyn.n, nil)
	nd := 0
	for _, p := range parts {
		nd += p.DiffuseDim()
	}
	var b0 *mat.Dense
	if nd > 0 {
		b0 = mat.NewDense(dyn.n, nd, nil)
	}
	col := 0
	for i, p := range parts {
		o, d := dyn.offsets[i], dyn.dims[i]
		for r := 0; r < d; r++ {
			for c := r; c < d; c++ {
				pf0.SetSym(o+r, o+c, p.Init.Pf0.At(r, c))
			}
		}
		if k := p.DiffuseDim(); k > 0 {
			b0.Slice(o, o+d, col, col+k).(*mat.Dense).Copy(p.Init.B0)
			col += k
		}
	}

	sys := &StateSpace{
		Dynamics:    dyn,
		Measurement: meas,
		Init:        Initialization{A0: a0, Pf0: pf0, B0: b0},
	}
	return sys, dyn.offsets, sys.Validate()
}
