package ssf

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"tsadjust/linalg"
)

// ErrInvalidSystem is returned when the matrices of a system do not conform.
var ErrInvalidSystem = errors.New("ssf: invalid system")

// Dynamics is the transition equation.
type Dynamics interface {
	// IsTimeInvariant reports whether T and S do not depend on t.
	IsTimeInvariant() bool
	// T returns the transition matrix at t. It must not be modified.
	T(t int) mat.Matrix
	// S returns the factor of the state noise covariance at t, V = S*S'.
	S(t int) mat.Matrix
	// TX replaces x by T(t)*x.
	TX(t int, x []float64)
	// XT replaces x by T(t)'*x.
	XT(t int, x []float64)
}

// Measurement is the observation equation.
type Measurement interface {
	// Z returns the loading at t. It must not be modified.
	Z(t int) []float64
	// H returns the variance of the measurement error at t.
	H(t int) float64
}

// Initialization is the distribution of the first state.
type Initialization struct {
	A0  []float64
	Pf0 *mat.SymDense
	// B0 is nil when the system has no diffuse part.
	B0 *mat.Dense
}

// StateSpace bundles the three parts of a system. It is read-only once
// built.
type StateSpace struct {
	Dynamics
	Measurement
	Init Initialization
}

// Dim returns the state dimension.
func (s *StateSpace) Dim() int { return len(s.Init.A0) }

// DiffuseDim returns the number of diffuse initial directions.
func (s *StateSpace) DiffuseDim() int {
	if s.Init.B0 == nil || s.Init.B0.IsEmpty() {
		return 0
	}
	_, c := s.Init.B0.Dims()
	return c
}

// Validate checks that every matrix conforms with the state dimension.
func (s *StateSpace) Validate() error {
	n := s.Dim()
	if n == 0 {
		return fmt.Errorf("empty state: %w", ErrInvalidSystem)
	}
	if s.Init.Pf0 == nil || s.Init.Pf0.SymmetricDim() != n {
		return fmt.Errorf("initial covariance does not match a state of size %d: %w", n, ErrInvalidSystem)
	}
	if s.DiffuseDim() > 0 {
		if r, _ := s.Init.B0.Dims(); r != n {
			return fmt.Errorf("diffuse factor has %d rows for a state of size %d: %w", r, n, ErrInvalidSystem)
		}
	}
	if r, c := s.T(0).Dims(); r != n || c != n {
		return fmt.Errorf("transition is %dx%d for a state of size %d: %w", r, c, n, ErrInvalidSystem)
	}
	if r, _ := s.S(0).Dims(); r != n {
		return fmt.Errorf("noise factor has %d rows for a state of size %d: %w", r, n, ErrInvalidSystem)
	}
	if len(s.Z(0)) != n {
		return fmt.Errorf("loading has %d elements for a state of size %d: %w", len(s.Z(0)), n, ErrInvalidSystem)
	}
	return nil
}

// ZX returns Z(t)'x.
func (s *StateSpace) ZX(t int, x []float64) float64 {
	z := s.Z(t)
	v := 0.0
	for i, zi := range z {
		if zi != 0 {
			v += zi * x[i]
		}
	}
	return v
}

// TM replaces m by T(t)*m, column by column.
func (s *StateSpace) TM(t int, m *mat.Dense) {
	r, c := m.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		s.TX(t, col)
		m.SetCol(j, col)
	}
}

// V returns the state noise covariance S(t)*S(t)'.
func (s *StateSpace) V(t int) *mat.SymDense {
	return linalg.XXt(s.S(t))
}

// TVT replaces p by T(t)*p*T(t)' + V(t).
func (s *StateSpace) TVT(t int, p *mat.SymDense) {
	n := p.SymmetricDim()
	tp := mat.NewDense(n, n, nil)
	tp.Copy(p)
	s.TM(t, tp)
	// (T*P)*T' = T*(T*P)' as P is symmetric
	tpt := mat.DenseCopyOf(tp.T())
	s.TM(t, tpt)
	tpt.Add(tpt, s.V(t))
	linalg.Symmetrize(p, tpt)
}

// Matrices is a time-invariant system given by dense matrices.
type Matrices struct {
	Tm *mat.Dense
	Sm *mat.Dense
	Zv []float64
	Hv float64
}

// IsTimeInvariant is always true.
func (m *Matrices) IsTimeInvariant() bool { return true }

// T returns Tm.
func (m *Matrices) T(int) mat.Matrix { return m.Tm }

// S returns Sm.
func (m *Matrices) S(int) mat.Matrix { return m.Sm }

// TX replaces x by Tm*x.
func (m *Matrices) TX(_ int, x []float64) {
	n := len(x)
	var y mat.VecDense
	y.MulVec(m.Tm, mat.NewVecDense(n, x))
	copy(x, y.RawVector().Data)
}

// XT replaces x by Tm'*x.
func (m *Matrices) XT(_ int, x []float64) {
	n := len(x)
	var y mat.VecDense
	y.MulVec(m.Tm.T(), mat.NewVecDense(n, x))
	copy(x, y.RawVector().Data)
}

// Z returns Zv.
func (m *Matrices) Z(int) []float64 { return m.Zv }

// H returns Hv.
func (m *Matrices) H(int) float64 { return m.Hv }

// New builds a time-invariant system from dense matrices. b0 may be nil.
func New(t, s *mat.Dense, z []float64, h float64, a0 []float64, pf0 *mat.SymDense, b0 *mat.Dense) (*StateSpace, error) {
	m := &Matrices{Tm: t, Sm: s, Zv: z, Hv: h}
	sys := &StateSpace{
		Dynamics:    m,
		Measurement: m,
		Init:        Initialization{A0: a0, Pf0: pf0, B0: b0},
	}
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	return sys, nil
}
