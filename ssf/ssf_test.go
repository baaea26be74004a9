package ssf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"tsadjust/arima"
	"tsadjust/polynomial"
)

func TestArmaStationaryInitialization(t *testing.T) {
	a := &arima.ArmaModel{AR: polynomial.New(1, -0.6, 0.2), MA: polynomial.New(1, 0.4), Variance: 2}
	s, err := Arma(a)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Equal(t, 2, s.Dim())
	assert.Equal(t, 0, s.DiffuseDim())

	gamma, err := a.AutoCovariance(2)
	require.NoError(t, err)
	assert.InDelta(t, gamma[0], s.Init.Pf0.At(0, 0), 1e-12)
	assert.InDelta(t, gamma[1], s.Init.Pf0.At(0, 1), 1e-12)

	// the stationary covariance solves P = T*P*T' + V
	p := mat.NewSymDense(2, nil)
	p.CopySym(s.Init.Pf0)
	s.TVT(0, p)
	assert.True(t, mat.EqualApprox(p, s.Init.Pf0, 1e-12))
}

func TestCompanionProducts(t *testing.T) {
	m, err := arima.NewModel(arima.Spec{Regular: arima.Order{P: 2, D: 1, Q: 2}, Period: 1}, []float64{-0.3, 0.1, 0.5, -0.2})
	require.NoError(t, err)
	s, err := Arima(m)
	require.NoError(t, err)
	require.Equal(t, 3, s.Dim())

	x := []float64{1, -2, 0.5}
	want := mat.NewVecDense(3, nil)
	want.MulVec(s.T(0), mat.NewVecDense(3, append([]float64(nil), x...)))
	got := append([]float64(nil), x...)
	s.TX(0, got)
	assert.InDeltaSlice(t, want.RawVector().Data, got, 1e-15)

	want.MulVec(s.T(0).T(), mat.NewVecDense(3, append([]float64(nil), x...)))
	got = append([]float64(nil), x...)
	s.XT(0, got)
	assert.InDeltaSlice(t, want.RawVector().Data, got, 1e-15)
}

func TestRandomWalk(t *testing.T) {
	m, err := arima.NewModel(arima.Spec{Regular: arima.Order{D: 1}, Period: 1}, nil)
	require.NoError(t, err)
	s, err := Arima(m)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Dim())
	assert.Equal(t, 1, s.DiffuseDim())
	assert.InDelta(t, 1, s.T(0).At(0, 0), 0)
	assert.InDelta(t, 1, s.Init.Pf0.At(0, 0), 0)
	assert.InDelta(t, 1, s.Init.B0.At(0, 0), 0)
}

func TestDiffuseFactor(t *testing.T) {
	// y(t) = 2y(t-1) - y(t-2)
	b := diffuseFactor(polynomial.New(1, -1).Power(2), 3)
	assert.Equal(t, []float64{2, -1}, mat.Row(nil, 0, b))
	assert.Equal(t, []float64{3, -2}, mat.Row(nil, 1, b))
	assert.Equal(t, []float64{4, -3}, mat.Row(nil, 2, b))
}

func TestAirlineForm(t *testing.T) {
	m, err := arima.NewModel(arima.Airline(12), []float64{-0.8, -0.6})
	require.NoError(t, err)
	s, err := Arima(m)
	require.NoError(t, err)
	assert.Equal(t, 14, s.Dim())
	assert.Equal(t, 13, s.DiffuseDim())

	psi := m.Psi(14)
	assert.InDeltaSlice(t, psi, mat.Col(nil, 0, s.S(0)), 1e-12)

	// Pf0 is positive semi-definite
	var eig mat.EigenSym
	require.True(t, eig.Factorize(s.Init.Pf0, false))
	for _, v := range eig.Values(nil) {
		assert.GreaterOrEqual(t, v, -1e-10)
	}
}

func TestComposite(t *testing.T) {
	rw, err := ArimaFromPolynomials(polynomial.One(), polynomial.New(1, -1), polynomial.One(), 0.5)
	require.NoError(t, err)
	ar, err := Arma(&arima.ArmaModel{AR: polynomial.New(1, -0.7), MA: polynomial.New(1, 0.3), Variance: 2})
	require.NoError(t, err)

	c, offsets, err := Composite(0.25, false, rw, ar)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, offsets)
	assert.Equal(t, 3, c.Dim())
	assert.Equal(t, 1, c.DiffuseDim())
	assert.Equal(t, []float64{1, 1, 0}, c.Z(0))
	assert.InDelta(t, 0.25, c.H(0), 0)

	x := []float64{1, 2, 3}
	want := mat.NewVecDense(3, nil)
	want.MulVec(c.T(0), mat.NewVecDense(3, append([]float64(nil), x...)))
	c.TX(0, x)
	assert.InDeltaSlice(t, want.RawVector().Data, x, 1e-15)

	v := c.V(0)
	assert.InDelta(t, 0.5, v.At(0, 0), 1e-15)
	assert.InDelta(t, 0, v.At(0, 1), 1e-15)
	assert.InDelta(t, ar.V(0).At(1, 1), v.At(2, 2), 1e-15)
}
