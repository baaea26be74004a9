package arima

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"airline", Airline(12), false},
		{"arma", Spec{Regular: Order{P: 2, Q: 1}, Period: 1}, false},
		{"negative", Spec{Regular: Order{P: -1}, Period: 1}, true},
		{"no period", Spec{Regular: Order{P: 1}}, true},
		{"seasonal without period", Spec{Seasonal: Order{D: 1}, Period: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSpec)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSpecCounts(t *testing.T) {
	s := Spec{Regular: Order{P: 1, D: 1, Q: 2}, Seasonal: Order{P: 1, D: 1, Q: 1}, Period: 4}
	assert.Equal(t, 5, s.ParameterCount())
	assert.Equal(t, 5, s.DifferencingOrder())
	assert.Equal(t, 5, s.ArOrder())
	assert.Equal(t, 6, s.MaOrder())
	assert.Equal(t, "(1,1,2)(1,1,1)4", s.String())
}

func TestNewModelParameterCount(t *testing.T) {
	_, err := NewModel(Airline(12), []float64{-0.8})
	assert.ErrorIs(t, err, ErrInvalidSpec)

	m, err := NewModel(Airline(12), []float64{-0.8, -0.6})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.8}, m.Block(RegularMA))
	assert.Equal(t, []float64{-0.6}, m.Block(SeasonalMA))
	assert.Equal(t, 13, m.MA().Degree())
	assert.Equal(t, 13, m.Differencing().Degree())
}

func TestAutoCovariance(t *testing.T) {
	tests := []struct {
		name string
		arma ArmaModel
		want []float64
	}{
		{
			name: "ar1",
			arma: ArmaModel{AR: []float64{1, -0.5}, MA: []float64{1}, Variance: 1},
			want: []float64{4.0 / 3, 2.0 / 3, 1.0 / 3, 1.0 / 6},
		},
		{
			name: "ma1",
			arma: ArmaModel{AR: []float64{1}, MA: []float64{1, 0.4}, Variance: 2},
			want: []float64{2.32, 0.8, 0, 0},
		},
		{
			name: "arma11",
			arma: ArmaModel{AR: []float64{1, -0.5}, MA: []float64{1, 0.4}, Variance: 1},
			want: []float64{2.08, 1.44, 0.72, 0.36},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.arma.AutoCovariance(len(tt.want))
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestAutoCovarianceNotStationary(t *testing.T) {
	a := ArmaModel{AR: []float64{1, -1}, MA: []float64{1}, Variance: 1}
	_, err := a.AutoCovariance(3)
	assert.ErrorIs(t, err, ErrNotStationary)
}

func TestAutoCovarianceMatchesPsi(t *testing.T) {
	// gamma(k) = sum_j psi(j) psi(j+k) for a stationary model
	a := ArmaModel{AR: []float64{1, -0.3, 0.2}, MA: []float64{1, 0.5, -0.2}, Variance: 1}
	psi := a.Psi(400)
	got, err := a.AutoCovariance(5)
	require.NoError(t, err)
	for k := 0; k < 5; k++ {
		s := 0.0
		for j := 0; j+k < len(psi); j++ {
			s += psi[j] * psi[j+k]
		}
		assert.InDelta(t, s, got[k], 1e-10)
	}
}

func TestPsi(t *testing.T) {
	// AR(1): response of y to a unit shock decays like 0.5^h
	m, err := NewModel(Spec{Regular: Order{P: 1}, Period: 1}, []float64{-0.5})
	require.NoError(t, err)
	psi := m.Psi(5)
	for h, v := range psi {
		assert.InDelta(t, math.Pow(0.5, float64(h)), v, 1e-15)
	}

	air, err := NewModel(Airline(12), []float64{-0.8, -0.6})
	require.NoError(t, err)
	psi = air.Psi(14)
	assert.InDelta(t, 1, psi[0], 1e-15)
	assert.InDelta(t, 0.2, psi[1], 1e-12)
	assert.InDelta(t, 0.2, psi[11], 1e-12)
	assert.InDelta(t, 0.6, psi[12], 1e-12)
	assert.InDelta(t, 0.28, psi[13], 1e-12)
}

func TestDirectMapping(t *testing.T) {
	spec := Spec{Regular: Order{P: 1, Q: 1}, Seasonal: Order{Q: 1}, Period: 4}
	d := DirectMapping{Spec: spec, Fixed: []float64{math.NaN(), 0.3, math.NaN()}}
	assert.Equal(t, 2, d.Dim())

	p, err := d.ToParameters([]float64{-0.5, -0.4})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.5, 0.3, -0.4}, p)

	x, err := d.FromParameters(p)
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.5, -0.4}, x)

	assert.ErrorIs(t, d.Validate([]float64{-1, 0}), ErrOutOfDomain)
	assert.ErrorIs(t, d.Validate([]float64{0, 1.2}), ErrOutOfDomain)
	assert.NoError(t, d.Validate([]float64{0.99, -0.99}))
}

func TestStationaryMappingRoundTrip(t *testing.T) {
	spec := Spec{Regular: Order{P: 2, Q: 1}, Seasonal: Order{P: 1, Q: 1}, Period: 12}
	s := StationaryMapping{Spec: spec}
	params := []float64{-0.5, 0.3, -0.7, 0.4, -0.6}
	x, err := s.FromParameters(params)
	require.NoError(t, err)
	back, err := s.ToParameters(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, params, back, 1e-12)

	// every point of the domain is a valid model
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		x := make([]float64, s.Dim())
		for j := range x {
			x[j] = 2 * rng.NormFloat64()
		}
		p, err := s.ToParameters(x)
		require.NoError(t, err)
		m, err := NewModel(spec, p)
		require.NoError(t, err)
		assert.True(t, m.IsStationary())
		assert.True(t, m.IsInvertible())
	}

	_, err = s.FromParameters([]float64{0, -1.5, 0, 0, 0})
	assert.ErrorIs(t, err, ErrOutOfDomain)
}

func TestStabilize(t *testing.T) {
	m, err := NewModel(Spec{Regular: Order{P: 1, Q: 1}, Period: 1}, []float64{-0.5, 2})
	require.NoError(t, err)
	assert.False(t, m.IsInvertible())

	s, changed, err := Stabilize(m, 1)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, -0.5, s.Block(RegularAR)[0], 1e-15)
	assert.InDelta(t, 0.5, s.Block(RegularMA)[0], 1e-12)
	assert.True(t, s.IsInvertible())

	same, changed, err := Stabilize(s, 1)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, s, same)
}

func simulate(ar, ma []float64, n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	burn := 200
	e := make([]float64, n+burn)
	y := make([]float64, n+burn)
	for t := range e {
		e[t] = rng.NormFloat64()
	}
	for t := range y {
		v := e[t]
		for j, c := range ma {
			if t-j-1 >= 0 {
				v += c * e[t-j-1]
			}
		}
		for i, c := range ar {
			if t-i-1 >= 0 {
				v -= c * y[t-i-1]
			}
		}
		y[t] = v
	}
	return y[burn:]
}

func TestHannanRissanen(t *testing.T) {
	t.Run("ar1", func(t *testing.T) {
		w := simulate([]float64{-0.6}, nil, 5000, 1)
		m, err := HannanRissanen(w, Spec{Regular: Order{P: 1}, Period: 1})
		require.NoError(t, err)
		assert.InDelta(t, -0.6, m.Parameters()[0], 0.05)
	})
	t.Run("ma1", func(t *testing.T) {
		w := simulate(nil, []float64{0.5}, 5000, 2)
		m, err := HannanRissanen(w, Spec{Regular: Order{Q: 1}, Period: 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, m.Parameters()[0], 0.1)
	})
	t.Run("too short", func(t *testing.T) {
		_, err := HannanRissanen([]float64{1, 2, 3}, Spec{Regular: Order{P: 2, Q: 2}, Period: 1})
		assert.ErrorIs(t, err, ErrSeriesTooShort)
	})
	t.Run("no parameters", func(t *testing.T) {
		m, err := HannanRissanen([]float64{1, 2, 3}, Spec{Regular: Order{D: 1}, Period: 1})
		require.NoError(t, err)
		assert.Empty(t, m.Parameters())
	})
}
