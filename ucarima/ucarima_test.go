package ucarima

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsadjust/arima"
	"tsadjust/polynomial"
)

func airline(t *testing.T, theta, stheta float64) *arima.Model {
	t.Helper()
	m, err := arima.NewModel(arima.Airline(12), []float64{theta, stheta})
	require.NoError(t, err)
	return m
}

func modelSpectrum(m *arima.Model, w float64) float64 {
	num := polynomial.SymmetricOf(m.MA()).At(w)
	den := polynomial.SymmetricOf(m.FullAR()).At(w)
	return num / den
}

func kinds(d *Decomposition) []Kind {
	var out []Kind
	for _, c := range d.Components {
		out = append(out, c.Kind)
	}
	return out
}

func TestAirlineDecomposition(t *testing.T) {
	m := airline(t, -0.8, -0.6)
	d, err := Decomposer{}.Decompose(m)
	require.NoError(t, err)
	require.Equal(t, []Kind{Trend, Seasonal, Irregular}, kinds(d))

	trend, _ := d.Component(Trend)
	assert.InDeltaSlice(t, []float64{1, -2, 1}, []float64(trend.Delta), 1e-12)
	assert.Equal(t, 0, trend.AR.Degree())
	seas, _ := d.Component(Seasonal)
	assert.Equal(t, 11, seas.Delta.Degree())

	for _, w := range []float64{0.3, 1.1, 2.0, 2.9} {
		assert.InEpsilon(t, modelSpectrum(m, w), d.Spectrum(w), 1e-8, "w=%g", w)
	}

	// canonical: the spectra of trend and seasonal reach zero
	for _, c := range d.Components[:2] {
		_, low := c.Spectrum.MinimumRatio(polynomial.SymmetricOf(c.Denominator()), DefaultGrid)
		assert.InDelta(t, 0, low, 1e-8, "%v", c.Kind)
		assert.Greater(t, c.Variance, 0.0)
		assert.InDeltaSlice(t, []float64(c.Spectrum), []float64(polynomial.SymmetricOf(c.MA).Scale(c.Variance)), 1e-6, "%v", c.Kind)
	}
	irr, _ := d.Component(Irregular)
	assert.True(t, irr.IsWhiteNoise())
	assert.Greater(t, irr.Variance, 0.0)
	assert.Less(t, irr.Variance, 1.0)
}

func TestWienerKolmogorovWeightsAddUp(t *testing.T) {
	d, err := Decomposer{}.Decompose(airline(t, -0.8, -0.6))
	require.NoError(t, err)

	const lags = 72
	sum := make([]float64, lags+1)
	for _, c := range d.Components {
		nu, err := d.WienerKolmogorov(c.Kind, lags)
		require.NoError(t, err)
		require.Len(t, nu, lags+1)
		for j, v := range nu {
			sum[j] += v
		}
	}
	assert.InDelta(t, 1, sum[0], 1e-8)
	for j := 1; j <= lags; j++ {
		assert.InDelta(t, 0, sum[j], 1e-8, "lag %d", j)
	}

	_, err = d.WienerKolmogorov(Transitory, lags)
	assert.ErrorIs(t, err, ErrNoComponent)
}

func TestWienerKolmogorovGains(t *testing.T) {
	d, err := Decomposer{}.Decompose(airline(t, -0.8, -0.6))
	require.NoError(t, err)

	// the trend keeps constants, the seasonal and the irregular remove them
	gain := func(k Kind) float64 {
		nu, err := d.WienerKolmogorov(k, 600)
		require.NoError(t, err)
		s := nu[0]
		for _, v := range nu[1:] {
			s += 2 * v
		}
		return s
	}
	assert.InDelta(t, 1, gain(Trend), 1e-6)
	assert.InDelta(t, 0, gain(Seasonal), 1e-6)
	assert.InDelta(t, 0, gain(Irregular), 1e-6)
}

func TestAR1Decomposition(t *testing.T) {
	spec := arima.Spec{Regular: arima.Order{P: 1}, Period: 1}
	m, err := arima.NewModel(spec, []float64{-0.7})
	require.NoError(t, err)
	d, err := Decomposer{}.Decompose(m)
	require.NoError(t, err)
	require.Equal(t, []Kind{Trend, Irregular}, kinds(d))

	// 1/|1-0.7e^{iw}|^2 is smallest at pi, where it is 1/2.89
	irr, _ := d.Component(Irregular)
	assert.InDelta(t, 1/2.89, irr.Variance, 1e-9)
	trend, _ := d.Component(Trend)
	assert.InDeltaSlice(t, []float64{1, -0.7}, []float64(trend.AR), 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1}, []float64(trend.MA), 1e-6)
	assert.InDelta(t, 0.7/2.89, trend.Variance, 1e-6)

	// a negative root is transitory without a seasonal period
	m, err = arima.NewModel(spec, []float64{0.7})
	require.NoError(t, err)
	d, err = Decomposer{}.Decompose(m)
	require.NoError(t, err)
	assert.Equal(t, []Kind{Transitory, Irregular}, kinds(d))
}

func TestRootClassification(t *testing.T) {
	// the roots of 1 - 0.5B^12 lie at the twelve seasonal frequencies
	roots, err := polynomial.New(1, -0.5).Seasonal(12).Roots()
	require.NoError(t, err)
	dc := Decomposer{}.withDefaults()
	count := map[Kind]int{}
	for _, r := range roots {
		count[dc.classify(r, 12)]++
	}
	assert.Equal(t, map[Kind]int{Trend: 1, Seasonal: 11}, count)

	// 1 + 0.5B^12 has no root at a seasonal frequency
	roots, err = polynomial.New(1, 0.5).Seasonal(12).Roots()
	require.NoError(t, err)
	for _, r := range roots {
		assert.Equal(t, Transitory, dc.classify(r, 12))
	}

	// small roots are not trend
	assert.Equal(t, Transitory, dc.classify(complex(5, 0), 1))
	assert.Equal(t, Trend, dc.classify(complex(1.5, 0), 1))
}

func TestPartialFractions(t *testing.T) {
	num := polynomial.SymmetricOf(polynomial.New(1, -0.4, 0.3, 0.2))
	dens := []polynomial.Symmetric{
		polynomial.SymmetricOf(polynomial.New(1, -1).Power(2)),
		polynomial.SymmetricOf(polynomial.New(1, 0.5)),
	}
	q, rem, err := partialFractions(num, dens)
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Len(t, q[0], 2)
	assert.Len(t, q[1], 1)
	assert.Equal(t, 0, rem.Degree())
	for _, w := range []float64{0.4, 1.3, 2.2, 3.0} {
		want := num.At(w) / (dens[0].At(w) * dens[1].At(w))
		got := q[0].At(w)/dens[0].At(w) + q[1].At(w)/dens[1].At(w) + rem.At(w)
		assert.InEpsilon(t, want, got, 1e-9, "w=%g", w)
	}
}

func TestMovingAverageIsIrregular(t *testing.T) {
	spec := arima.Spec{Regular: arima.Order{Q: 1}, Period: 1}
	m, err := arima.NewModel(spec, []float64{0.5})
	require.NoError(t, err)
	d, err := Decomposer{}.Decompose(m)
	require.NoError(t, err)
	require.Len(t, d.Components, 1)
	irr := d.Components[0]
	assert.Equal(t, Irregular, irr.Kind)
	assert.InDeltaSlice(t, []float64{1, 0.5}, []float64(irr.MA), 1e-9)
	assert.InDelta(t, 1, irr.Variance, 1e-9)
}

// simulateAirline returns (1-B)(1-B^12) y = (1+theta B)(1+stheta B^12) e.
func simulateAirline(n int, theta, stheta, scale float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	e := make([]float64, n)
	y := make([]float64, n)
	at := func(x []float64, t int) float64 {
		if t < 0 {
			return 0
		}
		return x[t]
	}
	for t := range y {
		e[t] = scale * rng.NormFloat64()
		w := e[t] + theta*at(e, t-1) + stheta*at(e, t-12) + theta*stheta*at(e, t-13)
		y[t] = at(y, t-1) + at(y, t-12) - at(y, t-13) + w
	}
	return y
}

func TestSmoothedComponentsMatchWienerKolmogorov(t *testing.T) {
	const n, mid, lags = 480, 240, 200
	m := airline(t, -0.4, -0.3)
	d, err := Decomposer{}.Decompose(m)
	require.NoError(t, err)
	y := simulateAirline(n, -0.4, -0.3, 0.01, 3)
	scale := 1.0
	for _, v := range y {
		scale = math.Max(scale, math.Abs(v))
	}

	est, err := d.Estimate(y, 1e-4)
	require.NoError(t, err)
	require.Len(t, est, 3)
	for i, c := range d.Components {
		assert.Equal(t, c.Kind, est[i].Kind)
		assert.Len(t, est[i].Values, n)
	}
	for tt := range y {
		assert.InDelta(t, y[tt], est[0].Values[tt]+est[1].Values[tt]+est[2].Values[tt], 1e-9)
	}

	for i, k := range []Kind{Trend, Seasonal} {
		nu, err := d.WienerKolmogorov(k, lags)
		require.NoError(t, err)
		want := nu[0] * y[mid]
		for j := 1; j <= lags; j++ {
			want += nu[j] * (y[mid-j] + y[mid+j])
		}
		assert.InDelta(t, want, est[i].Values[mid], 1e-5*scale, "%v", k)
		assert.Greater(t, est[i].StdErrors[mid], 0.0)
	}
}

func TestEstimateWithMissingValues(t *testing.T) {
	d, err := Decomposer{}.Decompose(airline(t, -0.6, -0.5))
	require.NoError(t, err)
	y := simulateAirline(120, -0.6, -0.5, 1, 8)
	y[30], y[31] = math.NaN(), math.NaN()

	est, err := d.Estimate(y, 1)
	require.NoError(t, err)
	irr := est[len(est)-1]
	assert.Equal(t, Irregular, irr.Kind)
	assert.Zero(t, irr.Values[30])
	noise, _ := d.Component(Irregular)
	assert.InDelta(t, math.Sqrt(noise.Variance), irr.StdErrors[30], 1e-12)
	for _, s := range est {
		for tt, v := range s.Values {
			assert.False(t, math.IsNaN(v), "%v at %d", s.Kind, tt)
		}
		// missing values are harder to split
		assert.Greater(t, s.StdErrors[31], s.StdErrors[60])
	}
}
