package likelihood

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Longley (1967) employment data: TOTEMP, GNPDEFL, GNP, UNEMP, ARMED, POP,
// YEAR.
var longley = [][7]float64{
	{60323, 83.0, 234289, 2356, 1590, 107608, 1947},
	{61122, 88.5, 259426, 2325, 1456, 108632, 1948},
	{60171, 88.2, 258054, 3682, 1616, 109773, 1949},
	{61187, 89.5, 284599, 3351, 1650, 110929, 1950},
	{63221, 96.2, 328975, 2099, 3099, 112075, 1951},
	{63639, 98.1, 346999, 1932, 3594, 113270, 1952},
	{64989, 99.0, 365385, 1870, 3547, 115094, 1953},
	{63761, 100.0, 363112, 3578, 3350, 116219, 1954},
	{66019, 101.2, 397469, 2904, 3048, 117388, 1955},
	{67857, 104.6, 419180, 2822, 2857, 118734, 1956},
	{68169, 108.4, 442769, 2936, 2798, 120445, 1957},
	{66513, 110.8, 444546, 4681, 2637, 121950, 1958},
	{68655, 112.6, 482704, 3813, 2552, 123366, 1959},
	{69564, 114.2, 502601, 3931, 2514, 125368, 1960},
	{69331, 115.7, 518173, 4806, 2572, 127852, 1961},
	{70551, 116.9, 554894, 4007, 2827, 130081, 1962},
}

func longleyData() ([]float64, *mat.Dense) {
	n := len(longley)
	y := make([]float64, n)
	x := mat.NewDense(n, 6, nil)
	for i, row := range longley {
		y[i] = row[0]
		for j := 0; j < 6; j++ {
			x.Set(i, j, row[j+1])
		}
	}
	return y, x
}

func TestLongley(t *testing.T) {
	y, x := longleyData()
	reg, err := OLS(y, x, true)
	require.NoError(t, err)
	require.Equal(t, 7, reg.K)
	require.Empty(t, reg.Redundant)

	// certified values
	coef := []float64{-3482258.63459582, 15.0618722713733, -0.358191792925910e-01,
		-2.02022980381683, -1.03322686717359, -0.511041056535807e-01, 1829.15146461355}
	se := []float64{890420.383607373, 84.9149257747669, 0.334910077722432e-01,
		0.488399681651699, 0.214274163161675, 0.226073200069370, 455.478499142212}
	for j := range coef {
		assert.InEpsilon(t, coef[j], reg.Coefficients[j], 1e-6, "coefficient %d", j)
		assert.InEpsilon(t, se[j], reg.StdErrors[j], 1e-6, "std error %d", j)
	}
	assert.InDelta(t, 0.995479004577296, reg.R2, 1e-9)
	assert.InEpsilon(t, 304.854073561965, math.Sqrt(reg.SSQ/float64(reg.N-reg.K)), 1e-6)

	overall := reg.OverallF()
	assert.InEpsilon(t, 330.285339234588, overall.FStatistic, 1e-6)
	assert.Equal(t, 6, overall.DF1)
	assert.Equal(t, 9, overall.DF2)
	assert.True(t, overall.Significant)

	// t^2 equals the F statistic of dropping the single variable
	for j := 0; j < 6; j++ {
		tstat, p := reg.TStat(j + 1)
		drop, err := FTestDrop(y, x, true, []int{j})
		require.NoError(t, err)
		assert.InEpsilon(t, tstat*tstat, drop.FStatistic, 1e-6, "variable %d", j)
		assert.InDelta(t, p, drop.PValue, 1e-6, "variable %d", j)
	}
}

func TestLongleyThroughComputer(t *testing.T) {
	y, x := longleyData()
	n := len(y)
	design := mat.NewDense(n, 7, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < 6; j++ {
			design.Set(i, j+1, x.At(i, j))
		}
	}
	reg, err := OLS(y, x, true)
	require.NoError(t, err)

	c, err := Computer{}.Compute(y, design, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, n, c.N)
	assert.InEpsilon(t, reg.SSQ, c.SSQ, 1e-9)

	table, err := c.Table()
	require.NoError(t, err)
	require.Len(t, table, 7)
	for j, row := range table {
		assert.Equal(t, j, row.Column)
		assert.InEpsilon(t, reg.Coefficients[j], row.Value, 1e-9)
		assert.InEpsilon(t, reg.StdErrors[j], row.StdErr, 1e-8)
		tstat, p := reg.TStat(j)
		assert.InEpsilon(t, tstat, row.T, 1e-8)
		assert.InDelta(t, p, row.PValue, 1e-8)
	}
}

func TestNoRegressors(t *testing.T) {
	y := []float64{1, -2, 0.5, 3}
	c, err := Computer{}.Compute(y, nil, 0.7, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Rank())
	assert.InDelta(t, 14.25, c.SSQ, 1e-12)
	n := 4.0
	want := -0.5 * (n*math.Log(2*math.Pi) + n*math.Log(14.25/n) + n + 0.7)
	assert.InDelta(t, want, c.LogLikelihood(), 1e-12)
	assert.InDelta(t, 14.25/4, c.Sigma2(), 1e-12)
}

func TestRescalingInvariance(t *testing.T) {
	n := 30
	y := make([]float64, n)
	x := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		ti := float64(i)
		x.Set(i, 0, ti)
		x.Set(i, 1, math.Sin(ti))
		y[i] = 2500 + 40*ti - 300*math.Sin(ti) + 150*math.Cos(2.3*ti)
	}
	plain, err := Computer{}.Compute(y, x, 1.3, 0)
	require.NoError(t, err)
	scaled, err := Computer{Rescale: true}.Compute(y, x, 1.3, 0)
	require.NoError(t, err)
	require.NotEqual(t, 1.0, scaled.Factor)

	back := scaled.Rescale()
	assert.Equal(t, 1.0, back.Factor)
	assert.InEpsilon(t, plain.LogLikelihood(), back.LogLikelihood(), 1e-9)
	assert.InEpsilon(t, plain.SSQ, back.SSQ, 1e-9)
	for i := range plain.Coefficients {
		assert.InEpsilon(t, plain.Coefficients[i], back.Coefficients[i], 1e-9)
	}
	// the original is left untouched
	assert.NotEqual(t, 1.0, scaled.Factor)
	assert.Same(t, plain, plain.Rescale())
}

func TestMissingValueDummies(t *testing.T) {
	y := []float64{1.2, 0.4, 2.5, 1.9, 3.1, 2.7}
	trend := []float64{1, 2, 3, 4, 5, 6}

	// y[2] missing: set to zero and add its dummy in front
	yz := append([]float64(nil), y...)
	yz[2] = 0
	x := mat.NewDense(6, 2, nil)
	x.Set(2, 0, 1)
	x.SetCol(1, trend)
	withDummy, err := Computer{CorrectMissing: true}.Compute(yz, x, 0, 1)
	require.NoError(t, err)

	yo := []float64{1.2, 0.4, 1.9, 3.1, 2.7}
	xo := mat.NewDense(5, 1, []float64{1, 2, 4, 5, 6})
	observed, err := Computer{}.Compute(yo, xo, 0, 0)
	require.NoError(t, err)

	assert.Equal(t, 5, withDummy.N)
	assert.Equal(t, 1, withDummy.RegressionCount())
	assert.InDelta(t, observed.SSQ, withDummy.SSQ, 1e-12)
	assert.InDelta(t, observed.LogLikelihood(), withDummy.LogLikelihood(), 1e-12)
	b, ok := withDummy.Coefficient(1)
	require.True(t, ok)
	assert.InDelta(t, observed.Coefficients[0], b, 1e-12)
	// the dummy estimates the missing value
	m, ok := withDummy.Coefficient(0)
	require.True(t, ok)
	assert.InDelta(t, -3*b, m, 1e-12)

	table, err := withDummy.Table()
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, 1, table[0].Column)

	_, err = Computer{}.Compute(yz, x, 0, 3)
	assert.Error(t, err)
}

func TestZeroSeriesFails(t *testing.T) {
	_, err := Computer{}.Compute([]float64{0, 0, 0}, nil, 0, 0)
	assert.ErrorIs(t, err, ErrGLSFailed)
}

func TestStatistics(t *testing.T) {
	c := &Concentrated{N: 100, Used: []int{0, 1}, Missing: 1, SSQ: 50, Coefficients: []float64{1, 2}}
	st := NewStatistics(c, 2)
	ll := c.LogLikelihood()
	// two ARIMA parameters, one regression variable, the scale
	assert.Equal(t, 4, st.Parameters)
	assert.InDelta(t, -2*ll+8, st.AIC, 1e-12)
	assert.InDelta(t, -2*ll+8*100.0/95, st.AICc, 1e-12)
	assert.InDelta(t, -2*ll+4*math.Log(100), st.BIC, 1e-12)
	assert.InDelta(t, 0.5, st.Sigma2, 1e-12)
}

func TestLjungBox(t *testing.T) {
	res, err := LjungBox([]float64{1, -1, math.NaN(), 1, -1}, 1, 0)
	require.NoError(t, err)
	// r1 = -3/4, Q = 4*6*(9/16)/3
	assert.InDelta(t, 4.5, res.Statistic, 1e-12)
	assert.Equal(t, 1, res.DF)
	assert.InDelta(t, 0.0339, res.PValue, 1e-3)

	_, err = LjungBox([]float64{1, 2, 3}, 5, 0)
	assert.Error(t, err)
	_, err = LjungBox([]float64{1, 2, 3, 4, 5, 6}, 2, 2)
	assert.Error(t, err)
}

func TestFTest(t *testing.T) {
	res, err := FTest(120, 100, 2, 40)
	require.NoError(t, err)
	assert.InDelta(t, 4, res.FStatistic, 1e-12)
	assert.True(t, res.Significant)

	_, err = FTest(120, 100, 0, 40)
	assert.Error(t, err)
	_, err = FTest(120, 0, 2, 40)
	assert.Error(t, err)
}

func TestNormalEquations(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
		1, 3,
	})
	y := []float64{1, 3, 5, 7}
	b, err := NormalEquations(y, x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2}, b, 1e-12)

	// duplicated column: minimum norm solution
	xs := mat.NewDense(4, 2, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	b, err = NormalEquations([]float64{2, 2, 2, 2}, xs)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, b, 1e-10)
}
