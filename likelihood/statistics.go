package likelihood

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Statistics summarizes a fitted model.
type Statistics struct {
	LogLikelihood float64
	// Observations is the number of observations used by the likelihood.
	Observations int
	// Parameters counts the model parameters, the regression coefficients
	// and the scale.
	Parameters int
	AIC        float64
	AICc       float64
	BIC        float64
	SSQ        float64
	Sigma2     float64
}

// NewStatistics returns the information criteria of a concentrated
// likelihood for a model with nparams free parameters.
func NewStatistics(c *Concentrated, nparams int) Statistics {
	ll := c.LogLikelihood()
	n := float64(c.N)
	np := nparams + c.RegressionCount() + 1
	k := float64(np)
	return Statistics{
		LogLikelihood: ll,
		Observations:  c.N,
		Parameters:    np,
		AIC:           -2*ll + 2*k,
		AICc:          -2*ll + 2*k*n/(n-k-1),
		BIC:           -2*ll + k*math.Log(n),
		SSQ:           c.SSQ,
		Sigma2:        c.Sigma2(),
	}
}

// LjungBoxResult holds the Ljung-Box portmanteau test.
type LjungBoxResult struct {
	Statistic float64
	Lags      int
	DF        int
	PValue    float64
}

// LjungBox tests the residuals for autocorrelation up to lag k; the
// chi-square reference distribution has k - fitted degrees of freedom.
// NaN values are skipped.
func LjungBox(residuals []float64, k, fitted int) (LjungBoxResult, error) {
	e := make([]float64, 0, len(residuals))
	for _, v := range residuals {
		if !math.IsNaN(v) {
			e = append(e, v)
		}
	}
	n := len(e)
	if k <= 0 || k >= n {
		return LjungBoxResult{}, fmt.Errorf("ljung-box with %d lags on %d residuals", k, n)
	}
	df := k - fitted
	if df <= 0 {
		return LjungBoxResult{}, fmt.Errorf("ljung-box with %d lags and %d fitted parameters", k, fitted)
	}
	mean := stat.Mean(e, nil)
	c0 := 0.0
	for _, v := range e {
		c0 += (v - mean) * (v - mean)
	}
	q := 0.0
	for lag := 1; lag <= k; lag++ {
		c := 0.0
		for t := lag; t < n; t++ {
			c += (e[t] - mean) * (e[t-lag] - mean)
		}
		r := c / c0
		q += r * r / float64(n-lag)
	}
	q *= float64(n) * float64(n+2)
	chi := distuv.ChiSquared{K: float64(df)}
	return LjungBoxResult{Statistic: q, Lags: k, DF: df, PValue: chi.Survival(q)}, nil
}
