package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// FilteringResults holds the output of one filter run. Slices are indexed by
// time; the state quantities are the predictions a(t|t-1), P(t|t-1) made
// before observation t is used.
type FilteringResults struct {
	A  [][]float64
	P  []*mat.SymDense
	B  []*mat.Dense // diffuse factor, nil once the diffuse part is gone
	M  [][]float64  // P*z
	Mi [][]float64  // Pinf*z, nil when fi is not used

	E  []float64 // prediction errors, NaN when missing
	F  []float64 // variance of E
	Fi []float64 // diffuse variance z'Pinf z, 0 in the ordinary phase

	Missing []bool
	// Diffuse marks the observations used by a diffuse update.
	Diffuse []bool

	// AEnd, PEnd and BEnd are the predictions for t = n.
	AEnd []float64
	PEnd *mat.SymDense
	BEnd *mat.Dense

	// DiffuseEnd is the first t with no diffuse part left.
	DiffuseEnd int

	SSQ           float64 // sum of e^2/f over ordinary observations
	LogDet        float64 // sum of log f over ordinary observations
	DiffuseLogDet float64 // sum of log fi over diffuse observations
	Count         int     // number of ordinary observations
	DiffuseCount  int     // number of diffuse observations
}

// Len returns the number of time steps.
func (r *FilteringResults) Len() int { return len(r.E) }

// IsOrdinary reports whether observation t contributes to the likelihood.
func (r *FilteringResults) IsOrdinary(t int) bool {
	return !r.Missing[t] && !r.Diffuse[t]
}

// LogLikelihood returns the log-likelihood of the ordinary observations with
// a unit scale, or, when concentrated, with the scale replaced by its
// maximum likelihood estimate SSQ/Count.
func (r *FilteringResults) LogLikelihood(concentrated bool) float64 {
	n := float64(r.Count)
	if n == 0 {
		return 0
	}
	if concentrated {
		return -0.5 * (n*math.Log(2*math.Pi) + n*math.Log(r.SSQ/n) + n + r.LogDet)
	}
	return -0.5 * (n*math.Log(2*math.Pi) + r.LogDet + r.SSQ)
}

// Sigma2 returns the maximum likelihood estimate of the scale.
func (r *FilteringResults) Sigma2() float64 {
	if r.Count == 0 {
		return 0
	}
	return r.SSQ / float64(r.Count)
}

// StandardizedResiduals returns e/sqrt(f) for the ordinary observations.
func (r *FilteringResults) StandardizedResiduals() []float64 {
	out := make([]float64, 0, r.Count)
	for t := range r.E {
		if r.IsOrdinary(t) {
			out = append(out, r.E[t]/math.Sqrt(r.F[t]))
		}
	}
	return out
}
