package kalman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"tsadjust/linalg"
	"tsadjust/ssf"
)

// Forecast extends a filter run h steps beyond the end of the sample. It
// returns the forecasts of the observations and their variances (unit
// scale). The diffuse part must be exhausted.
func Forecast(s *ssf.StateSpace, fr *FilteringResults, h int) ([]float64, []float64, error) {
	if h <= 0 {
		return nil, nil, fmt.Errorf("forecast horizon must be > 0, got %d", h)
	}
	if fr.BEnd != nil && mat.Norm(fr.BEnd, 2) > 0 {
		return nil, nil, ErrDiffuse
	}
	n, dim := fr.Len(), s.Dim()
	a := append([]float64(nil), fr.AEnd...)
	p := linalg.SymCopy(fr.PEnd)

	mean := make([]float64, h)
	variance := make([]float64, h)
	for j := 0; j < h; j++ {
		t := n + j
		z := s.Z(t)
		mean[j] = s.ZX(t, a)
		var pz mat.VecDense
		pz.MulVec(p, mat.NewVecDense(dim, append([]float64(nil), z...)))
		v := mat.Dot(mat.NewVecDense(dim, append([]float64(nil), z...)), &pz) + s.H(t)
		variance[j] = math.Max(v, 0)
		s.TX(t, a)
		s.TVT(t, p)
	}
	return mean, variance, nil
}
