package ucarima

import (
	"math"

	"tsadjust/kalman"
	"tsadjust/ssf"
)

// Series is the estimate of one component and its standard errors.
type Series struct {
	Kind      Kind
	Values    []float64
	StdErrors []float64
}

// Estimate returns the smoothed components of y (NaN for missing values),
// in the order of d.Components. sigma2 is the innovation variance of the
// model and only scales the standard errors.
//
// A white-noise irregular becomes the measurement error of the composite
// system; its estimate is y minus the signal, or 0 at missing values.
func (d *Decomposition) Estimate(y []float64, sigma2 float64) ([]Series, error) {
	var parts []*ssf.StateSpace
	var kinds []Kind
	h := 0.0
	noise := -1
	for i, c := range d.Components {
		if c.IsWhiteNoise() {
			h += c.Variance
			noise = i
			continue
		}
		s, err := c.StateSpace()
		if err != nil {
			return nil, err
		}
		parts = append(parts, s)
		kinds = append(kinds, c.Kind)
	}
	n := len(y)
	if len(parts) == 0 {
		out := Series{Kind: Irregular, Values: append([]float64(nil), y...), StdErrors: make([]float64, n)}
		for t, v := range y {
			if math.IsNaN(v) {
				out.Values[t] = 0
				out.StdErrors[t] = math.Sqrt(h * sigma2)
			}
		}
		return []Series{out}, nil
	}

	sys, offsets, err := ssf.Composite(h, false, parts...)
	if err != nil {
		return nil, err
	}
	fr, err := kalman.Filter{}.Run(sys, y)
	if err != nil {
		return nil, err
	}
	sr, err := kalman.Smoother{Variances: true}.Run(sys, fr)
	if err != nil {
		return nil, err
	}

	stderr := func(v []float64) []float64 {
		out := make([]float64, len(v))
		for t, x := range v {
			out[t] = math.Sqrt(math.Max(x, 0) * sigma2)
		}
		return out
	}
	out := make([]Series, 0, len(d.Components))
	for j, k := range kinds {
		w := make([]float64, sys.Dim())
		w[offsets[j]] = 1
		mean, variance := sr.Projection(w)
		out = append(out, Series{Kind: k, Values: mean, StdErrors: stderr(variance)})
	}
	if noise >= 0 {
		signal, variance := sr.Projection(sys.Z(0))
		irr := Series{Kind: Irregular, Values: make([]float64, n), StdErrors: make([]float64, n)}
		for t, v := range y {
			if math.IsNaN(v) {
				irr.StdErrors[t] = math.Sqrt(h * sigma2)
				continue
			}
			irr.Values[t] = v - signal[t]
			irr.StdErrors[t] = math.Sqrt(math.Max(variance[t], 0) * sigma2)
		}
		out = append(out, irr)
	}
	return out, nil
}
