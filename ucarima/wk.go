package ucarima

import (
	"fmt"

	"tsadjust/arima"
	"tsadjust/polynomial"
)

// WienerKolmogorov returns the weights nu(0..lags) of the symmetric filter
// that estimates component k from a bi-infinite realization of the series.
// nu(-j) = nu(j).
//
// The filter is g_k(w)/g(w), that is
//
//	S_k(B,F) * prod_{j!=k} D_j(B)D_j(F) / (MA(B)MA(F))
//
// whose coefficients are the convolution of the numerator with the
// autocovariances of the autoregression MA(B) x = e.
func (d *Decomposition) WienerKolmogorov(k Kind, lags int) ([]float64, error) {
	c, ok := d.Component(k)
	if !ok {
		return nil, fmt.Errorf("%v: %w", k, ErrNoComponent)
	}
	num := c.Spectrum
	for _, o := range d.Components {
		if o.Kind != k {
			num = num.Times(polynomial.SymmetricOf(o.Denominator()))
		}
	}
	dn := num.Degree()
	ar := &arima.ArmaModel{AR: d.Model.MA(), MA: polynomial.One(), Variance: 1}
	gamma, err := ar.AutoCovariance(lags + dn + 1)
	if err != nil {
		return nil, fmt.Errorf("wiener-kolmogorov filter of a non-invertible model: %w", err)
	}

	nu := make([]float64, lags+1)
	for j := range nu {
		s := 0.0
		for i := -dn; i <= dn; i++ {
			l := j - i
			if l < 0 {
				l = -l
			}
			s += num.Coefficient(i) * gamma[l]
		}
		nu[j] = s
	}
	return nu, nil
}
