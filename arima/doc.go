// Package arima holds the seasonal ARIMA model: its orders (Spec), its
// parameters (Model), the stationary ARMA part left once the differencing is
// factored out (ArmaModel), the parameter mappings used by the minimizers and
// the Hannan-Rissanen starting values.
//
// The polynomial convention is
//
//	phi(B) Phi(B^s) (1-B)^d (1-B^s)^D y(t) = theta(B) Theta(B^s) e(t)
//
// with every polynomial equal to 1 + c1*B + c2*B^2 + ... Parameters are
// stored flat in the order regular AR, regular MA, seasonal AR, seasonal MA.
// The airline model (0,1,1)(0,1,1)_12 with theta = -0.8 and Theta = -0.6 is
//
//	m, _ := arima.NewModel(arima.Airline(12), []float64{-0.8, -0.6})
package arima
