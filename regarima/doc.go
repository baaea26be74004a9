// Package regarima estimates regression models with seasonal ARIMA errors,
//
//	delta(B)(y(t) - X(t)*b) = w(t),  phi(B)Phi(B^s) w(t) = theta(B)Theta(B^s) e(t)
//
// by exact maximum likelihood. The regression coefficients and the
// innovation variance are concentrated out of the likelihood, missing
// values are handled with additive-outlier dummies and the ARMA parameters
// are estimated with a Levenberg-Marquardt or L-BFGS minimizer.
package regarima
