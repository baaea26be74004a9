// Package ssf describes linear Gaussian state-space forms
//
//	y(t)       = Z(t)'a(t) + e(t),         e(t) ~ N(0, H(t))
//	a(t+1)     = T(t) a(t) + S(t) u(t),    u(t) ~ N(0, I)
//	a(0)       ~ N(A0, Pf0 + k*B0*B0'),    k -> infinity
//
// B0 is the factor of the diffuse part of the initial covariance; its column
// count is the diffuse dimension. Dynamics and measurements are indexed by
// time so that time-varying systems share the filter code; time-invariant
// implementations ignore the index.
//
// The ARIMA form follows Gomez and Maravall: the state holds y(t) and its
// forecasts y(t+1|t)..y(t+r-1|t), the stationary part of the initial
// covariance comes from the autocovariances of the differenced process and
// the diffuse part from the d starting values of the differencing
// recursion.
package ssf
