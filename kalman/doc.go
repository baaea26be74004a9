// Package kalman runs the exact diffuse Kalman filter and the associated
// smoother on the state-space forms of package ssf.
//
// The diffuse part of the initial covariance is carried as a low-rank
// factor B (Pinf = B*B'). At each observation with fi = |B'z|^2 above the
// tolerance the state is updated with the diffuse formulas and B loses one
// column by a Householder reflection; once B is empty the filter continues
// with the ordinary Riccati recursion. Missing observations (NaN) only
// propagate the state.
//
// Two numerically different but equivalent filters are available: Direct
// propagates the covariance P, SquareRoot propagates a factor L with
// P = L*L' through orthogonal triangularizations.
package kalman
