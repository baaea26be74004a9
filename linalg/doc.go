// Package linalg is the dense linear algebra kernel used by the filters and the
// likelihood computer.
//
// Storage is gonum's: mat.Dense, mat.SymDense, mat.VecDense and mat.TriDense.
// The package only adds what gonum does not offer directly:
//
//   - a Cholesky factorization that accepts positive semi-definite matrices
//     (zero pivots within a tolerance) and reports a negative pivot as
//     ErrSingularMatrix,
//   - a least-squares QR with rank detection on the diagonal of R,
//   - symmetry re-enforcement of covariance matrices,
//   - Householder reflectors and the lower triangularization used by the
//     square-root Kalman filter.
//
// Nothing mutates its arguments unless the doc comment says "in place".
package linalg
