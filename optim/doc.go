// Package optim holds the minimizers used for maximum likelihood
// estimation: a Levenberg-Marquardt method on sum-of-squares problems and an
// L-BFGS method on scalar objectives, both with finite-difference
// derivatives.
package optim
