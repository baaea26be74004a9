// Package polynomial implements the lag polynomials used by the ARIMA models:
// arithmetic, roots, root reflection, rational expansions and the symmetric
// (backward times forward) filters of the pseudo-spectrum.
//
// A Polynomial is stored in increasing powers of the lag operator B:
//
//	p(B) = c[0] + c[1]*B + ... + c[n]*B^n
//
// so the AR polynomial of y(t) = 0.5*y(t-1) + e(t) is {1, -0.5}.
package polynomial
