// Package likelihood computes the Gaussian likelihood of a regression model
// with correlated errors once the data have been whitened, with the scale
// and the regression coefficients concentrated out, and the usual
// statistics built on it: information criteria, coefficient tables, F tests
// and the Ljung-Box test.
package likelihood
