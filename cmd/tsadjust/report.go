package main

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/mat"

	"tsadjust/regarima"
)

// PrintEstimation writes the estimated model of one series.
func PrintEstimation(w io.Writer, name string, r regarima.BatchResult) {
	est := r.Estimation
	fmt.Fprintf(w, "\n=== %s: %v ===\n", name, est.Arima)
	fmt.Fprintf(w, "run %s\n", r.ID)

	names := parameterNames(est.Arima.Spec())
	params := est.Arima.Parameters()
	free := make(map[int]int, len(est.Free))
	for k, i := range est.Free {
		free[i] = k
	}
	fmt.Fprintf(w, "%-10s %12s %12s\n", "parameter", "value", "stderr")
	for i, p := range params {
		if k, ok := free[i]; ok {
			fmt.Fprintf(w, "%-10s %12.5f %12.5f\n", names[i], p, est.StdErrors[k])
		} else {
			fmt.Fprintf(w, "%-10s %12.5f %12s\n", names[i], p, "fixed")
		}
	}

	if coefs, err := est.Coefficients(); err == nil && len(coefs) > 0 {
		fmt.Fprintf(w, "\n%-10s %12s %12s %8s %8s\n", "variable", "value", "stderr", "t", "p")
		for _, c := range coefs {
			fmt.Fprintf(w, "%-10s %12.5f %12.5f %8.3f %8.4f\n", c.Name, c.Value, c.StdErr, c.T, c.PValue)
		}
	}

	s := est.Statistics
	fmt.Fprintf(w, "\nloglik %.4f  aic %.4f  aicc %.4f  bic %.4f\n", s.LogLikelihood, s.AIC, s.AICc, s.BIC)
	fmt.Fprintf(w, "sigma2 %.6g  observations %d  parameters %d\n", s.Sigma2, s.Observations, s.Parameters)
	fmt.Fprintf(w, "iterations %d  converged %t  stabilized %t\n", est.Iterations, est.Converged, est.Stabilized)

	lags := 24
	if p := est.Arima.Spec().Period; p > 1 {
		lags = 2 * p
	}
	if lb, err := est.LjungBox(lags); err == nil {
		fmt.Fprintf(w, "ljung-box(%d) %.4f  df %d  p %.4f\n", lb.Lags, lb.Statistic, lb.DF, lb.PValue)
	}
}

// PrintFailure writes the error of a failed series.
func PrintFailure(w io.Writer, name string, r regarima.BatchResult) {
	fmt.Fprintf(w, "\n=== %s: failed (%v) ===\n", name, regarima.KindOf(r.Err))
	fmt.Fprintf(w, "run %s\n%v\n", r.ID, r.Err)
}

// PrintForecast writes the forecasts and their standard errors, one row
// per horizon.
func PrintForecast(w io.Writer, mean, stderr []float64) {
	fc := mat.NewDense(len(mean), 2, nil)
	fc.SetCol(0, mean)
	fc.SetCol(1, stderr)
	fmt.Fprintln(w, "\n=== Forecasts (mean, stderr) ===")
	fmt.Fprintf(w, "%v\n", mat.Formatted(fc, mat.Prefix(" ")))
}
