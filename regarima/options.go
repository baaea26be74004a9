package regarima

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"tsadjust/optim"
)

// MinimizerKind selects the optimization backend.
type MinimizerKind string

const (
	LevenbergMarquardt MinimizerKind = "lm"
	LBFGS              MinimizerKind = "lbfgs"
)

// FinalModulus is the smallest root modulus accepted for the final model.
const FinalModulus = 1 / 0.999

// Options configures a Processor.
type Options struct {
	Minimizer          MinimizerKind
	FunctionPrecision  float64
	ParameterPrecision float64
	MaxIterations      int
	// ExactFinalDerivatives computes the final Hessian by finite
	// differences of the log-likelihood instead of the Gauss-Newton
	// approximation.
	ExactFinalDerivatives bool
	// FailIfUnstable returns ErrUnstable instead of stabilizing the final
	// model.
	FailIfUnstable bool
	// FixedParameters has one value per ARIMA parameter, NaN for the free
	// ones; nil leaves every parameter free.
	FixedParameters []float64
	// StartParameters replaces the Hannan-Rissanen starting values.
	StartParameters []float64
	// FallbackToDefault uses the default model when no starting point
	// is valid.
	FallbackToDefault bool
	// CorrectMissing makes the likelihood that of the observed values.
	CorrectMissing bool
	// Rescale divides the series by its root mean square during the
	// estimation.
	Rescale bool
	// StationaryMapping optimizes over the PACF transformation instead of
	// the coefficients. It cannot be used with fixed parameters.
	StationaryMapping bool
	Logger            *zap.Logger
}

// DefaultOptions returns the defaults: Levenberg-Marquardt, function
// precision 1e-9, parameter precision 1e-7, 100 iterations, missing-value
// correction and rescaling on.
func DefaultOptions() Options {
	return Options{
		Minimizer:          LevenbergMarquardt,
		FunctionPrecision:  optim.DefaultFunctionPrecision,
		ParameterPrecision: optim.DefaultParameterPrecision,
		MaxIterations:      optim.DefaultMaxIterations,
		CorrectMissing:     true,
		Rescale:            true,
		Logger:             zap.NewNop(),
	}
}

// Validate checks the options.
func (o Options) Validate() error {
	switch o.Minimizer {
	case LevenbergMarquardt, LBFGS:
	default:
		return fmt.Errorf("unknown minimizer %q", o.Minimizer)
	}
	if !(o.FunctionPrecision > 0) || !(o.ParameterPrecision > 0) {
		return fmt.Errorf("precisions must be > 0, got %g and %g", o.FunctionPrecision, o.ParameterPrecision)
	}
	if o.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be > 0, got %d", o.MaxIterations)
	}
	if o.StationaryMapping && hasFixed(o.FixedParameters) {
		return fmt.Errorf("fixed parameters with the stationary mapping")
	}
	return nil
}

func hasFixed(fixed []float64) bool {
	for _, v := range fixed {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

func (o Options) settings() optim.Settings {
	return optim.Settings{
		FunctionPrecision:  o.FunctionPrecision,
		ParameterPrecision: o.ParameterPrecision,
		MaxIterations:      o.MaxIterations,
	}
}

func (o Options) minimizer() optim.Minimizer {
	if o.Minimizer == LBFGS {
		return &optim.LBFGS{Settings: o.settings()}
	}
	return &optim.LevenbergMarquardt{Settings: o.settings()}
}

// Option modifies Options.
type Option func(*Options)

// WithMinimizer selects the optimization backend.
func WithMinimizer(k MinimizerKind) Option {
	return func(o *Options) { o.Minimizer = k }
}

// WithPrecision sets the function and parameter precisions.
func WithPrecision(function, parameter float64) Option {
	return func(o *Options) {
		o.FunctionPrecision = function
		o.ParameterPrecision = parameter
	}
}

// WithMaxIterations sets the iteration limit.
func WithMaxIterations(n int) Option {
	return func(o *Options) { o.MaxIterations = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithExactFinalDerivatives computes the final Hessian by finite
// differences.
func WithExactFinalDerivatives() Option {
	return func(o *Options) { o.ExactFinalDerivatives = true }
}

// WithFailIfUnstable returns an error for an unstable final model.
func WithFailIfUnstable() Option {
	return func(o *Options) { o.FailIfUnstable = true }
}

// WithFixedParameters fixes some ARIMA parameters; NaN marks a free one.
func WithFixedParameters(p []float64) Option {
	return func(o *Options) { o.FixedParameters = append([]float64(nil), p...) }
}

// WithStartParameters sets the starting values.
func WithStartParameters(p []float64) Option {
	return func(o *Options) { o.StartParameters = append([]float64(nil), p...) }
}

// WithFallbackToDefault uses the default model when no starting point is
// valid.
func WithFallbackToDefault() Option {
	return func(o *Options) { o.FallbackToDefault = true }
}

// WithMissingCorrection switches the missing-value correction of the
// likelihood.
func WithMissingCorrection(on bool) Option {
	return func(o *Options) { o.CorrectMissing = on }
}

// WithRescaling switches the rescaling of the series.
func WithRescaling(on bool) Option {
	return func(o *Options) { o.Rescale = on }
}

// WithStationaryMapping optimizes over the PACF transformation.
func WithStationaryMapping() Option {
	return func(o *Options) { o.StationaryMapping = true }
}
