package optim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrNoParameters is returned when a problem has no free parameter.
var ErrNoParameters = errors.New("optim: no free parameter")

// ErrRejected is returned when every trial point of an iteration is
// rejected by the problem. It wraps the last rejection.
var ErrRejected = errors.New("optim: trial points rejected")

// Problem is a function to minimize. Residuals is required; its squared
// norm is the sum-of-squares form of the objective. Objective, when set, is
// the scalar form used by the methods that do not exploit the
// sum-of-squares structure; it must have the same minimizer.
//
// A function returning an error rejects the point: the methods treat it as
// a failed step.
type Problem struct {
	Residuals func(x []float64) ([]float64, error)
	Objective func(x []float64) (float64, error)
	// Monitor, when set, is called after every accepted iteration.
	Monitor func(iteration int, x []float64, f float64)
}

func (p Problem) notify(iteration int, x []float64, f float64) {
	if p.Monitor != nil {
		p.Monitor(iteration, x, f)
	}
}

func (p Problem) objective(x []float64) (float64, error) {
	if p.Objective != nil {
		return p.Objective(x)
	}
	e, err := p.Residuals(x)
	if err != nil {
		return 0, err
	}
	return floats.Dot(e, e), nil
}

// Settings are the stopping rules shared by the methods.
type Settings struct {
	// FunctionPrecision stops when the relative decrease of the objective
	// falls below it.
	FunctionPrecision float64
	// ParameterPrecision stops when the relative step falls below it.
	ParameterPrecision float64
	MaxIterations      int
	// Step is the finite-difference step; 0 means DefaultStep.
	Step float64
}

const (
	DefaultFunctionPrecision  = 1e-9
	DefaultParameterPrecision = 1e-7
	DefaultMaxIterations      = 100
	DefaultStep               = 1e-6
)

// DefaultSettings returns the default stopping rules.
func DefaultSettings() Settings {
	return Settings{
		FunctionPrecision:  DefaultFunctionPrecision,
		ParameterPrecision: DefaultParameterPrecision,
		MaxIterations:      DefaultMaxIterations,
		Step:               DefaultStep,
	}
}

func (s Settings) withDefaults() Settings {
	if s.FunctionPrecision <= 0 {
		s.FunctionPrecision = DefaultFunctionPrecision
	}
	if s.ParameterPrecision <= 0 {
		s.ParameterPrecision = DefaultParameterPrecision
	}
	if s.MaxIterations <= 0 {
		s.MaxIterations = DefaultMaxIterations
	}
	if s.Step <= 0 {
		s.Step = DefaultStep
	}
	return s
}

// Result is the outcome of a minimization. Not converging is not an error.
type Result struct {
	X           []float64
	F           float64
	Iterations  int
	Evaluations int
	Converged   bool
}

// Minimizer minimizes a problem from a starting point.
type Minimizer interface {
	Minimize(ctx context.Context, p Problem, x0 []float64) (*Result, error)
}

// Jacobian returns the residuals at x and their Jacobian by forward
// differences, switching to backward differences when a forward point is
// rejected.
func Jacobian(p Problem, x []float64, step float64) (*mat.Dense, []float64, error) {
	if len(x) == 0 {
		return nil, nil, ErrNoParameters
	}
	if step <= 0 {
		step = DefaultStep
	}
	e, err := p.Residuals(x)
	if err != nil {
		return nil, nil, err
	}
	jac := mat.NewDense(len(e), len(x), nil)
	for _, formula := range []fd.Formula{fd.Forward, fd.Backward} {
		var evalErr error
		f := func(y, x []float64) {
			r, err := p.Residuals(x)
			if err == nil && len(r) != len(y) {
				err = fmt.Errorf("residuals of length %d, want %d", len(r), len(y))
			}
			if err != nil {
				if evalErr == nil {
					evalErr = err
				}
				for i := range y {
					y[i] = 0
				}
				return
			}
			copy(y, r)
		}
		fd.Jacobian(jac, f, x, &fd.JacobianSettings{Formula: formula, OriginValue: e, Step: step})
		if evalErr == nil {
			return jac, e, nil
		}
		err = evalErr
	}
	return nil, nil, fmt.Errorf("jacobian: %w", err)
}

// Gradient returns the central-difference gradient of the objective at x.
// Points rejected by the objective give NaN components.
func Gradient(p Problem, x []float64, step float64) []float64 {
	if step <= 0 {
		step = DefaultStep
	}
	return fd.Gradient(nil, scalar(p), x, &fd.Settings{Formula: fd.Central, Step: step})
}

// Hessian returns the central-difference Hessian of the objective at x.
func Hessian(p Problem, x []float64, step float64) *mat.SymDense {
	if step <= 0 {
		step = 1e-4
	}
	h := mat.NewSymDense(len(x), nil)
	fd.Hessian(h, scalar(p), x, &fd.Settings{Formula: fd.Central, Step: step})
	return h
}

func scalar(p Problem) func([]float64) float64 {
	return func(x []float64) float64 {
		f, err := p.objective(x)
		if err != nil {
			return math.NaN()
		}
		return f
	}
}
