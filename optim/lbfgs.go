package optim

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// penalty is the objective value of a rejected point.
const penalty = 1e30

// LBFGS minimizes the scalar objective with the L-BFGS method of
// gonum/optimize and central-difference gradients.
type LBFGS struct {
	Settings Settings
	// Store is the number of past updates kept; 0 means the gonum default.
	Store int
}

// monitor forwards the major iterations of gonum/optimize to the problem.
type monitor struct{ p Problem }

func (monitor) Init() error { return nil }

func (m monitor) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op == optimize.MajorIteration {
		m.p.notify(stats.MajorIterations, loc.X, loc.F)
	}
	return nil
}

// Minimize runs the method from x0, which must be an accepted point.
func (lb *LBFGS) Minimize(ctx context.Context, p Problem, x0 []float64) (*Result, error) {
	set := lb.Settings.withDefaults()
	if len(x0) == 0 {
		return nil, ErrNoParameters
	}
	f0, err := p.objective(x0)
	if err != nil {
		return nil, fmt.Errorf("starting point: %w", err)
	}

	fn := func(x []float64) float64 {
		f, err := p.objective(x)
		if err != nil {
			return penalty
		}
		return f
	}
	grad := func(g, x []float64) {
		fd.Gradient(g, fn, x, &fd.Settings{Formula: fd.Central, Step: set.Step})
	}
	problem := optimize.Problem{
		Func: fn,
		Grad: grad,
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		InitValues:      &optimize.Location{F: f0},
		Recorder:        monitor{p},
		MajorIterations: set.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Relative:   set.FunctionPrecision,
			Iterations: 2,
		},
	}
	r, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{Store: lb.Store})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if r == nil {
		return nil, err
	}
	res := &Result{
		X:           r.X,
		F:           r.F,
		Iterations:  r.Stats.MajorIterations,
		Evaluations: r.Stats.FuncEvaluations,
	}
	if res.F >= penalty {
		return nil, errors.New("optim: l-bfgs ended on a rejected point")
	}
	switch r.Status {
	case optimize.Success, optimize.FunctionConvergence, optimize.GradientThreshold,
		optimize.StepConvergence, optimize.FunctionThreshold, optimize.MethodConverge:
		res.Converged = true
	}
	// a line search failure after progress is reported as non-convergence
	return res, nil
}
