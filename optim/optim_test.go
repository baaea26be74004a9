package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exponential decay y = 2*exp(-0.5*t) observed without noise
func decayProblem() Problem {
	return Problem{Residuals: func(x []float64) ([]float64, error) {
		e := make([]float64, 10)
		for i := range e {
			t := float64(i)
			e[i] = x[0]*math.Exp(-x[1]*t) - 2*math.Exp(-0.5*t)
		}
		return e, nil
	}}
}

func TestMinimizers(t *testing.T) {
	tests := []struct {
		name string
		min  Minimizer
		tol  float64
	}{
		{"levenberg-marquardt", &LevenbergMarquardt{}, 1e-5},
		{"lbfgs", &LBFGS{Settings: Settings{MaxIterations: 500}}, 1e-3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.min.Minimize(context.Background(), decayProblem(), []float64{1, 1})
			require.NoError(t, err)
			assert.InDelta(t, 2, res.X[0], tt.tol)
			assert.InDelta(t, 0.5, res.X[1], tt.tol)
			assert.Less(t, res.F, 1e-6)
			assert.Positive(t, res.Iterations)
			assert.Positive(t, res.Evaluations)
		})
	}
}

func TestLevenbergMarquardtConverges(t *testing.T) {
	res, err := (&LevenbergMarquardt{}).Minimize(context.Background(), decayProblem(), []float64{1, 1})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.LessOrEqual(t, res.Iterations, DefaultMaxIterations)
}

func TestRejectedPoints(t *testing.T) {
	base := decayProblem()
	p := Problem{Residuals: func(x []float64) ([]float64, error) {
		if x[1] <= 0 {
			return nil, errors.New("rejected")
		}
		return base.Residuals(x)
	}}
	res, err := (&LevenbergMarquardt{}).Minimize(context.Background(), p, []float64{1, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.X[1], 1e-5)

	_, err = (&LevenbergMarquardt{}).Minimize(context.Background(), p, []float64{1, -1})
	assert.Error(t, err)
	_, err = (&LBFGS{}).Minimize(context.Background(), p, []float64{1, -1})
	assert.Error(t, err)
}

func TestEveryTrialPointRejected(t *testing.T) {
	errDomain := errors.New("out of domain")
	// only the start and its forward-difference neighbour can be evaluated
	p := Problem{Residuals: func(x []float64) ([]float64, error) {
		if x[0] != 1 && x[0] != 1+DefaultStep {
			return nil, fmt.Errorf("x=%g: %w", x[0], errDomain)
		}
		return []float64{x[0] - 3}, nil
	}}
	_, err := (&LevenbergMarquardt{}).Minimize(context.Background(), p, []float64{1})
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, errDomain)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&LevenbergMarquardt{}).Minimize(ctx, decayProblem(), []float64{1, 1})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = (&LBFGS{}).Minimize(ctx, decayProblem(), []float64{1, 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNoParameters(t *testing.T) {
	_, err := (&LevenbergMarquardt{}).Minimize(context.Background(), decayProblem(), nil)
	assert.ErrorIs(t, err, ErrNoParameters)
	_, _, err = Jacobian(decayProblem(), nil, 0)
	assert.ErrorIs(t, err, ErrNoParameters)
}

func TestJacobianFallsBackToBackwardDifferences(t *testing.T) {
	p := Problem{Residuals: func(x []float64) ([]float64, error) {
		if x[0] > 1 {
			return nil, errors.New("out of domain")
		}
		return []float64{x[0] * x[0], 3 * x[0]}, nil
	}}
	jac, e, err := Jacobian(p, []float64{1}, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, e)
	assert.InDelta(t, 2, jac.At(0, 0), 1e-5)
	assert.InDelta(t, 3, jac.At(1, 0), 1e-8)
}

func TestDerivatives(t *testing.T) {
	p := Problem{
		Residuals: func(x []float64) ([]float64, error) { return x, nil },
		Objective: func(x []float64) (float64, error) {
			return x[0]*x[0] + 3*x[0]*x[1] + 2*x[1]*x[1], nil
		},
	}
	g := Gradient(p, []float64{1, 1}, 0)
	assert.InDeltaSlice(t, []float64{5, 7}, g, 1e-6)

	h := Hessian(p, []float64{1, 1}, 0)
	assert.InDelta(t, 2, h.At(0, 0), 1e-6)
	assert.InDelta(t, 3, h.At(0, 1), 1e-6)
	assert.InDelta(t, 4, h.At(1, 1), 1e-6)
}
