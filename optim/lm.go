package optim

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// maxRejections bounds the consecutive rejected steps of one iteration.
const maxRejections = 30

// LevenbergMarquardt minimizes ||e(x)||^2 with the damping rule of
// Nielsen: on a successful step mu is multiplied by
// max(1/3, 1 - (2*rho - 1)^3), on a failed one by nu, which doubles.
type LevenbergMarquardt struct {
	Settings Settings
	// Tau scales the initial damping against the largest diagonal element
	// of J'J; 0 means 1e-3.
	Tau float64
}

// Minimize runs the method from x0, which must be an accepted point.
func (lm *LevenbergMarquardt) Minimize(ctx context.Context, p Problem, x0 []float64) (*Result, error) {
	set := lm.Settings.withDefaults()
	tau := lm.Tau
	if tau <= 0 {
		tau = 1e-3
	}
	n := len(x0)
	if n == 0 {
		return nil, ErrNoParameters
	}

	x := append([]float64(nil), x0...)
	jac, e, err := Jacobian(p, x, set.Step)
	if err != nil {
		return nil, fmt.Errorf("starting point: %w", err)
	}
	res := &Result{Evaluations: 1 + n}
	ssq := floats.Dot(e, e)

	a, g := normalEquations(jac, e)
	mu := 0.0
	for i := 0; i < n; i++ {
		mu = math.Max(mu, a.At(i, i))
	}
	mu *= tau
	if mu == 0 {
		mu = tau
	}
	nu := 2.0

	for res.Iterations < set.MaxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if floats.Norm(g, math.Inf(1)) == 0 {
			res.Converged = true
			break
		}
		accepted := false
		// lastErr is the rejection of the last trial point, nil when that
		// point was evaluated but did not decrease the objective
		var lastErr error
		for rejected := 0; rejected < maxRejections; rejected++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			h, ok := dampedStep(a, g, mu)
			if !ok {
				mu *= nu
				nu *= 2
				continue
			}
			if floats.Norm(h, 2) <= set.ParameterPrecision*(floats.Norm(x, 2)+set.ParameterPrecision) {
				if lastErr != nil {
					return nil, fmt.Errorf("%w after %d trials: %w", ErrRejected, rejected, lastErr)
				}
				res.Converged = true
				break
			}
			xn := make([]float64, n)
			floats.AddTo(xn, x, h)
			en, err := p.Residuals(xn)
			res.Evaluations++
			if err != nil {
				lastErr = err
				mu *= nu
				nu *= 2
				continue
			}
			ssqn := floats.Dot(en, en)
			// predicted decrease h'(mu*h - g)
			pred := mu*floats.Dot(h, h) - floats.Dot(h, g)
			rho := (ssq - ssqn) / pred
			if !(rho > 0) {
				lastErr = nil
				mu *= nu
				nu *= 2
				continue
			}

			decrease := ssq - ssqn
			x, ssq = xn, ssqn
			mu *= math.Max(1.0/3, 1-math.Pow(2*rho-1, 3))
			nu = 2
			accepted = true
			if decrease <= set.FunctionPrecision*ssq {
				res.Converged = true
			}
			break
		}
		if !accepted {
			if lastErr != nil && !res.Converged {
				return nil, fmt.Errorf("%w after %d trials: %w", ErrRejected, maxRejections, lastErr)
			}
			break
		}
		res.Iterations++
		p.notify(res.Iterations, x, ssq)
		if res.Converged {
			break
		}
		jac, e, err = Jacobian(p, x, set.Step)
		res.Evaluations += 1 + n
		if err != nil {
			// x was accepted, only the derivatives failed
			break
		}
		a, g = normalEquations(jac, e)
	}

	res.X = x
	res.F = ssq
	return res, nil
}

// normalEquations returns J'J and J'e.
func normalEquations(jac *mat.Dense, e []float64) (*mat.SymDense, []float64) {
	_, n := jac.Dims()
	a := mat.NewSymDense(n, nil)
	a.SymOuterK(1, jac.T())
	g := make([]float64, n)
	mat.NewVecDense(n, g).MulVec(jac.T(), mat.NewVecDense(len(e), e))
	return a, g
}

// dampedStep solves (A + mu*I)h = -g.
func dampedStep(a *mat.SymDense, g []float64, mu float64) ([]float64, bool) {
	n := len(g)
	m := mat.NewSymDense(n, nil)
	m.CopySym(a)
	for i := 0; i < n; i++ {
		m.SetSym(i, i, m.At(i, i)+mu)
	}
	var chol mat.Cholesky
	if !chol.Factorize(m) {
		return nil, false
	}
	rhs := mat.NewVecDense(n, nil)
	rhs.ScaleVec(-1, mat.NewVecDense(n, append([]float64(nil), g...)))
	var h mat.VecDense
	if err := chol.SolveVecTo(&h, rhs); err != nil {
		return nil, false
	}
	out := h.RawVector().Data
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return out, true
}
