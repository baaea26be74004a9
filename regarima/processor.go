package regarima

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"tsadjust/arima"
	"tsadjust/kalman"
	"tsadjust/likelihood"
	"tsadjust/linalg"
	"tsadjust/optim"
	"tsadjust/polynomial"
	"tsadjust/ssf"
)

// Processor estimates RegARIMA models. It holds no per-estimation state and
// can be shared between goroutines.
type Processor struct {
	opts Options
	log  *zap.Logger
}

// NewProcessor applies opts to the defaults.
func NewProcessor(opts ...Option) (*Processor, error) {
	o := DefaultOptions()
	for _, f := range opts {
		f(&o)
	}
	return NewProcessorWithOptions(o)
}

// NewProcessorWithOptions validates o.
func NewProcessorWithOptions(o Options) (*Processor, error) {
	if err := o.Validate(); err != nil {
		return nil, newError(KindInvalidInput, "options", err)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Processor{opts: o, log: o.Logger}, nil
}

// Options returns the options of the processor.
func (p *Processor) Options() Options { return p.opts }

// evaluator computes the concentrated likelihood of one model for any
// parameter value. The differenced data are computed once.
type evaluator struct {
	spec     arima.Spec
	mapping  arima.Mapping
	dy       []float64
	dx       *mat.Dense
	missing  int
	computer likelihood.Computer
}

type evaluation struct {
	model *arima.Model
	ll    *likelihood.Concentrated
}

func (p *Processor) newEvaluator(m *Model) *evaluator {
	dy, dx := m.design()
	var mapping arima.Mapping = arima.DirectMapping{Spec: m.spec, Fixed: p.opts.FixedParameters}
	if p.opts.StationaryMapping {
		mapping = arima.StationaryMapping{Spec: m.spec}
	}
	return &evaluator{
		spec:    m.spec,
		mapping: mapping,
		dy:      dy,
		dx:      dx,
		missing: len(m.missing),
		computer: likelihood.Computer{
			Rescale:        p.opts.Rescale,
			CorrectMissing: p.opts.CorrectMissing,
		},
	}
}

// at whitens the differenced data with the ARMA part of the model and
// computes the likelihood.
func (ev *evaluator) at(params []float64) (*evaluation, error) {
	am, err := arima.NewModel(ev.spec, params)
	if err != nil {
		return nil, err
	}
	arma, _ := am.StationaryTransformation()
	s, err := ssf.Arma(arma)
	if err != nil {
		return nil, err
	}
	w, err := kalman.NewWhitener(s, len(ev.dy))
	if err != nil {
		return nil, err
	}
	wy, err := w.Apply(ev.dy)
	if err != nil {
		return nil, err
	}
	wx, err := w.ApplyColumns(ev.dx)
	if err != nil {
		return nil, err
	}
	ll, err := ev.computer.Compute(wy, wx, w.LogDet(), ev.missing)
	if err != nil {
		return nil, err
	}
	return &evaluation{model: am, ll: ll}, nil
}

func (ev *evaluator) point(x []float64) (*evaluation, error) {
	params, err := ev.mapping.ToParameters(x)
	if err != nil {
		return nil, err
	}
	return ev.at(params)
}

// scaledResiduals returns e*|Omega|^(1/2N): their sum of squares is
// minimized with the concentrated likelihood.
func scaledResiduals(ll *likelihood.Concentrated) []float64 {
	e := append([]float64(nil), ll.Residuals...)
	floats.Scale(math.Exp(ll.LogDet/(2*float64(ll.N))), e)
	return e
}

func (ev *evaluator) problem(mapping arima.Mapping) optim.Problem {
	eval := func(x []float64) (*evaluation, error) {
		params, err := mapping.ToParameters(x)
		if err != nil {
			return nil, err
		}
		return ev.at(params)
	}
	return optim.Problem{
		Residuals: func(x []float64) ([]float64, error) {
			e, err := eval(x)
			if err != nil {
				return nil, err
			}
			// the rescaling factor moves with the parameters: the objective
			// is taken in the units of the series
			return scaledResiduals(e.ll.Rescale()), nil
		},
		Objective: func(x []float64) (float64, error) {
			e, err := eval(x)
			if err != nil {
				return 0, err
			}
			return -e.ll.Rescale().LogLikelihood(), nil
		},
	}
}

// Likelihood returns the concentrated likelihood of m at the given ARIMA
// parameters, in the units of the series.
func (p *Processor) Likelihood(m *Model, params []float64) (*likelihood.Concentrated, error) {
	e, err := p.newEvaluator(m).at(params)
	if err != nil {
		return nil, newError(kindOf(err), "likelihood", err)
	}
	return e.ll.Rescale(), nil
}

// Estimate runs initialization, optimization and finalization on m.
func (p *Processor) Estimate(ctx context.Context, m *Model) (*Estimation, error) {
	const op = "estimate"
	log := p.log.With(zap.Stringer("spec", m.spec), zap.Int("n", m.Len()))
	ev := p.newEvaluator(m)

	start, err := p.initialize(m, ev, log)
	if err != nil {
		return nil, err
	}
	x0, err := ev.mapping.FromParameters(start.model.Parameters())
	if err != nil {
		return nil, newError(KindInternal, op, err)
	}

	res := &optim.Result{X: x0, Converged: true}
	if ev.mapping.Dim() > 0 {
		prob := ev.problem(ev.mapping)
		prob.Monitor = func(iteration int, x []float64, f float64) {
			log.Debug("iteration",
				zap.Int("iteration", iteration),
				zap.Float64("objective", f),
				zap.Float64s("point", x))
		}
		res, err = p.opts.minimizer().Minimize(ctx, prob, x0)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, newError(KindCanceled, op, ctxErr)
			}
			return nil, newError(KindNumerical, op, fmt.Errorf("%w: %w", ErrEstimationFailed, err))
		}
	}
	if !res.Converged {
		log.Warn("no convergence", zap.Int("iterations", res.Iterations))
	}

	final, err := ev.point(res.X)
	if err != nil {
		return nil, newError(KindInternal, op, fmt.Errorf("final point rejected: %w", err))
	}
	return p.finalize(m, ev, final, res, log)
}

// initialize returns a valid starting point: the user values, or the
// Hannan-Rissanen estimates, with the fixed parameters merged in. The
// default model replaces an invalid start when FallbackToDefault is set.
func (p *Processor) initialize(m *Model, ev *evaluator, log *zap.Logger) (*evaluation, error) {
	const op = "initialize"
	var params []float64
	if p.opts.StartParameters != nil {
		if len(p.opts.StartParameters) != m.spec.ParameterCount() {
			return nil, newError(KindInvalidInput, op, fmt.Errorf("%d start values for %d parameters: %w",
				len(p.opts.StartParameters), m.spec.ParameterCount(), arima.ErrInvalidSpec))
		}
		params = append([]float64(nil), p.opts.StartParameters...)
	} else {
		hr, err := p.hannanRissanen(ev)
		if err != nil {
			if !p.opts.FallbackToDefault {
				return nil, newError(KindNumerical, op, fmt.Errorf("%w: hannan-rissanen: %w", ErrEstimationFailed, err))
			}
			log.Warn("hannan-rissanen failed, using default values", zap.Error(err))
			if hr, err = arima.DefaultModel(ev.spec); err != nil {
				return nil, newError(KindInvalidInput, op, err)
			}
		}
		params = hr.Parameters()
	}
	if fixed := p.opts.FixedParameters; fixed != nil {
		if len(fixed) != len(params) {
			return nil, newError(KindInvalidInput, op, fmt.Errorf("%d fixed values for %d parameters: %w",
				len(fixed), len(params), arima.ErrInvalidSpec))
		}
		for i, v := range fixed {
			if !math.IsNaN(v) {
				params[i] = v
			}
		}
	}

	e, err := ev.validStart(params)
	if err == nil {
		return e, nil
	}
	if !p.opts.FallbackToDefault {
		return nil, newError(KindNumerical, op, fmt.Errorf("%w: %w", ErrEstimationFailed, err))
	}
	log.Warn("invalid starting point, using default values", zap.Error(err))
	def, derr := arima.DefaultModel(ev.spec)
	if derr != nil {
		return nil, newError(KindInvalidInput, op, derr)
	}
	params = def.Parameters()
	for i, v := range p.opts.FixedParameters {
		if !math.IsNaN(v) {
			params[i] = v
		}
	}
	if e, err = ev.validStart(params); err != nil {
		return nil, newError(KindNumerical, op, fmt.Errorf("%w: %w", ErrEstimationFailed, err))
	}
	return e, nil
}

func (ev *evaluator) validStart(params []float64) (*evaluation, error) {
	x, err := ev.mapping.FromParameters(params)
	if err != nil {
		return nil, err
	}
	return ev.point(x)
}

// hannanRissanen removes the regression effects from the differenced
// series by least squares and computes the starting values on the result.
func (p *Processor) hannanRissanen(ev *evaluator) (*arima.Model, error) {
	ls, err := linalg.Solve(ev.dx, ev.dy, 0)
	if err != nil {
		return nil, err
	}
	spec := ev.spec
	spec.Mean = false
	hr, err := arima.HannanRissanen(ls.Residuals, spec)
	if err != nil {
		return nil, err
	}
	return arima.NewModel(ev.spec, hr.Parameters())
}

// finalize applies the stability policy and computes the statistics and
// the derivatives at the optimum.
func (p *Processor) finalize(m *Model, ev *evaluator, final *evaluation, res *optim.Result, log *zap.Logger) (*Estimation, error) {
	const op = "finalize"
	stabilized := false
	if !isStable(final.model, FinalModulus) {
		if p.opts.FailIfUnstable {
			return nil, newError(KindNumerical, op, fmt.Errorf("%v: %w", final.model, ErrUnstable))
		}
		sm, changed, err := arima.Stabilize(final.model, FinalModulus)
		if err != nil {
			return nil, newError(KindNumerical, op, err)
		}
		if changed {
			log.Warn("stabilizing the final model", zap.Stringer("model", final.model), zap.Stringer("stabilized", sm))
			if final, err = ev.at(sm.Parameters()); err != nil {
				return nil, newError(KindNumerical, op, err)
			}
			stabilized = true
		}
	}

	direct := arima.DirectMapping{Spec: m.spec, Fixed: p.opts.FixedParameters}
	free, err := direct.FromParameters(final.model.Parameters())
	if err != nil {
		return nil, newError(KindInternal, op, err)
	}
	est := &Estimation{
		Model:      m,
		Arima:      final.model,
		Likelihood: final.ll.Rescale(),
		Iterations: res.Iterations,
		Converged:  res.Converged,
		Stabilized: stabilized,
		Free:       freeIndices(p.opts.FixedParameters, m.spec.ParameterCount()),
	}
	est.Statistics = likelihood.NewStatistics(est.Likelihood, len(free))
	if len(free) > 0 {
		est.Gradient, est.Hessian = p.derivatives(ev, direct, free, final.ll.N)
		est.StdErrors = standardErrors(est.Hessian)
	}

	log.Info("estimated",
		zap.Stringer("model", est.Arima),
		zap.Float64("loglikelihood", est.Statistics.LogLikelihood),
		zap.Float64("aic", est.Statistics.AIC),
		zap.Int("iterations", est.Iterations),
		zap.Bool("converged", est.Converged))
	return est, nil
}

// derivatives returns the gradient and Hessian of -logL with respect to the
// free parameters.
func (p *Processor) derivatives(ev *evaluator, direct arima.DirectMapping, free []float64, n int) ([]float64, *mat.SymDense) {
	prob := ev.problem(direct)
	if p.opts.ExactFinalDerivatives {
		return optim.Gradient(prob, free, 0), optim.Hessian(prob, free, 0)
	}
	// -logL = N/2*log(S) + c with S = ||e||^2
	jac, e, err := optim.Jacobian(prob, free, 0)
	if err != nil {
		return optim.Gradient(prob, free, 0), optim.Hessian(prob, free, 0)
	}
	k := len(free)
	ssq := floats.Dot(e, e)
	g := make([]float64, k)
	mat.NewVecDense(k, g).MulVec(jac.T(), mat.NewVecDense(len(e), e))
	floats.Scale(float64(n)/ssq, g)
	h := mat.NewSymDense(k, nil)
	h.SymOuterK(float64(n)/ssq, jac.T())
	return g, h
}

func standardErrors(h *mat.SymDense) []float64 {
	k := h.SymmetricDim()
	se := make([]float64, k)
	var chol mat.Cholesky
	if !chol.Factorize(h) {
		for i := range se {
			se[i] = math.NaN()
		}
		return se
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		for i := range se {
			se[i] = math.NaN()
		}
		return se
	}
	for i := range se {
		se[i] = math.Sqrt(cov.At(i, i))
	}
	return se
}

func isStable(m *arima.Model, modulus float64) bool {
	for _, k := range []arima.BlockKind{arima.RegularAR, arima.RegularMA, arima.SeasonalAR, arima.SeasonalMA} {
		if !polynomial.OnePlus(m.Block(k)).IsStable(modulus) {
			return false
		}
	}
	return true
}

func freeIndices(fixed []float64, n int) []int {
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if fixed == nil || math.IsNaN(fixed[i]) {
			idx = append(idx, i)
		}
	}
	return idx
}

// kindOf classifies the errors of the lower layers.
func kindOf(err error) Kind {
	switch {
	case errors.Is(err, arima.ErrInvalidSpec), errors.Is(err, linalg.ErrDimensionMismatch):
		return KindInvalidInput
	case errors.Is(err, likelihood.ErrGLSFailed), errors.Is(err, arima.ErrOutOfDomain),
		errors.Is(err, arima.ErrNotStationary), errors.Is(err, kalman.ErrNonPositiveVariance):
		return KindNumerical
	}
	return KindInternal
}
