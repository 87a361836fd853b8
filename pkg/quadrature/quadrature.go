// Package quadrature computes definite integrals of surfaces over rectangles
// with nested adaptive Gauss-Legendre quadrature.
//
// Each dimension is integrated by recursive bisection. A subinterval is
// accepted when the fixed-order rule over the whole interval agrees with the
// sum of the rule over its two halves to within the interval's share of the
// tolerance. The outer integral over x samples, at each node, an inner
// adaptive integral over y.
//
// Outer samples are inner integrals known only to within their own error
// estimate, and that uncertainty is allowed for when an outer panel is tested.
// Residuals at rounding level of the whole integral are accepted at any depth,
// since further bisection cannot reduce them.
//
// Every sampled value is checked. A NaN or infinite value anywhere aborts the
// computation with *domain.IntegrationError instead of propagating into a
// plausible-looking volume.
//
// Integrable singularities on the boundary, such as log(x) or 1/sqrt(x) at
// x = 0, shrink the residual of the panel touching them no faster than its
// width, so the halving tolerance is never met there. At the default depth of
// 30 they end in *domain.ConvergenceError on that panel. log(x) converges
// once MaxDepth allows about 40 bisections, where its residual reaches the
// rounding floor; 1/sqrt(x) does not. Weaker singularities such as sqrt(x)
// converge at the defaults.
package quadrature

import (
	"context"
	"fmt"
	"math"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/validate"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/integrate/quad"
)

// Order is the number of Gauss-Legendre nodes per panel.
const Order = 10

// epsFloor accepts a panel whose residual is already at rounding level
// relative to its own value or to the whole integral, where further
// bisection cannot help.
const epsFloor = 50 * 2.220446049250313e-16

// Nodes and weights on [-1, 1]; read-only after init.
var nodes, weights [Order]float64

func init() {
	quad.Legendre{}.FixedLocations(nodes[:], weights[:], -1, 1)
}

// Integrand is a surface z = f(x, y). *expr.Function satisfies it.
type Integrand interface {
	Eval(x, y float64) float64
}

// IntegrandFunc adapts an ordinary function to Integrand.
type IntegrandFunc func(x, y float64) float64

// Eval returns f(x, y).
func (f IntegrandFunc) Eval(x, y float64) float64 { return f(x, y) }

// Estimate is the outcome of a one-dimensional adaptive integration.
type Estimate struct {
	Value       float64
	Error       float64
	Evaluations int
}

// sampler yields the integrand at t. aux is the error already carried by the
// value, which is non-zero when the value is itself an integral.
type sampler func(ctx context.Context, t float64) (value, aux float64, evals int, err error)

type panel struct {
	sum   float64
	aux   float64
	evals int
}

type integrator struct {
	sample   sampler
	at       func(t float64) (x, y float64)
	maxDepth int
	workers  int
}

// Integrate returns the volume under f over [a,b] x [c,d].
func Integrate(ctx context.Context, f Integrand, a, b, c, d float64, opts Options) (domain.IntegrationResult, error) {
	rect, err := domain.NewDomain(a, b, c, d)
	if err != nil {
		return domain.IntegrationResult{}, err
	}
	if err := opts.Validate(); err != nil {
		return domain.IntegrationResult{}, err
	}

	// The inner error is spread over the width of the outer interval.
	innerAbs := opts.AbsTol / (rect.XMax - rect.XMin)
	midY := rect.YMin + (rect.YMax-rect.YMin)/2

	inner := func(ctx context.Context, x float64) (float64, float64, int, error) {
		in := &integrator{
			sample: func(_ context.Context, y float64) (float64, float64, int, error) {
				v := f.Eval(x, y)
				if !validate.IsFinite(v) {
					return 0, 0, 1, &domain.IntegrationError{X: x, Y: y, Value: v}
				}
				return v, 0, 1, nil
			},
			at:       func(t float64) (float64, float64) { return x, t },
			maxDepth: opts.MaxDepth,
			workers:  1,
		}
		est, err := in.integrate(ctx, rect.YMin, rect.YMax, innerAbs, opts.RelTol)
		return est.Value, est.Error, est.Evaluations, err
	}

	outer := &integrator{
		sample:   inner,
		at:       func(t float64) (float64, float64) { return t, midY },
		maxDepth: opts.MaxDepth,
		workers:  opts.Workers,
	}
	est, err := outer.integrate(ctx, rect.XMin, rect.XMax, opts.AbsTol, opts.RelTol)
	if err != nil {
		return domain.IntegrationResult{}, err
	}
	return domain.IntegrationResult{Volume: est.Value, ErrorEstimate: est.Error, Evaluations: est.Evaluations}, nil
}

// Integrate1D returns the integral of g over [a,b]. Non-finite values are
// reported as *domain.IntegrationError with Y set to zero.
func Integrate1D(ctx context.Context, g func(float64) float64, a, b float64, opts Options) (Estimate, error) {
	if !validate.IsFinite(a) || !validate.IsFinite(b) {
		return Estimate{}, &domain.DomainError{Field: "a,b", Msg: "bounds must be finite"}
	}
	if a >= b {
		return Estimate{}, &domain.DomainError{Field: "a,b", Msg: fmt.Sprintf("lower bound %g must be below upper bound %g", a, b)}
	}
	if err := opts.Validate(); err != nil {
		return Estimate{}, err
	}

	q := &integrator{
		sample: func(_ context.Context, t float64) (float64, float64, int, error) {
			v := g(t)
			if !validate.IsFinite(v) {
				return 0, 0, 1, &domain.IntegrationError{X: t, Value: v}
			}
			return v, 0, 1, nil
		},
		at:       func(t float64) (float64, float64) { return t, 0 },
		maxDepth: opts.MaxDepth,
		workers:  1,
	}
	return q.integrate(ctx, a, b, opts.AbsTol, opts.RelTol)
}

func (q *integrator) integrate(ctx context.Context, l, r, absTol, relTol float64) (Estimate, error) {
	if err := checkContext(ctx); err != nil {
		return Estimate{}, err
	}
	whole, err := q.rule(ctx, l, r)
	if err != nil {
		return Estimate{}, err
	}
	if err := q.checkSum(l, r, whole.sum); err != nil {
		return Estimate{}, err
	}

	tol := math.Max(absTol, relTol*math.Abs(whole.sum))
	floor := epsFloor * math.Abs(whole.sum)
	est, err := q.adapt(ctx, l, r, whole, tol, floor, 0)
	if err != nil {
		return Estimate{}, err
	}
	est.Evaluations += whole.evals
	return est, nil
}

// adapt refines [l, r] whose single-panel estimate is whole. floor is the
// rounding level of the whole integral. Evaluations spent on whole are counted
// by the caller.
func (q *integrator) adapt(ctx context.Context, l, r float64, whole panel, tol, floor float64, depth int) (Estimate, error) {
	if err := checkContext(ctx); err != nil {
		return Estimate{}, err
	}

	mid := l + (r-l)/2
	left, err := q.rule(ctx, l, mid)
	if err != nil {
		return Estimate{}, err
	}
	right, err := q.rule(ctx, mid, r)
	if err != nil {
		return Estimate{}, err
	}
	evals := left.evals + right.evals

	sum := left.sum + right.sum
	if err := q.checkSum(l, r, sum); err != nil {
		return Estimate{}, err
	}

	// Both estimates carry the error of their samples, up to aux each.
	noise := 2 * math.Max(whole.aux, math.Max(left.aux, right.aux)) * (r - l)

	diff := math.Abs(whole.sum - sum)
	if diff <= tol+noise || diff <= math.Max(floor, epsFloor*math.Abs(sum)) {
		return Estimate{
			Value:       sum,
			Error:       diff + math.Max(left.aux, right.aux)*(r-l),
			Evaluations: evals,
		}, nil
	}
	if depth >= q.maxDepth || !(l < mid && mid < r) {
		return Estimate{}, &domain.ConvergenceError{Lo: l, Hi: r, Residual: diff, Requested: tol, Depth: depth}
	}

	le, err := q.adapt(ctx, l, mid, left, tol/2, floor, depth+1)
	if err != nil {
		return Estimate{}, err
	}
	re, err := q.adapt(ctx, mid, r, right, tol/2, floor, depth+1)
	if err != nil {
		return Estimate{}, err
	}
	return Estimate{
		Value:       le.Value + re.Value,
		Error:       le.Error + re.Error,
		Evaluations: evals + le.Evaluations + re.Evaluations,
	}, nil
}

// rule applies the Order-point rule on [l, r]. With more than one worker the
// nodes are sampled concurrently into fixed slots and combined in node order,
// so the result does not depend on scheduling. The lowest-index error wins.
func (q *integrator) rule(ctx context.Context, l, r float64) (panel, error) {
	var (
		vals  [Order]float64
		auxs  [Order]float64
		evals [Order]int
		errs  [Order]error
	)
	half := (r - l) / 2
	mid := l + half

	if q.workers > 1 {
		var g errgroup.Group
		g.SetLimit(q.workers)
		for i := range Order {
			g.Go(func() error {
				vals[i], auxs[i], evals[i], errs[i] = q.sample(ctx, mid+half*nodes[i])
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range Order {
			vals[i], auxs[i], evals[i], errs[i] = q.sample(ctx, mid+half*nodes[i])
			if errs[i] != nil {
				return panel{}, errs[i]
			}
		}
	}

	var p panel
	for i := range Order {
		if errs[i] != nil {
			return panel{}, errs[i]
		}
		p.sum += weights[i] * vals[i]
		p.aux = math.Max(p.aux, auxs[i])
		p.evals += evals[i]
	}
	p.sum *= half
	return p, nil
}

// checkSum catches overflow of finite samples into an infinite panel sum.
func (q *integrator) checkSum(l, r, sum float64) error {
	if validate.IsFinite(sum) {
		return nil
	}
	x, y := q.at(l + (r-l)/2)
	return &domain.IntegrationError{X: x, Y: y, Value: sum, Msg: "quadrature sum is not finite"}
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeadlineExceeded, err)
	}
	return nil
}
