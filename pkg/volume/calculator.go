// Package volume orchestrates a complete calculation: compile the
// expression, check the rectangle, probe the centroid, integrate and sample
// the visualization grid.
package volume

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AvilaCamacho/CalculadoraFunciones/internal/governance"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/expr"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/grid"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/quadrature"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/telemetry"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/validate"
	"go.opentelemetry.io/otel/trace"
)

// Config configures a Calculator.
type Config struct {
	Logger *slog.Logger
	// Integration defaults to quadrature.DefaultOptions when zero.
	Integration quadrature.Options
	// Timeout bounds each calculation. Zero means no deadline beyond the
	// caller's context.
	Timeout time.Duration
	// DefaultResolution is used when a request leaves Resolution at zero.
	DefaultResolution int
	// Source labels metrics, for example "http" or "cli".
	Source string
}

// Request is one calculation.
type Request struct {
	Function   string
	A, B, C, D float64
	// Resolution is the grid size per axis. Zero selects the default.
	Resolution int
	SkipGrid   bool
}

// Result is a finished calculation.
type Result struct {
	Function      string
	Canonical     string
	Domain        domain.Domain
	Volume        float64
	ErrorEstimate float64
	Evaluations   int
	Grid          *domain.SampleGrid
	Duration      time.Duration
}

// Calculator runs calculations. It is safe for concurrent use and can be
// reconfigured while calculations are in flight; each calculation uses the
// settings current when it started.
type Calculator struct {
	logger   *slog.Logger
	source   string
	timeouts *governance.TimeoutManager

	mu         sync.RWMutex
	opts       quadrature.Options
	resolution int
}

// NewCalculator validates cfg and builds a Calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	source := cfg.Source
	if source == "" {
		source = "library"
	}

	c := &Calculator{
		logger:   logger,
		source:   source,
		timeouts: governance.NewTimeoutManager(cfg.Timeout),
	}
	if err := c.Reconfigure(cfg.Integration, cfg.DefaultResolution, cfg.Timeout); err != nil {
		return nil, err
	}
	return c, nil
}

// Reconfigure replaces the integrator options, default resolution and
// deadline. Invalid settings are rejected and the previous ones kept.
func (c *Calculator) Reconfigure(opts quadrature.Options, resolution int, timeout time.Duration) error {
	if opts == (quadrature.Options{}) {
		opts = quadrature.DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	if resolution == 0 {
		resolution = domain.DefaultResolution
	}
	if err := domain.ValidateResolution(resolution); err != nil {
		return err
	}

	c.mu.Lock()
	c.opts = opts
	c.resolution = resolution
	c.mu.Unlock()
	c.timeouts.Configure(timeout)
	return nil
}

// Options returns the integrator options in effect.
func (c *Calculator) Options() quadrature.Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// Calculate runs req to completion or to the first failure. Failures are the
// typed errors of package domain.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	c.mu.RLock()
	opts, resolution := c.opts, c.resolution
	c.mu.RUnlock()
	if req.Resolution != 0 {
		resolution = req.Resolution
	}

	ctx, span := telemetry.Tracer().Start(ctx, "volume.calculate")
	defer span.End()
	ctx, cancel := c.timeouts.WithComputationTimeout(ctx)
	defer cancel()

	res, err := c.calculate(ctx, req, opts, resolution)
	duration := time.Since(start)

	metrics := telemetry.CalculationMetrics{
		Source:      c.source,
		Outcome:     telemetry.OutcomeOK,
		Duration:    duration,
		GridSampled: !req.SkipGrid,
	}
	if err != nil {
		code := domain.ErrorCode(err)
		metrics.Outcome = code
		telemetry.RecordFailure(span, err)
		telemetry.RecordCalculation(ctx, metrics)
		c.logger.WarnContext(ctx, "calculation failed",
			"function", req.Function,
			"code", code,
			"error", err,
			"duration", duration,
		)
		return nil, err
	}

	res.Duration = duration
	metrics.Evaluations = res.Evaluations
	metrics.ErrorEstimate = res.ErrorEstimate
	telemetry.RecordResult(span, domain.IntegrationResult{
		Volume:        res.Volume,
		ErrorEstimate: res.ErrorEstimate,
		Evaluations:   res.Evaluations,
	})
	telemetry.RecordCalculation(ctx, metrics)
	c.logger.InfoContext(ctx, "volume calculated",
		"function", res.Canonical,
		"domain", res.Domain.String(),
		"volume", res.Volume,
		"error_estimate", res.ErrorEstimate,
		"evaluations", res.Evaluations,
		"duration", duration,
	)
	return res, nil
}

func (c *Calculator) calculate(ctx context.Context, req Request, opts quadrature.Options, resolution int) (*Result, error) {
	rect, err := domain.NewDomain(req.A, req.B, req.C, req.D)
	if err != nil {
		return nil, err
	}
	// Reject a bad resolution before spending time on the integral.
	if !req.SkipGrid {
		if err := domain.ValidateResolution(resolution); err != nil {
			return nil, err
		}
	}

	f, err := expr.Parse(req.Function)
	if err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(telemetry.CalculationAttributes(f.Source(), rect, resolution)...)

	if err := validate.Probe(f, rect); err != nil {
		return nil, err
	}

	integral, err := quadrature.Integrate(ctx, f, rect.XMin, rect.XMax, rect.YMin, rect.YMax, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Function:      f.Source(),
		Canonical:     f.String(),
		Domain:        rect,
		Volume:        integral.Volume,
		ErrorEstimate: integral.ErrorEstimate,
		Evaluations:   integral.Evaluations,
	}
	if req.SkipGrid {
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDeadlineExceeded, err)
	}
	g, err := grid.Sample(f, rect.XMin, rect.XMax, rect.YMin, rect.YMax, resolution)
	if err != nil {
		return nil, err
	}
	res.Grid = &g
	return res, nil
}
