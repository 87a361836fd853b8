package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OutcomeOK labels a successful calculation. Failures are labelled with
// their domain error code.
const OutcomeOK = "ok"

var (
	metricsOnce            sync.Once
	metricsInitErr         error
	calculationCounter     metric.Int64Counter
	evaluationCounter      metric.Int64Counter
	rejectedCounter        metric.Int64Counter
	durationHistogram      metric.Float64Histogram
	errorEstimateHistogram metric.Float64Histogram
)

// CalculationMetrics captures one finished calculation.
type CalculationMetrics struct {
	// Source is where the request came from, such as "http" or "cli".
	Source        string
	Outcome       string
	Duration      time.Duration
	Evaluations   int
	ErrorEstimate float64
	GridSampled   bool
}

// RecordCalculation emits the counters and histograms for one calculation.
func RecordCalculation(ctx context.Context, m CalculationMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("calculation.source", m.Source),
		attribute.String("calculation.outcome", m.Outcome),
		attribute.Bool("calculation.grid", m.GridSampled),
	)

	calculationCounter.Add(ctx, 1, attrs)
	if m.Duration > 0 {
		durationHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), attrs)
	}
	if m.Evaluations > 0 {
		evaluationCounter.Add(ctx, int64(m.Evaluations), attrs)
	}
	if m.Outcome == OutcomeOK {
		errorEstimateHistogram.Record(ctx, m.ErrorEstimate, attrs)
	}
}

// RecordRejected counts a request refused before any computation, for
// example by the rate limiter.
func RecordRejected(ctx context.Context, source, reason string) {
	if err := ensureMetrics(); err != nil {
		return
	}
	rejectedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("calculation.source", source),
		attribute.String("rejection.reason", reason),
	))
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(instrumentationName)

		calculationCounter, metricsInitErr = meter.Int64Counter(
			"volcalc.calculations_total",
			metric.WithDescription("Volume calculations partitioned by outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		evaluationCounter, metricsInitErr = meter.Int64Counter(
			"volcalc.integrand.evaluations_total",
			metric.WithDescription("Pointwise integrand evaluations spent by quadrature"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		rejectedCounter, metricsInitErr = meter.Int64Counter(
			"volcalc.calculations.rejected_total",
			metric.WithDescription("Requests refused before computation"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		durationHistogram, metricsInitErr = meter.Float64Histogram(
			"volcalc.calculation.duration_ms",
			metric.WithDescription("Wall time of a calculation"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		errorEstimateHistogram, metricsInitErr = meter.Float64Histogram(
			"volcalc.calculation.error_estimate",
			metric.WithDescription("Quadrature error bound of successful calculations"),
		)
	})

	return metricsInitErr
}
