package telemetry

import (
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxExpressionAttr bounds the expression text copied onto spans.
const maxExpressionAttr = 256

// CalculationAttributes describes a calculation request on a span.
func CalculationAttributes(expression string, d domain.Domain, resolution int) []attribute.KeyValue {
	if len(expression) > maxExpressionAttr {
		expression = expression[:maxExpressionAttr] + "..."
	}
	return []attribute.KeyValue{
		attribute.String("calculation.expression", expression),
		attribute.Float64("calculation.domain.a", d.XMin),
		attribute.Float64("calculation.domain.b", d.XMax),
		attribute.Float64("calculation.domain.c", d.YMin),
		attribute.Float64("calculation.domain.d", d.YMax),
		attribute.Int("calculation.grid.resolution", resolution),
	}
}

// RecordResult annotates span with the integration outcome.
func RecordResult(span trace.Span, res domain.IntegrationResult) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.Float64("calculation.volume", res.Volume),
		attribute.Float64("calculation.error_estimate", res.ErrorEstimate),
		attribute.Int("calculation.evaluations", res.Evaluations),
	)
}

// RecordFailure marks span as failed and tags it with the error code.
func RecordFailure(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	code := domain.ErrorCode(err)
	span.SetAttributes(attribute.String("calculation.error_code", code))
	span.RecordError(err)
	span.SetStatus(codes.Error, code)
}
