// Package telemetry wires OpenTelemetry tracing and metrics for the volume
// calculator.
//
// It owns the OTLP trace provider bootstrap, the process-wide metric
// instruments for calculations, and span helpers that annotate a calculation
// with its expression, domain and outcome.
package telemetry
