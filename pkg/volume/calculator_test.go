package volume

import (
	"bytes"
	"context"
	"math"
	"testing"
	"time"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/logging"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/quadrature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newCalculator(t *testing.T, cfg Config) (*Calculator, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	if cfg.Logger == nil {
		cfg.Logger = logging.NewLogger(logging.Config{Level: "debug", Output: &buf})
	}
	c, err := NewCalculator(cfg)
	require.NoError(t, err)
	return c, &buf
}

func TestCalculate(t *testing.T) {
	c, logs := newCalculator(t, Config{})

	res, err := c.Calculate(context.Background(), Request{
		Function: "  sin(x)*cos(y) ",
		A:        0, B: math.Pi, C: 0, D: math.Pi / 2,
		Resolution: 20,
	})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, res.Volume, 1e-6)
	assert.GreaterOrEqual(t, res.ErrorEstimate, 0.0)
	assert.Positive(t, res.Evaluations)
	assert.Equal(t, "sin(x)*cos(y)", res.Function)
	assert.Equal(t, "sin(x)*cos(y)", res.Canonical)
	assert.Equal(t, domain.Domain{XMin: 0, XMax: math.Pi, YMin: 0, YMax: math.Pi / 2}, res.Domain)
	require.NotNil(t, res.Grid)
	assert.Equal(t, 20, res.Grid.N)
	assert.Equal(t, math.Pi, res.Grid.X[0][19])
	assert.Positive(t, res.Duration)

	assert.Contains(t, logs.String(), `"msg":"volume calculated"`)
}

func TestCalculateDefaultResolutionAndSkipGrid(t *testing.T) {
	c, _ := newCalculator(t, Config{})

	res, err := c.Calculate(context.Background(), Request{Function: "x + y", A: 0, B: 1, C: 0, D: 1})
	require.NoError(t, err)
	require.NotNil(t, res.Grid)
	assert.Equal(t, domain.DefaultResolution, res.Grid.N)

	res, err = c.Calculate(context.Background(), Request{Function: "x + y", A: 0, B: 1, C: 0, D: 1, SkipGrid: true, Resolution: 1000})
	require.NoError(t, err)
	assert.Nil(t, res.Grid)
	assert.InDelta(t, 1.0, res.Volume, 1e-9)
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		code string
	}{
		{name: "empty function", req: Request{Function: "  ", A: 0, B: 1, C: 0, D: 1}, code: domain.CodeParse},
		{name: "unknown symbol", req: Request{Function: "import(x)", A: 0, B: 1, C: 0, D: 1}, code: domain.CodeParse},
		{name: "inverted x", req: Request{Function: "x", A: 1, B: 0, C: 0, D: 1}, code: domain.CodeDomain},
		{name: "empty y", req: Request{Function: "x", A: 0, B: 1, C: 2, D: 2}, code: domain.CodeDomain},
		{name: "resolution", req: Request{Function: "x", A: 0, B: 1, C: 0, D: 1, Resolution: 151}, code: domain.CodeDomain},
		{name: "centroid singularity", req: Request{Function: "1/(x**2 + y**2)", A: -1, B: 1, C: -1, D: 1}, code: domain.CodeNonFinite},
		{name: "singular inside", req: Request{Function: "log(x)", A: -1, B: 3, C: 0, D: 1}, code: domain.CodeIntegration},
		{name: "divergent integral", req: Request{Function: "1/abs(x - 0.3)", A: 0, B: 1, C: 0, D: 1}, code: domain.CodeConvergence},
	}

	c, logs := newCalculator(t, Config{Integration: quadrature.Options{AbsTol: 1e-8, RelTol: 1e-8, MaxDepth: 8}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Calculate(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.code, domain.ErrorCode(err), "error: %v", err)
		})
	}
	assert.Contains(t, logs.String(), `"msg":"calculation failed"`)
}

// The centroid probe passes and the integral converges, but the grid lands
// exactly on the singular line.
func TestCalculateGridNonFinite(t *testing.T) {
	c, _ := newCalculator(t, Config{})
	_, err := c.Calculate(context.Background(), Request{
		Function: "sqrt(x) / sqrt(x)", A: 0, B: 1, C: 0, D: 1, Resolution: 10,
	})
	var nf *domain.NonFiniteError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "grid", nf.Stage)
	assert.Equal(t, 0, nf.Col)
}

func TestCalculateTimeout(t *testing.T) {
	c, _ := newCalculator(t, Config{Timeout: time.Nanosecond})

	_, err := c.Calculate(context.Background(), Request{Function: "exp(-(x**2 + y**2))", A: -2, B: 2, C: -2, D: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.CodeTimeout, domain.ErrorCode(err))
}

func TestReconfigure(t *testing.T) {
	c, _ := newCalculator(t, Config{})
	assert.Equal(t, quadrature.DefaultOptions(), c.Options())

	err := c.Reconfigure(quadrature.Options{AbsTol: -1, RelTol: 1, MaxDepth: 3}, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidDomain)
	assert.Equal(t, quadrature.DefaultOptions(), c.Options(), "invalid settings are not applied")

	assert.Error(t, c.Reconfigure(quadrature.DefaultOptions(), 5, 0))

	next := quadrature.Options{AbsTol: 1e-6, RelTol: 1e-6, MaxDepth: 12, Workers: 2}
	require.NoError(t, c.Reconfigure(next, 30, time.Second))
	assert.Equal(t, next, c.Options())

	res, err := c.Calculate(context.Background(), Request{Function: "1", A: 0, B: 2, C: 0, D: 3})
	require.NoError(t, err)
	assert.Equal(t, 30, res.Grid.N)
	assert.InDelta(t, 6.0, res.Volume, 1e-9)

	_, err = NewCalculator(Config{DefaultResolution: 2})
	assert.Error(t, err)
}

func TestCalculateTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	c, _ := newCalculator(t, Config{})
	_, err := c.Calculate(context.Background(), Request{Function: "x*y", A: 0, B: 1, C: 0, D: 2, SkipGrid: true})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "volume.calculate", spans[0].Name())
	attrs := attribute.NewSet(spans[0].Attributes()...)
	expression, ok := attrs.Value("calculation.expression")
	require.True(t, ok)
	assert.Equal(t, "x*y", expression.AsString())
	volume, ok := attrs.Value("calculation.volume")
	require.True(t, ok)
	assert.InDelta(t, 1.0, volume.AsFloat64(), 1e-9)
}

func TestExamples(t *testing.T) {
	c, _ := newCalculator(t, Config{})
	examples := Examples()
	require.Len(t, examples, 4)

	for _, ex := range examples {
		t.Run(ex.Name, func(t *testing.T) {
			res, err := c.Calculate(context.Background(), ex.Request())
			require.NoError(t, err)
			assert.InDelta(t, ex.Expected, res.Volume, 1e-6)
		})
	}
}
