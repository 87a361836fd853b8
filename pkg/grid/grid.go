// Package grid samples a surface on a regular mesh for visualization.
package grid

import (
	"fmt"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/validate"
	"gonum.org/v1/gonum/floats"
)

// BatchEvaluator evaluates a surface elementwise over equal-length slices.
// *expr.Function satisfies it.
type BatchEvaluator interface {
	EvalBatch(xs, ys []float64) ([]float64, error)
}

// Linspace returns n evenly spaced values from lo to hi inclusive. The last
// value is exactly hi.
func Linspace(lo, hi float64, n int) []float64 {
	out := floats.Span(make([]float64, n), lo, hi)
	out[n-1] = hi
	return out
}

// Sample evaluates f on an n x n mesh over [a,b] x [c,d]. Row i holds the
// points with y = ys[i] and column j those with x = xs[j], so X[0][0] = a,
// X[i][n-1] = b, Y[0][j] = c and Y[n-1][j] = d.
//
// The whole mesh is evaluated in a single batch. Any NaN or infinite sample
// fails with *domain.NonFiniteError; values are never substituted.
func Sample(f BatchEvaluator, a, b, c, d float64, n int) (domain.SampleGrid, error) {
	rect, err := domain.NewDomain(a, b, c, d)
	if err != nil {
		return domain.SampleGrid{}, err
	}
	if err := domain.ValidateResolution(n); err != nil {
		return domain.SampleGrid{}, err
	}

	xs := Linspace(rect.XMin, rect.XMax, n)
	ys := Linspace(rect.YMin, rect.YMax, n)

	flatX := make([]float64, 0, n*n)
	flatY := make([]float64, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			flatX = append(flatX, xs[j])
			flatY = append(flatY, ys[i])
		}
	}

	flatZ, err := f.EvalBatch(flatX, flatY)
	if err != nil {
		return domain.SampleGrid{}, fmt.Errorf("evaluate grid: %w", err)
	}
	if err := validate.Values(flatX, flatY, flatZ, n); err != nil {
		return domain.SampleGrid{}, err
	}

	g := domain.SampleGrid{
		N: n,
		X: make([][]float64, n),
		Y: make([][]float64, n),
		Z: make([][]float64, n),
	}
	for i := 0; i < n; i++ {
		g.X[i] = flatX[i*n : (i+1)*n : (i+1)*n]
		g.Y[i] = flatY[i*n : (i+1)*n : (i+1)*n]
		g.Z[i] = flatZ[i*n : (i+1)*n : (i+1)*n]
	}
	return g, nil
}
