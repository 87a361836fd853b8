// Package validate holds the finiteness checks shared by the integrator and
// the grid generator.
//
// The centroid probe is a cheap precondition only: a surface can be finite at
// the centre of the rectangle and singular elsewhere, so every consumer still
// checks the points it actually samples.
package validate

import (
	"fmt"
	"math"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
)

// Evaluable is a pointwise surface z = f(x, y).
type Evaluable interface {
	Eval(x, y float64) float64
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Probe evaluates f once at the centroid of d.
func Probe(f Evaluable, d domain.Domain) error {
	if err := d.Validate(); err != nil {
		return err
	}
	x, y := d.Centroid()
	if v := f.Eval(x, y); !IsFinite(v) {
		return &domain.NonFiniteError{Stage: "probe", X: x, Y: y, Value: v, Row: -1, Col: -1}
	}
	return nil
}

// Grid fails on the first non-finite Z entry in row-major order.
func Grid(g domain.SampleGrid) error {
	if len(g.Z) != len(g.X) || len(g.Z) != len(g.Y) {
		return fmt.Errorf("grid rows mismatch: x=%d y=%d z=%d", len(g.X), len(g.Y), len(g.Z))
	}
	for i, row := range g.Z {
		if len(row) != len(g.X[i]) || len(row) != len(g.Y[i]) {
			return fmt.Errorf("grid row %d length mismatch", i)
		}
		for j, v := range row {
			if !IsFinite(v) {
				return &domain.NonFiniteError{Stage: "grid", X: g.X[i][j], Y: g.Y[i][j], Value: v, Row: i, Col: j}
			}
		}
	}
	return nil
}

// Values checks a flattened batch: zs[k] = f(xs[k], ys[k]). cols maps the
// flat index back onto grid coordinates; pass 0 for an unshaped batch.
func Values(xs, ys, zs []float64, cols int) error {
	if len(xs) != len(zs) || len(ys) != len(zs) {
		return fmt.Errorf("batch length mismatch: x=%d y=%d z=%d", len(xs), len(ys), len(zs))
	}
	for k, v := range zs {
		if IsFinite(v) {
			continue
		}
		row, col := -1, -1
		if cols > 0 {
			row, col = k/cols, k%cols
		}
		return &domain.NonFiniteError{Stage: "grid", X: xs[k], Y: ys[k], Value: v, Row: row, Col: col}
	}
	return nil
}
