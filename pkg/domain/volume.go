package domain

import (
	"fmt"
	"math"
)

// Grid resolution bounds. A SampleGrid holds 3·N² floats, so N is capped.
const (
	MinResolution     = 10
	MaxResolution     = 150
	DefaultResolution = 50
)

// Domain is the integration rectangle [XMin, XMax] × [YMin, YMax].
type Domain struct {
	XMin float64 `json:"a"`
	XMax float64 `json:"b"`
	YMin float64 `json:"c"`
	YMax float64 `json:"d"`
}

// NewDomain validates and returns the rectangle [a, b] × [c, d].
func NewDomain(a, b, c, d float64) (Domain, error) {
	dom := Domain{XMin: a, XMax: b, YMin: c, YMax: d}
	if err := dom.Validate(); err != nil {
		return Domain{}, err
	}
	return dom, nil
}

// Validate checks that all bounds are finite and that a < b and c < d.
func (d Domain) Validate() error {
	bounds := []struct {
		name  string
		value float64
	}{
		{"a", d.XMin}, {"b", d.XMax}, {"c", d.YMin}, {"d", d.YMax},
	}
	for _, b := range bounds {
		if math.IsNaN(b.value) || math.IsInf(b.value, 0) {
			return &DomainError{Field: b.name, Msg: fmt.Sprintf("bound must be finite, got %g", b.value)}
		}
	}
	if d.XMin >= d.XMax {
		return &DomainError{Field: "a,b", Msg: fmt.Sprintf("a < b must hold, got a=%g b=%g", d.XMin, d.XMax)}
	}
	if d.YMin >= d.YMax {
		return &DomainError{Field: "c,d", Msg: fmt.Sprintf("c < d must hold, got c=%g d=%g", d.YMin, d.YMax)}
	}
	return nil
}

// Centroid returns the midpoint of the rectangle.
func (d Domain) Centroid() (x, y float64) {
	return (d.XMin + d.XMax) / 2, (d.YMin + d.YMax) / 2
}

// Area returns (b-a)(d-c).
func (d Domain) Area() float64 {
	return (d.XMax - d.XMin) * (d.YMax - d.YMin)
}

func (d Domain) String() string {
	return fmt.Sprintf("[%g, %g] x [%g, %g]", d.XMin, d.XMax, d.YMin, d.YMax)
}

// IntegrationResult is the outcome of a double integral. ErrorEstimate is a
// conservative quadrature bound, not a confidence interval.
type IntegrationResult struct {
	Volume        float64 `json:"volume"`
	ErrorEstimate float64 `json:"error"`
	Evaluations   int     `json:"evaluations"`
}

// SampleGrid is an N×N mesh with X[i][j] = xs[j], Y[i][j] = ys[i] and
// Z[i][j] = f(X[i][j], Y[i][j]).
type SampleGrid struct {
	N int         `json:"n"`
	X [][]float64 `json:"x"`
	Y [][]float64 `json:"y"`
	Z [][]float64 `json:"z"`
}

// ValidateResolution checks MinResolution <= n <= MaxResolution.
func ValidateResolution(n int) error {
	if n < MinResolution || n > MaxResolution {
		return &DomainError{
			Field: "resolution",
			Msg:   fmt.Sprintf("must be within [%d, %d], got %d", MinResolution, MaxResolution, n),
		}
	}
	return nil
}
