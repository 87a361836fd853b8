package quadrature

import (
	"fmt"
	"math"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
)

const (
	// DefaultAbsTol and DefaultRelTol match the defaults of the classic
	// double-integration routines (QUADPACK dblquad).
	DefaultAbsTol = 1.49e-8
	DefaultRelTol = 1.49e-8
	// DefaultMaxDepth bounds bisection per dimension.
	DefaultMaxDepth = 30
)

// Options tune the adaptive integrator.
type Options struct {
	// AbsTol is the absolute error target for the outer integral.
	AbsTol float64 `yaml:"abs_tol" json:"abs_tol"`
	// RelTol is the error target relative to the magnitude of the estimate.
	RelTol float64 `yaml:"rel_tol" json:"rel_tol"`
	// MaxDepth is the maximum number of bisections of any subinterval.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// Workers bounds how many outer nodes are integrated concurrently.
	// Zero or one keeps everything on the calling goroutine.
	Workers int `yaml:"workers" json:"workers"`
}

// DefaultOptions returns the integrator defaults.
func DefaultOptions() Options {
	return Options{
		AbsTol:   DefaultAbsTol,
		RelTol:   DefaultRelTol,
		MaxDepth: DefaultMaxDepth,
		Workers:  1,
	}
}

// Validate reports option combinations the integrator cannot honour.
func (o Options) Validate() error {
	if math.IsNaN(o.AbsTol) || o.AbsTol < 0 {
		return &domain.DomainError{Field: "abs_tol", Msg: fmt.Sprintf("must be a non-negative number, got %g", o.AbsTol)}
	}
	if math.IsNaN(o.RelTol) || o.RelTol < 0 {
		return &domain.DomainError{Field: "rel_tol", Msg: fmt.Sprintf("must be a non-negative number, got %g", o.RelTol)}
	}
	if o.AbsTol == 0 && o.RelTol == 0 {
		return &domain.DomainError{Field: "abs_tol,rel_tol", Msg: "at least one tolerance must be positive"}
	}
	if o.MaxDepth < 1 {
		return &domain.DomainError{Field: "max_depth", Msg: fmt.Sprintf("must be at least 1, got %d", o.MaxDepth)}
	}
	if o.Workers < 0 {
		return &domain.DomainError{Field: "workers", Msg: fmt.Sprintf("must not be negative, got %d", o.Workers)}
	}
	return nil
}
