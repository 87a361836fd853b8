// Package expr compiles algebraic expressions in x and y into pure numeric
// functions.
//
// The accepted language is deliberately small: the variables x and y, the
// constants pi and e, numeric literals, the one-argument functions sin, cos,
// tan, exp, log, sqrt and abs, the operators + - * / ** and parentheses.
// Expressions are parsed by a recursive-descent parser into an immutable
// syntax tree that is interpreted directly; nothing is ever handed to a
// general-purpose evaluator.
//
// Numeric domain problems (division by zero, log of a non-positive value,
// sqrt of a negative value, tan at an asymptote) produce IEEE Inf or NaN
// instead of errors. Finiteness is checked by the callers that sample the
// function.
package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
)

const (
	// MaxExpressionLength bounds the accepted source text in bytes.
	MaxExpressionLength = 4096
	// MaxDepth bounds the nesting of unary operators, parentheses and calls.
	MaxDepth = 256
)

// ErrShapeMismatch indicates EvalBatch was given slices of different lengths.
var ErrShapeMismatch = errors.New("x and y batches differ in length")

// Function is a compiled expression. It holds only the immutable syntax tree,
// so a single Function may be evaluated from many goroutines at once.
type Function struct {
	source string
	root   node
}

// Parse compiles text into a Function. Failures are *domain.ParseError values
// of kind SyntaxError, UnknownSymbol or ArityError.
func Parse(text string) (*Function, error) {
	source := strings.TrimSpace(text)
	if source == "" {
		return nil, &domain.ParseError{Kind: domain.SyntaxError, Msg: "empty expression"}
	}
	if len(source) > MaxExpressionLength {
		return nil, &domain.ParseError{
			Kind: domain.SyntaxError,
			Msg:  fmt.Sprintf("expression longer than %d bytes", MaxExpressionLength),
		}
	}

	p := newParser(newLexer(source))
	root, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokenEOF); err != nil {
		return nil, err
	}

	return &Function{source: source, root: root}, nil
}

// MustParse is like Parse but panics on error. Intended for fixed expressions
// in tests and examples.
func MustParse(text string) *Function {
	f, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return f
}

// Eval returns f(x, y).
func (f *Function) Eval(x, y float64) float64 {
	return f.root.eval(x, y)
}

// EvalBatch evaluates f elementwise over xs and ys, walking the syntax tree
// once for the whole batch. The result is a fresh slice owned by the caller.
func (f *Function) EvalBatch(xs, ys []float64) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("%w: %d != %d", ErrShapeMismatch, len(xs), len(ys))
	}
	out := f.root.evalBatch(xs, ys)
	if len(xs) > 0 && (&out[0] == &xs[0] || &out[0] == &ys[0]) {
		out = append([]float64(nil), out...)
	}
	return out, nil
}

// Source returns the trimmed text the function was parsed from.
func (f *Function) Source() string {
	return f.source
}

// String returns a canonical rendering of the syntax tree that parses back
// to an equivalent function.
func (f *Function) String() string {
	return f.root.String()
}
