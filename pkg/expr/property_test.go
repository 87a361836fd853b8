package expr

import (
	"math"
	"strconv"
	"testing"

	"pgregory.net/rapid"
)

// genExpression draws a random expression over the full grammar.
func genExpression(t *rapid.T, depth int) string {
	if depth <= 0 {
		return genAtom(t)
	}
	switch rapid.IntRange(0, 5).Draw(t, "shape") {
	case 0:
		return genAtom(t)
	case 1:
		return "-" + genExpression(t, depth-1)
	case 2:
		fn := rapid.SampledFrom([]string{"sin", "cos", "tan", "exp", "log", "sqrt", "abs"}).Draw(t, "fn")
		return fn + "(" + genExpression(t, depth-1) + ")"
	case 3:
		return "(" + genExpression(t, depth-1) + ")"
	default:
		op := rapid.SampledFrom([]string{"+", "-", "*", "/", "**"}).Draw(t, "op")
		return genExpression(t, depth-1) + " " + op + " " + genExpression(t, depth-1)
	}
}

func genAtom(t *rapid.T) string {
	switch rapid.IntRange(0, 2).Draw(t, "atom") {
	case 0:
		return rapid.SampledFrom([]string{"x", "y", "pi", "e"}).Draw(t, "ident")
	case 1:
		return strconv.Itoa(rapid.IntRange(0, 100).Draw(t, "int"))
	default:
		return strconv.FormatFloat(rapid.Float64Range(0, 10).Draw(t, "float"), 'g', -1, 64)
	}
}

func sameFloat(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Float64bits(a) == math.Float64bits(b)
}

// Canonical printing must parse back into a tree that evaluates identically.
func TestCanonicalStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		src := genExpression(t, 4)
		f, err := Parse(src)
		if err != nil {
			t.Fatalf("generated expression %q failed to parse: %v", src, err)
		}

		canonical := f.String()
		g, err := Parse(canonical)
		if err != nil {
			t.Fatalf("canonical form %q of %q failed to parse: %v", canonical, src, err)
		}
		if again := g.String(); again != canonical {
			t.Fatalf("canonical form not stable: %q -> %q", canonical, again)
		}

		x := rapid.Float64Range(-5, 5).Draw(t, "x")
		y := rapid.Float64Range(-5, 5).Draw(t, "y")
		if a, b := f.Eval(x, y), g.Eval(x, y); !sameFloat(a, b) {
			t.Fatalf("%q and %q disagree at (%g, %g): %g vs %g", src, canonical, x, y, a, b)
		}
	})
}

// Batched evaluation is the scalar interpreter applied elementwise.
func TestEvalBatchMatchesEval(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := MustParse(genExpression(t, 3))
		n := rapid.IntRange(1, 32).Draw(t, "n")
		xs := make([]float64, n)
		ys := make([]float64, n)
		for i := range xs {
			xs[i] = rapid.Float64Range(-10, 10).Draw(t, "x")
			ys[i] = rapid.Float64Range(-10, 10).Draw(t, "y")
		}

		got, err := f.EvalBatch(xs, ys)
		if err != nil {
			t.Fatalf("EvalBatch: %v", err)
		}
		for i := range xs {
			if want := f.Eval(xs[i], ys[i]); !sameFloat(got[i], want) {
				t.Fatalf("%s at index %d: batch %g, scalar %g", f, i, got[i], want)
			}
		}
	})
}
