package expr

import (
	"math"
	"strconv"
)

// precedence describes how tightly a node holds together when printed.
// Higher binds tighter.
type precedence int

const (
	addPrecedence precedence = iota
	mulPrecedence
	negPrecedence
	powPrecedence
	atomicPrecedence
)

// node is an immutable subtree. Every method is safe for concurrent use.
type node interface {
	eval(x, y float64) float64
	// evalBatch evaluates the subtree elementwise over equal-length slices.
	// The returned slice may alias xs or ys and must be treated as read-only.
	evalBatch(xs, ys []float64) []float64
	precedence() precedence
	String() string
}

type numberExpr struct {
	value float64
}

func (n *numberExpr) eval(_, _ float64) float64 { return n.value }

func (n *numberExpr) evalBatch(xs, _ []float64) []float64 {
	return fill(len(xs), n.value)
}

func (n *numberExpr) precedence() precedence { return atomicPrecedence }

func (n *numberExpr) String() string {
	return strconv.FormatFloat(n.value, 'g', -1, 64)
}

type variableExpr struct {
	name string
}

func (n *variableExpr) eval(x, y float64) float64 {
	if n.name == "x" {
		return x
	}
	return y
}

func (n *variableExpr) evalBatch(xs, ys []float64) []float64 {
	if n.name == "x" {
		return xs
	}
	return ys
}

func (n *variableExpr) precedence() precedence { return atomicPrecedence }

func (n *variableExpr) String() string { return n.name }

type constantExpr struct {
	name  string
	value float64
}

func (n *constantExpr) eval(_, _ float64) float64 { return n.value }

func (n *constantExpr) evalBatch(xs, _ []float64) []float64 {
	return fill(len(xs), n.value)
}

func (n *constantExpr) precedence() precedence { return atomicPrecedence }

func (n *constantExpr) String() string { return n.name }

type negExpr struct {
	operand node
}

func (n *negExpr) eval(x, y float64) float64 {
	return -n.operand.eval(x, y)
}

func (n *negExpr) evalBatch(xs, ys []float64) []float64 {
	in := n.operand.evalBatch(xs, ys)
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = -v
	}
	return out
}

func (n *negExpr) precedence() precedence { return negPrecedence }

func (n *negExpr) String() string {
	if n.operand.precedence() <= negPrecedence {
		return "-(" + n.operand.String() + ")"
	}
	return "-" + n.operand.String()
}

type binaryOp int

const (
	opAdd binaryOp = iota
	opSub
	opMul
	opDiv
	opPow
)

func (op binaryOp) apply(l, r float64) float64 {
	switch op {
	case opAdd:
		return l + r
	case opSub:
		return l - r
	case opMul:
		return l * r
	case opDiv:
		return l / r
	default:
		return math.Pow(l, r)
	}
}

func (op binaryOp) precedence() precedence {
	switch op {
	case opAdd, opSub:
		return addPrecedence
	case opMul, opDiv:
		return mulPrecedence
	default:
		return powPrecedence
	}
}

func (op binaryOp) String() string {
	switch op {
	case opAdd:
		return " + "
	case opSub:
		return " - "
	case opMul:
		return "*"
	case opDiv:
		return "/"
	default:
		return "**"
	}
}

type binaryExpr struct {
	op    binaryOp
	left  node
	right node
}

func (n *binaryExpr) eval(x, y float64) float64 {
	return n.op.apply(n.left.eval(x, y), n.right.eval(x, y))
}

func (n *binaryExpr) evalBatch(xs, ys []float64) []float64 {
	l := n.left.evalBatch(xs, ys)
	r := n.right.evalBatch(xs, ys)
	out := make([]float64, len(l))
	switch n.op {
	case opAdd:
		for i := range out {
			out[i] = l[i] + r[i]
		}
	case opSub:
		for i := range out {
			out[i] = l[i] - r[i]
		}
	case opMul:
		for i := range out {
			out[i] = l[i] * r[i]
		}
	case opDiv:
		for i := range out {
			out[i] = l[i] / r[i]
		}
	default:
		for i := range out {
			out[i] = math.Pow(l[i], r[i])
		}
	}
	return out
}

func (n *binaryExpr) precedence() precedence { return n.op.precedence() }

// String parenthesizes children so that re-parsing yields the same tree:
// + - * / are left-associative and ** is right-associative.
func (n *binaryExpr) String() string {
	p := n.op.precedence()
	left := n.left.String()
	right := n.right.String()

	lp := n.left.precedence()
	if lp < p || (n.op == opPow && lp <= p) {
		left = "(" + left + ")"
	}
	rp := n.right.precedence()
	if rp < p || (n.op != opPow && rp == p) {
		right = "(" + right + ")"
	}
	return left + n.op.String() + right
}

type callExpr struct {
	name string
	fn   func(float64) float64
	arg  node
}

func (n *callExpr) eval(x, y float64) float64 {
	return n.fn(n.arg.eval(x, y))
}

func (n *callExpr) evalBatch(xs, ys []float64) []float64 {
	in := n.arg.evalBatch(xs, ys)
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = n.fn(v)
	}
	return out
}

func (n *callExpr) precedence() precedence { return atomicPrecedence }

func (n *callExpr) String() string {
	return n.name + "(" + n.arg.String() + ")"
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
