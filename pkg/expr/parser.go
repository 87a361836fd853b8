package expr

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/AvilaCamacho/CalculadoraFunciones/pkg/domain"
)

// functions is the whitelist of callable names. Each takes exactly one argument.
var functions = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"exp":  math.Exp,
	"log":  math.Log,
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func isVariable(name string) bool {
	return name == "x" || name == "y"
}

type parser struct {
	lex   *lexer
	cur   token
	peek  token
	depth int
}

func newParser(lex *lexer) *parser {
	p := &parser{lex: lex}
	p.nextToken()
	p.nextToken()
	return p
}

func (p *parser) nextToken() {
	p.cur = p.peek
	p.peek = p.lex.nextToken()
}

// enter guards the recursive descent against pathological nesting.
func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return &domain.ParseError{
			Kind:   domain.SyntaxError,
			Symbol: p.cur.literal,
			Pos:    p.cur.pos,
			Msg:    fmt.Sprintf("expression nested deeper than %d levels", MaxDepth),
		}
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

// parseExpression handles + and -.
func (p *parser) parseExpression() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.cur.typ == tokenPlus || p.cur.typ == tokenMinus {
		op := opAdd
		if p.cur.typ == tokenMinus {
			op = opSub
		}
		p.nextToken()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: op, left: left, right: right}
	}
	return left, nil
}

// parseTerm handles * and /.
func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.cur.typ == tokenStar || p.cur.typ == tokenSlash {
		op := opMul
		if p.cur.typ == tokenSlash {
			op = opDiv
		}
		p.nextToken()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: op, left: left, right: right}
	}
	return left, nil
}

// parseUnary handles prefix signs. A leading minus applies to the whole
// power expression that follows, so -x**2 is -(x**2).
func (p *parser) parseUnary() (node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	switch p.cur.typ {
	case tokenMinus:
		p.nextToken()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negExpr{operand: operand}, nil
	case tokenPlus:
		p.nextToken()
		return p.parseUnary()
	}
	return p.parsePower()
}

// parsePower handles the right-associative ** operator. The exponent is a
// unary expression so that 2**-1 is accepted.
func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.cur.typ != tokenPow {
		return base, nil
	}
	p.nextToken()
	exponent, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &binaryExpr{op: opPow, left: base, right: exponent}, nil
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.cur
	switch tok.typ {
	case tokenNumber:
		p.nextToken()
		value, err := strconv.ParseFloat(tok.literal, 64)
		if err != nil {
			msg := "invalid number"
			if errors.Is(err, strconv.ErrRange) {
				msg = "number out of range"
			}
			return nil, &domain.ParseError{Kind: domain.SyntaxError, Symbol: tok.literal, Pos: tok.pos, Msg: msg}
		}
		return &numberExpr{value: value}, nil
	case tokenIdentifier:
		p.nextToken()
		if p.cur.typ == tokenLParen {
			return p.parseCall(tok)
		}
		return identifier(tok)
	case tokenLParen:
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		p.nextToken()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		p.nextToken()
		return inner, nil
	default:
		return nil, p.unexpected()
	}
}

func identifier(tok token) (node, error) {
	if isVariable(tok.literal) {
		return &variableExpr{name: tok.literal}, nil
	}
	if value, ok := constants[tok.literal]; ok {
		return &constantExpr{name: tok.literal, value: value}, nil
	}
	if _, ok := functions[tok.literal]; ok {
		return nil, &domain.ParseError{
			Kind: domain.ArityError, Symbol: tok.literal, Pos: tok.pos,
			Msg: "function must be called with exactly one argument",
		}
	}
	return nil, &domain.ParseError{Kind: domain.UnknownSymbol, Symbol: tok.literal, Pos: tok.pos, Msg: "unknown identifier"}
}

// parseCall parses name(arg, ...) with p.cur on the opening parenthesis.
// Arity is checked after the argument list so that sin(x, y) reports an
// arity problem rather than a syntax one.
func (p *parser) parseCall(name token) (node, error) {
	fn, ok := functions[name.literal]
	if !ok {
		msg := "unknown function"
		if _, isConst := constants[name.literal]; isConst || isVariable(name.literal) {
			msg = "not a function"
		}
		return nil, &domain.ParseError{Kind: domain.UnknownSymbol, Symbol: name.literal, Pos: name.pos, Msg: msg}
	}

	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	p.nextToken()
	var args []node
	if p.cur.typ != tokenRParen {
		for {
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.cur.typ != tokenComma {
				break
			}
			p.nextToken()
		}
	}
	if err := p.expect(tokenRParen); err != nil {
		return nil, err
	}
	p.nextToken()

	if len(args) != 1 {
		return nil, &domain.ParseError{
			Kind: domain.ArityError, Symbol: name.literal, Pos: name.pos,
			Msg: fmt.Sprintf("takes exactly 1 argument, got %d", len(args)),
		}
	}
	return &callExpr{name: name.literal, fn: fn, arg: args[0]}, nil
}

func (p *parser) expect(expected tokenType) error {
	if p.cur.typ != expected {
		return p.unexpected()
	}
	return nil
}

func (p *parser) unexpected() error {
	switch p.cur.typ {
	case tokenIllegal:
		return &domain.ParseError{Kind: domain.SyntaxError, Symbol: p.cur.literal, Pos: p.cur.pos, Msg: "illegal character"}
	case tokenEOF:
		return &domain.ParseError{Kind: domain.SyntaxError, Pos: p.cur.pos, Msg: "unexpected end of input"}
	default:
		return &domain.ParseError{Kind: domain.SyntaxError, Symbol: p.cur.literal, Pos: p.cur.pos, Msg: "unexpected token"}
	}
}
