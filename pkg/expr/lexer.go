package expr

import (
	"strings"
	"unicode/utf8"
)

type tokenType int

type token struct {
	typ     tokenType
	literal string
	pos     int
}

const (
	tokenIllegal tokenType = iota
	tokenEOF
	tokenIdentifier
	tokenNumber
	tokenPlus
	tokenMinus
	tokenStar
	tokenSlash
	tokenPow
	tokenLParen
	tokenRParen
	tokenComma
)

func (t tokenType) String() string {
	switch t {
	case tokenIllegal:
		return "illegal"
	case tokenEOF:
		return "end of input"
	case tokenIdentifier:
		return "identifier"
	case tokenNumber:
		return "number"
	case tokenPlus:
		return "+"
	case tokenMinus:
		return "-"
	case tokenStar:
		return "*"
	case tokenSlash:
		return "/"
	case tokenPow:
		return "**"
	case tokenLParen:
		return "("
	case tokenRParen:
		return ")"
	case tokenComma:
		return ","
	default:
		return "unknown"
	}
}

type lexer struct {
	input  string
	length int
	pos    int
}

func newLexer(input string) *lexer {
	return &lexer{input: input, length: len(input)}
}

func (l *lexer) nextToken() token {
	l.skipWhitespace()
	if l.pos >= l.length {
		return token{typ: tokenEOF, pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '(':
		l.pos++
		return token{typ: tokenLParen, literal: "(", pos: start}
	case ')':
		l.pos++
		return token{typ: tokenRParen, literal: ")", pos: start}
	case ',':
		l.pos++
		return token{typ: tokenComma, literal: ",", pos: start}
	case '+':
		l.pos++
		return token{typ: tokenPlus, literal: "+", pos: start}
	case '-':
		l.pos++
		return token{typ: tokenMinus, literal: "-", pos: start}
	case '/':
		l.pos++
		return token{typ: tokenSlash, literal: "/", pos: start}
	case '*':
		if l.peek() == '*' {
			l.pos += 2
			return token{typ: tokenPow, literal: "**", pos: start}
		}
		l.pos++
		return token{typ: tokenStar, literal: "*", pos: start}
	}

	if isDigit(ch) || (ch == '.' && isDigit(l.peek())) {
		return l.scanNumber()
	}

	if isIdentifierStart(ch) {
		return l.scanIdentifier()
	}

	// Consume a whole rune so the literal stays valid UTF-8.
	_, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size
	return token{typ: tokenIllegal, literal: l.input[start:l.pos], pos: start}
}

func (l *lexer) skipWhitespace() {
	for l.pos < l.length {
		switch l.input[l.pos] {
		case ' ', '\t', '\n', '\r':
			l.pos++
		default:
			return
		}
	}
}

func (l *lexer) peek() byte {
	if l.pos+1 >= l.length {
		return 0
	}
	return l.input[l.pos+1]
}

func (l *lexer) at(i int) byte {
	if i >= l.length {
		return 0
	}
	return l.input[i]
}

// scanNumber accepts digits with an optional fraction and an optional
// exponent. The exponent marker is only consumed when digits follow it, so
// "2e" lexes as the number 2 followed by the identifier e.
func (l *lexer) scanNumber() token {
	start := l.pos
	for l.pos < l.length && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.at(l.pos) == '.' {
		l.pos++
		for l.pos < l.length && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if c := l.at(l.pos); c == 'e' || c == 'E' {
		next := l.pos + 1
		if s := l.at(next); s == '+' || s == '-' {
			next++
		}
		if isDigit(l.at(next)) {
			l.pos = next
			for l.pos < l.length && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	return token{typ: tokenNumber, literal: l.input[start:l.pos], pos: start}
}

func (l *lexer) scanIdentifier() token {
	start := l.pos
	for l.pos < l.length && isIdentifierPart(l.input[l.pos]) {
		l.pos++
	}
	return token{typ: tokenIdentifier, literal: strings.Clone(l.input[start:l.pos]), pos: start}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentifierPart(ch byte) bool {
	return isIdentifierStart(ch) || isDigit(ch)
}
