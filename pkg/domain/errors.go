package domain

import (
	"errors"
	"fmt"
)

// Common domain errors. Typed errors below unwrap to one of these so callers
// can branch with errors.Is without caring about the carried context.
var (
	ErrSyntax           = errors.New("syntax error")
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrArity            = errors.New("arity error")
	ErrInvalidDomain    = errors.New("invalid domain")
	ErrNonFinite        = errors.New("non-finite value")
	ErrIntegration      = errors.New("integration failed")
	ErrConvergence      = errors.New("tolerance not reached")
	ErrDeadlineExceeded = errors.New("computation deadline exceeded")
)

// ParseErrorKind classifies expression parse failures.
type ParseErrorKind int

const (
	SyntaxError ParseErrorKind = iota
	UnknownSymbol
	ArityError
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnknownSymbol:
		return "UnknownSymbol"
	case ArityError:
		return "ArityError"
	default:
		return "SyntaxError"
	}
}

// ParseError reports an expression that falls outside the accepted grammar.
// Pos is the byte offset of Symbol in the source text.
type ParseError struct {
	Kind   ParseErrorKind
	Symbol string
	Pos    int
	Msg    string
}

func (e *ParseError) Error() string {
	switch {
	case e.Symbol != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s %q at offset %d", e.Unwrap(), e.Msg, e.Symbol, e.Pos)
	case e.Symbol != "":
		return fmt.Sprintf("%s: %q at offset %d", e.Unwrap(), e.Symbol, e.Pos)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Unwrap(), e.Msg)
	}
	return e.Unwrap().Error()
}

func (e *ParseError) Unwrap() error {
	switch e.Kind {
	case UnknownSymbol:
		return ErrUnknownSymbol
	case ArityError:
		return ErrArity
	default:
		return ErrSyntax
	}
}

// DomainError reports an invalid integration rectangle, grid resolution or
// tolerance setting.
//
//nolint:revive // Name mirrors the error taxonomy used by callers
type DomainError struct {
	Field string
	Msg   string
}

func (e *DomainError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidDomain, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidDomain, e.Field, e.Msg)
}

func (e *DomainError) Unwrap() error {
	return ErrInvalidDomain
}

// NonFiniteError reports a NaN or infinite sample found by the centroid probe
// or by grid validation. Row and Col are -1 for the probe.
type NonFiniteError struct {
	Stage string
	X, Y  float64
	Value float64
	Row   int
	Col   int
}

func (e *NonFiniteError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s: f(%g, %g) = %g during %s", ErrNonFinite, e.X, e.Y, e.Value, e.Stage)
	}
	return fmt.Sprintf("%s: f(%g, %g) = %g during %s (grid cell [%d][%d])",
		ErrNonFinite, e.X, e.Y, e.Value, e.Stage, e.Row, e.Col)
}

func (e *NonFiniteError) Unwrap() error {
	return ErrNonFinite
}

// IntegrationError reports a non-finite integrand value met during quadrature.
type IntegrationError struct {
	X, Y  float64
	Value float64
	Msg   string
}

func (e *IntegrationError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "integrand is not finite"
	}
	return fmt.Sprintf("%s: %s at (x=%g, y=%g): %g", ErrIntegration, msg, e.X, e.Y, e.Value)
}

func (e *IntegrationError) Unwrap() error {
	return ErrIntegration
}

// ConvergenceError reports a subinterval [Lo, Hi] that could not meet its
// share of the tolerance within the depth budget.
type ConvergenceError struct {
	Lo, Hi    float64
	Residual  float64
	Requested float64
	Depth     int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s: interval [%g, %g] residual %.3g exceeds %.3g after %d bisections",
		ErrConvergence, e.Lo, e.Hi, e.Residual, e.Requested, e.Depth)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrConvergence
}

// Machine-readable error codes shared by the HTTP API and the CLI.
const (
	CodeParse       = "PARSE_ERROR"
	CodeDomain      = "DOMAIN_ERROR"
	CodeNonFinite   = "NON_FINITE"
	CodeIntegration = "INTEGRATION_ERROR"
	CodeConvergence = "CONVERGENCE_ERROR"
	CodeTimeout     = "TIMEOUT"
	CodeRateLimited = "RATE_LIMITED"
	CodeBadRequest  = "BAD_REQUEST"
	CodeInternal    = "INTERNAL"
)

// ErrorCode maps an error from the calculator onto its machine-readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSyntax), errors.Is(err, ErrUnknownSymbol), errors.Is(err, ErrArity):
		return CodeParse
	case errors.Is(err, ErrInvalidDomain):
		return CodeDomain
	case errors.Is(err, ErrNonFinite):
		return CodeNonFinite
	case errors.Is(err, ErrIntegration):
		return CodeIntegration
	case errors.Is(err, ErrConvergence):
		return CodeConvergence
	case errors.Is(err, ErrDeadlineExceeded):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// ErrorResponse defines the standard JSON error model returned by the HTTP API.
// TraceID should carry the current OpenTelemetry trace identifier when available to aid diagnostics.
type ErrorResponse struct {
	Code      string `json:"code"`                 // Machine-readable error code (e.g., PARSE_ERROR)
	Message   string `json:"message"`              // Human-readable message
	TraceID   string `json:"trace_id,omitempty"`   // Optional trace/correlation ID
	RequestID string `json:"request_id,omitempty"` // Request identifier echoed back to the client
}
