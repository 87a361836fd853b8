// Package domain defines the core value types and error taxonomy of the
// surface volume calculator.
//
// This package contains pure domain logic with ZERO external dependencies outside the
// Go standard library. All types in this package are:
//
// - Request-scoped value objects, created per calculation and discarded afterwards
// - Independent of transport (no HTTP, CLI, or serialization concerns beyond JSON tags)
// - Testable in isolation without mocks
//
// The expression, quadrature, grid, and validation packages produce and consume
// these types. The dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
