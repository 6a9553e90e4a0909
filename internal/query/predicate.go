// Package query compiles parsed filter specifications into parameterized SQL
// predicates bound to a schema registry. Purely functional over immutable
// inputs: safe for concurrent use across requests, no shared mutable state,
// no caching of compiled expressions.
package query

// Predicate is a compiled boolean SQL expression with bound arguments, using
// '?' placeholders. The query backend rebinds placeholders per driver.
// Produced transiently during compilation, never persisted.
type Predicate struct {
	SQL  string
	Args []any
}

// Empty reports whether the predicate constrains nothing (matches all rows).
func (p Predicate) Empty() bool { return p.SQL == "" }
