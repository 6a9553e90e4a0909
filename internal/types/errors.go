package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for sift operations.
var (
	// ErrMalformedFilter indicates a filter specification that violates the
	// grammar (unknown keys, missing criterion fields, non-object nodes).
	ErrMalformedFilter = errors.New("malformed filter specification")

	// ErrMalformedOrdering indicates an ordering token that cannot be parsed.
	ErrMalformedOrdering = errors.New("malformed ordering specification")

	// ErrMalformedPath indicates a field path without an entity separator.
	ErrMalformedPath = errors.New("field path missing entity separator")

	// ErrFilterTooDeep indicates nesting beyond MaxFilterDepth.
	ErrFilterTooDeep = errors.New("filter nesting exceeds maximum depth")

	// ErrUnknownOperator indicates an operator name not in the operator table.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrOperatorMismatch indicates an operator applied to the wrong kind of
	// attribute: a comparison on a relationship, a relational operator on a
	// scalar field, or has/any on the wrong cardinality.
	ErrOperatorMismatch = errors.New("operator not applicable to attribute")

	// ErrEntityNotFound indicates an entity name absent from the registry.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrFieldNotFound indicates an attribute absent from a registered entity.
	ErrFieldNotFound = errors.New("field not found")

	// ErrTooManyInValues indicates an IN/NOT IN operator exceeds MaxInValues.
	ErrTooManyInValues = errors.New("IN operator has too many values")

	// ErrDuplicateEntity indicates a second registration of an entity name
	// within the same namespace.
	ErrDuplicateEntity = errors.New("entity already registered")
)

// FieldResolutionError tags a registry lookup miss with the dotted path that
// caused it. The compiler collects these across the whole filter tree instead
// of failing on the first one; see InvalidFieldError.
type FieldResolutionError struct {
	Path string // original dotted "Entity.field" token
	Err  error  // ErrEntityNotFound or ErrFieldNotFound
}

func (e *FieldResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %v", e.Path, e.Err)
}

func (e *FieldResolutionError) Unwrap() error { return e.Err }

// InvalidFieldError is the single aggregate error surfaced for a request
// whose filter or ordering references unresolvable fields. Fields lists every
// offending dotted path, in first-seen order, deduplicated.
type InvalidFieldError struct {
	Fields []string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid fields: %s", strings.Join(e.Fields, ", "))
}

// Add records a path, preserving first-seen order and skipping duplicates.
func (e *InvalidFieldError) Add(paths ...string) {
	for _, p := range paths {
		seen := false
		for _, f := range e.Fields {
			if f == p {
				seen = true
				break
			}
		}
		if !seen {
			e.Fields = append(e.Fields, p)
		}
	}
}

// Empty reports whether no paths have been recorded.
func (e *InvalidFieldError) Empty() bool { return len(e.Fields) == 0 }
