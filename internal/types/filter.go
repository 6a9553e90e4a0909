// internal/types/filter.go
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

/*
 * Filter specification grammar.
 *
 * Parses the untyped JSON filter shape into an explicit tagged union once at
 * the boundary, so the compiler never inspects raw JSON. Two interleaved
 * grammars are disambiguated here:
 *
 *   - Logical combinators: {"and": [...]} / {"or": [...]} with node children
 *   - Leaf criteria: {"field_name": ..., "field_value": ..., "operator": ...}
 *
 * A bare array is an implicit AND. The top level additionally accepts a
 * mapping carrying both "and" and "or" branches; both are compiled and
 * conjoined. Anywhere below the top level a combinator object must have
 * exactly one key.
 *
 * Strictness: objects mixing recognized and unrecognized keys are rejected
 * rather than resolved by map iteration order. Nesting is bounded by
 * MaxFilterDepth at parse time; the evaluator enforces the same bound again.
 */

// CombinatorKind selects the boolean operator of a combinator node.
type CombinatorKind int

const (
	CombinatorAnd CombinatorKind = iota
	CombinatorOr
)

// NodeKind discriminates the Node union.
type NodeKind int

const (
	NodeCombinator NodeKind = iota
	NodeCriterion
)

// Criterion is a leaf filter clause. Exactly one of Literal and Nested is
// meaningful: comparison operators carry a literal, relational operators
// (has/any) carry a nested criterion evaluated against the related entity.
type Criterion struct {
	FieldPath string // dotted "Entity.field" token
	Operator  string
	Literal   any        // literal comparison value (nil allowed)
	Nested    *Criterion // non-nil when field_value was a nested criterion
}

// Node is one element of a filter tree: a combinator over children or a
// single criterion.
type Node struct {
	Kind       NodeKind
	Combinator CombinatorKind // valid when Kind == NodeCombinator
	Children   []Node         // valid when Kind == NodeCombinator
	Criterion  *Criterion     // valid when Kind == NodeCriterion
}

// Filter is a parsed top-level filter specification. Both branches are
// compiled independently and conjoined; either or both may be empty. The
// zero value matches all rows.
type Filter struct {
	And []Node
	Or  []Node
}

// Empty reports whether the filter constrains nothing.
func (f Filter) Empty() bool { return len(f.And) == 0 && len(f.Or) == 0 }

// ParseFilter parses a raw JSON filter specification. Accepts null/empty
// (no filtering), a bare array of nodes (implicit AND), or a mapping with
// "and"/"or" keys only.
func ParseFilter(raw json.RawMessage) (Filter, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Filter{}, nil
	}

	switch raw[0] {
	case '[':
		nodes, err := parseNodes(raw, 1)
		if err != nil {
			return Filter{}, err
		}
		return Filter{And: nodes}, nil
	case '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrMalformedFilter, err)
		}
		var f Filter
		for key, val := range m {
			switch key {
			case "and":
				nodes, err := parseNodes(val, 1)
				if err != nil {
					return Filter{}, err
				}
				f.And = nodes
			case "or":
				nodes, err := parseNodes(val, 1)
				if err != nil {
					return Filter{}, err
				}
				f.Or = nodes
			default:
				return Filter{}, fmt.Errorf("%w: unexpected key %q at top level", ErrMalformedFilter, key)
			}
		}
		return f, nil
	default:
		return Filter{}, fmt.Errorf("%w: filter must be an array or an and/or mapping", ErrMalformedFilter)
	}
}

// parseNodes parses a JSON array of filter nodes.
func parseNodes(raw json.RawMessage, depth int) ([]Node, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: combinator children must be an array", ErrMalformedFilter)
	}

	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		node, err := parseNode(item, depth)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// parseNode parses a single node: a nested combinator or a criterion.
func parseNode(raw json.RawMessage, depth int) (Node, error) {
	if depth > MaxFilterDepth {
		return Node{}, ErrFilterTooDeep
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Node{}, fmt.Errorf("%w: filter node must be an object", ErrMalformedFilter)
	}

	_, hasAnd := m["and"]
	_, hasOr := m["or"]
	if hasAnd || hasOr {
		// Nested combinator: exactly one key, no criterion keys mixed in.
		if len(m) != 1 {
			return Node{}, fmt.Errorf("%w: nested combinator must have exactly one of \"and\"/\"or\"", ErrMalformedFilter)
		}
		kind := CombinatorAnd
		children := m["and"]
		if hasOr {
			kind = CombinatorOr
			children = m["or"]
		}
		nodes, err := parseNodes(children, depth+1)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: NodeCombinator, Combinator: kind, Children: nodes}, nil
	}

	crit, err := parseCriterion(m, depth)
	if err != nil {
		return Node{}, err
	}
	return Node{Kind: NodeCriterion, Criterion: crit}, nil
}

// parseCriterion parses a {field_name, field_value, operator} object.
// field_value is classified here: a JSON object is a nested criterion,
// anything else (including null and arrays) is a literal.
func parseCriterion(m map[string]json.RawMessage, depth int) (*Criterion, error) {
	if depth > MaxFilterDepth {
		return nil, ErrFilterTooDeep
	}

	for key := range m {
		switch key {
		case "field_name", "field_value", "operator":
		default:
			return nil, fmt.Errorf("%w: unexpected key %q in criterion", ErrMalformedFilter, key)
		}
	}

	rawName, ok := m["field_name"]
	if !ok {
		return nil, fmt.Errorf("%w: criterion missing field_name", ErrMalformedFilter)
	}
	var fieldName string
	if err := json.Unmarshal(rawName, &fieldName); err != nil || fieldName == "" {
		return nil, fmt.Errorf("%w: field_name must be a non-empty string", ErrMalformedFilter)
	}

	rawOp, ok := m["operator"]
	if !ok {
		return nil, fmt.Errorf("%w: criterion %q missing operator", ErrMalformedFilter, fieldName)
	}
	var operator string
	if err := json.Unmarshal(rawOp, &operator); err != nil || operator == "" {
		return nil, fmt.Errorf("%w: operator must be a non-empty string", ErrMalformedFilter)
	}

	crit := &Criterion{FieldPath: fieldName, Operator: operator}

	rawValue, ok := m["field_value"]
	if !ok {
		return nil, fmt.Errorf("%w: criterion %q missing field_value", ErrMalformedFilter, fieldName)
	}

	trimmed := bytes.TrimSpace(rawValue)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &nested); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFilter, err)
		}
		inner, err := parseCriterion(nested, depth+1)
		if err != nil {
			return nil, err
		}
		crit.Nested = inner
	} else {
		if err := json.Unmarshal(rawValue, &crit.Literal); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFilter, err)
		}
	}

	return crit, nil
}
