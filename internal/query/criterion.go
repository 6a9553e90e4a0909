// internal/query/criterion.go
package query

import (
	"fmt"

	"github.com/querylab/sift/internal/schema"
	"github.com/querylab/sift/internal/types"
)

/*
 * Criterion evaluation.
 *
 * Translates one leaf criterion into a predicate: resolve the dotted path,
 * recursively evaluate a nested criterion first (depth-first, innermost
 * predicate built before any enclosing relational wrapper), then apply the
 * operator table.
 *
 * A relationship chain such as
 *
 *   {"field_name": "NotificationGroup.group_mappings",
 *    "field_value": {"field_name": "NotificationGroupMapping.recipient",
 *                    "field_value": {"field_name": "Recipient.email",
 *                                    "field_value": "sam", "operator": "contains"},
 *                    "operator": "has"},
 *    "operator": "any"}
 *
 * compiles to nested correlated EXISTS subqueries, each hop one recursion
 * level with a fresh table alias so self-referential traversals stay
 * correlated correctly. Recursion is bounded by the evaluator's depth limit.
 *
 * Resolution failures are returned tagged with the original dotted path
 * (*types.FieldResolutionError), never raised mid-tree; the compiler
 * aggregates them. Every other failure is fatal.
 */

// Evaluator compiles single criteria against a schema registry.
// Pure function of its inputs; safe for concurrent use.
type Evaluator struct {
	registry  *schema.Registry
	namespace string
	maxDepth  int
}

// NewEvaluator creates an evaluator for one registry namespace.
// maxDepth <= 0 selects types.MaxFilterDepth.
func NewEvaluator(registry *schema.Registry, namespace string, maxDepth int) *Evaluator {
	if maxDepth <= 0 {
		maxDepth = types.MaxFilterDepth
	}
	return &Evaluator{registry: registry, namespace: namespace, maxDepth: maxDepth}
}

// Evaluate compiles one criterion (and any nested chain) into a predicate.
func (e *Evaluator) Evaluate(c *types.Criterion) (Predicate, error) {
	return e.evaluate(c, nil, "", 1)
}

// evaluate is the recursive core. owner, when non-nil, is the entity the
// criterion must belong to (the target of the enclosing relationship);
// qualifier is the SQL alias its columns are addressed through.
func (e *Evaluator) evaluate(c *types.Criterion, owner *schema.Entity, qualifier string, depth int) (Predicate, error) {
	if depth > e.maxDepth {
		return Predicate{}, types.ErrFilterTooDeep
	}

	handle, err := e.registry.Resolve(e.namespace, c.FieldPath)
	if err != nil {
		return Predicate{}, err
	}
	if owner != nil && handle.Entity != owner {
		return Predicate{}, fmt.Errorf("%w: criterion %q does not belong to related entity %s",
			types.ErrMalformedFilter, c.FieldPath, owner.Name)
	}
	if qualifier == "" {
		qualifier = handle.Entity.Table
	}

	switch handle.Kind {
	case schema.HandleRelationship:
		if !IsRelational(c.Operator) {
			return Predicate{}, fmt.Errorf("%w: comparison operator %q on relationship %q",
				types.ErrOperatorMismatch, c.Operator, c.FieldPath)
		}
		if c.Nested == nil {
			return Predicate{}, fmt.Errorf("%w: relational operator %q requires a nested criterion value",
				types.ErrMalformedFilter, c.Operator)
		}

		rel := handle.Relationship
		target, ok := e.registry.Entity(e.namespace, rel.Target)
		if !ok {
			// Declared relationship pointing at an unregistered entity reads
			// like any other unresolvable path from the caller's view.
			return Predicate{}, &types.FieldResolutionError{Path: c.FieldPath, Err: types.ErrEntityNotFound}
		}

		alias := fmt.Sprintf("r%d", depth)
		nested, err := e.evaluate(c.Nested, target, alias, depth+1)
		if err != nil {
			return Predicate{}, err
		}
		return buildRelational(c.Operator, rel, target, qualifier, alias, nested)

	default:
		if IsRelational(c.Operator) {
			return Predicate{}, fmt.Errorf("%w: relational operator %q on scalar field %q",
				types.ErrOperatorMismatch, c.Operator, c.FieldPath)
		}
		if c.Nested != nil {
			return Predicate{}, fmt.Errorf("%w: nested criterion value requires a relational operator, got %q",
				types.ErrMalformedFilter, c.Operator)
		}
		return buildComparison(c.Operator, qualifier+"."+handle.Field.Column, c.Literal)
	}
}
