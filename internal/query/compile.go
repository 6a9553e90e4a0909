// internal/query/compile.go
package query

import (
	"errors"
	"strings"

	"github.com/querylab/sift/internal/schema"
	"github.com/querylab/sift/internal/types"
)

/*
 * Filter tree compilation.
 *
 * Walks a parsed Filter and produces one predicate. Sibling results at each
 * combinator level are collected into a flat list and combined with an n-ary
 * AND/OR, not a binary tree: AND(a, b, c), never AND(AND(a, b), c). The two
 * top-level branches compile independently and are conjoined; an empty branch
 * is neutral, so {"and": [], "or": []} matches all rows.
 *
 * Error aggregation: field-resolution failures are collected across the
 * ENTIRE tree - every sibling at every level, both branches - and surfaced as
 * one *types.InvalidFieldError naming every offending path. Partial
 * predicates are discarded. Any other failure (unknown operator, malformed
 * node, depth bound) aborts immediately: those are authoring bugs, not
 * runtime data conditions.
 */

// Compiler compiles filter specifications and ordering specs for one
// registry namespace. Stateless between calls.
type Compiler struct {
	registry  *schema.Registry
	namespace string
	eval      *Evaluator
}

// NewCompiler creates a compiler. maxDepth <= 0 selects types.MaxFilterDepth.
func NewCompiler(registry *schema.Registry, namespace string, maxDepth int) *Compiler {
	return &Compiler{
		registry:  registry,
		namespace: namespace,
		eval:      NewEvaluator(registry, namespace, maxDepth),
	}
}

// Compile compiles a full filter specification into one predicate.
// Returns *types.InvalidFieldError when any field path fails to resolve.
func (c *Compiler) Compile(f types.Filter) (Predicate, error) {
	agg := &types.InvalidFieldError{}

	// Both branches compile even if one is empty or the other has already
	// accumulated resolution failures; the caller sees every bad path at once.
	orPred, err := c.compileNodes(f.Or, types.CombinatorOr, agg)
	if err != nil {
		return Predicate{}, err
	}
	andPred, err := c.compileNodes(f.And, types.CombinatorAnd, agg)
	if err != nil {
		return Predicate{}, err
	}

	if !agg.Empty() {
		return Predicate{}, agg
	}
	return combine(types.CombinatorAnd, []Predicate{orPred, andPred}), nil
}

// compileNodes compiles one sibling set and combines it with the level's
// boolean operator. Resolution failures go into agg; the returned error is
// fatal-only.
func (c *Compiler) compileNodes(nodes []types.Node, kind types.CombinatorKind, agg *types.InvalidFieldError) (Predicate, error) {
	preds := make([]Predicate, 0, len(nodes))

	for i := range nodes {
		node := &nodes[i]
		switch node.Kind {
		case types.NodeCombinator:
			sub, err := c.compileNodes(node.Children, node.Combinator, agg)
			if err != nil {
				return Predicate{}, err
			}
			preds = append(preds, sub)
		default:
			pred, err := c.eval.Evaluate(node.Criterion)
			if err != nil {
				var resErr *types.FieldResolutionError
				if errors.As(err, &resErr) {
					agg.Add(resErr.Path)
					continue
				}
				return Predicate{}, err
			}
			preds = append(preds, pred)
		}
	}

	return combine(kind, preds), nil
}

// combine applies an n-ary boolean operator over the non-empty predicates.
// Zero operands are neutral; a single operand passes through unwrapped.
func combine(kind types.CombinatorKind, preds []Predicate) Predicate {
	parts := make([]string, 0, len(preds))
	var args []any
	for _, p := range preds {
		if p.Empty() {
			continue
		}
		parts = append(parts, p.SQL)
		args = append(args, p.Args...)
	}

	switch len(parts) {
	case 0:
		return Predicate{}
	case 1:
		return Predicate{SQL: parts[0], Args: args}
	}

	op := " AND "
	if kind == types.CombinatorOr {
		op = " OR "
	}
	return Predicate{SQL: "(" + strings.Join(parts, op) + ")", Args: args}
}
