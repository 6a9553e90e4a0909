// internal/query/operators.go
package query

import (
	"fmt"
	"strings"

	"github.com/querylab/sift/internal/schema"
	"github.com/querylab/sift/internal/types"
)

/*
 * Operator table.
 *
 * Two families share one name space and are disambiguated by what the field
 * path resolved to:
 *
 *   - Comparison operators produce a boolean predicate comparing a qualified
 *     column to a literal: eq, neq, gt, gte, lt, lte (plus symbolic aliases),
 *     contains, like, startswith, endswith, in, notin, isnull, isnotnull.
 *   - Relational operators (has for to-one, any for to-many) wrap an
 *     already-compiled predicate over the related entity in a correlated
 *     EXISTS subquery.
 *
 * An unrecognized operator name is a specification-authoring bug: fatal,
 * raised immediately, never aggregated. Type compatibility between column
 * and literal is NOT validated here; the backend decides.
 *
 * Why function-based: two switch statements are cleaner than one interface
 * implementation per operator with minimal behavior variation.
 */

// canonicalOp maps operator aliases to their canonical names.
var canonicalOp = map[string]string{
	"eq": "eq", "==": "eq", "=": "eq",
	"neq": "neq", "ne": "neq", "!=": "neq", "<>": "neq",
	"gt": "gt", ">": "gt",
	"gte": "gte", ">=": "gte",
	"lt": "lt", "<": "lt",
	"lte": "lte", "<=": "lte",
	"contains":   "contains",
	"like":       "like",
	"startswith": "startswith",
	"endswith":   "endswith",
	"in":         "in",
	"notin":      "notin", "not_in": "notin",
	"isnull": "isnull", "is_null": "isnull",
	"isnotnull": "isnotnull", "is_not_null": "isnotnull",
}

// comparisonSQL maps canonical binary operators to their SQL form.
var comparisonSQL = map[string]string{
	"eq":  "=",
	"neq": "!=",
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

// IsRelational reports whether the operator traverses a relationship.
func IsRelational(op string) bool {
	return op == "has" || op == "any"
}

// buildComparison produces a predicate comparing a qualified column to a
// literal value.
func buildComparison(op, column string, value any) (Predicate, error) {
	canonical, ok := canonicalOp[op]
	if !ok {
		return Predicate{}, fmt.Errorf("%w: %q", types.ErrUnknownOperator, op)
	}

	if sqlOp, ok := comparisonSQL[canonical]; ok {
		return Predicate{
			SQL:  fmt.Sprintf("%s %s ?", column, sqlOp),
			Args: []any{value},
		}, nil
	}

	switch canonical {
	case "contains":
		return likePredicate(column, "%"+escapeLike(fmt.Sprint(value))+"%"), nil
	case "startswith":
		return likePredicate(column, escapeLike(fmt.Sprint(value))+"%"), nil
	case "endswith":
		return likePredicate(column, "%"+escapeLike(fmt.Sprint(value))), nil
	case "like":
		// Raw pattern: caller controls wildcards, no escaping.
		return Predicate{SQL: column + " LIKE ?", Args: []any{fmt.Sprint(value)}}, nil
	case "in":
		return membershipPredicate(column, value, false)
	case "notin":
		return membershipPredicate(column, value, true)
	case "isnull":
		return Predicate{SQL: column + " IS NULL"}, nil
	case "isnotnull":
		return Predicate{SQL: column + " IS NOT NULL"}, nil
	default:
		return Predicate{}, fmt.Errorf("%w: %q", types.ErrUnknownOperator, op)
	}
}

// buildRelational wraps a compiled sub-predicate in a correlated EXISTS
// against the relationship's target table. The sub-predicate must already be
// compiled against the target alias (innermost-first evaluation order).
func buildRelational(op string, rel schema.Relationship, target *schema.Entity, ownerQualifier, alias string, nested Predicate) (Predicate, error) {
	switch op {
	case "has":
		if rel.Kind != schema.RelToOne {
			return Predicate{}, fmt.Errorf("%w: \"has\" requires a to-one relationship, %q is to-many", types.ErrOperatorMismatch, rel.Name)
		}
	case "any":
		if rel.Kind != schema.RelToMany {
			return Predicate{}, fmt.Errorf("%w: \"any\" requires a to-many relationship, %q is to-one", types.ErrOperatorMismatch, rel.Name)
		}
	default:
		return Predicate{}, fmt.Errorf("%w: %q", types.ErrUnknownOperator, op)
	}

	sql := fmt.Sprintf("EXISTS (SELECT 1 FROM %s AS %s WHERE %s.%s = %s.%s AND (%s))",
		target.Table, alias,
		alias, rel.TargetColumn,
		ownerQualifier, rel.LocalColumn,
		nested.SQL)
	return Predicate{SQL: sql, Args: nested.Args}, nil
}

func likePredicate(column, pattern string) Predicate {
	// ESCAPE clause makes the escaping portable across sqlite and postgres.
	return Predicate{SQL: column + ` LIKE ? ESCAPE '\'`, Args: []any{pattern}}
}

// membershipPredicate builds IN/NOT IN. Empty sets have well-defined
// semantics: IN () matches nothing, NOT IN () matches everything.
func membershipPredicate(column string, value any, negate bool) (Predicate, error) {
	values, ok := value.([]any)
	if !ok {
		return Predicate{}, fmt.Errorf("%w: IN operator requires an array value", types.ErrMalformedFilter)
	}
	if len(values) > types.MaxInValues {
		return Predicate{}, types.ErrTooManyInValues
	}
	if len(values) == 0 {
		if negate {
			return Predicate{SQL: "1 = 1"}, nil
		}
		return Predicate{SQL: "1 = 0"}, nil
	}

	placeholders := strings.Repeat("?, ", len(values)-1) + "?"
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return Predicate{
		SQL:  fmt.Sprintf("%s %s (%s)", column, op, placeholders),
		Args: values,
	}, nil
}

// escapeLike escapes LIKE wildcards so user literals match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
