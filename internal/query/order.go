// internal/query/order.go
package query

import (
	"errors"
	"fmt"

	"github.com/querylab/sift/internal/schema"
	"github.com/querylab/sift/internal/types"
)

// CompileOrdering resolves ordering fields to ORDER BY clauses in the given
// priority order (first listed = primary sort key). Unresolvable paths
// aggregate into one *types.InvalidFieldError, matching the filter compiler's
// batching behavior; ordering by a relationship is a fatal authoring error.
func (c *Compiler) CompileOrdering(fields []types.OrderField) ([]string, error) {
	agg := &types.InvalidFieldError{}

	clauses := make([]string, 0, len(fields))
	for _, f := range fields {
		handle, err := c.registry.Resolve(c.namespace, f.Path)
		if err != nil {
			var resErr *types.FieldResolutionError
			if errors.As(err, &resErr) {
				agg.Add(resErr.Path)
				continue
			}
			return nil, err
		}
		if handle.Kind != schema.HandleField {
			return nil, fmt.Errorf("%w: cannot order by relationship %q", types.ErrMalformedOrdering, f.Path)
		}

		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		clauses = append(clauses, fmt.Sprintf("%s.%s %s", handle.Entity.Table, handle.Field.Column, dir))
	}

	if !agg.Empty() {
		return nil, agg
	}
	return clauses, nil
}
