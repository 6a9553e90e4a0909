// Package search executes declarative search requests: it assembles the
// compiled filter predicate, ordering and pagination into SQL and runs it
// against the query backend.
//
// Each Results call recompiles the request from scratch - no caching of
// compiled expressions or resolved fields - trading performance for
// statelessness. The *sqlx.DB handle owns connection pooling; a Search value
// is safe for concurrent use across requests.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/querylab/sift/internal/query"
	"github.com/querylab/sift/internal/schema"
	"github.com/querylab/sift/internal/types"
)

// DefaultPerPage is the page size applied when a request leaves it unset.
const DefaultPerPage = 10

// Search binds a query backend to a schema registry.
type Search struct {
	db             *sqlx.DB
	registry       *schema.Registry
	maxDepth       int
	defaultPerPage int
}

// Option configures a Search.
type Option func(*Search)

// WithMaxFilterDepth overrides the filter nesting bound.
func WithMaxFilterDepth(n int) Option {
	return func(s *Search) { s.maxDepth = n }
}

// WithDefaultPerPage overrides the default page size.
func WithDefaultPerPage(n int) Option {
	return func(s *Search) { s.defaultPerPage = n }
}

// New creates a search facade over a database and registry.
func New(db *sqlx.DB, registry *schema.Registry, opts ...Option) *Search {
	s := &Search{db: db, registry: registry, defaultPerPage: DefaultPerPage}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Results is the paginated outcome of one search execution. Data rows are
// keyed "Entity.field" per the registry's declared fields; Count is the total
// over the filtered, unsliced result set.
type Results struct {
	Data  []map[string]any `json:"data"`
	Count int              `json:"count"`
}

// Results compiles and executes the request, returning one page of rows plus
// the total count. The query runs exactly once per call; backend failures
// propagate unmodified, with no retry or timeout of their own - callers
// needing cancellation wrap ctx.
func (s *Search) Results(ctx context.Context, req types.SearchRequest) (*Results, error) {
	if len(req.Entities) == 0 {
		return nil, fmt.Errorf("%w: at least one entity required", types.ErrMalformedFilter)
	}
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, fmt.Errorf("page must be >= 1, got %d", req.Page)
	}
	perPage := req.PerPage
	if perPage == 0 {
		perPage = s.defaultPerPage
	}
	if perPage < 1 {
		return nil, fmt.Errorf("per_page must be >= 1, got %d", req.PerPage)
	}

	entities := make([]*schema.Entity, 0, len(req.Entities))
	for _, name := range req.Entities {
		e, ok := s.registry.Entity(req.Namespace, name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrEntityNotFound, name)
		}
		entities = append(entities, e)
	}

	compiler := query.NewCompiler(s.registry, req.Namespace, s.maxDepth)

	// Compile filter and ordering before bailing out so a request with bad
	// paths in both reports every offending field in one error.
	pred, filterErr := compiler.Compile(req.Filter)
	order, orderErr := compiler.CompileOrdering(req.OrderBy)
	if err := mergeCompileErrors(filterErr, orderErr); err != nil {
		return nil, err
	}

	from := fromClause(entities)
	where := ""
	if !pred.Empty() {
		where = " WHERE " + pred.SQL
	}

	// Count over the filtered, unordered, unsliced set.
	var count int
	countSQL := "SELECT COUNT(*) FROM " + from + where
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(countSQL), pred.Args...); err != nil {
		return nil, fmt.Errorf("count query failed: %w", err)
	}

	dataSQL := "SELECT " + selectClause(entities) + " FROM " + from + where
	if len(order) > 0 {
		dataSQL += " ORDER BY " + strings.Join(order, ", ")
	}

	args := make([]any, len(pred.Args), len(pred.Args)+2)
	copy(args, pred.Args)
	if !req.All {
		// Slice [(page-1)*per_page, page*per_page); no bound check against
		// count, so an out-of-range page yields empty data and a correct count.
		dataSQL += " LIMIT ? OFFSET ?"
		args = append(args, perPage, (page-1)*perPage)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(dataSQL), args...)
	if err != nil {
		return nil, fmt.Errorf("data query failed: %w", err)
	}
	defer rows.Close()

	data := make([]map[string]any, 0, perPage)
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		normalizeRow(row)
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &Results{Data: data, Count: count}, nil
}

// mergeCompileErrors combines filter and ordering compilation outcomes.
// Two aggregate errors merge into one naming all bad paths; any fatal error
// wins as-is, filter first.
func mergeCompileErrors(filterErr, orderErr error) error {
	var fAgg, oAgg *types.InvalidFieldError
	fIsAgg := errors.As(filterErr, &fAgg)
	oIsAgg := errors.As(orderErr, &oAgg)

	if filterErr != nil && !fIsAgg {
		return filterErr
	}
	if orderErr != nil && !oIsAgg {
		return orderErr
	}

	switch {
	case fIsAgg && oIsAgg:
		fAgg.Add(oAgg.Fields...)
		return fAgg
	case fIsAgg:
		return fAgg
	case oIsAgg:
		return oAgg
	}
	return nil
}

// fromClause lists entity tables in selection order (cross join semantics
// for multi-entity requests).
func fromClause(entities []*schema.Entity) string {
	tables := make([]string, len(entities))
	for i, e := range entities {
		tables[i] = e.Table
	}
	return strings.Join(tables, ", ")
}

// selectClause aliases every declared field as "Entity.field" so result maps
// stay unambiguous across entities. Field order is the registry's sorted
// order for deterministic SQL.
func selectClause(entities []*schema.Entity) string {
	var cols []string
	for _, e := range entities {
		for _, name := range e.FieldNames() {
			f, _ := e.Field(name)
			cols = append(cols, fmt.Sprintf("%s.%s AS %q", e.Table, f.Column, e.Name+"."+name))
		}
	}
	return strings.Join(cols, ", ")
}

// normalizeRow converts driver byte slices to strings so rows serialize as
// JSON text rather than base64.
func normalizeRow(row map[string]any) {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
}
