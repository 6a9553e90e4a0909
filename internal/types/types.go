// Package types provides domain models shared across sift components.
//
// Zero-dependency design: types.go, filter.go, ordering.go and errors.go use
// only encoding/json so the filter grammar can be embedded without pulling in
// the query or storage stacks. ID utilities in ids.go import uuid but are
// isolated for selective inclusion.
package types

import "encoding/json"

// SearchID represents a UUIDv7 saved-search identifier.
// String alias enables type safety while maintaining JSON string serialization.
type SearchID string

// APIKeyID represents a UUIDv7 API key identifier.
type APIKeyID string

// Resource limits enforced by the filter compiler to prevent stack exhaustion
// and unbounded query cost.
const (
	// MaxFilterDepth bounds combinator and relationship nesting.
	// 16 levels handles any realistic relationship chain; the recursion in
	// both the boundary parser and the criterion evaluator stops here.
	MaxFilterDepth = 16

	// MaxInValues limits IN/NOT IN operator list size to keep generated
	// placeholder lists and parameter binding bounded.
	MaxInValues = 64
)

// SearchRequest is the immutable configuration of one search: which entities
// to select, how to filter and order them, and how to slice the result set.
// Constructed once by the caller; results are recompiled on every execution,
// never cached.
type SearchRequest struct {
	// Namespace selects the registry namespace entity names resolve in.
	// Empty means the registry's default namespace.
	Namespace string

	// Entities are the entity names to select, in selection order.
	Entities []string

	// Filter is the parsed filter specification. The zero value matches all rows.
	Filter Filter

	// OrderBy lists sort keys in priority order (first listed = primary).
	OrderBy []OrderField

	// Page is 1-based. PerPage is the page size. All bypasses pagination.
	Page    int
	PerPage int
	All     bool

	// WindowSize is a fetch-window hint reserved for batched streaming.
	// Carried through but not acted on.
	WindowSize int
}

// searchRequestWire is the JSON boundary shape of a SearchRequest.
type searchRequestWire struct {
	Namespace  string          `json:"namespace,omitempty"`
	Entities   []string        `json:"entities"`
	FilterBy   json.RawMessage `json:"filter_by,omitempty"`
	OrderBy    []string        `json:"order_by,omitempty"`
	Page       int             `json:"page,omitempty"`
	PerPage    int             `json:"per_page,omitempty"`
	All        bool            `json:"all,omitempty"`
	WindowSize int             `json:"window_size,omitempty"`
}

// UnmarshalJSON parses the wire form of a search request, including the
// filter and ordering grammars. Grammar violations surface as
// ErrMalformedFilter / ErrMalformedOrdering wrapped errors.
func (r *SearchRequest) UnmarshalJSON(data []byte) error {
	var wire searchRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	filter, err := ParseFilter(wire.FilterBy)
	if err != nil {
		return err
	}
	order, err := ParseOrdering(wire.OrderBy)
	if err != nil {
		return err
	}

	r.Namespace = wire.Namespace
	r.Entities = wire.Entities
	r.Filter = filter
	r.OrderBy = order
	r.Page = wire.Page
	r.PerPage = wire.PerPage
	r.All = wire.All
	r.WindowSize = wire.WindowSize
	return nil
}
