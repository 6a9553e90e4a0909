// internal/schema/resolve.go
package schema

import (
	"fmt"
	"strings"

	"github.com/querylab/sift/internal/types"
)

/*
 * Field resolution for dotted "Entity.field" tokens.
 *
 * Splits at the LAST separator: the prefix names the entity, the suffix the
 * attribute. Entity names may themselves be dotted, so "billing.Invoice.id"
 * resolves entity "billing.Invoice", attribute "id".
 *
 * Error contract: a path without a separator is a malformed-specification
 * error (fatal, authored incorrectly). A path whose entity or attribute does
 * not exist returns *types.FieldResolutionError carrying the original token;
 * the filter compiler aggregates those across the whole tree rather than
 * failing on the first.
 */

// HandleKind discriminates what a dotted path resolved to.
type HandleKind int

const (
	HandleField HandleKind = iota
	HandleRelationship
)

// Handle is the result of resolving a dotted path: the owning entity plus
// either a scalar field or a relationship.
type Handle struct {
	Kind         HandleKind
	Entity       *Entity
	Field        Field        // valid when Kind == HandleField
	Relationship Relationship // valid when Kind == HandleRelationship
}

// Resolve resolves a dotted path within a namespace to a field or
// relationship handle. No side effects beyond the lookup.
func (r *Registry) Resolve(namespace, dotted string) (Handle, error) {
	idx := strings.LastIndex(dotted, ".")
	if idx <= 0 || idx == len(dotted)-1 {
		return Handle{}, fmt.Errorf("%w: %q", types.ErrMalformedPath, dotted)
	}
	entityName, attr := dotted[:idx], dotted[idx+1:]

	entity, ok := r.Entity(namespace, entityName)
	if !ok {
		return Handle{}, &types.FieldResolutionError{Path: dotted, Err: types.ErrEntityNotFound}
	}

	if f, ok := entity.Field(attr); ok {
		return Handle{Kind: HandleField, Entity: entity, Field: f}, nil
	}
	if rel, ok := entity.Relationship(attr); ok {
		return Handle{Kind: HandleRelationship, Entity: entity, Relationship: rel}, nil
	}

	return Handle{}, &types.FieldResolutionError{Path: dotted, Err: types.ErrFieldNotFound}
}
