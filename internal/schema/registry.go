// Package schema provides the model registry: a typed mapping from
// (namespace, entity name) to entity descriptors built at startup and
// immutable afterwards. Lookup misses are result values, never panics;
// exceptions are not used for expected misses.
package schema

import (
	"fmt"
	"sort"

	"github.com/querylab/sift/internal/types"
)

// FieldType classifies a scalar field for result normalization.
type FieldType int

const (
	FieldTypeAny FieldType = iota
	FieldTypeText
	FieldTypeNumeric
	FieldTypeBoolean
	FieldTypeTime
)

// RelationshipKind distinguishes to-one from to-many traversal.
type RelationshipKind int

const (
	RelToOne RelationshipKind = iota
	RelToMany
)

// Field is a declared scalar attribute of an entity.
type Field struct {
	Name   string
	Column string // SQL column; defaults to Name when empty at registration
	Type   FieldType
}

// Relationship is a declared traversal to another entity in the same
// namespace. LocalColumn lives on the owning entity's table, TargetColumn on
// the target entity's table; a relationship predicate correlates the two.
type Relationship struct {
	Name         string
	Kind         RelationshipKind
	Target       string // target entity name
	LocalColumn  string
	TargetColumn string
}

// Entity is an immutable entity descriptor: its table and declared
// attributes, addressable by name.
type Entity struct {
	Name  string
	Table string

	fields        map[string]Field
	relationships map[string]Relationship
	fieldOrder    []string // sorted field names for deterministic SQL
}

// Field looks up a declared scalar field by name.
func (e *Entity) Field(name string) (Field, bool) {
	f, ok := e.fields[name]
	return f, ok
}

// Relationship looks up a declared relationship by name.
func (e *Entity) Relationship(name string) (Relationship, bool) {
	r, ok := e.relationships[name]
	return r, ok
}

// FieldNames returns the declared field names in sorted order.
func (e *Entity) FieldNames() []string {
	return e.fieldOrder
}

// EntitySpec is the registration input for one entity.
type EntitySpec struct {
	Name          string
	Table         string // defaults to Name when empty
	Fields        []Field
	Relationships []Relationship
}

// Registry maps (namespace, entity name) to entity descriptors.
// Mutable only during startup registration; concurrent reads afterwards are
// safe without synchronization.
type Registry struct {
	namespaces map[string]map[string]*Entity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{namespaces: make(map[string]map[string]*Entity)}
}

// Register adds an entity to a namespace. Returns ErrDuplicateEntity when the
// name is already taken within the namespace. Relationship targets are
// resolved lazily so mutually-referencing entities can register in any order.
func (r *Registry) Register(namespace string, spec EntitySpec) error {
	if spec.Name == "" {
		return fmt.Errorf("entity name required")
	}

	ns, ok := r.namespaces[namespace]
	if !ok {
		ns = make(map[string]*Entity)
		r.namespaces[namespace] = ns
	}
	if _, exists := ns[spec.Name]; exists {
		return fmt.Errorf("%w: %s", types.ErrDuplicateEntity, spec.Name)
	}

	table := spec.Table
	if table == "" {
		table = spec.Name
	}

	e := &Entity{
		Name:          spec.Name,
		Table:         table,
		fields:        make(map[string]Field, len(spec.Fields)),
		relationships: make(map[string]Relationship, len(spec.Relationships)),
	}

	for _, f := range spec.Fields {
		if f.Name == "" {
			return fmt.Errorf("entity %s: field name required", spec.Name)
		}
		if _, dup := e.fields[f.Name]; dup {
			return fmt.Errorf("entity %s: duplicate field %q", spec.Name, f.Name)
		}
		if f.Column == "" {
			f.Column = f.Name
		}
		e.fields[f.Name] = f
		e.fieldOrder = append(e.fieldOrder, f.Name)
	}
	sort.Strings(e.fieldOrder)

	for _, rel := range spec.Relationships {
		if rel.Name == "" || rel.Target == "" || rel.LocalColumn == "" || rel.TargetColumn == "" {
			return fmt.Errorf("entity %s: relationship requires name, target and join columns", spec.Name)
		}
		if _, dup := e.fields[rel.Name]; dup {
			return fmt.Errorf("entity %s: relationship %q collides with a field", spec.Name, rel.Name)
		}
		if _, dup := e.relationships[rel.Name]; dup {
			return fmt.Errorf("entity %s: duplicate relationship %q", spec.Name, rel.Name)
		}
		e.relationships[rel.Name] = rel
	}

	ns[spec.Name] = e
	return nil
}

// MustRegister is Register that panics, for static startup schemas and tests.
func (r *Registry) MustRegister(namespace string, spec EntitySpec) {
	if err := r.Register(namespace, spec); err != nil {
		panic(err)
	}
}

// Entity looks up an entity descriptor. The boolean result distinguishes
// "not found" from "found".
func (r *Registry) Entity(namespace, name string) (*Entity, bool) {
	ns, ok := r.namespaces[namespace]
	if !ok {
		return nil, false
	}
	e, ok := ns[name]
	return e, ok
}
