// internal/schema/loader.go
package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/*
 * YAML schema loader.
 *
 * Loads entity descriptors from a declarative schema file so deployments can
 * describe their model without recompiling. One file declares one namespace:
 *
 *   namespace: notifications
 *   entities:
 *     - name: NotificationGroup
 *       table: notification_groups
 *       fields:
 *         - {name: id, type: numeric}
 *         - {name: group_name, type: text}
 *       relationships:
 *         - name: group_mappings
 *           kind: to_many
 *           target: NotificationGroupMapping
 *           local_column: id
 *           target_column: group_id
 */

type schemaFile struct {
	Namespace string       `yaml:"namespace"`
	Entities  []entityYAML `yaml:"entities"`
}

type entityYAML struct {
	Name          string             `yaml:"name"`
	Table         string             `yaml:"table"`
	Fields        []fieldYAML        `yaml:"fields"`
	Relationships []relationshipYAML `yaml:"relationships"`
}

type fieldYAML struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
	Type   string `yaml:"type"`
}

type relationshipYAML struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"`
	Target       string `yaml:"target"`
	LocalColumn  string `yaml:"local_column"`
	TargetColumn string `yaml:"target_column"`
}

// Load builds a registry from one or more schema files.
func Load(paths ...string) (*Registry, error) {
	r := NewRegistry()
	for _, path := range paths {
		if err := LoadInto(r, path); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadInto parses a schema file and registers its entities into an existing
// registry. Registration errors carry the file path for diagnostics.
func LoadInto(r *Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	var file schemaFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	if len(file.Entities) == 0 {
		return fmt.Errorf("schema file %s declares no entities", path)
	}

	for _, e := range file.Entities {
		spec := EntitySpec{Name: e.Name, Table: e.Table}

		for _, f := range e.Fields {
			ft, err := parseFieldType(f.Type)
			if err != nil {
				return fmt.Errorf("schema file %s, entity %s: %w", path, e.Name, err)
			}
			spec.Fields = append(spec.Fields, Field{Name: f.Name, Column: f.Column, Type: ft})
		}

		for _, rel := range e.Relationships {
			kind, err := parseRelationshipKind(rel.Kind)
			if err != nil {
				return fmt.Errorf("schema file %s, entity %s: %w", path, e.Name, err)
			}
			spec.Relationships = append(spec.Relationships, Relationship{
				Name:         rel.Name,
				Kind:         kind,
				Target:       rel.Target,
				LocalColumn:  rel.LocalColumn,
				TargetColumn: rel.TargetColumn,
			})
		}

		if err := r.Register(file.Namespace, spec); err != nil {
			return fmt.Errorf("schema file %s: %w", path, err)
		}
	}
	return nil
}

func parseFieldType(s string) (FieldType, error) {
	switch s {
	case "", "any":
		return FieldTypeAny, nil
	case "text", "string":
		return FieldTypeText, nil
	case "numeric", "number":
		return FieldTypeNumeric, nil
	case "boolean", "bool":
		return FieldTypeBoolean, nil
	case "time", "timestamp":
		return FieldTypeTime, nil
	default:
		return FieldTypeAny, fmt.Errorf("unknown field type %q", s)
	}
}

func parseRelationshipKind(s string) (RelationshipKind, error) {
	switch s {
	case "to_one":
		return RelToOne, nil
	case "to_many":
		return RelToMany, nil
	default:
		return RelToOne, fmt.Errorf("unknown relationship kind %q (expected to_one or to_many)", s)
	}
}
