// internal/query/compile_test.go
package query

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/querylab/sift/internal/schema"
	"github.com/querylab/sift/internal/types"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	r := schema.NewRegistry()
	r.MustRegister("crm", schema.EntitySpec{
		Name:  "User",
		Table: "users",
		Fields: []schema.Field{
			{Name: "id", Type: schema.FieldTypeNumeric},
			{Name: "name", Type: schema.FieldTypeText},
			{Name: "age", Type: schema.FieldTypeNumeric},
			{Name: "created_at", Type: schema.FieldTypeTime},
		},
	})
	r.MustRegister("crm", schema.EntitySpec{
		Name:  "NotificationGroup",
		Table: "notification_groups",
		Fields: []schema.Field{
			{Name: "id", Type: schema.FieldTypeNumeric},
			{Name: "group_name", Type: schema.FieldTypeText},
		},
		Relationships: []schema.Relationship{
			{Name: "group_mappings", Kind: schema.RelToMany, Target: "NotificationGroupMapping",
				LocalColumn: "id", TargetColumn: "group_id"},
		},
	})
	r.MustRegister("crm", schema.EntitySpec{
		Name:  "NotificationGroupMapping",
		Table: "notification_group_mappings",
		Fields: []schema.Field{
			{Name: "id", Type: schema.FieldTypeNumeric},
			{Name: "group_id", Type: schema.FieldTypeNumeric},
			{Name: "recipient_id", Type: schema.FieldTypeNumeric},
		},
		Relationships: []schema.Relationship{
			{Name: "recipient", Kind: schema.RelToOne, Target: "Recipient",
				LocalColumn: "recipient_id", TargetColumn: "id"},
		},
	})
	r.MustRegister("crm", schema.EntitySpec{
		Name:  "Recipient",
		Table: "recipients",
		Fields: []schema.Field{
			{Name: "id", Type: schema.FieldTypeNumeric},
			{Name: "email", Type: schema.FieldTypeText},
		},
	})
	return r
}

func mustParse(t *testing.T, raw string) types.Filter {
	t.Helper()
	f, err := types.ParseFilter(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("ParseFilter() error = %v, want nil", err)
	}
	return f
}

func TestCompile_SingleCriterion(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	pred, err := c.Compile(mustParse(t, `[{"field_name": "User.name", "field_value": "sam", "operator": "eq"}]`))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if pred.SQL != "users.name = ?" {
		t.Errorf("SQL = %q, want users.name = ?", pred.SQL)
	}
	if !reflect.DeepEqual(pred.Args, []any{"sam"}) {
		t.Errorf("Args = %v, want [sam]", pred.Args)
	}
}

func TestCompile_FlatListEqualsExplicitAnd(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)

	flat := mustParse(t, `[
		{"field_name": "User.name", "field_value": "sam", "operator": "eq"},
		{"field_name": "User.age", "field_value": 21, "operator": "gte"}
	]`)
	explicit := mustParse(t, `{"and": [
		{"field_name": "User.name", "field_value": "sam", "operator": "eq"},
		{"field_name": "User.age", "field_value": 21, "operator": "gte"}
	]}`)

	flatPred, err := c.Compile(flat)
	if err != nil {
		t.Fatalf("Compile(flat) error = %v", err)
	}
	explicitPred, err := c.Compile(explicit)
	if err != nil {
		t.Fatalf("Compile(explicit) error = %v", err)
	}

	if flatPred.SQL != explicitPred.SQL {
		t.Errorf("SQL differs: flat %q vs explicit %q", flatPred.SQL, explicitPred.SQL)
	}
	if !reflect.DeepEqual(flatPred.Args, explicitPred.Args) {
		t.Errorf("Args differ: %v vs %v", flatPred.Args, explicitPred.Args)
	}
}

func TestCompile_NaryNotBinary(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	pred, err := c.Compile(mustParse(t, `[
		{"field_name": "User.name", "field_value": "a", "operator": "eq"},
		{"field_name": "User.name", "field_value": "b", "operator": "eq"},
		{"field_name": "User.name", "field_value": "c", "operator": "eq"}
	]`))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := "(users.name = ? AND users.name = ? AND users.name = ?)"
	if pred.SQL != want {
		t.Errorf("SQL = %q, want flat n-ary %q", pred.SQL, want)
	}
}

func TestCompile_EmptyBranchesAreNeutral(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)

	for _, raw := range []string{`{"and": [], "or": []}`, `[]`, `null`} {
		pred, err := c.Compile(mustParse(t, raw))
		if err != nil {
			t.Fatalf("Compile(%s) error = %v", raw, err)
		}
		if !pred.Empty() {
			t.Errorf("Compile(%s) = %q, want empty predicate", raw, pred.SQL)
		}
	}
}

func TestCompile_BothBranchesConjoined(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	pred, err := c.Compile(mustParse(t, `{
		"and": [{"field_name": "User.age", "field_value": 21, "operator": "gte"}],
		"or": [{"field_name": "User.name", "field_value": "a", "operator": "eq"},
		       {"field_name": "User.name", "field_value": "b", "operator": "eq"}]
	}`))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := "((users.name = ? OR users.name = ?) AND users.age >= ?)"
	if pred.SQL != want {
		t.Errorf("SQL = %q, want %q", pred.SQL, want)
	}
	if !reflect.DeepEqual(pred.Args, []any{"a", "b", float64(21)}) {
		t.Errorf("Args = %v, want [a b 21]", pred.Args)
	}
}

func TestCompile_NestedCombinator(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	pred, err := c.Compile(mustParse(t, `[
		{"or": [
			{"field_name": "User.name", "field_value": "a", "operator": "eq"},
			{"field_name": "User.name", "field_value": "b", "operator": "eq"}
		]},
		{"field_name": "User.age", "field_value": 30, "operator": "lt"}
	]`))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	want := "((users.name = ? OR users.name = ?) AND users.age < ?)"
	if pred.SQL != want {
		t.Errorf("SQL = %q, want %q", pred.SQL, want)
	}
}

func TestCompile_RelationshipChain(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	pred, err := c.Compile(mustParse(t, `[{
		"field_name": "NotificationGroup.group_mappings",
		"field_value": {
			"field_name": "NotificationGroupMapping.recipient",
			"field_value": {"field_name": "Recipient.email", "field_value": "sam", "operator": "contains"},
			"operator": "has"
		},
		"operator": "any"
	}]`))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	// Innermost comparison compiled first, each hop wrapped in its own
	// correlated EXISTS with a per-depth alias.
	want := "EXISTS (SELECT 1 FROM notification_group_mappings AS r1 " +
		"WHERE r1.group_id = notification_groups.id AND " +
		"(EXISTS (SELECT 1 FROM recipients AS r2 " +
		"WHERE r2.id = r1.recipient_id AND " +
		`(r2.email LIKE ? ESCAPE '\'))))`
	if pred.SQL != want {
		t.Errorf("SQL = %q, want %q", pred.SQL, want)
	}
	if !reflect.DeepEqual(pred.Args, []any{"%sam%"}) {
		t.Errorf("Args = %v, want [%%sam%%]", pred.Args)
	}
}

func TestCompile_AggregatesBadFields(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	_, err := c.Compile(mustParse(t, `[
		{"field_name": "User.nam", "field_value": "sam", "operator": "eq"},
		{"field_name": "User.age", "field_value": 21, "operator": "gte"},
		{"field_name": "User.agee", "field_value": 30, "operator": "lt"}
	]`))

	var agg *types.InvalidFieldError
	if !errors.As(err, &agg) {
		t.Fatalf("Compile() error = %T (%v), want *InvalidFieldError", err, err)
	}
	if !reflect.DeepEqual(agg.Fields, []string{"User.nam", "User.agee"}) {
		t.Errorf("Fields = %v, want [User.nam User.agee]", agg.Fields)
	}
}

func TestCompile_AggregatesAcrossBranchesAndLevels(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	_, err := c.Compile(mustParse(t, `{
		"and": [{"or": [{"field_name": "User.bad1", "field_value": 1, "operator": "eq"}]}],
		"or": [{"field_name": "Ghost.name", "field_value": 1, "operator": "eq"}]
	}`))

	var agg *types.InvalidFieldError
	if !errors.As(err, &agg) {
		t.Fatalf("Compile() error = %T, want *InvalidFieldError", err)
	}
	if len(agg.Fields) != 2 {
		t.Fatalf("Fields = %v, want both bad paths", agg.Fields)
	}
}

func TestCompile_FatalErrors(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{"unknown operator", `[{"field_name": "User.name", "field_value": 1, "operator": "resembles"}]`, types.ErrUnknownOperator},
		{"path without separator", `[{"field_name": "username", "field_value": 1, "operator": "eq"}]`, types.ErrMalformedPath},
		{"comparison on relationship", `[{"field_name": "NotificationGroup.group_mappings", "field_value": 1, "operator": "eq"}]`, types.ErrOperatorMismatch},
		{"relational on scalar", `[{"field_name": "User.name", "field_value": {"field_name": "User.age", "field_value": 1, "operator": "eq"}, "operator": "has"}]`, types.ErrOperatorMismatch},
		{"has on to-many", `[{"field_name": "NotificationGroup.group_mappings", "field_value": {"field_name": "NotificationGroupMapping.id", "field_value": 1, "operator": "eq"}, "operator": "has"}]`, types.ErrOperatorMismatch},
		{"any on to-one", `[{"field_name": "NotificationGroupMapping.recipient", "field_value": {"field_name": "Recipient.id", "field_value": 1, "operator": "eq"}, "operator": "any"}]`, types.ErrOperatorMismatch},
		{"nested criterion on wrong entity", `[{"field_name": "NotificationGroup.group_mappings", "field_value": {"field_name": "User.age", "field_value": 1, "operator": "eq"}, "operator": "any"}]`, types.ErrMalformedFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(mustParse(t, tt.raw))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompile_FatalWinsOverAggregate(t *testing.T) {
	// An unknown operator aborts compilation even when resolution failures
	// were already collected.
	c := NewCompiler(testRegistry(t), "crm", 0)
	_, err := c.Compile(mustParse(t, `[
		{"field_name": "User.nam", "field_value": 1, "operator": "eq"},
		{"field_name": "User.age", "field_value": 1, "operator": "resembles"}
	]`))
	if !errors.Is(err, types.ErrUnknownOperator) {
		t.Errorf("Compile() error = %v, want ErrUnknownOperator", err)
	}
}

func TestCompile_DepthBound(t *testing.T) {
	r := schema.NewRegistry()
	r.MustRegister("crm", schema.EntitySpec{
		Name:   "Node",
		Table:  "nodes",
		Fields: []schema.Field{{Name: "id", Type: schema.FieldTypeNumeric}},
		Relationships: []schema.Relationship{
			{Name: "parent", Kind: schema.RelToOne, Target: "Node", LocalColumn: "parent_id", TargetColumn: "id"},
		},
	})

	// Build a relationship chain two hops past a small evaluator bound.
	crit := &types.Criterion{FieldPath: "Node.id", Operator: "eq", Literal: 1}
	for i := 0; i < 5; i++ {
		crit = &types.Criterion{FieldPath: "Node.parent", Operator: "has", Nested: crit}
	}

	c := NewCompiler(r, "crm", 3)
	_, err := c.Compile(types.Filter{And: []types.Node{{Kind: types.NodeCriterion, Criterion: crit}}})
	if !errors.Is(err, types.ErrFilterTooDeep) {
		t.Errorf("Compile() error = %v, want ErrFilterTooDeep", err)
	}
}

func TestCompile_SelfReferentialAliases(t *testing.T) {
	r := schema.NewRegistry()
	r.MustRegister("crm", schema.EntitySpec{
		Name:   "Node",
		Table:  "nodes",
		Fields: []schema.Field{{Name: "id", Type: schema.FieldTypeNumeric}},
		Relationships: []schema.Relationship{
			{Name: "parent", Kind: schema.RelToOne, Target: "Node", LocalColumn: "parent_id", TargetColumn: "id"},
		},
	})

	c := NewCompiler(r, "crm", 0)
	pred, err := c.Compile(mustParse(t, `[{
		"field_name": "Node.parent",
		"field_value": {
			"field_name": "Node.parent",
			"field_value": {"field_name": "Node.id", "field_value": 7, "operator": "eq"},
			"operator": "has"
		},
		"operator": "has"
	}]`))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	want := "EXISTS (SELECT 1 FROM nodes AS r1 WHERE r1.id = nodes.parent_id AND " +
		"(EXISTS (SELECT 1 FROM nodes AS r2 WHERE r2.id = r1.parent_id AND " +
		"(r2.id = ?))))"
	if pred.SQL != want {
		t.Errorf("SQL = %q, want %q", pred.SQL, want)
	}
}

func TestCompileOrdering(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	clauses, err := c.CompileOrdering([]types.OrderField{
		{Path: "User.created_at", Descending: true},
		{Path: "User.id"},
	})
	if err != nil {
		t.Fatalf("CompileOrdering() error = %v", err)
	}
	want := []string{"users.created_at DESC", "users.id ASC"}
	if !reflect.DeepEqual(clauses, want) {
		t.Errorf("clauses = %v, want %v", clauses, want)
	}
}

func TestCompileOrdering_AggregatesBadFields(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	_, err := c.CompileOrdering([]types.OrderField{
		{Path: "User.ghost"},
		{Path: "User.id"},
		{Path: "Ghost.id"},
	})

	var agg *types.InvalidFieldError
	if !errors.As(err, &agg) {
		t.Fatalf("CompileOrdering() error = %T, want *InvalidFieldError", err)
	}
	if !reflect.DeepEqual(agg.Fields, []string{"User.ghost", "Ghost.id"}) {
		t.Errorf("Fields = %v, want [User.ghost Ghost.id]", agg.Fields)
	}
}

func TestCompileOrdering_RelationshipIsFatal(t *testing.T) {
	c := NewCompiler(testRegistry(t), "crm", 0)
	_, err := c.CompileOrdering([]types.OrderField{{Path: "NotificationGroup.group_mappings"}})
	if !errors.Is(err, types.ErrMalformedOrdering) {
		t.Errorf("CompileOrdering() error = %v, want ErrMalformedOrdering", err)
	}
}
