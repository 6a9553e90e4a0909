// internal/query/operators_test.go
package query

import (
	"errors"
	"reflect"
	"testing"

	"github.com/querylab/sift/internal/types"
)

func TestBuildComparison(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		value    any
		wantSQL  string
		wantArgs []any
	}{
		{"eq", "eq", "sam", "users.name = ?", []any{"sam"}},
		{"eq symbolic", "==", "sam", "users.name = ?", []any{"sam"}},
		{"eq sql symbolic", "=", "sam", "users.name = ?", []any{"sam"}},
		{"neq", "neq", 1, "users.name != ?", []any{1}},
		{"neq ne alias", "ne", 1, "users.name != ?", []any{1}},
		{"neq sql symbolic", "<>", 1, "users.name != ?", []any{1}},
		{"gt", "gt", 5, "users.name > ?", []any{5}},
		{"gte", ">=", 5, "users.name >= ?", []any{5}},
		{"lt", "<", 5, "users.name < ?", []any{5}},
		{"lte", "lte", 5, "users.name <= ?", []any{5}},
		{"contains", "contains", "sam", `users.name LIKE ? ESCAPE '\'`, []any{"%sam%"}},
		{"startswith", "startswith", "sam", `users.name LIKE ? ESCAPE '\'`, []any{"sam%"}},
		{"endswith", "endswith", "sam", `users.name LIKE ? ESCAPE '\'`, []any{"%sam"}},
		{"contains escapes wildcards", "contains", "50%_x", `users.name LIKE ? ESCAPE '\'`, []any{`%50\%\_x%`}},
		{"like raw pattern", "like", "s_m%", "users.name LIKE ?", []any{"s_m%"}},
		{"in", "in", []any{1, 2, 3}, "users.name IN (?, ?, ?)", []any{1, 2, 3}},
		{"notin", "notin", []any{1}, "users.name NOT IN (?)", []any{1}},
		{"not_in alias", "not_in", []any{1}, "users.name NOT IN (?)", []any{1}},
		{"empty in matches nothing", "in", []any{}, "1 = 0", nil},
		{"empty notin matches everything", "notin", []any{}, "1 = 1", nil},
		{"isnull", "isnull", nil, "users.name IS NULL", nil},
		{"is_not_null alias", "is_not_null", nil, "users.name IS NOT NULL", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := buildComparison(tt.op, "users.name", tt.value)
			if err != nil {
				t.Fatalf("buildComparison() error = %v, want nil", err)
			}
			if pred.SQL != tt.wantSQL {
				t.Errorf("SQL = %q, want %q", pred.SQL, tt.wantSQL)
			}
			if !reflect.DeepEqual(pred.Args, tt.wantArgs) {
				t.Errorf("Args = %v, want %v", pred.Args, tt.wantArgs)
			}
		})
	}
}

func TestBuildComparison_UnknownOperator(t *testing.T) {
	_, err := buildComparison("resembles", "users.name", "x")
	if !errors.Is(err, types.ErrUnknownOperator) {
		t.Errorf("buildComparison() error = %v, want ErrUnknownOperator", err)
	}
}

func TestMembershipPredicate_Limits(t *testing.T) {
	values := make([]any, types.MaxInValues+1)
	for i := range values {
		values[i] = i
	}
	_, err := buildComparison("in", "users.id", values)
	if !errors.Is(err, types.ErrTooManyInValues) {
		t.Errorf("buildComparison() error = %v, want ErrTooManyInValues", err)
	}

	if _, err := buildComparison("in", "users.id", values[:types.MaxInValues]); err != nil {
		t.Errorf("buildComparison() at limit error = %v, want nil", err)
	}
}

func TestMembershipPredicate_RequiresArray(t *testing.T) {
	_, err := buildComparison("in", "users.id", "not-an-array")
	if !errors.Is(err, types.ErrMalformedFilter) {
		t.Errorf("buildComparison() error = %v, want ErrMalformedFilter", err)
	}
}

func TestIsRelational(t *testing.T) {
	for op, want := range map[string]bool{"has": true, "any": true, "eq": false, "in": false} {
		if got := IsRelational(op); got != want {
			t.Errorf("IsRelational(%q) = %v, want %v", op, got, want)
		}
	}
}
