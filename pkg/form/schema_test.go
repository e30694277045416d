package form

import (
	"strings"
	"testing"
)

func testSchema() *Schema {
	return &Schema{
		Name: "StartupForm",
		Fields: []Field{
			{Name: "idea_desc", Description: "Description of startup idea"},
			{Name: "target_mkt", Description: "Target market info"},
			{Name: "biz_model", Description: "Business model info"},
			{Name: "team_info", Description: "Team background"},
		},
	}
}

func TestSchemaValidate(t *testing.T) {
	schema := testSchema()
	if err := schema.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestSchemaValidate_EmptyName(t *testing.T) {
	schema := &Schema{Fields: []Field{{Name: "a"}}}
	if err := schema.Validate(); err == nil {
		t.Fatal("Expected error for empty schema name")
	}
}

func TestSchemaValidate_NoFields(t *testing.T) {
	schema := &Schema{Name: "Empty"}
	if err := schema.Validate(); err == nil {
		t.Fatal("Expected error for schema without fields")
	}
}

func TestSchemaValidate_DuplicateField(t *testing.T) {
	schema := &Schema{
		Name:   "Dup",
		Fields: []Field{{Name: "a"}, {Name: "a"}},
	}
	err := schema.Validate()
	if err == nil {
		t.Fatal("Expected error for duplicate field")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Error should mention duplicate, got: %v", err)
	}
}

func TestSchemaValidate_UnknownKind(t *testing.T) {
	schema := &Schema{
		Name:   "Bad",
		Fields: []Field{{Name: "a", Kind: "decimal"}},
	}
	if err := schema.Validate(); err == nil {
		t.Fatal("Expected error for unknown kind")
	}
}

func TestSchemaDefaults(t *testing.T) {
	schema := &Schema{
		Name: "Defaults",
		Fields: []Field{
			{Name: "a"},
			{Name: "b", Default: "unset"},
		},
	}

	values := schema.Defaults()
	if values["a"] != "" {
		t.Errorf("a default: got %q, want empty", values["a"])
	}
	if values["b"] != "unset" {
		t.Errorf("b default: got %q, want %q", values["b"], "unset")
	}
}

func TestValidateValues_KindChecks(t *testing.T) {
	schema := &Schema{
		Name: "Kinds",
		Fields: []Field{
			{Name: "name"},
			{Name: "age", Kind: KindInt},
			{Name: "score", Kind: KindFloat},
			{Name: "active", Kind: KindBool},
		},
	}

	tests := []struct {
		name    string
		values  Values
		wantErr bool
	}{
		{"valid", Values{"name": "Ana", "age": "30", "score": "7.5", "active": "true"}, false},
		{"empty values always valid", Values{"age": "", "score": ""}, false},
		{"bad int", Values{"age": "thirty"}, true},
		{"bad float", Values{"score": "high"}, true},
		{"bad bool", Values{"active": "maybe"}, true},
		{"unknown field", Values{"color": "red"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.ValidateValues(tt.values)
			if tt.wantErr && err == nil {
				t.Fatalf("Expected error for %v", tt.values)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSchemaProgress(t *testing.T) {
	schema := testSchema()

	values := schema.Defaults()
	if got := schema.Progress(values); got != 0 {
		t.Errorf("Empty form progress: got %d, want 0", got)
	}

	values["idea_desc"] = "food delivery app"
	if got := schema.Progress(values); got != 25 {
		t.Errorf("One of four filled: got %d, want 25", got)
	}

	values["target_mkt"] = "urban professionals"
	values["biz_model"] = "commission"
	values["team_info"] = "two engineers"
	if got := schema.Progress(values); got != 100 {
		t.Errorf("All filled: got %d, want 100", got)
	}
}

func TestSchemaProgress_FilledPredicate(t *testing.T) {
	// Zero is a valid answer for a count field; the author's predicate
	// distinguishes "not asked yet" from "answered zero".
	schema := &Schema{
		Name: "Counts",
		Fields: []Field{
			{Name: "employees", Kind: KindInt, Filled: func(v string) bool { return v != "" }},
			{Name: "city"},
		},
	}

	values := Values{"employees": "0", "city": ""}
	if got := schema.Progress(values); got != 50 {
		t.Errorf("Progress with zero-valued count: got %d, want 50", got)
	}
}

func TestSchemaMerge(t *testing.T) {
	schema := &Schema{
		Name:   "Merge",
		Fields: []Field{{Name: "a"}, {Name: "b"}},
	}

	prev := Values{"a": "x", "b": ""}
	update := Values{"b": "y"}

	merged := schema.Merge(prev, update)
	if merged["a"] != "x" {
		t.Errorf("a should be untouched: got %q, want %q", merged["a"], "x")
	}
	if merged["b"] != "y" {
		t.Errorf("b should be updated: got %q, want %q", merged["b"], "y")
	}

	// Inputs are not mutated
	if prev["b"] != "" {
		t.Errorf("Merge mutated prev: %v", prev)
	}
}

func TestSchemaMerge_EmptyUpdateRetainsPrior(t *testing.T) {
	schema := &Schema{
		Name:   "Merge",
		Fields: []Field{{Name: "a"}},
	}

	merged := schema.Merge(Values{"a": "kept"}, Values{"a": ""})
	if merged["a"] != "kept" {
		t.Errorf("Empty update should not clear prior value: got %q", merged["a"])
	}
}

func TestSchemaMerge_DropsUnknownFields(t *testing.T) {
	schema := &Schema{
		Name:   "Merge",
		Fields: []Field{{Name: "a"}},
	}

	merged := schema.Merge(Values{"a": "x"}, Values{"hallucinated": "value"})
	if _, ok := merged["hallucinated"]; ok {
		t.Errorf("Merge kept field outside the schema: %v", merged)
	}
}
