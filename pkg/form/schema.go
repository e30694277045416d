// Package form defines form schemas, field values and session state snapshots
package form

import (
	"fmt"
	"strconv"
)

// Kind identifies the value type a field accepts.
// Values are stored as strings; Kind controls how they are validated.
type Kind string

// Supported field kinds
const (
	KindString Kind = "string"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindBool   Kind = "bool"
)

// Field describes one named slot in a form schema.
type Field struct {
	// Name is the field identifier, unique within a schema
	Name string

	// Kind controls value validation (default: KindString)
	Kind Kind

	// Description is shown to the extraction model so it knows what to collect
	Description string

	// Default is the value an unfilled field starts with (usually "")
	Default string

	// Filled reports whether a value counts as filled for progress computation.
	// When nil, a field is filled if its value differs from Default.
	// Schema authors should supply this for fields where a falsy value is
	// still a valid answer (e.g. a count of 0).
	Filled func(value string) bool
}

// filled applies the field's predicate, falling back to the default comparator.
func (f *Field) filled(value string) bool {
	if f.Filled != nil {
		return f.Filled(value)
	}
	return value != f.Default
}

// checkKind validates that a value parses according to the field kind.
// Empty values are always accepted: an unfilled field is valid at every version.
func (f *Field) checkKind(value string) error {
	if value == "" {
		return nil
	}
	switch f.Kind {
	case "", KindString:
		return nil
	case KindInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("field %q: %q is not an integer", f.Name, value)
		}
	case KindFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("field %q: %q is not a number", f.Name, value)
		}
	case KindBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("field %q: %q is not a boolean", f.Name, value)
		}
	default:
		return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
	}
	return nil
}

// Schema is an ordered, statically declared list of form fields.
// A Schema is the caller-supplied description of the record being filled;
// it never changes for the lifetime of a session.
type Schema struct {
	// Name identifies the schema (stored with each session)
	Name string

	// Fields holds the field descriptors in declaration order
	Fields []Field
}

// Validate checks that the schema is usable: non-empty name, at least one
// field, unique field names, known kinds.
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %q has no fields", s.Name)
	}

	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %q: field at index %d has empty name", s.Name, i)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %q: duplicate field %q", s.Name, f.Name)
		}
		seen[f.Name] = true

		switch f.Kind {
		case "", KindString, KindInt, KindFloat, KindBool:
		default:
			return fmt.Errorf("schema %q: field %q has unknown kind %q", s.Name, f.Name, f.Kind)
		}
	}

	return nil
}

// Defaults returns a fresh Values map with every field at its default.
func (s *Schema) Defaults() Values {
	values := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		values[f.Name] = f.Default
	}
	return values
}

// ValidateValues checks a Values map against the schema: no unknown field
// names, every value parses per its field kind. Missing fields are allowed
// (they are treated as unfilled).
func (s *Schema) ValidateValues(values Values) error {
	fields := make(map[string]*Field, len(s.Fields))
	for i := range s.Fields {
		fields[s.Fields[i].Name] = &s.Fields[i]
	}

	for name, value := range values {
		f, ok := fields[name]
		if !ok {
			return fmt.Errorf("schema %q: unknown field %q", s.Name, name)
		}
		if err := f.checkKind(value); err != nil {
			return fmt.Errorf("schema %q: %w", s.Name, err)
		}
	}

	return nil
}

// FilledCount returns how many fields count as filled under their predicates.
func (s *Schema) FilledCount(values Values) int {
	count := 0
	for i := range s.Fields {
		f := &s.Fields[i]
		if value, ok := values[f.Name]; ok && f.filled(value) {
			count++
		}
	}
	return count
}

// Progress computes completion as floor(100 * filled / total).
// Callers clamp against prior progress; this function is stateless.
func (s *Schema) Progress(values Values) int {
	if len(s.Fields) == 0 {
		return 0
	}
	return 100 * s.FilledCount(values) / len(s.Fields)
}

// Merge applies a field-wise last-writer-wins merge: each schema field takes
// the updated value only when the update carries a non-empty value for it;
// otherwise the prior value is retained. Fields outside the schema are
// dropped. Neither input is mutated.
func (s *Schema) Merge(prev, update Values) Values {
	merged := make(Values, len(s.Fields))
	for _, f := range s.Fields {
		if value, ok := prev[f.Name]; ok {
			merged[f.Name] = value
		} else {
			merged[f.Name] = f.Default
		}
		if value, ok := update[f.Name]; ok && value != "" {
			merged[f.Name] = value
		}
	}
	return merged
}
