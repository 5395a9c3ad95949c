package schema

import (
	"fmt"
	"sort"
	"strings"
)

// FieldError is a single config field that failed its type.
type FieldError struct {
	Field  string
	Reason string
	Value  any
}

func (e *FieldError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("field %q: %s (got %T)", e.Field, e.Reason, e.Value)
}

// Check type-checks every field of data that the schema declares and that is
// present with a non-nil value. Results are ordered by field name.
func Check(s Schema, data map[string]any) []*FieldError {
	if len(s) == 0 {
		return nil
	}
	fields := make([]string, 0, len(s))
	for f := range s {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var errs []*FieldError
	for _, field := range fields {
		value, ok := data[field]
		if !ok || value == nil {
			continue
		}
		if err := s[field].Validate(value); err != nil {
			errs = append(errs, &FieldError{Field: field, Reason: err.Error(), Value: value})
		}
	}
	return errs
}

// Names renders the schema as field→type-name pairs, sorted by field.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s))
	for f, t := range s {
		out = append(out, f+": "+t.Name())
	}
	sort.Strings(out)
	return out
}

// Join renders a list of field errors as one message.
func Join(errs []*FieldError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}
