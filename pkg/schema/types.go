package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Type validates one config value.
type Type interface {
	// Name returns the human-readable name of the type (e.g. "string", "[string]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

// Schema maps config field names to their expected types.
type Schema map[string]Type

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type numberType struct{ integer bool }

func (t numberType) Name() string {
	if t.integer {
		return "int"
	}
	return "number"
}

func (t numberType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float32:
		if t.integer && v != float32(int64(v)) {
			return fmt.Errorf("expected int, got fractional number")
		}
		return nil
	case float64:
		// JSON numbers decode to float64; whole values count as ints.
		if t.integer && v != float64(int64(v)) {
			return fmt.Errorf("expected int, got fractional number")
		}
		return nil
	default:
		return fmt.Errorf("expected %s, got %T", t.Name(), value)
	}
}

type boolType struct{}

func (boolType) Name() string { return "bool" }

func (boolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

type anyType struct{}

func (anyType) Name() string       { return "any" }
func (anyType) Validate(any) error { return nil }

type sliceType struct{ elem Type }

func (t sliceType) Name() string { return "[" + t.elem.Name() + "]" }

func (t sliceType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected list, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

type objectType struct{}

func (objectType) Name() string { return "object" }

func (objectType) Validate(value any) error {
	if value == nil {
		return fmt.Errorf("expected object, got nil")
	}
	if reflect.ValueOf(value).Kind() != reflect.Map {
		return fmt.Errorf("expected object, got %T", value)
	}
	return nil
}

type enumType struct{ values []string }

func (t enumType) Name() string { return "enum(" + strings.Join(t.values, "|") + ")" }

func (t enumType) Validate(value any) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	for _, v := range t.values {
		if v == s {
			return nil
		}
	}
	return fmt.Errorf("%q is not one of %s", s, strings.Join(t.values, ", "))
}

type nonEmptyType struct{ inner Type }

func (t nonEmptyType) Name() string { return t.inner.Name() + "!" }

func (t nonEmptyType) Validate(value any) error {
	if err := t.inner.Validate(value); err != nil {
		return err
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		if rv.Len() == 0 {
			return fmt.Errorf("must not be empty")
		}
	}
	return nil
}

// String matches string values.
func String() Type { return stringType{} }

// Number matches any numeric value.
func Number() Type { return numberType{} }

// Int matches whole numbers, including whole float64 values from JSON.
func Int() Type { return numberType{integer: true} }

// Bool matches boolean values.
func Bool() Type { return boolType{} }

// Any matches every value.
func Any() Type { return anyType{} }

// Object matches maps.
func Object() Type { return objectType{} }

// Slice matches lists whose items all match elem.
func Slice(elem Type) Type { return sliceType{elem: elem} }

// Enum matches one of a fixed set of strings.
func Enum(values ...string) Type { return enumType{values: values} }

// NonEmpty wraps a type and additionally rejects empty strings, lists and maps.
func NonEmpty(inner Type) Type { return nonEmptyType{inner: inner} }

// ParseType converts a type name back into a Type.
// Supported: "string", "number", "int", "bool", "any", "object", "[T]" and a
// trailing "!" for NonEmpty.
func ParseType(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if strings.HasSuffix(name, "!") {
		inner, err := ParseType(strings.TrimSuffix(name, "!"))
		if err != nil {
			return nil, err
		}
		return NonEmpty(inner), nil
	}
	if len(name) > 2 && name[0] == '[' && name[len(name)-1] == ']' {
		elem, err := ParseType(name[1 : len(name)-1])
		if err != nil {
			return nil, err
		}
		return Slice(elem), nil
	}
	switch name {
	case "string":
		return String(), nil
	case "number", "float":
		return Number(), nil
	case "int":
		return Int(), nil
	case "bool":
		return Bool(), nil
	case "any":
		return Any(), nil
	case "object":
		return Object(), nil
	}
	return nil, fmt.Errorf("unsupported type: %s", name)
}

// ParseSchema converts a field→type-name map into a Schema.
func ParseSchema(raw map[string]string) (Schema, error) {
	out := make(Schema, len(raw))
	for field, name := range raw {
		t, err := ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		out[field] = t
	}
	return out, nil
}
