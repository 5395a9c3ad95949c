package validator

import (
	"encoding/json"
	"fmt"

	"github.com/campushive/hivelab/pkg/domain"
)

// shape is the structural stage. It works on the generic decoded form so that
// candidates from any source (model output, HTTP bodies, YAML files) get the
// same diagnostics before they are bound to domain types.
type shape struct {
	c           *collector
	maxElements int
	// placed records which elements declared an explicit position.
	placed map[int]bool
}

// normalize converts a typed candidate into its generic JSON form.
func normalize(candidate any) (any, error) {
	switch v := candidate.(type) {
	case nil:
		return nil, nil
	case []byte:
		var out any
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, err
		}
		return out, nil
	case string:
		return normalize([]byte(v))
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return normalize(b)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out, err := normalize(b)
		if err != nil {
			return nil, err
		}
		dropUnset(out)
		return out, nil
	}
}

// dropUnset removes the zero geometry and empty layout a typed composition
// marshals for fields its author never set, so they read as absent.
func dropUnset(raw any) {
	root, ok := raw.(map[string]any)
	if !ok {
		return
	}
	if l, ok := root["layout"].(string); ok && l == "" {
		delete(root, "layout")
	}
	list, _ := root["elements"].([]any)
	for _, item := range list {
		el, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if isZeroBox(el["position"], "x", "y") {
			delete(el, "position")
		}
		if isZeroBox(el["size"], "width", "height") {
			delete(el, "size")
		}
	}
}

func isZeroBox(v any, a, b string) bool {
	m, ok := v.(map[string]any)
	return ok && m[a] == 0.0 && m[b] == 0.0
}

func (s *shape) invalid(path, format string, args ...any) {
	s.c.fail(Issue{Code: CodeSchemaInvalid, Path: path, Message: fmt.Sprintf(format, args...)})
}

func (s *shape) check(raw any) (map[string]any, bool) {
	root, ok := raw.(map[string]any)
	if !ok {
		s.invalid("", "composition must be an object, got %s", typeName(raw))
		return nil, false
	}
	before := len(s.c.errors)

	if v, present := root["name"]; !present {
		s.invalid("name", "name is required")
	} else if _, ok := v.(string); !ok {
		s.invalid("name", "name must be a string, got %s", typeName(v))
	}
	s.optionalString(root, "description", "description")
	s.optionalString(root, "id", "id")

	if v, present := root["layout"]; present && v != nil {
		l, ok := v.(string)
		if !ok || !domain.Layout(l).IsValid() {
			s.invalid("layout", "layout must be one of %v, got %v", domain.Layouts, v)
		}
	}

	s.elements(root["elements"])
	s.connections(root["connections"])
	return root, len(s.c.errors) == before
}

func (s *shape) elements(v any) {
	if v == nil {
		s.invalid("elements", "elements is required")
		return
	}
	list, ok := v.([]any)
	if !ok {
		s.invalid("elements", "elements must be an array, got %s", typeName(v))
		return
	}
	if len(list) == 0 {
		s.invalid("elements", "a composition needs at least one element")
	}
	if len(list) > s.maxElements {
		s.invalid("elements", "a composition holds at most %d elements, got %d", s.maxElements, len(list))
	}
	for i, item := range list {
		path := fmt.Sprintf("elements[%d]", i)
		el, ok := item.(map[string]any)
		if !ok {
			s.invalid(path, "element must be an object, got %s", typeName(item))
			continue
		}
		if !nonEmptyString(firstPresent(el, "instanceId", "elementId", "id")) {
			s.invalid(path+".instanceId", "instanceId must be a non-empty string")
		}
		if !nonEmptyString(firstPresent(el, "kind", "elementType", "type")) {
			s.invalid(path+".kind", "kind must be a non-empty string")
		}
		if cfg, present := el["config"]; present && cfg != nil {
			if _, ok := cfg.(map[string]any); !ok {
				s.invalid(path+".config", "config must be an object, got %s", typeName(cfg))
			}
		}
		if pos, present := el["position"]; present && pos != nil {
			if s.box(path+".position", pos, "x", "y",
				[2]float64{domain.MinX, domain.MaxX}, [2]float64{domain.MinY, domain.MaxY}) {
				s.placed[i] = true
			}
		}
		if size, present := el["size"]; present && size != nil {
			s.box(path+".size", size, "width", "height",
				[2]float64{domain.MinWidth, domain.MaxWidth}, [2]float64{domain.MinHeight, domain.MaxHeight})
		}
	}
}

// box checks a two-number object and its ranges.
func (s *shape) box(path string, v any, a, b string, ra, rb [2]float64) bool {
	m, ok := v.(map[string]any)
	if !ok {
		s.invalid(path, "must be an object, got %s", typeName(v))
		return false
	}
	good := true
	for _, f := range []struct {
		name string
		r    [2]float64
	}{{a, ra}, {b, rb}} {
		n, ok := m[f.name].(float64)
		if !ok {
			s.invalid(path+"."+f.name, "%s must be a number", f.name)
			good = false
			continue
		}
		if n < f.r[0] || n > f.r[1] {
			s.invalid(path+"."+f.name, "%s must be within [%g, %g], got %g", f.name, f.r[0], f.r[1], n)
			good = false
		}
	}
	return good
}

func (s *shape) connections(v any) {
	if v == nil {
		return
	}
	list, ok := v.([]any)
	if !ok {
		s.invalid("connections", "connections must be an array, got %s", typeName(v))
		return
	}
	for i, item := range list {
		path := fmt.Sprintf("connections[%d]", i)
		conn, ok := item.(map[string]any)
		if !ok {
			s.invalid(path, "connection must be an object, got %s", typeName(item))
			continue
		}
		for _, end := range []string{"from", "to"} {
			ref, ok := conn[end].(map[string]any)
			if !ok {
				s.invalid(path+"."+end, "%s must be an object", end)
				continue
			}
			if !nonEmptyString(firstPresent(ref, "instanceId", "elementId")) {
				s.invalid(path+"."+end+".instanceId", "instanceId must be a non-empty string")
			}
			if !nonEmptyString(firstPresent(ref, "port", "output", "input")) {
				s.invalid(path+"."+end+".port", "port must be a non-empty string")
			}
		}
	}
}

func (s *shape) optionalString(root map[string]any, key, path string) {
	if v, present := root[key]; present && v != nil {
		if _, ok := v.(string); !ok {
			s.invalid(path, "%s must be a string, got %s", key, typeName(v))
		}
	}
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			if str, isStr := v.(string); isStr && str == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func nonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s != ""
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
