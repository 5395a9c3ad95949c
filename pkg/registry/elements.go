package registry

import (
	"fmt"
	"sort"

	"github.com/campushive/hivelab/pkg/domain"
)

type kindEntry struct {
	kind    domain.ElementKind
	outputs map[string]struct{}
	inputs  map[string]struct{}
}

// ElementRegistry is the immutable catalog of element kinds.
type ElementRegistry struct {
	entries map[string]*kindEntry
	names   []string
}

// NewElementRegistry builds a registry from the given kinds.
// Duplicate or empty kind names are rejected.
func NewElementRegistry(kinds ...domain.ElementKind) (*ElementRegistry, error) {
	r := &ElementRegistry{entries: make(map[string]*kindEntry, len(kinds))}
	for _, k := range kinds {
		if k.Kind == "" {
			return nil, fmt.Errorf("element kind with empty name")
		}
		if _, dup := r.entries[k.Kind]; dup {
			return nil, fmt.Errorf("duplicate element kind: %s", k.Kind)
		}
		entry := &kindEntry{
			kind:    copyKind(k),
			outputs: toSet(k.Outputs),
			inputs:  toSet(k.Inputs),
		}
		r.entries[k.Kind] = entry
		r.names = append(r.names, k.Kind)
	}
	sort.Strings(r.names)
	return r, nil
}

// Default returns a registry built from the built-in catalog.
func Default() *ElementRegistry {
	r, err := NewElementRegistry(Catalog()...)
	if err != nil {
		// The built-in table is static; a failure here is a programming error.
		panic(err)
	}
	return r
}

// With returns a new registry containing r's kinds plus extra ones.
// Extra kinds replace built-in kinds with the same name.
func (r *ElementRegistry) With(extra ...domain.ElementKind) (*ElementRegistry, error) {
	override := make(map[string]domain.ElementKind, len(extra))
	for _, k := range extra {
		override[k.Kind] = k
	}
	var merged []domain.ElementKind
	for _, name := range r.names {
		if k, ok := override[name]; ok {
			merged = append(merged, k)
			delete(override, name)
			continue
		}
		merged = append(merged, r.entries[name].kind)
	}
	for _, k := range extra {
		if _, pending := override[k.Kind]; pending {
			merged = append(merged, k)
			delete(override, k.Kind)
		}
	}
	return NewElementRegistry(merged...)
}

// Lookup returns a copy of the kind definition.
func (r *ElementRegistry) Lookup(kind string) (domain.ElementKind, bool) {
	e, ok := r.entries[kind]
	if !ok {
		return domain.ElementKind{}, false
	}
	return copyKind(e.kind), true
}

// Has reports whether kind is registered.
func (r *ElementRegistry) Has(kind string) bool {
	_, ok := r.entries[kind]
	return ok
}

// Kinds returns every registered kind name, sorted.
func (r *ElementRegistry) Kinds() []string {
	return append([]string(nil), r.names...)
}

// HasOutput reports whether kind declares port as an output.
func (r *ElementRegistry) HasOutput(kind, port string) bool {
	e, ok := r.entries[kind]
	if !ok {
		return false
	}
	_, ok = e.outputs[port]
	return ok
}

// HasInput reports whether kind declares port as an input.
func (r *ElementRegistry) HasInput(kind, port string) bool {
	e, ok := r.entries[kind]
	if !ok {
		return false
	}
	_, ok = e.inputs[port]
	return ok
}

// Outputs returns the declared output ports of kind in declaration order.
func (r *ElementRegistry) Outputs(kind string) []string {
	if e, ok := r.entries[kind]; ok {
		return append([]string(nil), e.kind.Outputs...)
	}
	return nil
}

// Inputs returns the declared input ports of kind in declaration order.
func (r *ElementRegistry) Inputs(kind string) []string {
	if e, ok := r.entries[kind]; ok {
		return append([]string(nil), e.kind.Inputs...)
	}
	return nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func copyKind(k domain.ElementKind) domain.ElementKind {
	k.Outputs = append([]string(nil), k.Outputs...)
	k.Inputs = append([]string(nil), k.Inputs...)
	k.RequiredConfigFields = append([]string(nil), k.RequiredConfigFields...)
	return k
}
