package dsl

import (
	"fmt"

	"github.com/campushive/hivelab/pkg/adapters/memory"
	"github.com/campushive/hivelab/pkg/domain"
)

// Builder assembles a composition.
type Builder struct {
	comp     domain.ToolComposition
	elements []*ElementBuilder
	index    map[string]*ElementBuilder
}

// New starts a composition named name on the grid layout.
func New(name string) *Builder {
	return &Builder{
		comp:  domain.ToolComposition{Name: name, Layout: domain.LayoutGrid},
		index: make(map[string]*ElementBuilder),
	}
}

// Describe sets the description.
func (b *Builder) Describe(text string) *Builder {
	b.comp.Description = text
	return b
}

// Layout sets the canvas layout.
func (b *Builder) Layout(l domain.Layout) *Builder {
	b.comp.Layout = l
	return b
}

// Add places an element. Adding an existing id returns its builder.
func (b *Builder) Add(id, kind string) *ElementBuilder {
	if eb, ok := b.index[id]; ok {
		return eb
	}
	eb := &ElementBuilder{
		el: domain.CanvasElement{
			InstanceID: id,
			Kind:       kind,
			Config:     map[string]any{},
		},
		builder: b,
	}
	b.elements = append(b.elements, eb)
	b.index[id] = eb
	return eb
}

// Connect wires from.output to to.input.
func (b *Builder) Connect(from, output, to, input string) *Builder {
	b.comp.Connections = append(b.comp.Connections, domain.Connection{
		From: domain.PortRef{InstanceID: from, Port: output},
		To:   domain.PortRef{InstanceID: to, Port: input},
	})
	return b
}

// Composition returns a copy of the composition built so far.
func (b *Builder) Composition() domain.ToolComposition {
	out := b.comp
	out.Elements = make([]domain.CanvasElement, 0, len(b.elements))
	for _, eb := range b.elements {
		out.Elements = append(out.Elements, eb.el)
	}
	out = out.Clone()
	if out.Connections == nil {
		out.Connections = []domain.Connection{}
	}
	return out
}

// Tool wraps the composition in a published definition with version 1.
func (b *Builder) Tool(id string) *domain.ToolDefinition {
	comp := b.Composition()
	comp.ID = id
	return &domain.ToolDefinition{
		ID:          id,
		Name:        comp.Name,
		Description: comp.Description,
		Status:      domain.ToolStatusPublished,
		Version:     1,
		Composition: comp,
	}
}

// Catalog returns an in-memory catalog holding the tool under id.
func (b *Builder) Catalog(id string) (*memory.Catalog, error) {
	catalog, err := memory.NewCatalog(b.Tool(id))
	if err != nil {
		return nil, fmt.Errorf("failed to build memory catalog: %w", err)
	}
	return catalog, nil
}
