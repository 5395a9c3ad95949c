package dsl

import "github.com/campushive/hivelab/pkg/domain"

// ElementBuilder configures one placed element.
type ElementBuilder struct {
	el      domain.CanvasElement
	builder *Builder
}

// Config sets one configuration field.
func (e *ElementBuilder) Config(key string, value any) *ElementBuilder {
	e.el.Config[key] = value
	return e
}

// Configs merges several configuration fields.
func (e *ElementBuilder) Configs(values map[string]any) *ElementBuilder {
	for k, v := range values {
		e.el.Config[k] = v
	}
	return e
}

// At places the element's top-left corner.
func (e *ElementBuilder) At(x, y float64) *ElementBuilder {
	e.el.Position = domain.Position{X: x, Y: y}
	return e
}

// Size sets the rendered size.
func (e *ElementBuilder) Size(width, height float64) *ElementBuilder {
	e.el.Size = domain.Size{Width: width, Height: height}
	return e
}

// To connects one of this element's outputs to another element's input.
func (e *ElementBuilder) To(output, target, input string) *ElementBuilder {
	e.builder.Connect(e.el.InstanceID, output, target, input)
	return e
}

// Build returns the element as configured so far.
func (e *ElementBuilder) Build() domain.CanvasElement {
	return e.el
}
