package domain

import (
	"encoding/json"
	"time"

	"github.com/campushive/hivelab/pkg/schema"
)

// Canvas bounds for element placement.
const (
	MinX, MaxX           = 0.0, 2000.0
	MinY, MaxY           = 0.0, 5000.0
	MinWidth, MaxWidth   = 50.0, 1000.0
	MinHeight, MaxHeight = 30.0, 800.0

	// MaxElements is the largest composition accepted by the validator.
	MaxElements = 20
)

// Layout is the presentation layout of a composition.
type Layout string

const (
	LayoutGrid    Layout = "grid"
	LayoutFlow    Layout = "flow"
	LayoutTabs    Layout = "tabs"
	LayoutSidebar Layout = "sidebar"
	LayoutStack   Layout = "stack"
)

// Layouts lists every accepted layout in declaration order.
var Layouts = []Layout{LayoutGrid, LayoutFlow, LayoutTabs, LayoutSidebar, LayoutStack}

// IsValid reports whether l is one of the known layouts.
func (l Layout) IsValid() bool {
	for _, known := range Layouts {
		if l == known {
			return true
		}
	}
	return false
}

// ElementKind is an immutable registry entry.
type ElementKind struct {
	Kind                 string        `json:"kind" yaml:"kind"`
	Category             string        `json:"category,omitempty" yaml:"category,omitempty"`
	Outputs              []string      `json:"outputs" yaml:"outputs"`
	Inputs               []string      `json:"inputs" yaml:"inputs"`
	RequiredConfigFields []string      `json:"requiredConfigFields,omitempty" yaml:"required_config_fields,omitempty"`
	ConfigSchema         schema.Schema `json:"-" yaml:"-"`
}

// Position is the top-left corner of an element on the canvas.
type Position struct {
	X float64 `json:"x" yaml:"x" mapstructure:"x"`
	Y float64 `json:"y" yaml:"y" mapstructure:"y"`
}

// Size is the rendered size of an element.
type Size struct {
	Width  float64 `json:"width" yaml:"width" mapstructure:"width"`
	Height float64 `json:"height" yaml:"height" mapstructure:"height"`
}

// CanvasElement is one placed instance of an ElementKind.
type CanvasElement struct {
	InstanceID string         `json:"instanceId" yaml:"instanceId" mapstructure:"instanceId"`
	Kind       string         `json:"kind" yaml:"kind" mapstructure:"kind"`
	Config     map[string]any `json:"config" yaml:"config" mapstructure:"config"`
	Position   Position       `json:"position" yaml:"position" mapstructure:"position"`
	Size       Size           `json:"size" yaml:"size" mapstructure:"size"`
}

// UnmarshalJSON accepts the alternate id field names emitted by older editors
// ("elementId", "id") and the legacy "type"/"elementType" kind field.
func (e *CanvasElement) UnmarshalJSON(data []byte) error {
	type plain CanvasElement
	var aux struct {
		plain
		ElementID   string `json:"elementId"`
		ID          string `json:"id"`
		Type        string `json:"type"`
		ElementType string `json:"elementType"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = CanvasElement(aux.plain)
	if e.InstanceID == "" {
		e.InstanceID = firstNonEmpty(aux.ElementID, aux.ID)
	}
	if e.Kind == "" {
		e.Kind = firstNonEmpty(aux.ElementType, aux.Type)
	}
	return nil
}

// PortRef identifies one port of one placed element.
type PortRef struct {
	InstanceID string `json:"instanceId" yaml:"instanceId" mapstructure:"instanceId"`
	Port       string `json:"port" yaml:"port" mapstructure:"port"`
}

// UnmarshalJSON accepts "elementId" as an alternate instance id field.
func (p *PortRef) UnmarshalJSON(data []byte) error {
	type plain PortRef
	var aux struct {
		plain
		ElementID string `json:"elementId"`
		Output    string `json:"output"`
		Input     string `json:"input"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = PortRef(aux.plain)
	if p.InstanceID == "" {
		p.InstanceID = aux.ElementID
	}
	if p.Port == "" {
		p.Port = firstNonEmpty(aux.Output, aux.Input)
	}
	return nil
}

// Connection is a directed edge between two element ports.
type Connection struct {
	From PortRef `json:"from" yaml:"from" mapstructure:"from"`
	To   PortRef `json:"to" yaml:"to" mapstructure:"to"`
}

// ToolComposition is the aggregate root of a tool.
type ToolComposition struct {
	ID          string          `json:"id,omitempty" yaml:"id,omitempty" mapstructure:"id"`
	Name        string          `json:"name" yaml:"name" mapstructure:"name"`
	Description string          `json:"description" yaml:"description" mapstructure:"description"`
	Elements    []CanvasElement `json:"elements" yaml:"elements" mapstructure:"elements"`
	Connections []Connection    `json:"connections" yaml:"connections" mapstructure:"connections"`
	Layout      Layout          `json:"layout" yaml:"layout" mapstructure:"layout"`
}

// Element returns the first element with the given instance id.
func (c *ToolComposition) Element(instanceID string) (*CanvasElement, bool) {
	for i := range c.Elements {
		if c.Elements[i].InstanceID == instanceID {
			return &c.Elements[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the composition.
func (c ToolComposition) Clone() ToolComposition {
	out := c
	out.Elements = make([]CanvasElement, len(c.Elements))
	for i, el := range c.Elements {
		el.Config = CloneMap(el.Config)
		out.Elements[i] = el
	}
	out.Connections = append([]Connection(nil), c.Connections...)
	return out
}

// Tool definition lifecycle status.
const (
	ToolStatusDraft     = "draft"
	ToolStatusPublished = "published"
)

// ToolDefinition is the persisted "tool" document wrapping the current composition version.
type ToolDefinition struct {
	ID          string          `json:"id" yaml:"id" mapstructure:"id"`
	Name        string          `json:"name" yaml:"name" mapstructure:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	OwnerID     string          `json:"ownerId,omitempty" yaml:"ownerId,omitempty" mapstructure:"ownerId"`
	Status      string          `json:"status,omitempty" yaml:"status,omitempty" mapstructure:"status"`
	Version     int             `json:"version" yaml:"version" mapstructure:"version"`
	Composition ToolComposition `json:"composition" yaml:"composition" mapstructure:"composition"`
	CreatedAt   time.Time       `json:"createdAt,omitempty" yaml:"createdAt,omitempty" mapstructure:"-"`
	UpdatedAt   time.Time       `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty" mapstructure:"-"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
