package cascade

import "github.com/campushive/hivelab/pkg/domain"

// Graph is the element-level view of a composition used for propagation.
// Outgoing edges keep connection order.
type Graph struct {
	elements map[string]*domain.CanvasElement
	out      map[string][]domain.Connection
}

// NewGraph indexes a composition. Connections whose endpoints are missing are ignored.
func NewGraph(c *domain.ToolComposition) *Graph {
	g := &Graph{
		elements: make(map[string]*domain.CanvasElement, len(c.Elements)),
		out:      make(map[string][]domain.Connection),
	}
	for i := range c.Elements {
		el := &c.Elements[i]
		if _, dup := g.elements[el.InstanceID]; !dup {
			g.elements[el.InstanceID] = el
		}
	}
	for _, conn := range c.Connections {
		if g.elements[conn.From.InstanceID] == nil || g.elements[conn.To.InstanceID] == nil {
			continue
		}
		g.out[conn.From.InstanceID] = append(g.out[conn.From.InstanceID], conn)
	}
	return g
}

// Element returns the element with the given id.
func (g *Graph) Element(id string) (*domain.CanvasElement, bool) {
	el, ok := g.elements[id]
	return el, ok
}

// Downstream returns the direct targets of id, deduplicated, in connection order.
func (g *Graph) Downstream(id string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, conn := range g.out[id] {
		if !seen[conn.To.InstanceID] {
			seen[conn.To.InstanceID] = true
			ids = append(ids, conn.To.InstanceID)
		}
	}
	return ids
}
