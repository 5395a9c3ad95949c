// Package graph draws compositions as Mermaid flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/registry"
)

// Overlay marks runtime activity on the chart.
type Overlay struct {
	// Origin is the element whose action started a cascade.
	Origin string
	// Cascaded lists the elements the cascade reached.
	Cascaded []string
}

// Mermaid renders comp as a left-to-right flowchart. Shapes follow the
// element category in reg:
//   - input: [/parallelogram/]
//   - action: (rounded)
//   - display: [[subroutine]]
//   - logic: {{hexagon}}
//
// Unknown kinds draw as plain rectangles. Edges carry "output → input".
func Mermaid(comp *domain.ToolComposition, reg *registry.ElementRegistry, overlay *Overlay) string {
	if reg == nil {
		reg = registry.Default()
	}
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, el := range comp.Elements {
		opener, closer := "[", "]"
		if kind, ok := reg.Lookup(el.Kind); ok {
			switch kind.Category {
			case registry.CategoryInput:
				opener, closer = "[/", "/]"
			case registry.CategoryAction:
				opener, closer = "(", ")"
			case registry.CategoryDisplay:
				opener, closer = "[[", "]]"
			case registry.CategoryLogic:
				opener, closer = "{{", "}}"
			}
		}
		fmt.Fprintf(&sb, "    %s%s\"%s<br/><small>%s</small>\"%s\n",
			nodeID(el.InstanceID), opener, quote(el.InstanceID), quote(el.Kind), closer)
	}

	for _, c := range comp.Connections {
		fmt.Fprintf(&sb, "    %s -- \"%s → %s\" --> %s\n",
			nodeID(c.From.InstanceID), quote(c.From.Port), quote(c.To.Port), nodeID(c.To.InstanceID))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Cascade overlay\n")
		sb.WriteString("    classDef cascaded fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef origin fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		seen := make(map[string]bool)
		for _, id := range overlay.Cascaded {
			safe := nodeID(id)
			if safe == "" || seen[safe] {
				continue
			}
			seen[safe] = true
			fmt.Fprintf(&sb, "    class %s cascaded;\n", safe)
		}
		if overlay.Origin != "" {
			fmt.Fprintf(&sb, "    class %s origin;\n", nodeID(overlay.Origin))
		}
	}
	return sb.String()
}

var idReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_", ":", "_")

func nodeID(id string) string { return idReplacer.Replace(id) }

func quote(s string) string { return strings.ReplaceAll(s, "\"", "'") }
