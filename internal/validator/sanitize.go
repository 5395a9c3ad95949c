package validator

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/campushive/hivelab/pkg/domain"
)

// Sanitizer defaults.
const (
	DefaultName       = "Untitled Tool"
	DefaultWidth      = 300.0
	DefaultHeight     = 200.0
	sanitizeProximity = 100.0
)

// GridPosition is the slot the sanitizer assigns to the i-th element when it
// collides with its predecessor: two columns, 250px rows.
func GridPosition(i int) domain.Position {
	return domain.Position{
		X: 100 + float64(i%2)*340,
		Y: 100 + float64(i/2)*250,
	}
}

// Sanitize repairs a composition without judging it. It makes instance ids
// unique, re-grids elements stacked on their predecessor, clamps geometry to
// the canvas bounds, drops connections to missing elements and backfills the
// name and description. Kinds and configs are never touched. The result is a
// fixed point: Sanitize(Sanitize(c)) equals Sanitize(c).
func Sanitize(c domain.ToolComposition) domain.ToolComposition {
	out := c.Clone()
	uniqueIDs(out.Elements)

	for i := range out.Elements {
		el := &out.Elements[i]
		if el.Config == nil {
			el.Config = map[string]any{}
		}
		if el.Size.Width == 0 {
			el.Size.Width = DefaultWidth
		}
		if el.Size.Height == 0 {
			el.Size.Height = DefaultHeight
		}
		el.Size = clampSize(el.Size)
		el.Position = clampPosition(el.Position)
		if i > 0 {
			prev := out.Elements[i-1].Position
			if math.Abs(el.Position.X-prev.X) < sanitizeProximity &&
				math.Abs(el.Position.Y-prev.Y) < sanitizeProximity {
				el.Position = clampPosition(GridPosition(i))
			}
		}
	}

	ids := make(map[string]bool, len(out.Elements))
	for _, el := range out.Elements {
		ids[el.InstanceID] = true
	}
	conns := make([]domain.Connection, 0, len(out.Connections))
	for _, conn := range out.Connections {
		if ids[conn.From.InstanceID] && ids[conn.To.InstanceID] {
			conns = append(conns, conn)
		}
	}
	out.Connections = conns

	if out.Name == "" {
		out.Name = DefaultName
	}
	if out.Description == "" {
		out.Description = fmt.Sprintf("A tool with %d elements", len(out.Elements))
	}
	if !out.Layout.IsValid() {
		out.Layout = domain.LayoutGrid
	}
	return out
}

// uniqueIDs keeps the first holder of every id and renames the rest to
// "<kind>_<index>", suffixing further if that is taken too.
func uniqueIDs(elements []domain.CanvasElement) {
	taken := make(map[string]bool, len(elements))
	keep := make([]bool, len(elements))
	for i, el := range elements {
		if el.InstanceID != "" && !taken[el.InstanceID] {
			taken[el.InstanceID] = true
			keep[i] = true
		}
	}
	for i := range elements {
		if keep[i] {
			continue
		}
		base := fmt.Sprintf("%s_%d", elements[i].Kind, i)
		id := base
		for n := 2; taken[id]; n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		taken[id] = true
		elements[i].InstanceID = id
	}
}

func clampPosition(p domain.Position) domain.Position {
	return domain.Position{
		X: clamp(p.X, domain.MinX, domain.MaxX),
		Y: clamp(p.Y, domain.MinY, domain.MaxY),
	}
}

func clampSize(s domain.Size) domain.Size {
	return domain.Size{
		Width:  clamp(s.Width, domain.MinWidth, domain.MaxWidth),
		Height: clamp(s.Height, domain.MinHeight, domain.MaxHeight),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Repair decodes a candidate leniently, sanitizes it and validates the
// repaired result. The returned composition is usable only when the result
// is valid.
func (v *Validator) Repair(candidate any) (domain.ToolComposition, Result) {
	var comp domain.ToolComposition
	raw, err := normalize(candidate)
	if err == nil {
		var b []byte
		if b, err = json.Marshal(raw); err == nil {
			err = json.Unmarshal(b, &comp)
		}
	}
	if err != nil {
		c := &collector{}
		c.fail(Issue{Code: CodeSchemaInvalid, Message: "candidate cannot be decoded: " + err.Error()})
		return comp, c.result(nil)
	}
	fixed := Sanitize(comp)
	return fixed, v.Validate(fixed)
}
