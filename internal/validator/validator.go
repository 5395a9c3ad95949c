package validator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/registry"
	"github.com/campushive/hivelab/pkg/schema"
)

// DefaultOverlapThreshold is the distance under which two placed elements are
// reported as overlapping.
const DefaultOverlapThreshold = 50.0

// Validator checks candidate compositions against an element registry.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	registry         *registry.ElementRegistry
	maxElements      int
	overlapThreshold float64
	logger           *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxElements overrides the element cap.
func WithMaxElements(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxElements = n
		}
	}
}

// WithOverlapThreshold overrides the overlap heuristic distance.
func WithOverlapThreshold(d float64) Option {
	return func(v *Validator) { v.overlapThreshold = d }
}

// WithLogger sets the logger used for debug traces.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// New creates a Validator. A nil registry means the built-in catalog.
func New(reg *registry.ElementRegistry, opts ...Option) *Validator {
	if reg == nil {
		reg = registry.Default()
	}
	v := &Validator{
		registry:         reg,
		maxElements:      domain.MaxElements,
		overlapThreshold: DefaultOverlapThreshold,
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Registry returns the registry the validator checks against.
func (v *Validator) Registry() *registry.ElementRegistry { return v.registry }

// Validate runs the full pipeline over an untrusted candidate. Accepted inputs
// are a decoded JSON value, raw JSON bytes or string, or any value that
// marshals to a composition (such as domain.ToolComposition). It never fails;
// problems are reported in the Result.
func (v *Validator) Validate(candidate any) Result {
	c := &collector{}
	raw, err := normalize(candidate)
	if err != nil {
		c.fail(Issue{Code: CodeSchemaInvalid, Message: "candidate is not valid JSON: " + err.Error()})
		return c.result(nil)
	}

	sh := &shape{c: c, maxElements: v.maxElements, placed: make(map[int]bool)}
	root, ok := sh.check(raw)
	if !ok {
		v.logger.Debug("composition failed structural checks", "errors", len(c.errors))
		return c.result(nil)
	}

	comp, err := bind(root)
	if err != nil {
		c.fail(Issue{Code: CodeSchemaInvalid, Message: err.Error()})
		return c.result(nil)
	}

	v.elements(c, &comp)
	v.uniqueness(c, &comp)
	v.endpoints(c, &comp)
	v.ports(c, &comp)
	g := buildGraph(&comp)
	for _, loop := range g.cycles() {
		c.fail(Issue{
			Code:       CodeCircularConnection,
			Message:    "Circular connection: " + strings.Join(loop, " -> "),
			ElementID:  loop[0],
			Suggestion: "Remove one of the connections in the loop",
		})
	}
	v.heuristics(c, &comp, sh.placed)

	res := c.result(&comp)
	if res.Valid {
		res.Order = g.topoOrder()
	}
	v.logger.Debug("composition validated",
		"valid", res.Valid, "errors", len(res.Errors), "warnings", len(res.Warnings))
	return res
}

// bind converts the checked generic form into domain types.
func bind(root map[string]any) (domain.ToolComposition, error) {
	var comp domain.ToolComposition
	b, err := json.Marshal(root)
	if err != nil {
		return comp, fmt.Errorf("encode candidate: %w", err)
	}
	if err := json.Unmarshal(b, &comp); err != nil {
		return comp, fmt.Errorf("decode composition: %w", err)
	}
	if comp.Layout == "" {
		comp.Layout = domain.LayoutGrid
	}
	for i := range comp.Elements {
		if comp.Elements[i].Config == nil {
			comp.Elements[i].Config = map[string]any{}
		}
	}
	if comp.Connections == nil {
		comp.Connections = []domain.Connection{}
	}
	return comp, nil
}

// elements checks kinds and per-kind configuration.
func (v *Validator) elements(c *collector, comp *domain.ToolComposition) {
	for i, el := range comp.Elements {
		path := fmt.Sprintf("elements[%d]", i)
		kind, ok := v.registry.Lookup(el.Kind)
		if !ok {
			c.fail(Issue{
				Code:       CodeUnknownElementType,
				Message:    fmt.Sprintf("Unknown element type '%s'", el.Kind),
				Path:       path + ".kind",
				ElementID:  el.InstanceID,
				Suggestion: "Known types: " + strings.Join(v.registry.Kinds(), ", "),
			})
			continue
		}
		for _, field := range kind.RequiredConfigFields {
			if val, present := el.Config[field]; !present || val == nil {
				c.fail(Issue{
					Code:      CodeMissingRequiredConfig,
					Message:   fmt.Sprintf("Element '%s' (%s) is missing required config '%s'", el.InstanceID, el.Kind, field),
					Path:      path + ".config." + field,
					ElementID: el.InstanceID,
					Field:     field,
				})
			}
		}
		for _, fe := range schema.Check(kind.ConfigSchema, el.Config) {
			c.warn(Issue{
				Code:      CodeInvalidConfigType,
				Message:   fmt.Sprintf("Element '%s' config %s", el.InstanceID, fe.Error()),
				Path:      path + ".config." + fe.Field,
				ElementID: el.InstanceID,
				Field:     fe.Field,
			})
		}
	}
}

// uniqueness reports every occurrence of a repeated instance id.
func (v *Validator) uniqueness(c *collector, comp *domain.ToolComposition) {
	counts := make(map[string]int, len(comp.Elements))
	for _, el := range comp.Elements {
		counts[el.InstanceID]++
	}
	for i, el := range comp.Elements {
		if n := counts[el.InstanceID]; n > 1 {
			c.fail(Issue{
				Code:      CodeDuplicateInstanceID,
				Message:   fmt.Sprintf("Duplicate instance id '%s' (%d occurrences)", el.InstanceID, n),
				Path:      fmt.Sprintf("elements[%d].instanceId", i),
				ElementID: el.InstanceID,
			})
		}
	}
}

func (v *Validator) endpoints(c *collector, comp *domain.ToolComposition) {
	for i, conn := range comp.Connections {
		path := fmt.Sprintf("connections[%d]", i)
		if _, ok := comp.Element(conn.From.InstanceID); !ok {
			c.fail(Issue{
				Code:      CodeInvalidSource,
				Message:   fmt.Sprintf("Connection source '%s' does not exist", conn.From.InstanceID),
				Path:      path + ".from",
				ElementID: conn.From.InstanceID,
			})
		}
		if _, ok := comp.Element(conn.To.InstanceID); !ok {
			c.fail(Issue{
				Code:      CodeInvalidTarget,
				Message:   fmt.Sprintf("Connection target '%s' does not exist", conn.To.InstanceID),
				Path:      path + ".to",
				ElementID: conn.To.InstanceID,
			})
		}
	}
}

// ports checks port names on connections whose endpoints both resolve. The
// element library is still evolving, so mismatches are warnings.
func (v *Validator) ports(c *collector, comp *domain.ToolComposition) {
	for i, conn := range comp.Connections {
		from, okFrom := comp.Element(conn.From.InstanceID)
		to, okTo := comp.Element(conn.To.InstanceID)
		if !okFrom || !okTo {
			continue
		}
		path := fmt.Sprintf("connections[%d]", i)
		if v.registry.Has(from.Kind) && !v.registry.HasOutput(from.Kind, conn.From.Port) {
			c.warn(Issue{
				Code:       CodeInvalidOutputPort,
				Message:    fmt.Sprintf("'%s' (%s) has no output port '%s'", from.InstanceID, from.Kind, conn.From.Port),
				Path:       path + ".from.port",
				ElementID:  from.InstanceID,
				Suggestion: portHint("outputs", v.registry.Outputs(from.Kind)),
			})
		}
		if v.registry.Has(to.Kind) && !v.registry.HasInput(to.Kind, conn.To.Port) {
			c.warn(Issue{
				Code:       CodeInvalidInputPort,
				Message:    fmt.Sprintf("'%s' (%s) has no input port '%s'", to.InstanceID, to.Kind, conn.To.Port),
				Path:       path + ".to.port",
				ElementID:  to.InstanceID,
				Suggestion: portHint("inputs", v.registry.Inputs(to.Kind)),
			})
		}
	}
}

func portHint(label string, ports []string) string {
	if len(ports) == 0 {
		return "This element has no " + label
	}
	return "Valid " + label + ": " + strings.Join(ports, ", ")
}

func (v *Validator) heuristics(c *collector, comp *domain.ToolComposition, placed map[int]bool) {
	if len(comp.Elements) == 1 && len(comp.Connections) > 0 {
		c.warn(Issue{
			Code:       CodeSingleElementLinks,
			Message:    "A single-element composition should not declare connections",
			ElementID:  comp.Elements[0].InstanceID,
			Suggestion: "Remove the connections or add the elements they refer to",
		})
	}
	for i := 0; i < len(comp.Elements); i++ {
		if !placed[i] {
			continue
		}
		for j := i + 1; j < len(comp.Elements); j++ {
			if !placed[j] {
				continue
			}
			a, b := comp.Elements[i].Position, comp.Elements[j].Position
			if math.Abs(a.X-b.X) < v.overlapThreshold && math.Abs(a.Y-b.Y) < v.overlapThreshold {
				c.warn(Issue{
					Code: CodeOverlap,
					Message: fmt.Sprintf("Elements '%s' and '%s' overlap",
						comp.Elements[i].InstanceID, comp.Elements[j].InstanceID),
					ElementID:  comp.Elements[j].InstanceID,
					Suggestion: "Sanitize the composition to re-grid overlapping elements",
				})
			}
		}
	}
}
