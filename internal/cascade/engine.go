package cascade

import (
	"log/slog"
	"reflect"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/registry"
)

// DefaultMaxDepth bounds how many hops a change travels from its origin.
const DefaultMaxDepth = 5

// Report is the outcome of one propagation.
type Report struct {
	// Affected lists every element reached, in first-reach order. The origin is excluded.
	Affected []string
	// Inputs and Outputs hold the final port values per reached element.
	Inputs  map[string]map[string]any
	Outputs map[string]map[string]any
	// DepthExceeded is set when the walk stopped at the depth bound.
	DepthExceeded bool
}

// Engine propagates output changes along a composition's connections.
// It is stateless between calls and safe for concurrent use.
type Engine struct {
	maxDepth    int
	derivers    map[string]Deriver
	passthrough Deriver
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth overrides the depth bound.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithDeriver registers the deriver used for kind.
func WithDeriver(kind string, d Deriver) Option {
	return func(e *Engine) { e.derivers[kind] = d }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an engine over reg. A nil registry means the built-in catalog.
func New(reg *registry.ElementRegistry, opts ...Option) *Engine {
	if reg == nil {
		reg = registry.Default()
	}
	e := &Engine{
		maxDepth:    DefaultMaxDepth,
		derivers:    DefaultDerivers(),
		passthrough: Passthrough(reg),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type hop struct {
	id    string
	depth int
}

// Propagate walks breadth-first from origin. changed holds the origin's new
// output values by port. Each reached element receives the values on its
// input ports and its outputs are re-derived; an element is walked further
// only when its derived outputs are non-empty and differ from the ones it
// already had in this walk. Hops past the depth bound are dropped.
func (e *Engine) Propagate(g *Graph, origin string, changed map[string]any) Report {
	rep := Report{
		Inputs:  make(map[string]map[string]any),
		Outputs: make(map[string]map[string]any),
	}
	if _, ok := g.Element(origin); !ok || len(changed) == 0 {
		return rep
	}

	outputs := map[string]map[string]any{origin: changed}
	reached := map[string]bool{origin: true}
	queue := []hop{{id: origin}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		emitted := outputs[cur.id]

		for _, conn := range g.out[cur.id] {
			v, ok := emitted[conn.From.Port]
			if !ok {
				continue
			}
			if cur.depth+1 > e.maxDepth {
				rep.DepthExceeded = true
				continue
			}
			target := conn.To.InstanceID
			el, _ := g.Element(target)
			if !reached[target] {
				reached[target] = true
				rep.Affected = append(rep.Affected, target)
			}
			in := rep.Inputs[target]
			if in == nil {
				in = make(map[string]any)
				rep.Inputs[target] = in
			}
			in[conn.To.Port] = v

			derive := e.passthrough
			if d, ok := e.derivers[el.Kind]; ok {
				derive = d
			}
			next := derive(el, in)
			prev, derived := outputs[target]
			rep.Outputs[target] = next
			outputs[target] = next
			if len(next) > 0 && (!derived || !reflect.DeepEqual(prev, next)) {
				queue = append(queue, hop{id: target, depth: cur.depth + 1})
			}
		}
	}

	if rep.DepthExceeded {
		e.logger.Debug("cascade stopped at depth bound", "origin", origin, "max_depth", e.maxDepth)
	}
	return rep
}

// Notify invokes callback once with ids, skipping empty lists and nil callbacks.
func Notify(callback func([]string), ids []string) {
	if callback == nil || len(ids) == 0 {
		return
	}
	callback(append([]string(nil), ids...))
}
