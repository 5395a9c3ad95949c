package hivelab

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/campushive/hivelab/internal/compiler"
	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/internal/presentation/graph"
	"github.com/campushive/hivelab/internal/runtime"
	"github.com/campushive/hivelab/internal/validator"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
	"github.com/campushive/hivelab/pkg/registry"
)

// Version is the engine release. Builds override it with
// -ldflags "-X github.com/campushive/hivelab.Version=...".
var Version = "0.4.0"

// Designer bundles the design-time pipeline: parse generator output,
// validate, repair and draw compositions.
type Designer struct {
	elements  *registry.ElementRegistry
	validator *validator.Validator
	parser    *compiler.Parser
	logger    *slog.Logger
}

type designerConfig struct {
	extra       []domain.ElementKind
	kindsFile   io.Reader
	maxElements int
	repair      bool
	logger      *slog.Logger
}

// Option configures a Designer.
type Option func(*designerConfig)

// WithKinds registers extra element kinds next to the built-in catalog.
func WithKinds(kinds ...domain.ElementKind) Option {
	return func(c *designerConfig) { c.extra = append(c.extra, kinds...) }
}

// WithKindsFile reads extra element kinds from a YAML document.
func WithKindsFile(r io.Reader) Option {
	return func(c *designerConfig) { c.kindsFile = r }
}

// WithMaxElements overrides the element limit of a composition.
func WithMaxElements(n int) Option {
	return func(c *designerConfig) { c.maxElements = n }
}

// WithRepair toggles JSON repair of malformed generator output.
func WithRepair(enabled bool) Option {
	return func(c *designerConfig) { c.repair = enabled }
}

// WithLogger sets the logger shared by the pipeline.
func WithLogger(l *slog.Logger) Option {
	return func(c *designerConfig) { c.logger = l }
}

// New creates a Designer over the built-in element catalog.
func New(opts ...Option) (*Designer, error) {
	cfg := designerConfig{repair: true, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.kindsFile != nil {
		kinds, err := registry.LoadKinds(cfg.kindsFile)
		if err != nil {
			return nil, err
		}
		cfg.extra = append(cfg.extra, kinds...)
	}

	elements := registry.Default()
	if len(cfg.extra) > 0 {
		var err error
		if elements, err = elements.With(cfg.extra...); err != nil {
			return nil, fmt.Errorf("register element kinds: %w", err)
		}
	}

	vopts := []validator.Option{validator.WithLogger(cfg.logger)}
	if cfg.maxElements > 0 {
		vopts = append(vopts, validator.WithMaxElements(cfg.maxElements))
	}
	return &Designer{
		elements:  elements,
		validator: validator.New(elements, vopts...),
		parser:    compiler.NewParser(compiler.WithRepair(cfg.repair), compiler.WithLogger(cfg.logger)),
		logger:    cfg.logger,
	}, nil
}

// Elements returns the element catalog in use.
func (d *Designer) Elements() *registry.ElementRegistry { return d.elements }

// Validator returns the underlying validator, e.g. to share it with a server.
func (d *Designer) Validator() *validator.Validator { return d.validator }

// Parser returns the underlying output parser.
func (d *Designer) Parser() *compiler.Parser { return d.parser }

// Validate checks a candidate: raw JSON bytes, a JSON string, a decoded map
// or a domain.ToolComposition.
func (d *Designer) Validate(candidate any) validator.Result {
	return d.validator.Validate(candidate)
}

// Sanitize repairs a candidate and validates the repaired composition.
func (d *Designer) Sanitize(candidate any) (domain.ToolComposition, validator.Result) {
	return d.validator.Repair(candidate)
}

// Parse extracts a composition from generator output and validates it.
// ok is false when the text holds no composition.
func (d *Designer) Parse(text string) (comp *domain.ToolComposition, res validator.Result, ok bool) {
	comp = d.parser.Parse(text)
	if comp == nil {
		return nil, validator.Result{}, false
	}
	return comp, d.validator.Validate(comp), true
}

// Mermaid draws comp as a flowchart.
func (d *Designer) Mermaid(comp *domain.ToolComposition) string {
	return graph.Mermaid(comp, d.elements, nil)
}

// NewRuntime creates a client-side state manager for one tool instance.
func NewRuntime(gateway ports.ToolGateway, opts ...runtime.Option) *runtime.Manager {
	return runtime.New(gateway, opts...)
}
