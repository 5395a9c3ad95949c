package compiler

import (
	"encoding/json"
	"log/slog"
	"regexp"

	"github.com/kaptinlin/jsonrepair"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/domain"
)

var fence = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\r?\\n?(.*?)```")

// Parser extracts a composition from free-form generator output.
type Parser struct {
	maxInput int
	repair   bool
	logger   *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithMaxInputSize overrides the input size cap.
func WithMaxInputSize(n int) Option {
	return func(p *Parser) { p.maxInput = n }
}

// WithRepair toggles the jsonrepair pass on fenced and embedded candidates.
func WithRepair(enabled bool) Option {
	return func(p *Parser) { p.repair = enabled }
}

// WithLogger sets the parser logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewParser creates a new parser instance.
func NewParser(opts ...Option) *Parser {
	p := &Parser{repair: true, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseComposition runs the default parser over raw.
func ParseComposition(raw string) *domain.ToolComposition {
	return NewParser().Parse(raw)
}

// Parse tries, in order: the whole string as JSON, the first fenced code
// block, then every top-level {...} object in the text. The first candidate
// that decodes to an object with an "elements" array wins. It returns nil when
// nothing qualifies. The result is not validated.
func (p *Parser) Parse(raw string) *domain.ToolComposition {
	text, err := GuardInput(raw, p.maxInput)
	if err != nil {
		p.logger.Debug("parser input rejected", "error", err)
		return nil
	}

	if c := decode(text); c != nil {
		return c
	}
	if m := fence.FindStringSubmatch(text); m != nil {
		if c := p.attempt(m[1]); c != nil {
			p.logger.Debug("composition recovered from fenced block")
			return c
		}
	}
	for _, candidate := range objects(text) {
		if c := p.attempt(candidate); c != nil {
			p.logger.Debug("composition recovered from embedded object")
			return c
		}
	}
	return nil
}

// attempt decodes a candidate strictly, then once more after repair.
func (p *Parser) attempt(candidate string) *domain.ToolComposition {
	if c := decode(candidate); c != nil {
		return c
	}
	if !p.repair {
		return nil
	}
	fixed, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil
	}
	return decode(fixed)
}

func decode(s string) *domain.ToolComposition {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil {
		return nil
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(probe["elements"], &elements); err != nil || elements == nil {
		return nil
	}
	var comp domain.ToolComposition
	if err := json.Unmarshal([]byte(s), &comp); err != nil {
		return nil
	}
	return &comp
}

// objects returns every top-level brace-balanced span of text, skipping
// braces inside string literals.
func objects(text string) []string {
	var out []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
			}
		}
	}
	return out
}
