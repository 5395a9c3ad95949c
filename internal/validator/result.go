package validator

import (
	"fmt"
	"strings"

	"github.com/campushive/hivelab/pkg/domain"
)

// Issue codes. Errors reject the composition; warnings do not.
const (
	CodeSchemaInvalid         = "SCHEMA_INVALID"
	CodeUnknownElementType    = "UNKNOWN_ELEMENT_TYPE"
	CodeMissingRequiredConfig = "MISSING_REQUIRED_CONFIG"
	CodeDuplicateInstanceID   = "DUPLICATE_INSTANCE_ID"
	CodeInvalidSource         = "INVALID_CONNECTION_SOURCE"
	CodeInvalidTarget         = "INVALID_CONNECTION_TARGET"
	CodeCircularConnection    = "CIRCULAR_CONNECTION"

	CodeInvalidOutputPort  = "INVALID_OUTPUT_PORT"
	CodeInvalidInputPort   = "INVALID_INPUT_PORT"
	CodeInvalidConfigType  = "INVALID_CONFIG_TYPE"
	CodeSingleElementLinks = "SINGLE_ELEMENT_WITH_CONNECTIONS"
	CodeOverlap            = "OVERLAPPING_ELEMENTS"
)

// Issue is one finding of the validator.
type Issue struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Path       string `json:"path,omitempty"`
	ElementID  string `json:"elementId,omitempty"`
	Field      string `json:"field,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(i.Code)
	b.WriteString(": ")
	b.WriteString(i.Message)
	if i.Suggestion != "" {
		fmt.Fprintf(&b, " (%s)", i.Suggestion)
	}
	return b.String()
}

// Result is the outcome of a validation. It is a value, never an error.
type Result struct {
	Valid     bool                    `json:"valid"`
	Errors    []Issue                 `json:"errors"`
	Warnings  []Issue                 `json:"warnings"`
	Sanitized *domain.ToolComposition `json:"sanitized,omitempty"`
	// Order is a dependency order of the instances, set on valid results.
	Order []string `json:"order,omitempty"`
}

// HasCode reports whether any error or warning carries code.
func (r Result) HasCode(code string) bool {
	for _, list := range [][]Issue{r.Errors, r.Warnings} {
		for _, i := range list {
			if i.Code == code {
				return true
			}
		}
	}
	return false
}

// Count returns how many errors carry code.
func (r Result) Count(code string) int {
	n := 0
	for _, i := range r.Errors {
		if i.Code == code {
			n++
		}
	}
	return n
}

type collector struct {
	errors   []Issue
	warnings []Issue
}

func (c *collector) fail(i Issue) { c.errors = append(c.errors, i) }
func (c *collector) warn(i Issue) { c.warnings = append(c.warnings, i) }

func (c *collector) result(sanitized *domain.ToolComposition) Result {
	r := Result{
		Valid:    len(c.errors) == 0,
		Errors:   c.errors,
		Warnings: c.warnings,
	}
	if r.Errors == nil {
		r.Errors = []Issue{}
	}
	if r.Warnings == nil {
		r.Warnings = []Issue{}
	}
	if r.Valid {
		r.Sanitized = sanitized
	}
	return r
}
