// Package report turns validation results into markdown and renders it for
// terminals.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/campushive/hivelab/internal/validator"
	"github.com/campushive/hivelab/pkg/domain"
)

// Markdown describes res for the composition named name.
func Markdown(name string, res validator.Result) string {
	var b strings.Builder
	if name == "" {
		name = "composition"
	}
	status := "✅ valid"
	if !res.Valid {
		status = "❌ invalid"
	}
	fmt.Fprintf(&b, "# %s\n\n**%s** · %d error(s) · %d warning(s)\n\n", name, status, len(res.Errors), len(res.Warnings))

	section(&b, "Errors", res.Errors)
	section(&b, "Warnings", res.Warnings)

	if len(res.Order) > 0 {
		b.WriteString("## Dependency order\n\n")
		fmt.Fprintf(&b, "`%s`\n\n", strings.Join(res.Order, "` → `"))
	}
	return b.String()
}

func section(b *strings.Builder, title string, issues []validator.Issue) {
	if len(issues) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n| Code | Element | Message | Suggestion |\n|---|---|---|---|\n", title)
	for _, i := range issues {
		fmt.Fprintf(b, "| `%s` | %s | %s | %s |\n", i.Code, cell(i.ElementID), cell(i.Message), cell(i.Suggestion))
	}
	b.WriteString("\n")
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// Summary is a one-paragraph overview of a composition's elements.
func Summary(comp *domain.ToolComposition) string {
	if comp == nil {
		return ""
	}
	kinds := make([]string, 0, len(comp.Elements))
	for _, el := range comp.Elements {
		kinds = append(kinds, fmt.Sprintf("`%s` (%s)", el.InstanceID, el.Kind))
	}
	return fmt.Sprintf("%d element(s), %d connection(s): %s\n", len(comp.Elements), len(comp.Connections), strings.Join(kinds, ", "))
}

// Renderer writes markdown, styled when the destination is a terminal and
// verbatim otherwise.
type Renderer struct {
	w      io.Writer
	styled bool
	width  int
}

// NewRenderer inspects w. Styling is on only for terminal files.
func NewRenderer(w io.Writer) *Renderer {
	r := &Renderer{w: w, width: 100}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.styled = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 20 {
			r.width = width
		}
	}
	return r
}

// Render writes md.
func (r *Renderer) Render(md string) error {
	if !r.styled {
		_, err := io.WriteString(r.w, md)
		return err
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(r.width),
	)
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	out, err := tr.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(r.w, out)
	return err
}

// Styled reports whether output goes through glamour.
func (r *Renderer) Styled() bool { return r.styled }
