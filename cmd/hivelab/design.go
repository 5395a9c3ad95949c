package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/campushive/hivelab"
	"github.com/campushive/hivelab/internal/presentation/report"
	"github.com/campushive/hivelab/internal/validator"
)

var (
	errInvalid       = errors.New("composition is invalid")
	errNoComposition = errors.New("no composition found in input")
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a composition against the element catalog",
	Long: `Reads a composition (JSON or YAML, stdin when no file is given) and
reports errors and warnings. Exits non-zero when the composition is invalid.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		d, err := newDesigner()
		if err != nil {
			return err
		}
		data, name, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return runValidate(cmd.OutOrStdout(), d, data, name, asJSON)
	},
}

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize [file]",
	Short: "Repair a composition and print the result",
	Long: `Repairs a composition: duplicate ids are renamed, positions and sizes
clamped, dangling connections dropped and missing defaults filled in.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")
		d, err := newDesigner()
		if err != nil {
			return err
		}
		data, name, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return runSanitize(cmd.OutOrStdout(), cmd.ErrOrStderr(), d, data, name, asYAML)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Extract a composition from generator output",
	Long: `Finds the composition in free-form text: plain JSON, a fenced code block
or the first object that decodes as a composition. Malformed JSON is repaired
when possible.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asYAML, _ := cmd.Flags().GetBool("yaml")
		d, err := newDesigner()
		if err != nil {
			return err
		}
		data, _, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		return runParse(cmd.OutOrStdout(), cmd.ErrOrStderr(), d, string(data), asYAML)
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph [file]",
	Short: "Print a composition as a Mermaid flowchart",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDesigner()
		if err != nil {
			return err
		}
		data, name, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		c, err := candidate(data, name)
		if err != nil {
			return err
		}
		comp, err := decodeComposition(c)
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), d.Mermaid(&comp))
		return err
	},
}

func init() {
	validateCmd.Flags().Bool("json", false, "Print the result as JSON")
	sanitizeCmd.Flags().Bool("yaml", false, "Print YAML instead of JSON")
	parseCmd.Flags().Bool("yaml", false, "Print YAML instead of JSON")
	rootCmd.AddCommand(validateCmd, sanitizeCmd, parseCmd, graphCmd)
}

func runValidate(w io.Writer, d *hivelab.Designer, data []byte, name string, asJSON bool) error {
	c, err := candidate(data, name)
	if err != nil {
		return err
	}
	res := d.Validate(c)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if err := renderResult(w, name, res); err != nil {
		return err
	}
	if !res.Valid {
		return errInvalid
	}
	return nil
}

func runSanitize(out, errOut io.Writer, d *hivelab.Designer, data []byte, name string, asYAML bool) error {
	c, err := candidate(data, name)
	if err != nil {
		return err
	}
	comp, res := d.Sanitize(c)
	if !res.Valid {
		if err := renderResult(errOut, name, res); err != nil {
			return err
		}
		return fmt.Errorf("%w after repair", errInvalid)
	}
	return writeComposition(out, &comp, asYAML)
}

func runParse(out, errOut io.Writer, d *hivelab.Designer, text string, asYAML bool) error {
	comp, res, ok := d.Parse(text)
	if !ok {
		return errNoComposition
	}
	if !res.Valid || len(res.Warnings) > 0 {
		if err := renderResult(errOut, comp.Name, res); err != nil {
			return err
		}
	}
	return writeComposition(out, comp, asYAML)
}

func renderResult(w io.Writer, name string, res validator.Result) error {
	return report.NewRenderer(w).Render(report.Markdown(name, res))
}
