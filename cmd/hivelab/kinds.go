package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/registry"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the element kinds with their ports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		d, err := newDesigner()
		if err != nil {
			return err
		}
		return writeKinds(cmd.OutOrStdout(), d.Elements(), asJSON)
	},
}

func init() {
	kindsCmd.Flags().Bool("json", false, "Print JSON instead of YAML")
	rootCmd.AddCommand(kindsCmd)
}

func writeKinds(w io.Writer, reg *registry.ElementRegistry, asJSON bool) error {
	kinds := make([]domain.ElementKind, 0, len(reg.Kinds()))
	for _, name := range reg.Kinds() {
		k, _ := reg.Lookup(name)
		kinds = append(kinds, k)
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(kinds)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any{"kinds": kinds}); err != nil {
		return err
	}
	return enc.Close()
}
