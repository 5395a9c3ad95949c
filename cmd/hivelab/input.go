package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/campushive/hivelab"
	"github.com/campushive/hivelab/pkg/domain"
)

// readInput returns the content of args[0], or stdin when no path or "-"
// is given, along with a display name.
func readInput(cmd *cobra.Command, args []string) ([]byte, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("read stdin: %w", err)
		}
		return data, "stdin", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, "", err
	}
	return data, args[0], nil
}

// candidate turns file content into something the validator accepts. YAML
// files are decoded; everything else is handed over as raw JSON.
func candidate(data []byte, name string) (any, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return v, nil
	}
	return data, nil
}

// decodeComposition binds a candidate to the domain type without repairing it.
func decodeComposition(c any) (domain.ToolComposition, error) {
	var comp domain.ToolComposition
	data, ok := c.([]byte)
	if !ok {
		var err error
		if data, err = json.Marshal(c); err != nil {
			return comp, err
		}
	}
	if err := json.Unmarshal(data, &comp); err != nil {
		return comp, fmt.Errorf("decode composition: %w", err)
	}
	return comp, nil
}

// writeComposition prints comp as indented JSON, or YAML when asYAML is set.
func writeComposition(w io.Writer, comp *domain.ToolComposition, asYAML bool) error {
	if asYAML {
		// Round trip through JSON so YAML keys match the wire names.
		var generic any
		data, err := json.Marshal(comp)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(comp)
}

// newDesigner builds the design pipeline from the loaded config.
func newDesigner() (*hivelab.Designer, error) {
	opts := []hivelab.Option{
		hivelab.WithLogger(logger),
		hivelab.WithMaxElements(cfg.Engine.MaxElements),
	}
	if cfg.Catalog.Kinds != "" {
		f, err := os.Open(cfg.Catalog.Kinds)
		if err != nil {
			return nil, fmt.Errorf("open kinds file: %w", err)
		}
		defer f.Close()
		opts = append(opts, hivelab.WithKindsFile(f))
	}
	return hivelab.New(opts...)
}
