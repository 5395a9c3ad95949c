package registry

import (
	"fmt"
	"io"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/schema"
	"gopkg.in/yaml.v3"
)

// kindFile is the YAML layout of an extra-kinds file.
type kindFile struct {
	Kinds []struct {
		Kind                 string            `yaml:"kind"`
		Category             string            `yaml:"category"`
		Outputs              []string          `yaml:"outputs"`
		Inputs               []string          `yaml:"inputs"`
		RequiredConfigFields []string          `yaml:"required_config_fields"`
		ConfigSchema         map[string]string `yaml:"config_schema"`
	} `yaml:"kinds"`
}

// LoadKinds reads element kinds from a YAML document.
//
//	kinds:
//	  - kind: sticker-wall
//	    outputs: [selected]
//	    inputs: [data]
//	    required_config_fields: [title]
//	    config_schema: {title: "string!"}
func LoadKinds(r io.Reader) ([]domain.ElementKind, error) {
	var file kindFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to decode kinds file: %w", err)
	}

	kinds := make([]domain.ElementKind, 0, len(file.Kinds))
	for i, k := range file.Kinds {
		if k.Kind == "" {
			return nil, fmt.Errorf("kind #%d: missing name", i)
		}
		s, err := schema.ParseSchema(k.ConfigSchema)
		if err != nil {
			return nil, fmt.Errorf("kind %s: %w", k.Kind, err)
		}
		kinds = append(kinds, domain.ElementKind{
			Kind:                 k.Kind,
			Category:             k.Category,
			Outputs:              k.Outputs,
			Inputs:               k.Inputs,
			RequiredConfigFields: k.RequiredConfigFields,
			ConfigSchema:         s,
		})
	}
	return kinds, nil
}
