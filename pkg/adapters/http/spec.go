package http

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var rawSpec []byte

var loadSpec = sync.OnceValues(func() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
})

// Spec returns the parsed API contract.
func Spec() (*openapi3.T, error) { return loadSpec() }

// RawSpec returns the API contract as served on /openapi.yaml.
func RawSpec() []byte { return rawSpec }

// checkBody validates a decoded JSON body against a component schema.
func checkBody(name string, body any) error {
	doc, err := Spec()
	if err != nil {
		return err
	}
	ref, ok := doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return fmt.Errorf("schema %s not found", name)
	}
	return ref.Value.VisitJSON(body)
}
