package loam

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/campushive/hivelab/pkg/domain"
)

// ToolDocument is the frontmatter of a tool definition file. The document
// body holds the description.
type ToolDocument struct {
	ID          string         `json:"id" mapstructure:"id"`
	Name        string         `json:"name" mapstructure:"name"`
	OwnerID     string         `json:"owner_id,omitempty" mapstructure:"owner_id"`
	Status      string         `json:"status,omitempty" mapstructure:"status"`
	Version     any            `json:"version,omitempty" mapstructure:"version"`
	Composition map[string]any `json:"composition" mapstructure:"composition"`
}

func toDocument(def *domain.ToolDefinition) (ToolDocument, error) {
	raw, err := json.Marshal(def.Composition)
	if err != nil {
		return ToolDocument{}, fmt.Errorf("failed to encode composition: %w", err)
	}
	var comp map[string]any
	if err := json.Unmarshal(raw, &comp); err != nil {
		return ToolDocument{}, fmt.Errorf("failed to encode composition: %w", err)
	}
	return ToolDocument{
		ID:          def.ID,
		Name:        def.Name,
		OwnerID:     def.OwnerID,
		Status:      def.Status,
		Version:     def.Version,
		Composition: comp,
	}, nil
}

func fromDocument(id string, doc ToolDocument, body string) (*domain.ToolDefinition, error) {
	raw, err := json.Marshal(jsonSafe(doc.Composition))
	if err != nil {
		return nil, fmt.Errorf("failed to read composition of %s: %w", id, err)
	}
	var comp domain.ToolComposition
	if err := json.Unmarshal(raw, &comp); err != nil {
		return nil, fmt.Errorf("failed to read composition of %s: %w", id, err)
	}
	if doc.ID != "" {
		id = doc.ID
	}
	name := doc.Name
	if name == "" {
		name = comp.Name
	}
	return &domain.ToolDefinition{
		ID:          id,
		Name:        name,
		Description: body,
		OwnerID:     doc.OwnerID,
		Status:      doc.Status,
		Version:     toInt(doc.Version),
		Composition: comp,
	}, nil
}

// jsonSafe rewrites YAML-decoded values so encoding/json accepts them.
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, sub := range t {
			out[k] = jsonSafe(sub)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, sub := range t {
			out[fmt.Sprintf("%v", k)] = jsonSafe(sub)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, sub := range t {
			out[i] = jsonSafe(sub)
		}
		return out
	default:
		return v
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case json.Number:
		n, _ := t.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}
