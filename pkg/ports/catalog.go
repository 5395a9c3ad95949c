package ports

import (
	"context"

	"github.com/campushive/hivelab/pkg/domain"
)

// ToolCatalog retrieves persisted tool definitions.
type ToolCatalog interface {
	// Get returns the definition for toolID or domain.ErrToolNotFound.
	Get(ctx context.Context, toolID string) (*domain.ToolDefinition, error)

	// List returns the ids of every stored tool.
	List(ctx context.Context) ([]string, error)

	// Save creates or replaces a definition.
	Save(ctx context.Context, def *domain.ToolDefinition) error
}
