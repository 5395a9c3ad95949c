package tests

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// SampleTool returns a small valid definition used by the contract suites.
func SampleTool(id string) *domain.ToolDefinition {
	return &domain.ToolDefinition{
		ID:      id,
		Name:    "Sample " + id,
		Status:  domain.ToolStatusPublished,
		Version: 1,
		Composition: domain.ToolComposition{
			Name:   "Sample " + id,
			Layout: domain.LayoutGrid,
			Elements: []domain.CanvasElement{{
				InstanceID: "p1",
				Kind:       domain.KindPoll,
				Config:     map[string]any{"question": "Lunch?", "options": []any{"Pizza", "Tacos"}},
				Position:   domain.Position{X: 100, Y: 100},
				Size:       domain.Size{Width: 300, Height: 200},
			}},
			Connections: []domain.Connection{},
		},
	}
}

// ToolCatalogContract verifies that a ToolCatalog adheres to the port contract.
func ToolCatalogContract(t *testing.T, catalog ports.ToolCatalog) {
	t.Helper()
	ctx := context.Background()

	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := catalog.Get(ctx, "non-existent-tool")
		assert.ErrorIs(t, err, domain.ErrToolNotFound)
	})

	t.Run("Save_Get", func(t *testing.T) {
		require.NoError(t, catalog.Save(ctx, SampleTool("contract-a")))
		def, err := catalog.Get(ctx, "contract-a")
		require.NoError(t, err)
		assert.Equal(t, "contract-a", def.ID)
		assert.Equal(t, "Sample contract-a", def.Name)
		require.Len(t, def.Composition.Elements, 1)
		assert.Equal(t, "p1", def.Composition.Elements[0].InstanceID)
		assert.Equal(t, "Lunch?", def.Composition.Elements[0].Config["question"])
	})

	t.Run("Save_Replaces", func(t *testing.T) {
		def := SampleTool("contract-a")
		def.Version = 2
		require.NoError(t, catalog.Save(ctx, def))
		got, err := catalog.Get(ctx, "contract-a")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, catalog.Save(ctx, SampleTool("contract-b")))
		ids, err := catalog.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, "contract-a")
		assert.Contains(t, ids, "contract-b")
	})
}
