package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/adapters/memory"
	contract "github.com/campushive/hivelab/pkg/ports/tests"
)

func TestMemoryCatalog_Contract(t *testing.T) {
	c, err := memory.NewCatalog()
	require.NoError(t, err)
	contract.ToolCatalogContract(t, c)
}

func TestMemoryCatalog_Isolation(t *testing.T) {
	c, err := memory.NewCatalog(contract.SampleTool("iso"))
	require.NoError(t, err)

	def, err := c.Get(context.Background(), "iso")
	require.NoError(t, err)
	def.Composition.Elements[0].Config["question"] = "changed"

	again, err := c.Get(context.Background(), "iso")
	require.NoError(t, err)
	assert.Equal(t, "Lunch?", again.Composition.Elements[0].Config["question"])
}

func TestMemoryCatalog_RejectsMissingID(t *testing.T) {
	_, err := memory.NewCatalog(contract.SampleTool(""))
	assert.Error(t, err)
}
