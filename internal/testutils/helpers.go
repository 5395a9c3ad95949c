package testutils

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"

	hiveloam "github.com/campushive/hivelab/pkg/adapters/loam"
)

// SetupTestRepo creates a temporary directory and initializes a Loam repository in it.
// Versioning is off and numbers decode strictly unless opts override it.
func SetupTestRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	absPath, err := filepath.Abs(t.TempDir())
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	base := []loam.Option{loam.WithVersioning(false), loam.WithStrict(true), loam.WithForceTemp(false)}
	repo, err := loam.Init(absPath, append(base, opts...)...)
	require.NoError(t, err, "Failed to init loam repo")

	return absPath, repo
}

// TypedTools wraps repo for tool definition documents.
func TypedTools(repo core.Repository) *loam.TypedRepository[hiveloam.ToolDocument] {
	return loam.NewTypedRepository[hiveloam.ToolDocument](repo)
}
