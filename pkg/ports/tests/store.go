// Package tests holds reusable contract suites for ports adapters.
package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// StateStoreContract verifies that a StateStore adheres to the port contract.
func StateStoreContract(t *testing.T, store ports.StateStore) {
	t.Helper()
	ctx := context.Background()
	dep := domain.DeploymentID(fmt.Sprintf("space:contract_%d", time.Now().UnixNano()))

	t.Run("Missing state", func(t *testing.T) {
		_, err := store.LoadUser(ctx, dep, "nobody")
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
		_, err = store.LoadShared(ctx, dep)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})

	t.Run("User state is per user", func(t *testing.T) {
		require.NoError(t, store.SaveUser(ctx, dep, "u1", domain.UserState{"vote": "A", "n": 2}))
		require.NoError(t, store.SaveUser(ctx, dep, "u2", domain.UserState{"vote": "B"}))

		s1, err := store.LoadUser(ctx, dep, "u1")
		require.NoError(t, err)
		assert.Equal(t, "A", s1["vote"])
		assert.EqualValues(t, 2, s1["n"])

		s2, err := store.LoadUser(ctx, dep, "u2")
		require.NoError(t, err)
		assert.Equal(t, "B", s2["vote"])
	})

	t.Run("Loaded state is a copy", func(t *testing.T) {
		s, err := store.LoadUser(ctx, dep, "u1")
		require.NoError(t, err)
		s["vote"] = "mutated"
		again, err := store.LoadUser(ctx, dep, "u1")
		require.NoError(t, err)
		assert.Equal(t, "A", again["vote"])
	})

	t.Run("Shared state round trip", func(t *testing.T) {
		shared := domain.NewSharedState()
		shared.Counters["p1:A"] = 3
		shared.Collections["r1:attendees"] = []domain.EntitySummary{{ID: "u1", Name: "Ada"}}
		shared.AppendTimeline(domain.TimelineEvent{ID: "e1", Type: "vote", Timestamp: time.Unix(100, 0).UTC()}, 0)
		shared.Computed["p1:winner"] = "A"
		shared.Version = 7
		require.NoError(t, store.SaveShared(ctx, dep, &shared))

		loaded, err := store.LoadShared(ctx, dep)
		require.NoError(t, err)
		assert.Equal(t, int64(7), loaded.Version)
		assert.Equal(t, 3.0, loaded.Counters["p1:A"])
		assert.Equal(t, "Ada", loaded.Collections["r1:attendees"][0].Name)
		require.Len(t, loaded.Timeline, 1)
		assert.Equal(t, "e1", loaded.Timeline[0].ID)
		assert.Equal(t, "A", loaded.Computed["p1:winner"])
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, dep)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, dep))
		_, err := store.LoadShared(ctx, dep)
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
		_, err = store.LoadUser(ctx, dep, "u1")
		assert.ErrorIs(t, err, domain.ErrStateNotFound)
	})
}
