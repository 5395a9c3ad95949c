package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// RealtimeContract verifies publish/subscribe routing of a Realtime backend.
// settle is how long to wait after subscribing for backends that attach
// subscriptions asynchronously.
func RealtimeContract(t *testing.T, rt ports.Realtime, settle time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	depA := domain.DeploymentID("space:contract_a")
	depB := domain.DeploymentID("space:contract_b")

	subCtx, stop := context.WithCancel(ctx)
	ch, err := rt.Subscribe(subCtx, depA)
	require.NoError(t, err)
	time.Sleep(settle)

	require.NoError(t, rt.Publish(ctx, &domain.SharedStateDelta{DeploymentID: depB, Version: 1, Counters: map[string]float64{"x": 1}}))
	require.NoError(t, rt.Publish(ctx, &domain.SharedStateDelta{DeploymentID: depA, Version: 2, Counters: map[string]float64{"p1:A": 4}}))

	select {
	case got, ok := <-ch:
		require.True(t, ok)
		assert.Equal(t, depA, got.DeploymentID)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, 4.0, got.Counters["p1:A"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for delta")
	}

	stop()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription channel not closed after cancel")
		}
	}
}
