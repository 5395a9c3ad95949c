package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/campushive/hivelab/pkg/domain"
)

func transient() error {
	return &domain.TransportError{Op: "test", Err: errors.New("connection reset")}
}

func newLoaded(t *testing.T, gw *fakeGateway, opts ...Option) *Manager {
	t.Helper()
	base := []Option{WithAutoSaveDelay(20 * time.Millisecond), WithRetry(3, time.Millisecond), WithUserID("u1")}
	m := New(gw, append(base, opts...)...)
	t.Cleanup(m.Close)
	require.NoError(t, m.Load(context.Background(), "tool-1", testDeployment))
	return m
}

func TestManager_Load(t *testing.T) {
	gw := newFakeGateway(pollTool())
	m := newLoaded(t, gw)

	v := m.Snapshot()
	assert.Equal(t, StatusReady, v.Status)
	assert.True(t, v.Synced)
	assert.False(t, v.Dirty)
	assert.Equal(t, domain.UserState{}, v.UserState)
	assert.NotNil(t, v.SharedState.Counters)
	require.NotNil(t, v.Tool)

	last := v.Tool.Composition.Elements[3]
	assert.Equal(t, "counter_3", last.InstanceID)
	assert.NotNil(t, last.Config)
	assert.NotNil(t, v.Tool.Composition.Elements[2].Config)
}

func TestManager_LoadNotFoundIsNotRetried(t *testing.T) {
	gw := newFakeGateway(pollTool())
	m := New(gw, WithRetry(3, time.Millisecond))
	defer m.Close()

	err := m.Load(context.Background(), "missing", testDeployment)
	require.ErrorIs(t, err, domain.ErrToolNotFound)
	assert.Equal(t, 1, gw.loads())

	v := m.Snapshot()
	assert.Equal(t, StatusIdle, v.Status)
	assert.ErrorIs(t, v.Err, domain.ErrToolNotFound)
}

func TestManager_LoadRetriesTransientErrors(t *testing.T) {
	t.Run("recovers", func(t *testing.T) {
		gw := newFakeGateway(pollTool())
		gw.loadErrs = []error{transient(), transient()}
		m := New(gw, WithRetry(3, time.Millisecond))
		defer m.Close()

		require.NoError(t, m.Load(context.Background(), "tool-1", testDeployment))
		assert.Equal(t, 3, gw.loads())
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		gw := newFakeGateway(pollTool())
		gw.loadErrs = []error{transient(), transient(), transient(), transient()}
		m := New(gw, WithRetry(3, time.Millisecond))
		defer m.Close()

		err := m.Load(context.Background(), "tool-1", testDeployment)
		var te *domain.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, 3, gw.loads())
		assert.Equal(t, StatusIdle, m.Snapshot().Status)
	})
}

func TestManager_LoadKeepsStoredState(t *testing.T) {
	gw := newFakeGateway(pollTool())
	gw.user = domain.UserState{"voted": "Pizza"}
	shared := domain.NewSharedState()
	shared.Counters["a:Pizza"] = 4
	shared.Version = 7
	gw.shared = &shared

	m := newLoaded(t, gw)
	v := m.Snapshot()
	assert.Equal(t, "Pizza", v.UserState["voted"])
	assert.Equal(t, float64(4), v.SharedState.Counters["a:Pizza"])
	assert.EqualValues(t, 7, v.SharedState.Version)
}

func TestManager_NotLoaded(t *testing.T) {
	m := New(newFakeGateway(pollTool()))
	defer m.Close()

	assert.ErrorIs(t, m.UpdateState(map[string]any{"x": 1}), domain.ErrNotLoaded)
	assert.ErrorIs(t, m.SetState(domain.UserState{}), domain.ErrNotLoaded)
	_, err := m.ExecuteAction(context.Background(), "a", "vote", nil)
	assert.ErrorIs(t, err, domain.ErrNotLoaded)
	assert.ErrorIs(t, m.Reload(context.Background()), domain.ErrNotLoaded)
}

func TestManager_RapidUpdatesSaveOnce(t *testing.T) {
	gw := newFakeGateway(pollTool())
	m := newLoaded(t, gw)

	require.NoError(t, m.UpdateState(map[string]any{"draft": "a"}))
	require.NoError(t, m.UpdateState(map[string]any{"draft": "ab"}))
	assert.True(t, m.Snapshot().Dirty)

	select {
	case req := <-gw.saved:
		assert.Equal(t, "ab", req.State["draft"])
		assert.Equal(t, testDeployment, req.DeploymentID)
		assert.Equal(t, "cs-club", req.SpaceID)
		assert.Equal(t, "u1", req.UserID)
	case <-time.After(time.Second):
		t.Fatal("state was never saved")
	}

	time.Sleep(60 * time.Millisecond)
	assert.Len(t, gw.savedStates(), 1)
	require.Eventually(t, func() bool { return m.Snapshot().Synced }, time.Second, 5*time.Millisecond)
	assert.False(t, m.Snapshot().Dirty)
}

func TestManager_SetStateReplaces(t *testing.T) {
	gw := newFakeGateway(pollTool())
	gw.user = domain.UserState{"old": true}
	m := newLoaded(t, gw)

	require.NoError(t, m.SetState(domain.UserState{"new": 1}))
	assert.Equal(t, domain.UserState{"new": 1}, m.Snapshot().UserState)

	req := <-gw.saved
	assert.Equal(t, domain.UserState{"new": 1}, req.State)
}

func TestManager_SaveFailureKeepsState(t *testing.T) {
	gw := newFakeGateway(pollTool())
	gw.saveErrs = []error{transient(), transient(), transient()}
	var events []*domain.SaveEvent
	var mu sync.Mutex
	m := newLoaded(t, gw, WithHooks(domain.RuntimeHooks{
		OnSave: func(_ context.Context, e *domain.SaveEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		},
	}))

	require.NoError(t, m.UpdateState(map[string]any{"x": 1}))
	require.Eventually(t, func() bool { return m.Snapshot().SaveErr != nil }, time.Second, 5*time.Millisecond)

	v := m.Snapshot()
	assert.False(t, v.Synced)
	assert.True(t, v.Dirty)
	assert.Equal(t, 1, v.UserState["x"])
	assert.Empty(t, gw.savedStates())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Attempt)
	assert.Error(t, events[0].Err)
}

func TestManager_MutationDuringSaveTriggersRerun(t *testing.T) {
	gw := newFakeGateway(pollTool())
	gw.saveGate = make(chan struct{})
	m := newLoaded(t, gw)

	require.NoError(t, m.UpdateState(map[string]any{"x": 1}))
	require.Eventually(t, func() bool { return m.Snapshot().Saving }, time.Second, 2*time.Millisecond)

	require.NoError(t, m.UpdateState(map[string]any{"x": 2}))
	gw.saveGate <- struct{}{}

	first := <-gw.saved
	assert.Equal(t, 1, first.State["x"])
	assert.False(t, m.Snapshot().Synced, "a newer mutation is still unsaved")

	gw.saveGate <- struct{}{}
	second := <-gw.saved
	assert.Equal(t, 2, second.State["x"])

	require.Eventually(t, func() bool { return m.Snapshot().Synced }, time.Second, 5*time.Millisecond)
	assert.Len(t, gw.savedStates(), 2)
}

func TestManager_ResetCancelsPendingSave(t *testing.T) {
	gw := newFakeGateway(pollTool())
	gw.user = domain.UserState{"x": 0}
	m := newLoaded(t, gw, WithAutoSaveDelay(40*time.Millisecond))

	require.NoError(t, m.UpdateState(map[string]any{"x": 5}))
	m.Reset()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, gw.savedStates())

	v := m.Snapshot()
	assert.Equal(t, domain.UserState{"x": 0}, v.UserState)
	assert.True(t, v.Synced)
	assert.False(t, v.Dirty)
	assert.NoError(t, v.Err)
}

func TestManager_ExecuteAction(t *testing.T) {
	gw := newFakeGateway(pollTool())
	var seen domain.ExecuteRequest
	gw.execute = func(_ context.Context, req domain.ExecuteRequest) (*domain.ExecuteResponse, error) {
		seen = req
		return &domain.ExecuteResponse{
			Result:           map[string]any{"ok": true},
			State:            domain.UserState{"voted": "Pizza"},
			CascadedElements: []string{"b", "c"},
			Version:          3,
		}, nil
	}

	var calls [][]string
	var actions []*domain.ActionEvent
	var cascades []*domain.CascadeEvent
	m := newLoaded(t, gw,
		WithCascadeCallback(func(ids []string) { calls = append(calls, ids) }),
		WithHooks(domain.RuntimeHooks{
			OnAction:  func(_ context.Context, e *domain.ActionEvent) { actions = append(actions, e) },
			OnCascade: func(_ context.Context, e *domain.CascadeEvent) { cascades = append(cascades, e) },
		}),
	)

	out, err := m.ExecuteAction(context.Background(), "a", "vote", map[string]any{"choice": "Pizza"})
	require.NoError(t, err)
	assert.False(t, out.Superseded)
	assert.Equal(t, map[string]any{"ok": true}, out.Result)
	assert.Equal(t, []string{"b", "c"}, out.CascadedElements)

	assert.Equal(t, [][]string{{"b", "c"}}, calls)
	require.Len(t, actions, 1)
	assert.Equal(t, "vote", actions[0].Action)
	assert.NoError(t, actions[0].Err)
	require.Len(t, cascades, 1)
	assert.Equal(t, "a", cascades[0].Origin)

	assert.Equal(t, "tool-1", seen.ToolID)
	assert.Equal(t, "cs-club", seen.SpaceID)
	assert.Equal(t, "Pizza", seen.Data["choice"])

	v := m.Snapshot()
	assert.Equal(t, "Pizza", v.UserState["voted"])
	assert.EqualValues(t, 3, v.SharedState.Version)
	assert.False(t, v.Executing)

	req := <-gw.saved
	assert.Equal(t, "Pizza", req.State["voted"])
}

func TestManager_ExecuteActionFailureLeavesState(t *testing.T) {
	gw := newFakeGateway(pollTool())
	gw.user = domain.UserState{"voted": "Tacos"}
	var attempts atomic.Int32
	gw.execute = func(context.Context, domain.ExecuteRequest) (*domain.ExecuteResponse, error) {
		attempts.Add(1)
		return nil, &domain.ExecutionError{StatusCode: 400, Message: "poll closed"}
	}
	m := newLoaded(t, gw)

	_, err := m.ExecuteAction(context.Background(), "a", "vote", nil)
	var ee *domain.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "poll closed", ee.Message)
	assert.EqualValues(t, 1, attempts.Load())

	v := m.Snapshot()
	assert.Equal(t, domain.UserState{"voted": "Tacos"}, v.UserState)
	assert.True(t, v.Synced)
	assert.Error(t, v.Err)
}

func TestManager_ExecuteUnknownElement(t *testing.T) {
	m := newLoaded(t, newFakeGateway(pollTool()))
	_, err := m.ExecuteAction(context.Background(), "ghost", "vote", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownElement)
}

func TestManager_NewerCallSupersedes(t *testing.T) {
	gw := newFakeGateway(pollTool())
	started := make(chan struct{})
	var n atomic.Int32
	gw.execute = func(ctx context.Context, req domain.ExecuteRequest) (*domain.ExecuteResponse, error) {
		if n.Add(1) == 1 {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &domain.ExecuteResponse{Result: req.Data["n"], State: domain.UserState{"n": req.Data["n"]}}, nil
	}
	m := newLoaded(t, gw)

	firstDone := make(chan *ExecuteOutcome, 1)
	go func() {
		out, err := m.ExecuteAction(context.Background(), "a", "vote", map[string]any{"n": 1})
		assert.NoError(t, err)
		firstDone <- out
	}()
	<-started

	out, err := m.ExecuteAction(context.Background(), "a", "vote", map[string]any{"n": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Result)

	first := <-firstDone
	assert.True(t, first.Superseded)
	assert.Nil(t, first.Result)
	assert.Equal(t, 2, m.Snapshot().UserState["n"])
	assert.NoError(t, m.Snapshot().Err)
}

func TestManager_ApplyRealtime(t *testing.T) {
	gw := newFakeGateway(pollTool())
	var pushes int
	m := newLoaded(t, gw, WithHooks(domain.RuntimeHooks{
		OnPush: func(context.Context, *domain.SharedStateDelta) { pushes++ },
	}))

	m.ApplyRealtime(&domain.SharedStateDelta{
		DeploymentID: testDeployment,
		Version:      4,
		Counters:     map[string]float64{"a:Pizza": 2},
	})
	m.ApplyRealtime(&domain.SharedStateDelta{
		DeploymentID: "space:other_x",
		Version:      9,
		Counters:     map[string]float64{"a:Pizza": 99},
	})
	m.ApplyRealtime(nil)

	v := m.Snapshot()
	got, ok := v.SharedState.Counter("a:Pizza")
	require.True(t, ok)
	assert.Equal(t, float64(2), got)
	assert.EqualValues(t, 4, v.SharedState.Version)
	assert.Equal(t, 1, pushes)

	m.SetRealtimeConnected(true)
	assert.True(t, m.Snapshot().RealtimeConnected)
}

func TestManager_Subscribe(t *testing.T) {
	m := newLoaded(t, newFakeGateway(pollTool()), WithAutoSaveDelay(time.Hour))

	var mu sync.Mutex
	var views []View
	unsubscribe := m.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		views = append(views, v)
	})

	require.NoError(t, m.UpdateState(map[string]any{"x": 1}))
	unsubscribe()
	require.NoError(t, m.UpdateState(map[string]any{"x": 2}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, views, 1)
	assert.Equal(t, 1, views[0].UserState["x"])
	assert.True(t, views[0].Dirty)
}

func TestManager_CloseFlushesDirtyState(t *testing.T) {
	defer goleak.VerifyNone(t)

	gw := newFakeGateway(pollTool())
	m := New(gw, WithAutoSaveDelay(time.Hour))
	require.NoError(t, m.Load(context.Background(), "tool-1", testDeployment))
	require.NoError(t, m.UpdateState(map[string]any{"x": "final"}))

	m.Close()
	m.Close()

	select {
	case req := <-gw.saved:
		assert.Equal(t, "final", req.State["x"])
	case <-time.After(time.Second):
		t.Fatal("dirty state was not flushed on close")
	}

	assert.ErrorIs(t, m.UpdateState(map[string]any{"x": 1}), ErrClosed)
	assert.ErrorIs(t, m.Load(context.Background(), "tool-1", testDeployment), ErrClosed)
}

func TestManager_CloseCleanStateDoesNotSave(t *testing.T) {
	gw := newFakeGateway(pollTool())
	m := New(gw)
	require.NoError(t, m.Load(context.Background(), "tool-1", testDeployment))
	m.Close()
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, gw.savedStates())
}

func TestBoundCascade(t *testing.T) {
	assert.Nil(t, boundCascade(nil, 5))
	assert.Equal(t, []string{"b", "c"}, boundCascade([]string{"b", "c", "b"}, 5))

	long := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		long = append(long, string(rune('A'+i)))
	}
	assert.Len(t, boundCascade(long, 1), domain.MaxElements)
}
