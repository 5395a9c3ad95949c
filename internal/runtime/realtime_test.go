package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/campushive/hivelab/internal/realtime"
	"github.com/campushive/hivelab/pkg/domain"
)

// chanFeed is an in-test ports.RealtimeFeed.
type chanFeed struct {
	mu     sync.Mutex
	subs   map[domain.DeploymentID][]chan *domain.SharedStateDelta
	opened int
}

func newChanFeed() *chanFeed {
	return &chanFeed{subs: make(map[domain.DeploymentID][]chan *domain.SharedStateDelta)}
}

func (f *chanFeed) Subscribe(ctx context.Context, id domain.DeploymentID) (<-chan *domain.SharedStateDelta, error) {
	ch := make(chan *domain.SharedStateDelta, 8)
	f.mu.Lock()
	f.subs[id] = append(f.subs[id], ch)
	f.opened++
	f.mu.Unlock()
	go func() {
		<-ctx.Done()
		f.mu.Lock()
		defer f.mu.Unlock()
		list := f.subs[id]
		for i, c := range list {
			if c == ch {
				f.subs[id] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (f *chanFeed) push(delta *domain.SharedStateDelta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[delta.DeploymentID] {
		select {
		case ch <- delta:
		default:
		}
	}
}

func (f *chanFeed) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[testDeployment])
}

func (f *chanFeed) subscriptions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func TestManager_RealtimeFeed(t *testing.T) {
	defer goleak.VerifyNone(t)

	feed := newChanFeed()
	m := New(newFakeGateway(pollTool()), WithUserID("u1"),
		WithRealtime(feed, realtime.WithReconnect(time.Millisecond, 10*time.Millisecond)))
	require.NoError(t, m.Load(context.Background(), "tool-1", testDeployment))

	require.Eventually(t, func() bool { return m.Snapshot().RealtimeConnected }, time.Second, 5*time.Millisecond)

	feed.push(&domain.SharedStateDelta{
		DeploymentID: testDeployment,
		Version:      3,
		Counters:     map[string]float64{"a:Pizza": 2},
	})
	require.Eventually(t, func() bool {
		v, _ := m.Snapshot().SharedState.Counter("a:Pizza")
		return v == 2
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 3, m.Snapshot().SharedState.Version)

	m.Close()
	assert.False(t, m.Snapshot().RealtimeConnected)
	assert.Eventually(t, func() bool { return feed.live() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_ReloadResubscribes(t *testing.T) {
	feed := newChanFeed()
	m := newLoaded(t, newFakeGateway(pollTool()), WithRealtime(feed))
	require.Eventually(t, func() bool { return m.Snapshot().RealtimeConnected }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Reload(context.Background()))
	require.Eventually(t, func() bool { return m.Snapshot().RealtimeConnected }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, feed.subscriptions())
	assert.Eventually(t, func() bool { return feed.live() == 1 }, time.Second, 5*time.Millisecond)
}

func TestManager_NoFeedWithoutDeployment(t *testing.T) {
	feed := newChanFeed()
	m := New(newFakeGateway(pollTool()), WithRealtime(feed))
	defer m.Close()

	require.NoError(t, m.Load(context.Background(), "tool-1", ""))
	assert.Zero(t, feed.subscriptions())
	assert.False(t, m.Snapshot().RealtimeConnected)
}

func TestManager_ReloadDropsInflightExecute(t *testing.T) {
	gw := newFakeGateway(pollTool())
	started := make(chan struct{})
	release := make(chan struct{})
	gw.execute = func(context.Context, domain.ExecuteRequest) (*domain.ExecuteResponse, error) {
		close(started)
		<-release
		return &domain.ExecuteResponse{Result: "late", State: domain.UserState{"stale": true}}, nil
	}
	m := newLoaded(t, gw, WithAutoSaveDelay(time.Hour))

	done := make(chan *ExecuteOutcome, 1)
	go func() {
		out, err := m.ExecuteAction(context.Background(), "a", "vote", map[string]any{"option": "Pizza"})
		assert.NoError(t, err)
		done <- out
	}()
	<-started

	require.NoError(t, m.Reload(context.Background()))
	close(release)

	out := <-done
	assert.True(t, out.Superseded)
	v := m.Snapshot()
	assert.NotContains(t, v.UserState, "stale")
	assert.False(t, v.Dirty)
}
