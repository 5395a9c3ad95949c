package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/internal/execution"
	"github.com/campushive/hivelab/internal/runtime"
	hivehttp "github.com/campushive/hivelab/pkg/adapters/http"
	"github.com/campushive/hivelab/pkg/adapters/memory"
	"github.com/campushive/hivelab/pkg/domain"
)

const dep = domain.DeploymentID("space:robotics_p9")

func pollDefinition() *domain.ToolDefinition {
	return &domain.ToolDefinition{
		ID:   "poll-tool",
		Name: "Poll",
		Composition: domain.ToolComposition{
			Name:   "Poll",
			Layout: domain.LayoutGrid,
			Elements: []domain.CanvasElement{
				{InstanceID: "p1", Kind: domain.KindPoll, Config: map[string]any{"question": "Lunch?", "options": []any{"Pizza", "Tacos"}}},
				{InstanceID: "c1", Kind: domain.KindChartDisplay, Config: map[string]any{}},
			},
			Connections: []domain.Connection{{
				From: domain.PortRef{InstanceID: "p1", Port: "results"},
				To:   domain.PortRef{InstanceID: "c1", Port: "results"},
			}},
		},
	}
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	catalog, err := memory.NewCatalog(pollDefinition())
	require.NoError(t, err)
	feed := memory.NewFeed()
	t.Cleanup(func() { _ = feed.Close() })
	svc := execution.New(catalog, memory.NewStore(), execution.WithPublisher(feed))

	srv := httptest.NewServer(hivehttp.NewHandler(svc,
		hivehttp.WithFeed(feed),
		hivehttp.WithSnapshots(svc),
		hivehttp.WithVersion("test"),
	))
	t.Cleanup(srv.Close)
	return srv
}

func TestSpec(t *testing.T) {
	doc, err := hivehttp.Spec()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.NotNil(t, doc.Paths.Find("/tools/execute"))
}

func TestServer_InfoHealthSpec(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/info")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	resp.Body.Close()
	assert.Equal(t, "test", info["version"])
	assert.Equal(t, "1.0.0", info["api_version"])

	resp, err = http.Get(srv.URL + "/openapi.yaml")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "openapi: 3.0.3")

	resp, err = http.Get(srv.URL + "/tools/kinds")
	require.NoError(t, err)
	var kinds []domain.ElementKind
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&kinds))
	resp.Body.Close()
	assert.NotEmpty(t, kinds)
}

func TestClient_RoundTrip(t *testing.T) {
	srv := newServer(t)
	client := hivehttp.NewClient(srv.URL, hivehttp.WithUser("ana"))
	ctx := context.Background()

	loaded, err := client.LoadTool(ctx, "poll-tool", dep)
	require.NoError(t, err)
	assert.Equal(t, "Poll", loaded.Tool.Name)
	assert.Nil(t, loaded.SharedState)

	out, err := client.Execute(ctx, domain.ExecuteRequest{
		ToolID: "poll-tool", DeploymentID: dep, ElementID: "p1", Action: "vote",
		Data: map[string]any{"option": "Tacos"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, out.CascadedElements)
	assert.Equal(t, "Tacos", out.State["p1:vote"])
	assert.EqualValues(t, 1, out.Version)

	require.NoError(t, client.SaveState(ctx, domain.SaveStateRequest{
		DeploymentID: dep, ToolID: "poll-tool", State: domain.UserState{"p1:vote": "Tacos", "note": "hi"},
	}))

	loaded, err = client.LoadTool(ctx, "poll-tool", dep)
	require.NoError(t, err)
	require.NotNil(t, loaded.SharedState)
	assert.Equal(t, 1.0, loaded.SharedState.Counters["p1:Tacos"])
	assert.Equal(t, "hi", loaded.UserState["note"])

	other, err := client.LoadTool(domain.WithUser(ctx, "bo"), "poll-tool", dep)
	require.NoError(t, err)
	assert.Nil(t, other.UserState)
}

func TestClient_ErrorMapping(t *testing.T) {
	srv := newServer(t)
	client := hivehttp.NewClient(srv.URL)
	ctx := context.Background()

	_, err := client.LoadTool(ctx, "missing", "")
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
	assert.False(t, domain.IsTransient(err))

	_, err = client.Execute(ctx, domain.ExecuteRequest{
		ToolID: "poll-tool", DeploymentID: dep, ElementID: "ghost", Action: "vote",
	})
	var ee *domain.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, http.StatusNotFound, ee.StatusCode)

	_, err = client.Execute(ctx, domain.ExecuteRequest{ToolID: "poll-tool", DeploymentID: dep, ElementID: "p1"})
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, http.StatusBadRequest, ee.StatusCode)
	assert.Contains(t, ee.Message, "ExecuteRequest")
}

func TestClient_TransportErrors(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer broken.Close()

	_, err := hivehttp.NewClient(broken.URL).LoadTool(context.Background(), "t", "")
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.True(t, domain.IsTransient(err))

	broken.Close()
	err = hivehttp.NewClient(broken.URL).SaveState(context.Background(), domain.SaveStateRequest{DeploymentID: dep})
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestServer_DesignEndpoints(t *testing.T) {
	srv := newServer(t)

	comp := `{"name":"Quick poll","elements":[{"instanceId":"p1","kind":"poll-element","config":{"question":"Q","options":["A","B"]}}],"connections":[]}`
	resp, err := http.Post(srv.URL+"/tools/validate", "application/json", strings.NewReader(comp))
	require.NoError(t, err)
	var result struct {
		Valid  bool             `json:"valid"`
		Errors []map[string]any `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)

	resp, err = http.Post(srv.URL+"/tools/sanitize", "application/json",
		strings.NewReader(`{"elements":[{"instanceId":"x","kind":"counter"}]}`))
	require.NoError(t, err)
	var repaired struct {
		Composition domain.ToolComposition `json:"composition"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&repaired))
	resp.Body.Close()
	assert.Equal(t, "Untitled Tool", repaired.Composition.Name)

	text := "Here you go:\n```json\n" + comp + "\n```\nEnjoy!"
	resp, err = http.Post(srv.URL+"/tools/parse", "text/plain", strings.NewReader(text))
	require.NoError(t, err)
	var parsed struct {
		Composition *domain.ToolComposition `json:"composition"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	resp.Body.Close()
	require.NotNil(t, parsed.Composition)
	assert.Equal(t, "Quick poll", parsed.Composition.Name)

	resp, err = http.Post(srv.URL+"/tools/parse", "text/plain", strings.NewReader("no json here"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"composition":null}`, string(body))
}

func TestClient_Realtime(t *testing.T) {
	srv := newServer(t)
	client := hivehttp.NewClient(srv.URL, hivehttp.WithUser("ana"))

	ctx, cancel := context.WithCancel(context.Background())
	deltas, err := client.Subscribe(ctx, dep)
	require.NoError(t, err)

	_, err = client.Execute(context.Background(), domain.ExecuteRequest{
		ToolID: "poll-tool", DeploymentID: dep, ElementID: "p1", Action: "vote",
		Data: map[string]any{"option": "Pizza"},
	})
	require.NoError(t, err)

	select {
	case d := <-deltas:
		assert.Equal(t, dep, d.DeploymentID)
		assert.EqualValues(t, 1, d.Version)
		assert.Equal(t, 1.0, d.Counters["p1:Pizza"])
	case <-time.After(2 * time.Second):
		t.Fatal("no delta over websocket")
	}

	cancel()
	select {
	case _, ok := <-deltas:
		for ok {
			_, ok = <-deltas
		}
	case <-time.After(2 * time.Second):
		t.Fatal("realtime channel not closed after cancel")
	}
}

func TestClient_RealtimeSnapshotFirst(t *testing.T) {
	srv := newServer(t)
	client := hivehttp.NewClient(srv.URL)
	_, err := client.Execute(context.Background(), domain.ExecuteRequest{
		ToolID: "poll-tool", DeploymentID: dep, ElementID: "p1", Action: "vote",
		Data: map[string]any{"option": "Pizza"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deltas, err := client.Subscribe(ctx, dep)
	require.NoError(t, err)

	select {
	case d := <-deltas:
		assert.True(t, d.Snapshot)
		assert.Equal(t, 1.0, d.Counters["p1:Pizza"])
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot")
	}
}

func TestRuntimeOverHTTP(t *testing.T) {
	srv := newServer(t)
	client := hivehttp.NewClient(srv.URL)

	var cascaded [][]string
	m := runtime.New(client,
		runtime.WithUserID("ana"),
		runtime.WithAutoSaveDelay(10*time.Millisecond),
		runtime.WithCascadeCallback(func(ids []string) { cascaded = append(cascaded, ids) }),
	)
	defer m.Close()

	require.NoError(t, m.Load(context.Background(), "poll-tool", dep))
	out, err := m.ExecuteAction(context.Background(), "p1", "vote", map[string]any{"option": "Pizza"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, out.CascadedElements)
	assert.Equal(t, [][]string{{"c1"}}, cascaded)
	require.Eventually(t, func() bool { return m.Snapshot().Synced }, 2*time.Second, 10*time.Millisecond)

	err = m.Load(context.Background(), "nope", dep)
	assert.ErrorIs(t, err, domain.ErrToolNotFound)
}
