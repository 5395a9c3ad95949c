package runtime

import (
	"context"
	"errors"
	"sync"

	"github.com/campushive/hivelab/pkg/domain"
)

// fakeGateway is a scriptable ports.ToolGateway.
type fakeGateway struct {
	mu sync.Mutex

	tool      domain.ToolDefinition
	user      domain.UserState
	shared    *domain.SharedState
	loadErrs  []error
	saveErrs  []error
	loadCalls int
	saves     []domain.SaveStateRequest

	// execute, when set, handles Execute calls.
	execute func(ctx context.Context, req domain.ExecuteRequest) (*domain.ExecuteResponse, error)
	// saveGate, when set, blocks SaveState until it receives.
	saveGate chan struct{}
	saved    chan domain.SaveStateRequest
}

func newFakeGateway(tool domain.ToolDefinition) *fakeGateway {
	return &fakeGateway{tool: tool, saved: make(chan domain.SaveStateRequest, 16)}
}

func (g *fakeGateway) LoadTool(_ context.Context, toolID string, _ domain.DeploymentID) (*domain.LoadResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loadCalls++
	if len(g.loadErrs) > 0 {
		err := g.loadErrs[0]
		g.loadErrs = g.loadErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if toolID != g.tool.ID {
		return nil, domain.ErrToolNotFound
	}
	resp := &domain.LoadResponse{Tool: g.tool, UserState: g.user.Clone()}
	if g.shared != nil {
		s := g.shared.Clone()
		resp.SharedState = &s
	}
	return resp, nil
}

func (g *fakeGateway) SaveState(ctx context.Context, req domain.SaveStateRequest) error {
	if g.saveGate != nil {
		select {
		case <-g.saveGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.mu.Lock()
	var err error
	if len(g.saveErrs) > 0 {
		err = g.saveErrs[0]
		g.saveErrs = g.saveErrs[1:]
	}
	if err == nil {
		g.saves = append(g.saves, req)
	}
	g.mu.Unlock()
	if err == nil {
		select {
		case g.saved <- req:
		default:
		}
	}
	return err
}

func (g *fakeGateway) Execute(ctx context.Context, req domain.ExecuteRequest) (*domain.ExecuteResponse, error) {
	if g.execute == nil {
		return nil, errors.New("no execute handler")
	}
	return g.execute(ctx, req)
}

func (g *fakeGateway) savedStates() []domain.SaveStateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.SaveStateRequest(nil), g.saves...)
}

func (g *fakeGateway) loads() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loadCalls
}

func pollTool() domain.ToolDefinition {
	return domain.ToolDefinition{
		ID:   "tool-1",
		Name: "Lunch poll",
		Composition: domain.ToolComposition{
			Name: "Lunch poll",
			Elements: []domain.CanvasElement{
				{InstanceID: "a", Kind: domain.KindPoll, Config: map[string]any{"question": "Lunch?", "options": []any{"Pizza", "Tacos"}}},
				{InstanceID: "b", Kind: domain.KindChartDisplay, Config: map[string]any{}},
				{InstanceID: "c", Kind: domain.KindLeaderboard},
				{Kind: domain.KindCounter},
			},
			Connections: []domain.Connection{
				{From: domain.PortRef{InstanceID: "a", Port: "results"}, To: domain.PortRef{InstanceID: "b", Port: "data"}},
				{From: domain.PortRef{InstanceID: "b", Port: "data"}, To: domain.PortRef{InstanceID: "c", Port: "scores"}},
			},
			Layout: domain.LayoutGrid,
		},
	}
}

const testDeployment = domain.DeploymentID("space:cs-club_poll-1")
