package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/domain"
)

func newRequest(t *testing.T, el domain.CanvasElement, action string, data map[string]any) *ActionRequest {
	t.Helper()
	kind, ok := Default().Lookup(el.Kind)
	require.True(t, ok, "unknown kind %s", el.Kind)
	cfg, err := domain.DecodeConfig(el.Kind, el.Config)
	require.NoError(t, err)
	shared := domain.NewSharedState()
	return &ActionRequest{
		ToolID:       "tool-1",
		DeploymentID: "space:chess_tab",
		UserID:       "u1",
		Element:      el,
		Kind:         kind,
		Config:       cfg,
		Action:       action,
		Data:         data,
		Shared:       &shared,
		User:         domain.UserState{},
		Now:          time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestActionRegistry_Resolve(t *testing.T) {
	r := NewActionRegistry()
	calls := ""
	r.Register("k", "a", func(context.Context, *ActionRequest) (*ActionResult, error) { calls += "exact"; return nil, nil })
	r.Register("k", Wildcard, func(context.Context, *ActionRequest) (*ActionResult, error) { calls += "kind"; return nil, nil })
	r.Register(Wildcard, "z", func(context.Context, *ActionRequest) (*ActionResult, error) { calls += "action"; return nil, nil })

	ctx := context.Background()
	for _, tc := range []struct{ kind, action, want string }{
		{"k", "a", "exact"},
		{"k", "b", "kind"},
		{"other", "z", "action"},
	} {
		calls = ""
		res, err := r.Execute(ctx, &ActionRequest{Element: domain.CanvasElement{Kind: tc.kind}, Action: tc.action})
		require.NoError(t, err)
		assert.NotNil(t, res, "nil results are normalized")
		assert.Equal(t, tc.want, calls)
	}

	_, err := r.Execute(ctx, &ActionRequest{Element: domain.CanvasElement{Kind: "other"}, Action: "nope"})
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestPollVote(t *testing.T) {
	actions := DefaultActions()
	ctx := context.Background()
	el := domain.CanvasElement{InstanceID: "p1", Kind: domain.KindPoll, Config: map[string]any{
		"question": "Lunch?", "options": []any{"A", "B"},
	}}

	req := newRequest(t, el, "vote", map[string]any{"option": "A"})
	res, err := actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1.0, req.Shared.Counters["p1:A"])
	assert.Equal(t, 1.0, req.Shared.Counters["p1:total"])
	assert.Equal(t, "A", res.UserState["p1:vote"])
	assert.Equal(t, "A", res.Outputs["winner"])

	// Changing the vote moves it.
	req.User.Merge(res.UserState)
	req.Data = map[string]any{"option": "B"}
	res, err = actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0.0, req.Shared.Counters["p1:A"])
	assert.Equal(t, 1.0, req.Shared.Counters["p1:B"])
	assert.Equal(t, 1.0, res.Outputs["votes"])

	req.Data = map[string]any{"option": "C"}
	_, err = actions.Execute(ctx, req)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestRSVP_Capacity(t *testing.T) {
	actions := DefaultActions()
	ctx := context.Background()
	el := domain.CanvasElement{InstanceID: "r", Kind: domain.KindRSVPButton, Config: map[string]any{
		"eventName": "Mixer", "maxAttendees": 1,
	}}

	req := newRequest(t, el, "rsvp", map[string]any{"name": "Ana"})
	res, err := actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1.0, req.Shared.Counters["r:count"])
	assert.Equal(t, true, res.Outputs["isAttending"])

	// Idempotent for the same user.
	_, err = actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Len(t, req.Shared.Collections["r:attendees"], 1)

	req.UserID = "u2"
	_, err = actions.Execute(ctx, req)
	assert.True(t, errors.Is(err, ErrRejected))

	req.UserID = "u1"
	req.Action = "cancel_rsvp"
	_, err = actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Empty(t, req.Shared.Collections["r:attendees"])
	assert.Equal(t, 0.0, req.Shared.Counters["r:count"])
}

func TestCounter_Bounds(t *testing.T) {
	actions := DefaultActions()
	ctx := context.Background()
	el := domain.CanvasElement{InstanceID: "c", Kind: domain.KindCounter, Config: map[string]any{
		"initialValue": 10, "step": 5, "max": 18,
	}}

	req := newRequest(t, el, "increment", nil)
	_, err := actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 15.0, req.Shared.Counters["c:value"])

	res, err := actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 18.0, req.Shared.Counters["c:value"])
	assert.Equal(t, 18.0, res.Outputs["value"])

	req.Action = "reset"
	_, err = actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 10.0, req.Shared.Counters["c:value"])
}

func TestFormSubmit_RequiredFields(t *testing.T) {
	actions := DefaultActions()
	ctx := context.Background()
	el := domain.CanvasElement{InstanceID: "f", Kind: domain.KindFormBuilder, Config: map[string]any{
		"fields": []any{map[string]any{"name": "email", "required": true}},
	}}

	req := newRequest(t, el, "submit", map[string]any{"email": ""})
	_, err := actions.Execute(ctx, req)
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	req.Data = map[string]any{"email": "a@campus.edu"}
	res, err := actions.Execute(ctx, req)
	require.NoError(t, err)
	require.Len(t, req.Shared.Collections["f:submissions"], 1)
	assert.Equal(t, 1.0, req.Shared.Counters["f:submissions"])
	assert.Equal(t, true, res.UserState["f:submitted"])
}

func TestLeaderboard_Rankings(t *testing.T) {
	actions := DefaultActions()
	ctx := context.Background()
	el := domain.CanvasElement{InstanceID: "lb", Kind: domain.KindLeaderboard, Config: map[string]any{"maxEntries": 2}}

	req := newRequest(t, el, "update_score", map[string]any{"points": 5.0, "userId": "bo"})
	_, err := actions.Execute(ctx, req)
	require.NoError(t, err)
	req.Data = map[string]any{"points": 9.0, "userId": "al"}
	_, err = actions.Execute(ctx, req)
	require.NoError(t, err)
	req.Data = map[string]any{"points": 1.0, "userId": "cy"}
	res, err := actions.Execute(ctx, req)
	require.NoError(t, err)

	rankings := res.Outputs["rankings"].([]any)
	require.Len(t, rankings, 2)
	assert.Equal(t, "al", rankings[0].(map[string]any)["userId"])
	assert.Equal(t, rankings[0], res.Outputs["topEntry"])

	req.Data = map[string]any{"points": "lots"}
	_, err = actions.Execute(ctx, req)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestTimer_StartStop(t *testing.T) {
	actions := DefaultActions()
	ctx := context.Background()
	el := domain.CanvasElement{InstanceID: "t", Kind: domain.KindTimer}

	req := newRequest(t, el, "start", nil)
	_, err := actions.Execute(ctx, req)
	require.NoError(t, err)

	req.Action = "stop"
	req.Now = req.Now.Add(90 * time.Second)
	res, err := actions.Execute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 90.0, res.Outputs["elapsed"])
	assert.NotContains(t, req.Shared.Computed, "t:startedAt")
}

func TestPassthroughFallback(t *testing.T) {
	actions := DefaultActions()
	el := domain.CanvasElement{InstanceID: "s", Kind: domain.KindSearchInput}
	req := newRequest(t, el, "change", map[string]any{"query": "chess", "noise": 1})

	res, err := actions.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "chess"}, res.Outputs)
}
