package validator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/domain"
)

func messyComposition() domain.ToolComposition {
	return domain.ToolComposition{
		Elements: []domain.CanvasElement{
			{InstanceID: "a", Kind: "counter", Position: domain.Position{X: 10, Y: 10}},
			{InstanceID: "a", Kind: "counter", Position: domain.Position{X: 20, Y: 20}},
			{
				InstanceID: "",
				Kind:       "poll-element",
				Config:     map[string]any{"question": "Q", "options": []any{"A"}},
				Position:   domain.Position{X: -50, Y: 9000},
			},
			{InstanceID: "counter_1", Kind: "timer", Position: domain.Position{X: 1500, Y: 10}, Size: domain.Size{Width: 5000, Height: 1}},
		},
		Connections: []domain.Connection{
			{From: domain.PortRef{InstanceID: "a", Port: "value"}, To: domain.PortRef{InstanceID: "ghost", Port: "x"}},
			{From: domain.PortRef{InstanceID: "a", Port: "value"}, To: domain.PortRef{InstanceID: "counter_1", Port: "start"}},
		},
	}
}

func TestSanitize(t *testing.T) {
	in := messyComposition()
	out := Sanitize(in)

	ids := make(map[string]bool)
	for _, el := range out.Elements {
		assert.False(t, ids[el.InstanceID], "duplicate id %s", el.InstanceID)
		ids[el.InstanceID] = true
	}
	assert.Equal(t, "a", out.Elements[0].InstanceID)
	assert.Equal(t, "counter_1_2", out.Elements[1].InstanceID, "renamed id must not steal an existing one")
	assert.Equal(t, "poll-element_2", out.Elements[2].InstanceID)
	assert.Equal(t, "counter_1", out.Elements[3].InstanceID)

	assert.Equal(t, GridPosition(1), out.Elements[1].Position)
	assert.Equal(t, domain.Position{X: 0, Y: domain.MaxY}, out.Elements[2].Position)
	assert.Equal(t, domain.Size{Width: domain.MaxWidth, Height: domain.MinHeight}, out.Elements[3].Size)
	assert.Equal(t, domain.Size{Width: DefaultWidth, Height: DefaultHeight}, out.Elements[0].Size)

	require.Len(t, out.Connections, 1)
	assert.Equal(t, "counter_1", out.Connections[0].To.InstanceID)
	assert.Equal(t, DefaultName, out.Name)
	assert.Equal(t, "A tool with 4 elements", out.Description)
	assert.Equal(t, domain.LayoutGrid, out.Layout)

	for i := range in.Elements {
		assert.Equal(t, in.Elements[i].Kind, out.Elements[i].Kind)
	}
	assert.Equal(t, "", in.Elements[2].InstanceID, "input must not be mutated")
}

func TestSanitize_Idempotent(t *testing.T) {
	cases := []domain.ToolComposition{
		messyComposition(),
		{},
		{Name: "kept", Description: "kept too", Layout: domain.LayoutTabs},
	}
	for _, c := range cases {
		once := Sanitize(c)
		twice := Sanitize(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("Sanitize is not idempotent (-once +twice):\n%s", diff)
		}
	}
}

func TestSanitize_PreservesNameAndDescription(t *testing.T) {
	out := Sanitize(domain.ToolComposition{Name: "kept", Description: "kept too"})
	assert.Equal(t, "kept", out.Name)
	assert.Equal(t, "kept too", out.Description)
}

func TestRepair(t *testing.T) {
	comp, res := New(nil).Repair(messyComposition())

	assert.True(t, res.Valid, "%v", res.Errors)
	assert.Len(t, comp.Elements, 4)
}

func TestRepair_Undecodable(t *testing.T) {
	_, res := New(nil).Repair("{{{")
	assert.False(t, res.Valid)
	assert.Equal(t, CodeSchemaInvalid, res.Errors[0].Code)
}
