package hivelab_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab"
	"github.com/campushive/hivelab/internal/execution"
	"github.com/campushive/hivelab/internal/runtime"
	"github.com/campushive/hivelab/internal/validator"
	"github.com/campushive/hivelab/pkg/adapters/memory"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/dsl"
)

const stickerKinds = `
kinds:
  - kind: sticker-wall
    category: display
    outputs: [selected]
    inputs: [data]
    required_config_fields: [title]
    config_schema: {title: "string!"}
`

func TestDesigner_ParseAndValidate(t *testing.T) {
	d, err := hivelab.New()
	require.NoError(t, err)

	out := "Sure! ```json\n" + `{"name":"Lunch","elements":[{"instanceId":"p1","kind":"poll-element","config":{"question":"Lunch?","options":["A","B"]}}],"connections":[]}` + "\n```"
	comp, res, ok := d.Parse(out)
	require.True(t, ok)
	assert.True(t, res.Valid, res.Errors)
	assert.Equal(t, "Lunch", comp.Name)

	_, _, ok = d.Parse("I could not build that.")
	assert.False(t, ok)
}

const pollScenario = `{"elements":[{"instanceId":"p1","kind":"poll-element","config":{"question":"Q","options":["A","B"]}}],"connections":[],"name":"Poll","description":"","layout":"grid"}`

func TestDesigner_ParsePollScenario(t *testing.T) {
	d, err := hivelab.New()
	require.NoError(t, err)

	direct := d.Validate(pollScenario)
	require.True(t, direct.Valid, direct.Errors)

	for name, text := range map[string]string{
		"fenced":   "```json\n" + pollScenario + "\n```",
		"bare":     pollScenario,
		"embedded": "Here you go: " + pollScenario + " enjoy",
	} {
		t.Run(name, func(t *testing.T) {
			comp, res, ok := d.Parse(text)
			require.True(t, ok)
			assert.True(t, res.Valid, res.Errors)
			assert.Empty(t, res.Errors)
			assert.Empty(t, res.Warnings)
			assert.Equal(t, "Poll", comp.Name)

			again := d.Validate(*res.Sanitized)
			assert.True(t, again.Valid, again.Errors)
			assert.Empty(t, again.Warnings)
		})
	}
}

func TestDesigner_Sanitize(t *testing.T) {
	d, err := hivelab.New()
	require.NoError(t, err)

	comp, res := d.Sanitize(map[string]any{
		"name": "Counters",
		"elements": []any{
			map[string]any{"instanceId": "c", "kind": "counter"},
			map[string]any{"instanceId": "c", "kind": "counter"},
		},
	})
	assert.True(t, res.Valid, res.Errors)
	require.Len(t, comp.Elements, 2)
	assert.NotEqual(t, comp.Elements[0].InstanceID, comp.Elements[1].InstanceID)
}

func TestDesigner_ExtraKinds(t *testing.T) {
	d, err := hivelab.New(hivelab.WithKindsFile(strings.NewReader(stickerKinds)))
	require.NoError(t, err)
	assert.True(t, d.Elements().Has("sticker-wall"))

	res := d.Validate(`{"name":"w","elements":[{"instanceId":"s","kind":"sticker-wall","config":{}}],"connections":[]}`)
	assert.True(t, res.HasCode(validator.CodeMissingRequiredConfig))

	_, err = hivelab.New(hivelab.WithKinds(domain.ElementKind{}))
	assert.Error(t, err, "kinds need a name")
}

func TestDesigner_MaxElements(t *testing.T) {
	d, err := hivelab.New(hivelab.WithMaxElements(1))
	require.NoError(t, err)
	res := d.Validate(`{"name":"x","elements":[{"instanceId":"a","kind":"counter","config":{}},{"instanceId":"b","kind":"counter","config":{}}],"connections":[]}`)
	assert.False(t, res.Valid)
}

func TestDesigner_Mermaid(t *testing.T) {
	d, err := hivelab.New()
	require.NoError(t, err)
	chart := d.Mermaid(&domain.ToolComposition{Elements: []domain.CanvasElement{{InstanceID: "n", Kind: domain.KindCounter}}})
	assert.Contains(t, chart, `n("n<br/><small>counter</small>")`)
}

func TestNewRuntime_SharesLiveCounters(t *testing.T) {
	b := dsl.New("Lunch")
	b.Add("p1", domain.KindPoll).
		Config("question", "Lunch?").
		Config("options", []any{"Pizza", "Tacos"})
	catalog, err := b.Catalog("lunch")
	require.NoError(t, err)

	feed := memory.NewFeed()
	defer func() { _ = feed.Close() }()
	svc := execution.New(catalog, memory.NewStore(), execution.WithPublisher(feed))

	const dep = domain.DeploymentID("space:club_lunch")
	voter := hivelab.NewRuntime(svc, runtime.WithUserID("ana"), runtime.WithRealtime(feed))
	watcher := hivelab.NewRuntime(svc, runtime.WithUserID("bo"), runtime.WithRealtime(feed))
	defer voter.Close()
	defer watcher.Close()
	ctx := context.Background()
	require.NoError(t, voter.Load(ctx, "lunch", dep))
	require.NoError(t, watcher.Load(ctx, "lunch", dep))
	require.Eventually(t, func() bool { return watcher.Snapshot().RealtimeConnected }, time.Second, 5*time.Millisecond)

	_, err = voter.ExecuteAction(ctx, "p1", "vote", map[string]any{"option": "Pizza"})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		n, _ := watcher.Snapshot().SharedState.Counter("p1:Pizza")
		return n == 1
	}, time.Second, 5*time.Millisecond)
}
