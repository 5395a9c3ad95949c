package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/domain"
)

func TestDefault_CatalogIsConsistent(t *testing.T) {
	r := Default()

	kinds := r.Kinds()
	assert.Len(t, kinds, len(Catalog()))
	assert.IsIncreasing(t, kinds)

	poll, ok := r.Lookup(domain.KindPoll)
	require.True(t, ok)
	assert.Equal(t, []string{"question", "options"}, poll.RequiredConfigFields)
	assert.True(t, r.HasOutput(domain.KindPoll, "results"))
	assert.False(t, r.HasOutput(domain.KindPoll, "options"))
	assert.True(t, r.HasInput(domain.KindPoll, "options"))
	assert.False(t, r.Has("hologram"))
	assert.Nil(t, r.Outputs("hologram"))

	// Every required field must be type-checked by the kind's schema.
	for _, k := range Catalog() {
		for _, f := range k.RequiredConfigFields {
			_, ok := k.ConfigSchema[f]
			assert.True(t, ok, "%s.%s has no schema type", k.Kind, f)
		}
	}
}

func TestLookup_ReturnsCopies(t *testing.T) {
	r := Default()
	k, _ := r.Lookup(domain.KindCounter)
	k.Outputs[0] = "mutated"

	again, _ := r.Lookup(domain.KindCounter)
	assert.Equal(t, "value", again.Outputs[0])
}

func TestNewElementRegistry_Rejects(t *testing.T) {
	_, err := NewElementRegistry(domain.ElementKind{Kind: "a"}, domain.ElementKind{Kind: "a"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewElementRegistry(domain.ElementKind{})
	assert.Error(t, err)
}

func TestWith_OverridesAndExtends(t *testing.T) {
	base := Default()
	ext, err := base.With(
		domain.ElementKind{Kind: domain.KindCounter, Outputs: []string{"total"}},
		domain.ElementKind{Kind: "sticker-wall", Inputs: []string{"data"}},
	)
	require.NoError(t, err)

	assert.True(t, ext.HasOutput(domain.KindCounter, "total"))
	assert.False(t, ext.HasOutput(domain.KindCounter, "value"))
	assert.True(t, ext.Has("sticker-wall"))
	assert.False(t, base.Has("sticker-wall"), "base registry must not change")
	assert.Len(t, ext.Kinds(), len(base.Kinds())+1)
}

func TestLoadKinds(t *testing.T) {
	doc := `
kinds:
  - kind: sticker-wall
    category: display
    outputs: [selected]
    inputs: [data]
    required_config_fields: [title]
    config_schema:
      title: "string!"
      colors: "[string]"
`
	kinds, err := LoadKinds(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, kinds, 1)
	assert.Equal(t, "sticker-wall", kinds[0].Kind)
	assert.Equal(t, []string{"title"}, kinds[0].RequiredConfigFields)
	assert.Equal(t, "string!", kinds[0].ConfigSchema["title"].Name())

	_, err = LoadKinds(strings.NewReader("kinds:\n  - kind: x\n    config_schema: {a: date}\n"))
	assert.Error(t, err)

	_, err = LoadKinds(strings.NewReader("kinds:\n  - outputs: [a]\n"))
	assert.ErrorContains(t, err, "missing name")

	kinds, err = LoadKinds(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, kinds)
}
