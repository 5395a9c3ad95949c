package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/adapters/memory"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/persistence/middleware"
	"github.com/campushive/hivelab/pkg/ports"
	"github.com/campushive/hivelab/pkg/ports/tests"
)

const dep = domain.DeploymentID("space:chess_p1")

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func encrypted(t *testing.T, next ports.StateStore, cfg middleware.EncryptionConfig) ports.StateStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func masked(t *testing.T, next ports.StateStore, patterns ...string) ports.StateStore {
	t.Helper()
	mw, err := middleware.NewPIIMiddleware(patterns)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryption_Contract(t *testing.T) {
	tests.StateStoreContract(t, encrypted(t, memory.NewStore(), middleware.EncryptionConfig{ActiveKey: generateKey(t)}))
}

func TestEncryption_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	require.NoError(t, store.SaveUser(ctx, dep, "ana", domain.UserState{"f1:email": "ana@campus.edu"}))

	raw, err := underlying.LoadUser(ctx, dep, "ana")
	require.NoError(t, err)
	assert.NotContains(t, raw, "f1:email")
	assert.Contains(t, raw, middleware.EnvelopeKey)

	loaded, err := store.LoadUser(ctx, dep, "ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@campus.edu", loaded["f1:email"])

	shared := domain.NewSharedState()
	shared.Counters["p1:A"] = 1
	require.NoError(t, store.SaveShared(ctx, dep, &shared))
	rawShared, err := underlying.LoadShared(ctx, dep)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rawShared.Counters["p1:A"], "shared state stays readable")
}

func TestEncryption_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	require.NoError(t, encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: oldKey}).
		SaveUser(ctx, dep, "ana", domain.UserState{"p1:vote": "A"}))

	rotated := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}})
	loaded, err := rotated.LoadUser(ctx, dep, "ana")
	require.NoError(t, err)
	assert.Equal(t, "A", loaded["p1:vote"])

	_, err = encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: newKey}).LoadUser(ctx, dep, "ana")
	assert.Error(t, err, "new key alone cannot decrypt")
}

func TestEncryption_Errors(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := encrypted(t, underlying, middleware.EncryptionConfig{ActiveKey: generateKey(t)})

	_, err := store.LoadUser(ctx, dep, "nobody")
	assert.ErrorIs(t, err, domain.ErrStateNotFound)

	require.NoError(t, underlying.SaveUser(ctx, dep, "plain", domain.UserState{"p1:vote": "A"}))
	_, err = store.LoadUser(ctx, dep, "plain")
	assert.ErrorIs(t, err, middleware.ErrNoEnvelope)

	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t), FallbackKeys: [][]byte{{1}}})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.ParseKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.ParseKey("not base64!")
	assert.Error(t, err)
	_, err = middleware.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.Error(t, err)
}

func TestPII_Masking(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	store := masked(t, underlying, "email", "(?i)phone")

	user := domain.UserState{
		"f1:submission": map[string]any{"name": "Ana", "email": "ana@campus.edu", "Phone": "555"},
		"p1:vote":       "A",
	}
	require.NoError(t, store.SaveUser(ctx, dep, "ana", user))
	assert.Equal(t, "ana@campus.edu", user["f1:submission"].(map[string]any)["email"], "caller copy untouched")

	raw, err := underlying.LoadUser(ctx, dep, "ana")
	require.NoError(t, err)
	sub := raw["f1:submission"].(map[string]any)
	assert.Equal(t, middleware.Mask, sub["email"])
	assert.Equal(t, middleware.Mask, sub["Phone"])
	assert.Equal(t, "Ana", sub["name"])
	assert.Equal(t, "A", raw["p1:vote"])

	shared := domain.NewSharedState()
	shared.AppendTimeline(domain.TimelineEvent{ID: "e1", Type: "submit", Data: map[string]any{
		"fields": []any{map[string]any{"email": "ana@campus.edu"}},
	}}, 0)
	shared.Collections["r1:attendees"] = []domain.EntitySummary{{ID: "ana", Detail: map[string]any{"email": "ana@campus.edu"}}}
	require.NoError(t, store.SaveShared(ctx, dep, &shared))

	rawShared, err := underlying.LoadShared(ctx, dep)
	require.NoError(t, err)
	fields := rawShared.Timeline[0].Data["fields"].([]any)
	assert.Equal(t, middleware.Mask, fields[0].(map[string]any)["email"])
	assert.Equal(t, middleware.Mask, rawShared.Collections["r1:attendees"][0].Detail["email"])
	assert.Equal(t, "ana@campus.edu", shared.Collections["r1:attendees"][0].Detail["email"])
}

func TestPII_BadPattern(t *testing.T) {
	_, err := middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	pii, err := middleware.NewPIIMiddleware([]string{"email"})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	require.NoError(t, store.SaveUser(ctx, dep, "ana", domain.UserState{"email": "ana@campus.edu"}))

	loaded, err := store.LoadUser(ctx, dep, "ana")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded["email"], "masked before encryption")
}
