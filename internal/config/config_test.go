package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/hivelab/pkg/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 30*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, domain.DefaultTimelineCap, cfg.Engine.TimelineCap)
	assert.Equal(t, domain.MaxElements, cfg.Engine.MaxElements)
	assert.Equal(t, "stdio", cfg.MCP.Transport)
	assert.True(t, cfg.Metrics)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "hivelab.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
store: redis
redis:
  addr: cache:6379
  lock_ttl: 5s
server:
  addr: ":9000"
log:
  level: debug
`), 0o644))

	t.Setenv("HIVELAB_SERVER_ADDR", ":9100")
	t.Setenv("HIVELAB_ENGINE_TIMELINE_CAP", "10")

	cfg, err := Load(New(), file)
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Store)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 5*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9100", cfg.Server.Addr, "env wins over the file")
	assert.Equal(t, 10, cfg.Engine.TimelineCap)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	v := New()
	v.Set("store", "postgres")
	v.Set("engine.timeline_cap", 0)
	_, err = Load(v, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store must be")
	assert.Contains(t, err.Error(), "timeline_cap")
}

func TestLoad_Privacy(t *testing.T) {
	file := filepath.Join(t.TempDir(), "hivelab.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
privacy:
  pii_patterns: ["(?i)email", "phone"]
  fallback_keys: ["b2xk"]
`), 0o644))

	_, err := Load(New(), file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback_keys needs privacy.encryption_key")

	t.Setenv("HIVELAB_PRIVACY_ENCRYPTION_KEY", "bmV3")
	cfg, err := Load(New(), file)
	require.NoError(t, err)
	assert.Equal(t, "bmV3", cfg.Privacy.EncryptionKey)
	assert.Equal(t, []string{"(?i)email", "phone"}, cfg.Privacy.PIIPatterns)
	assert.Equal(t, []string{"b2xk"}, cfg.Privacy.FallbackKeys)
}
