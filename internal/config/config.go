// Package config layers defaults, an optional config file and HIVELAB_*
// environment variables for the hivelab command.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/campushive/hivelab/internal/cascade"
	"github.com/campushive/hivelab/pkg/domain"
)

// EnvPrefix prefixes every environment override, e.g. HIVELAB_REDIS_ADDR.
const EnvPrefix = "HIVELAB"

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the resolved configuration of a hivelab process.
type Config struct {
	Log     Log     `mapstructure:"log"`
	Server  Server  `mapstructure:"server"`
	Store   string  `mapstructure:"store"`
	Redis   Redis   `mapstructure:"redis"`
	Catalog Catalog `mapstructure:"catalog"`
	Engine  Engine  `mapstructure:"engine"`
	MCP     MCP     `mapstructure:"mcp"`
	Privacy Privacy `mapstructure:"privacy"`
	Metrics bool    `mapstructure:"metrics"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Server struct {
	Addr         string        `mapstructure:"addr"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	ShutdownWait time.Duration `mapstructure:"shutdown_wait"`
}

type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// Catalog points at the directory of tool definition documents. Kinds is
// an optional YAML file of extra element kinds.
type Catalog struct {
	Dir       string `mapstructure:"dir"`
	CacheSize int    `mapstructure:"cache_size"`
	Kinds     string `mapstructure:"kinds"`
}

type Engine struct {
	TimelineCap  int `mapstructure:"timeline_cap"`
	CascadeDepth int `mapstructure:"cascade_depth"`
	MaxElements  int `mapstructure:"max_elements"`
}

type MCP struct {
	Transport string `mapstructure:"transport"`
	Addr      string `mapstructure:"addr"`
	BaseURL   string `mapstructure:"base_url"`
}

// Privacy configures the state store middlewares. An empty EncryptionKey
// leaves user state in plaintext; keys are base64 AES-256.
type Privacy struct {
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
	PIIPatterns   []string `mapstructure:"pii_patterns"`
}

// New returns a viper instance carrying the defaults and reading HIVELAB_*
// variables, with dots in keys mapped to underscores.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.ping_interval", 30*time.Second)
	v.SetDefault("server.shutdown_wait", 10*time.Second)
	v.SetDefault("store", StoreMemory)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "hivelab:")
	v.SetDefault("redis.ttl", time.Duration(0))
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("catalog.dir", "tools")
	v.SetDefault("catalog.cache_size", 256)
	v.SetDefault("catalog.kinds", "")
	v.SetDefault("engine.timeline_cap", domain.DefaultTimelineCap)
	v.SetDefault("engine.cascade_depth", cascade.DefaultMaxDepth)
	v.SetDefault("engine.max_elements", domain.MaxElements)
	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.addr", ":8081")
	v.SetDefault("mcp.base_url", "http://localhost:8081")
	v.SetDefault("privacy.encryption_key", "")
	v.SetDefault("privacy.fallback_keys", []string{})
	v.SetDefault("privacy.pii_patterns", []string{})
	v.SetDefault("metrics", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, when set, into v and decodes the result. A missing file
// is an error; an unset one is not.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StoreRedis, c.Store))
	}
	switch c.MCP.Transport {
	case "stdio", "sse":
	default:
		errs = append(errs, fmt.Errorf("mcp.transport must be stdio or sse, got %q", c.MCP.Transport))
	}
	if c.Engine.TimelineCap <= 0 {
		errs = append(errs, errors.New("engine.timeline_cap must be positive"))
	}
	if c.Engine.CascadeDepth <= 0 {
		errs = append(errs, errors.New("engine.cascade_depth must be positive"))
	}
	if c.Engine.MaxElements <= 0 {
		errs = append(errs, errors.New("engine.max_elements must be positive"))
	}
	if c.Privacy.EncryptionKey == "" && len(c.Privacy.FallbackKeys) > 0 {
		errs = append(errs, errors.New("privacy.fallback_keys needs privacy.encryption_key"))
	}
	return errors.Join(errs...)
}
