package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/campushive/hivelab/internal/config"
	"github.com/campushive/hivelab/internal/execution"
	loamadapter "github.com/campushive/hivelab/pkg/adapters/loam"
	"github.com/campushive/hivelab/pkg/adapters/memory"
	redisadapter "github.com/campushive/hivelab/pkg/adapters/redis"
	"github.com/campushive/hivelab/pkg/persistence/middleware"
	"github.com/campushive/hivelab/pkg/ports"
)

// backend holds the driven adapters selected by the config.
type backend struct {
	catalog *execution.CachedCatalog
	store   ports.StateStore
	feed    ports.Realtime
	locks   *execution.Locks
	closers []func() error
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

// openCatalog opens the definition directory, creating it when missing.
func openCatalog() (*loamadapter.Catalog, error) {
	if err := os.MkdirAll(cfg.Catalog.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	return loamadapter.Open(cfg.Catalog.Dir)
}

func openBackend(ctx context.Context) (*backend, error) {
	files, err := openCatalog()
	if err != nil {
		return nil, err
	}
	cached, err := execution.NewCachedCatalog(files, cfg.Catalog.CacheSize)
	if err != nil {
		return nil, err
	}
	b := &backend{catalog: cached}

	switch cfg.Store {
	case config.StoreRedis:
		opts := []redisadapter.Option{redisadapter.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			opts = append(opts, redisadapter.WithTTL(cfg.Redis.TTL))
		}
		store := redisadapter.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
		b.closers = append(b.closers, store.Close)
		if err := pingRedis(ctx, store.Client()); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.store = store
		b.feed = redisadapter.NewFeed(store.Client(), cfg.Redis.Prefix, logger)
		b.locks = execution.NewLocks(
			execution.WithLocker(redisadapter.NewLocker(store.Client(), cfg.Redis.Prefix)),
			execution.WithLockTTL(cfg.Redis.LockTTL),
			execution.WithLockLogger(logger),
		)
		logger.Info("using redis state store", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	default:
		feed := memory.NewFeed(memory.WithFeedLogger(logger))
		b.closers = append(b.closers, feed.Close)
		b.store = memory.NewStore()
		b.feed = feed
		b.locks = execution.NewLocks(execution.WithLockLogger(logger))
		logger.Info("using in-memory state store")
	}

	mws, err := privacyMiddlewares(cfg.Privacy)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	b.store = middleware.Chain(b.store, mws...)
	return b, nil
}

// privacyMiddlewares masks before it encrypts, so the ciphertext never holds
// a matching field either.
func privacyMiddlewares(p config.Privacy) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(p.PIIPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(p.PIIPatterns)
		if err != nil {
			return nil, fmt.Errorf("privacy.pii_patterns: %w", err)
		}
		mws = append(mws, pii)
		logger.Info("masking personal fields in stored state", "patterns", len(p.PIIPatterns))
	}
	if p.EncryptionKey != "" {
		active, err := middleware.ParseKey(p.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("privacy.encryption_key: %w", err)
		}
		ec := middleware.EncryptionConfig{ActiveKey: active}
		for i, raw := range p.FallbackKeys {
			k, err := middleware.ParseKey(raw)
			if err != nil {
				return nil, fmt.Errorf("privacy.fallback_keys[%d]: %w", i, err)
			}
			ec.FallbackKeys = append(ec.FallbackKeys, k)
		}
		enc, err := middleware.NewEncryptionMiddleware(ec)
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
		logger.Info("encrypting user state at rest", "fallback_keys", len(ec.FallbackKeys))
	}
	return mws, nil
}

func pingRedis(ctx context.Context, client *goredis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
	}
	return nil
}
