package execution

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// DefaultCatalogCacheSize is the number of definitions CachedCatalog keeps.
const DefaultCatalogCacheSize = 256

// CachedCatalog fronts a ToolCatalog with an LRU of definitions. Concurrent
// misses for the same id share one backend read. Not-found results are not
// cached.
type CachedCatalog struct {
	backend ports.ToolCatalog
	cache   *lru.Cache[string, domain.ToolDefinition]
	group   singleflight.Group
}

var _ ports.ToolCatalog = (*CachedCatalog)(nil)

// NewCachedCatalog wraps backend. A size below one uses DefaultCatalogCacheSize.
func NewCachedCatalog(backend ports.ToolCatalog, size int) (*CachedCatalog, error) {
	if size < 1 {
		size = DefaultCatalogCacheSize
	}
	cache, err := lru.New[string, domain.ToolDefinition](size)
	if err != nil {
		return nil, fmt.Errorf("create definition cache: %w", err)
	}
	return &CachedCatalog{backend: backend, cache: cache}, nil
}

// Get returns a copy of the cached definition, reading through on a miss.
func (c *CachedCatalog) Get(ctx context.Context, id string) (*domain.ToolDefinition, error) {
	if def, ok := c.cache.Get(id); ok {
		return cloneDefinition(def), nil
	}
	v, err, _ := c.group.Do(id, func() (any, error) {
		def, err := c.backend.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		c.cache.Add(id, *cloneDefinition(*def))
		return def, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneDefinition(*v.(*domain.ToolDefinition)), nil
}

// List delegates to the backend.
func (c *CachedCatalog) List(ctx context.Context) ([]string, error) {
	return c.backend.List(ctx)
}

// Save writes through and drops the cached entry.
func (c *CachedCatalog) Save(ctx context.Context, def *domain.ToolDefinition) error {
	if err := c.backend.Save(ctx, def); err != nil {
		return err
	}
	c.cache.Remove(def.ID)
	return nil
}

// Invalidate drops id from the cache.
func (c *CachedCatalog) Invalidate(id string) {
	c.cache.Remove(id)
}

// Len reports the number of cached definitions.
func (c *CachedCatalog) Len() int {
	return c.cache.Len()
}

func cloneDefinition(def domain.ToolDefinition) *domain.ToolDefinition {
	def.Composition = def.Composition.Clone()
	return &def
}
