package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/campushive/hivelab/pkg/domain"
)

// Catalog implements ports.ToolCatalog using an in-memory map.
// Definitions are stored serialized so callers never share memory with it.
type Catalog struct {
	tools map[string][]byte
	mu    sync.RWMutex
}

// NewCatalog creates a catalog seeded with defs.
func NewCatalog(defs ...*domain.ToolDefinition) (*Catalog, error) {
	c := &Catalog{tools: make(map[string][]byte)}
	for _, d := range defs {
		if err := c.Save(context.Background(), d); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Get returns the definition for id.
func (c *Catalog) Get(_ context.Context, id string) (*domain.ToolDefinition, error) {
	c.mu.RLock()
	raw, ok := c.tools[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, id)
	}
	var def domain.ToolDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("failed to decode tool %s: %w", id, err)
	}
	return &def, nil
}

// List returns all tool ids, sorted.
func (c *Catalog) List(_ context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.tools))
	for id := range c.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Save stores def, replacing any previous version.
func (c *Catalog) Save(_ context.Context, def *domain.ToolDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("tool definition missing ID")
	}
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal tool %s: %w", def.ID, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools[def.ID] = raw
	return nil
}
