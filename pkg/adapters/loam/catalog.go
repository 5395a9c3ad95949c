package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/loam"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// Catalog stores tool definitions as documents in a Loam repository, one
// file per tool.
type Catalog struct {
	Repo *loam.TypedRepository[ToolDocument]
}

var _ ports.ToolCatalog = (*Catalog)(nil)

// New wraps an existing typed repository.
func New(repo *loam.TypedRepository[ToolDocument]) *Catalog {
	return &Catalog{Repo: repo}
}

// Open initializes a repository rooted at dir. Numbers decode strictly and
// writes are not versioned unless opts say otherwise.
func Open(dir string, opts ...loam.Option) (*Catalog, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	base := []loam.Option{loam.WithStrict(true), loam.WithVersioning(false)}
	repo, err := loam.Init(abs, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[ToolDocument](repo)), nil
}

// Get implements ports.ToolCatalog.
func (c *Catalog) Get(ctx context.Context, id string) (*domain.ToolDefinition, error) {
	doc, err := c.Repo.Get(ctx, id)
	if err != nil {
		if !c.exists(ctx, id) {
			return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, id)
		}
		return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
	}
	return fromDocument(trimExtension(doc.ID), doc.Data, strings.TrimSpace(doc.Content))
}

// List implements ports.ToolCatalog. Ids are file names without extension.
func (c *Catalog) List(ctx context.Context) ([]string, error) {
	docs, err := c.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	seen := make(map[string]string, len(docs))
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := doc.Data.ID
		if id == "" {
			id = doc.ID
		}
		id = trimExtension(id)
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: tool %q is defined in both %q and %q", id, prev, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Save implements ports.ToolCatalog.
func (c *Catalog) Save(ctx context.Context, def *domain.ToolDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("tool definition requires an id")
	}
	doc, err := toDocument(def)
	if err != nil {
		return err
	}
	err = c.Repo.Save(ctx, &loam.DocumentModel[ToolDocument]{
		ID:      def.ID,
		Content: def.Description,
		Data:    doc,
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", def.ID, err)
	}
	return nil
}

func (c *Catalog) exists(ctx context.Context, id string) bool {
	ids, err := c.List(ctx)
	if err != nil {
		return true
	}
	want := trimExtension(id)
	for _, have := range ids {
		if have == want {
			return true
		}
	}
	return false
}

func trimExtension(id string) string {
	if ext := filepath.Ext(id); ext != "" {
		id = strings.TrimSuffix(id, ext)
	}
	return filepath.ToSlash(id)
}
