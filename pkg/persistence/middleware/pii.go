package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// Mask replaces masked values.
const Mask = "***"

type piiMiddleware struct {
	ports.StateStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks, on save, the values of user state keys, timeline
// event data keys and collection entry details that match any pattern. Nested maps and lists are walked.
// Callers keep their unmasked copies.
func NewPIIMiddleware(patterns []string) (Middleware, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pii pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return func(next ports.StateStore) ports.StateStore {
		return &piiMiddleware{StateStore: next, patterns: compiled}
	}, nil
}

func (m *piiMiddleware) SaveUser(ctx context.Context, id domain.DeploymentID, userID string, state domain.UserState) error {
	masked := state.Clone()
	m.mask(masked)
	return m.StateStore.SaveUser(ctx, id, userID, masked)
}

func (m *piiMiddleware) SaveShared(ctx context.Context, id domain.DeploymentID, state *domain.SharedState) error {
	if state == nil {
		return m.StateStore.SaveShared(ctx, id, state)
	}
	masked := state.Clone()
	for i := range masked.Timeline {
		m.mask(masked.Timeline[i].Data)
	}
	for _, items := range masked.Collections {
		for i := range items {
			m.mask(items[i].Detail)
		}
	}
	return m.StateStore.SaveShared(ctx, id, &masked)
}

func (m *piiMiddleware) mask(v map[string]any) {
	for k, val := range v {
		if m.matches(k) {
			v[k] = Mask
			continue
		}
		m.walk(val)
	}
}

func (m *piiMiddleware) walk(v any) {
	switch t := v.(type) {
	case map[string]any:
		m.mask(t)
	case domain.UserState:
		m.mask(t)
	case []any:
		for _, item := range t {
			m.walk(item)
		}
	}
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
