package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/campushive/hivelab/pkg/domain"
)

type userKey struct {
	deployment domain.DeploymentID
	user       string
}

// Store implements ports.StateStore in memory.
// Safe for concurrent use. Values are copied on the way in and out.
type Store struct {
	users  map[userKey]domain.UserState
	shared map[domain.DeploymentID]domain.SharedState
	mu     sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		users:  make(map[userKey]domain.UserState),
		shared: make(map[domain.DeploymentID]domain.SharedState),
	}
}

// LoadUser returns a copy of the user's state.
func (s *Store) LoadUser(_ context.Context, id domain.DeploymentID, userID string) (domain.UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.users[userKey{id, userID}]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	return st.Clone(), nil
}

// SaveUser stores a copy of the user's state.
func (s *Store) SaveUser(_ context.Context, id domain.DeploymentID, userID string, state domain.UserState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userKey{id, userID}] = state.Clone()
	return nil
}

// LoadShared returns a copy of the deployment's shared state.
func (s *Store) LoadShared(_ context.Context, id domain.DeploymentID) (*domain.SharedState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.shared[id]
	if !ok {
		return nil, domain.ErrStateNotFound
	}
	cp := st.Clone()
	return &cp, nil
}

// SaveShared stores a copy of the deployment's shared state.
func (s *Store) SaveShared(_ context.Context, id domain.DeploymentID, state *domain.SharedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared[id] = state.Clone()
	return nil
}

// Delete removes all state of a deployment.
func (s *Store) Delete(_ context.Context, id domain.DeploymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shared, id)
	for k := range s.users {
		if k.deployment == id {
			delete(s.users, k)
		}
	}
	return nil
}

// List returns the deployments with shared state, sorted.
func (s *Store) List(_ context.Context) ([]domain.DeploymentID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]domain.DeploymentID, 0, len(s.shared))
	for id := range s.shared {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
