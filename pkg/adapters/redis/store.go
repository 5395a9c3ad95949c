package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/campushive/hivelab/pkg/domain"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "hivelab:"

// farFuture is the index score of deployments without expiration (2100-01-01).
const farFuture = 4102444800

// Store implements ports.StateStore using Redis.
// Shared state lives in a string key per deployment, user states in one hash
// per deployment keyed by user id, and a sorted set indexes live deployments.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration of deployment state. Zero keeps it forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store connected to address.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) sharedKey(id domain.DeploymentID) string {
	return s.prefix + "shared:" + string(id)
}

func (s *Store) usersKey(id domain.DeploymentID) string {
	return s.prefix + "users:" + string(id)
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

func (s *Store) score() float64 {
	if s.ttl == 0 {
		return farFuture
	}
	return float64(time.Now().Add(s.ttl).Unix())
}

// LoadUser reads one field of the deployment's user hash.
func (s *Store) LoadUser(ctx context.Context, id domain.DeploymentID, userID string) (domain.UserState, error) {
	val, err := s.client.HGet(ctx, s.usersKey(id), userID).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get user state from redis: %w", err)
	}
	var state domain.UserState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user state: %w", err)
	}
	if state == nil {
		state = domain.UserState{}
	}
	return state, nil
}

// SaveUser writes one field of the deployment's user hash.
func (s *Store) SaveUser(ctx context.Context, id domain.DeploymentID, userID string, state domain.UserState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal user state: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.usersKey(id), userID, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.usersKey(id), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save user state to redis: %w", err)
	}
	return nil
}

// LoadShared reads the deployment's shared state.
func (s *Store) LoadShared(ctx context.Context, id domain.DeploymentID) (*domain.SharedState, error) {
	val, err := s.client.Get(ctx, s.sharedKey(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get shared state from redis: %w", err)
	}
	state := domain.NewSharedState()
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal shared state: %w", err)
	}
	fixed := state.Clone()
	return &fixed, nil
}

// SaveShared writes the deployment's shared state and refreshes its index entry.
func (s *Store) SaveShared(ctx context.Context, id domain.DeploymentID, state *domain.SharedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal shared state: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sharedKey(id), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.score(), Member: string(id)})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save shared state to redis: %w", err)
	}
	return nil
}

// Delete removes every key of a deployment.
func (s *Store) Delete(ctx context.Context, id domain.DeploymentID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sharedKey(id), s.usersKey(id))
	pipe.ZRem(ctx, s.indexKey(), string(id))
	_, err := pipe.Exec(ctx)
	return err
}

// List prunes expired index entries and returns the remaining deployments.
func (s *Store) List(ctx context.Context) ([]domain.DeploymentID, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired deployments: %w", err)
	}
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	ids := make([]domain.DeploymentID, len(members))
	for i, m := range members {
		ids[i] = domain.DeploymentID(m)
	}
	return ids, nil
}

// Client exposes the underlying client so the locker and feed can share it.
func (s *Store) Client() *backend.Client { return s.client }

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
