package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/ports"
)

// DefaultLockTTL is the expiry of a distributed deployment lock.
const DefaultLockTTL = 30 * time.Second

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locks serializes writers per key. Entries are reference counted and
// dropped once unused. With a DistributedLocker the in-process mutex is
// followed by a cross-replica lock.
type Locks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// LockOption configures Locks.
type LockOption func(*Locks)

// WithLocker adds a cross-replica lock.
func WithLocker(l ports.DistributedLocker) LockOption {
	return func(k *Locks) { k.locker = l }
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(k *Locks) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithLockLogger sets the logger used for release failures.
func WithLockLogger(l *slog.Logger) LockOption {
	return func(k *Locks) {
		if l != nil {
			k.logger = l
		}
	}
}

// NewLocks creates an empty lock table.
func NewLocks(opts ...LockOption) *Locks {
	k := &Locks{
		entries: make(map[string]*lockEntry),
		ttl:     DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Locks) acquire(key string) *lockEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *Locks) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(k.entries, key)
	}
}

// active reports the number of keys with holders or waiters.
func (k *Locks) active() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// WithLock runs fn while holding the lock for key.
func (k *Locks) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	e := k.acquire(key)
	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		k.release(key)
	}()

	if k.locker != nil {
		unlock, err := k.locker.Lock(ctx, key, k.ttl)
		if err != nil {
			return fmt.Errorf("acquire deployment lock: %w", err)
		}
		defer func() {
			// The caller's ctx may already be done; release on a fresh one.
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlock(rctx); err != nil {
				k.logger.Warn("releasing deployment lock failed, it will expire", "key", key, "error", err)
			}
		}()
	}
	return fn(ctx)
}
