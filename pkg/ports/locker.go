package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates the single writer of a deployment's shared
// state across service replicas.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx ends. The lock expires
	// after ttl if it is never released. The returned UnlockFunc must be called.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
