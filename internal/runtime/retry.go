package runtime

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/campushive/hivelab/pkg/domain"
)

// linearBackOff waits delay × attempt between attempts.
type linearBackOff struct {
	delay   time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return l.delay * time.Duration(l.attempt)
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// retry runs op up to attempts times. Only transient errors are retried; the
// last error is returned as is.
func retry(ctx context.Context, attempts int, delay time.Duration, op func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{delay: delay}, uint64(attempts-1)),
		ctx,
	)
	n := 0
	return backoff.Retry(func() error {
		n++
		err := op(n)
		if err != nil && !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
