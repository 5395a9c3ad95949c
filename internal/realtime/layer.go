package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// Sink receives merged pushes. The runtime manager implements it.
type Sink interface {
	ApplyRealtime(delta *domain.SharedStateDelta)
	SetRealtimeConnected(connected bool)
}

// Layer keeps one deployment subscribed to a feed, forwarding every delta to
// a Sink and reconnecting with exponential backoff when the feed drops.
type Layer struct {
	feed      ports.RealtimeFeed
	sink      Sink
	logger    *slog.Logger
	initial   time.Duration
	max       time.Duration
	connected atomic.Bool
}

// Option configures a Layer.
type Option func(*Layer)

// WithReconnect sets the first and the largest reconnect delay.
func WithReconnect(initial, max time.Duration) Option {
	return func(l *Layer) {
		l.initial = initial
		l.max = max
	}
}

// WithLogger sets the layer logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Layer) {
		if log != nil {
			l.logger = log
		}
	}
}

// NewLayer creates a realtime layer.
func NewLayer(feed ports.RealtimeFeed, sink Sink, opts ...Option) *Layer {
	l := &Layer{
		feed:    feed,
		sink:    sink,
		logger:  logging.NewNop(),
		initial: 500 * time.Millisecond,
		max:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Connected reports whether a subscription is currently live.
func (l *Layer) Connected() bool { return l.connected.Load() }

// Start runs the layer in the background. The returned stop function cancels
// the subscription and waits for the goroutine to exit.
func (l *Layer) Start(ctx context.Context, id domain.DeploymentID) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Run(ctx, id)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// Run subscribes and forwards deltas until ctx ends.
func (l *Layer) Run(ctx context.Context, id domain.DeploymentID) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.initial
	b.MaxInterval = l.max
	b.MaxElapsedTime = 0
	b.Reset()

	defer l.setConnected(false)
	for {
		ch, err := l.feed.Subscribe(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("realtime subscribe failed", "deployment", id, "error", err)
		} else {
			l.setConnected(true)
			b.Reset()
			for delta := range ch {
				l.sink.ApplyRealtime(delta)
			}
			l.setConnected(false)
			if ctx.Err() != nil {
				return
			}
			l.logger.Info("realtime feed dropped, reconnecting", "deployment", id)
		}

		t := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (l *Layer) setConnected(v bool) {
	if l.connected.Swap(v) != v {
		l.sink.SetRealtimeConnected(v)
	}
}
