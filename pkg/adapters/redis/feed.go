package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/domain"
)

// Feed implements ports.Realtime over Redis pub/sub so deltas reach clients
// connected to any replica.
type Feed struct {
	client *backend.Client
	prefix string
	logger *slog.Logger
}

// NewFeed creates a pub/sub feed. A nil logger discards logs.
func NewFeed(client *backend.Client, prefix string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Feed{client: client, prefix: prefix, logger: logger}
}

func (f *Feed) channel(id domain.DeploymentID) string {
	return f.prefix + "realtime:" + string(id)
}

// Publish broadcasts delta on the deployment's channel.
func (f *Feed) Publish(ctx context.Context, delta *domain.SharedStateDelta) error {
	payload, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("failed to encode delta: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(delta.DeploymentID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish delta: %w", err)
	}
	return nil
}

// Subscribe returns once the subscription is confirmed by the server.
func (f *Feed) Subscribe(ctx context.Context, id domain.DeploymentID) (<-chan *domain.SharedStateDelta, error) {
	sub := f.client.Subscribe(ctx, f.channel(id))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, &domain.TransportError{Op: "subscribe", Err: err}
	}

	out := make(chan *domain.SharedStateDelta, 16)
	msgs := sub.Channel()
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var delta domain.SharedStateDelta
				if err := json.Unmarshal([]byte(msg.Payload), &delta); err != nil {
					f.logger.Warn("dropping undecodable delta", "deployment", id, "error", err)
					continue
				}
				select {
				case out <- &delta:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
