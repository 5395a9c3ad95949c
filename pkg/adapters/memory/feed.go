package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/domain"
)

// TopicPrefix namespaces realtime topics.
const TopicPrefix = "hivelab.realtime."

// Feed is an in-process ports.Realtime backed by a watermill go channel.
// Deltas published while a deployment has no subscriber are dropped.
type Feed struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
	buffer int
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithFeedLogger sets the logger for decode failures.
func WithFeedLogger(l *slog.Logger) FeedOption {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithFeedBuffer sets the per-subscriber channel buffer.
func WithFeedBuffer(n int) FeedOption {
	return func(f *Feed) { f.buffer = n }
}

// NewFeed creates an in-process realtime feed.
func NewFeed(opts ...FeedOption) *Feed {
	f := &Feed{logger: logging.NewNop(), buffer: 64}
	for _, opt := range opts {
		opt(f)
	}
	f.pubsub = gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: int64(f.buffer)},
		watermill.NewSlogLogger(f.logger),
	)
	return f
}

// Topic returns the topic name of a deployment.
func Topic(id domain.DeploymentID) string { return TopicPrefix + string(id) }

// Publish broadcasts delta to the subscribers of its deployment.
func (f *Feed) Publish(_ context.Context, delta *domain.SharedStateDelta) error {
	payload, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("failed to encode delta: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := f.pubsub.Publish(Topic(delta.DeploymentID), msg); err != nil {
		return fmt.Errorf("watermill publish failed: %w", err)
	}
	return nil
}

// Subscribe delivers the deltas of one deployment until ctx ends.
func (f *Feed) Subscribe(ctx context.Context, id domain.DeploymentID) (<-chan *domain.SharedStateDelta, error) {
	msgs, err := f.pubsub.Subscribe(ctx, Topic(id))
	if err != nil {
		return nil, fmt.Errorf("watermill subscribe failed: %w", err)
	}
	out := make(chan *domain.SharedStateDelta, f.buffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			var delta domain.SharedStateDelta
			if err := json.Unmarshal(msg.Payload, &delta); err != nil {
				f.logger.Warn("dropping undecodable delta", "deployment", id, "error", err)
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- &delta:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops every subscription.
func (f *Feed) Close() error {
	return f.pubsub.Close()
}
