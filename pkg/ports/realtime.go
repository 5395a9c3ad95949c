package ports

import (
	"context"

	"github.com/campushive/hivelab/pkg/domain"
)

// RealtimePublisher broadcasts shared-state deltas to a deployment's subscribers.
type RealtimePublisher interface {
	Publish(ctx context.Context, delta *domain.SharedStateDelta) error
}

// RealtimeFeed delivers the deltas of one deployment.
// The returned channel is closed when ctx ends or the subscription is lost;
// callers tell the two apart by checking ctx.
type RealtimeFeed interface {
	Subscribe(ctx context.Context, deploymentID domain.DeploymentID) (<-chan *domain.SharedStateDelta, error)
}

// Realtime is a backend that both publishes and subscribes.
type Realtime interface {
	RealtimePublisher
	RealtimeFeed
}
