package ports

import (
	"context"

	"github.com/campushive/hivelab/pkg/domain"
)

// StateStore persists deployment state: one private UserState per
// (deployment, user) and one SharedState per deployment.
type StateStore interface {
	// LoadUser returns domain.ErrStateNotFound if nothing was saved for the user.
	LoadUser(ctx context.Context, deploymentID domain.DeploymentID, userID string) (domain.UserState, error)

	// SaveUser replaces the user's state.
	SaveUser(ctx context.Context, deploymentID domain.DeploymentID, userID string, state domain.UserState) error

	// LoadShared returns domain.ErrStateNotFound if the deployment has no shared state yet.
	LoadShared(ctx context.Context, deploymentID domain.DeploymentID) (*domain.SharedState, error)

	// SaveShared replaces the deployment's shared state.
	SaveShared(ctx context.Context, deploymentID domain.DeploymentID, state *domain.SharedState) error

	// Delete removes every state of a deployment.
	Delete(ctx context.Context, deploymentID domain.DeploymentID) error

	// List returns the deployments that have shared state.
	List(ctx context.Context) ([]domain.DeploymentID, error)
}
