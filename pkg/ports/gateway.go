package ports

import (
	"context"

	"github.com/campushive/hivelab/pkg/domain"
)

// ToolGateway is the client side of the execution boundary.
// Implementations classify failures: domain.ErrToolNotFound is terminal,
// *domain.TransportError is transient and *domain.ExecutionError carries the
// boundary's error body.
type ToolGateway interface {
	// LoadTool fetches the definition and, when deploymentID is set, the caller's states.
	LoadTool(ctx context.Context, toolID string, deploymentID domain.DeploymentID) (*domain.LoadResponse, error)

	// SaveState persists the caller's user state.
	SaveState(ctx context.Context, req domain.SaveStateRequest) error

	// Execute runs one element action. It must honor ctx cancellation.
	Execute(ctx context.Context, req domain.ExecuteRequest) (*domain.ExecuteResponse, error)
}
