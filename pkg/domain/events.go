package domain

import (
	"context"
	"time"
)

// ActionEvent describes one executed action.
type ActionEvent struct {
	ToolID           string
	DeploymentID     DeploymentID
	ElementID        string
	Action           string
	Duration         time.Duration
	Err              error
	CascadedElements []string
}

// SaveEvent describes one persistence attempt of user state.
type SaveEvent struct {
	DeploymentID DeploymentID
	Attempt      int
	Duration     time.Duration
	Err          error
}

// CascadeEvent describes one cascade propagation.
type CascadeEvent struct {
	DeploymentID  DeploymentID
	Origin        string
	Affected      []string
	DepthExceeded bool
}

// RuntimeHooks defines callbacks for runtime observability.
// Every hook is optional.
type RuntimeHooks struct {
	OnLoad    func(ctx context.Context, toolID string, deploymentID DeploymentID, err error)
	OnAction  func(ctx context.Context, e *ActionEvent)
	OnSave    func(ctx context.Context, e *SaveEvent)
	OnCascade func(ctx context.Context, e *CascadeEvent)
	OnPush    func(ctx context.Context, delta *SharedStateDelta)
}
