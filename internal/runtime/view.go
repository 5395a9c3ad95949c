package runtime

import "github.com/campushive/hivelab/pkg/domain"

// Status is the lifecycle state of a Manager.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// View is an immutable snapshot of a Manager for presentation layers.
type View struct {
	Status       Status
	ToolID       string
	DeploymentID domain.DeploymentID
	Tool         *domain.ToolDefinition
	UserState    domain.UserState
	SharedState  domain.SharedState

	Executing bool
	Saving    bool
	Dirty     bool
	// Synced is false while local edits are not confirmed by the store.
	Synced bool

	// Err is the last terminal load or execute error.
	Err error
	// SaveErr is set when the last save exhausted its retries.
	SaveErr error

	RealtimeConnected bool
}
