package domain

// LoadResponse is the boundary answer to a tool load.
// UserState and SharedState are nil when the deployment has not been initialized.
type LoadResponse struct {
	Tool        ToolDefinition `json:"tool"`
	UserState   UserState      `json:"userState,omitempty"`
	SharedState *SharedState   `json:"sharedState,omitempty"`
}

// SaveStateRequest persists one user's state for a deployment.
type SaveStateRequest struct {
	DeploymentID DeploymentID `json:"-"`
	ToolID       string       `json:"toolId"`
	SpaceID      string       `json:"spaceId,omitempty"`
	UserID       string       `json:"-"`
	State        UserState    `json:"state"`
}

// ExecuteRequest asks the boundary to run one element action.
type ExecuteRequest struct {
	ToolID       string         `json:"toolId"`
	DeploymentID DeploymentID   `json:"deploymentId"`
	ElementID    string         `json:"elementId"`
	Action       string         `json:"action"`
	Data         map[string]any `json:"data,omitempty"`
	SpaceID      string         `json:"spaceId,omitempty"`
	UserID       string         `json:"-"`
}

// ExecuteResponse is the boundary answer to an action.
// State, when present, is merged into the caller's user state.
type ExecuteResponse struct {
	Result           any       `json:"result"`
	State            UserState `json:"state,omitempty"`
	CascadedElements []string  `json:"cascadedElements,omitempty"`
	Version          int64     `json:"version,omitempty"`
}

// ErrorResponse is the error body of a failed boundary call.
type ErrorResponse struct {
	Error string `json:"error"`
}
