package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campushive/hivelab/pkg/domain"
)

// Wildcard matches any kind or any action when registering handlers.
const Wildcard = "*"

var (
	// ErrUnknownAction is returned when no handler matches and no fallback is set.
	ErrUnknownAction = errors.New("unknown action")
	// ErrInvalidPayload is returned by handlers when the action data is unusable.
	ErrInvalidPayload = errors.New("invalid action payload")
	// ErrRejected is returned when an action is well-formed but not allowed (capacity, gates).
	ErrRejected = errors.New("action rejected")
)

// ActionRequest is what a handler sees. Shared and User are owned by the
// execution boundary for the duration of the call and may be mutated in place.
type ActionRequest struct {
	ToolID       string
	DeploymentID domain.DeploymentID
	UserID       string
	Element      domain.CanvasElement
	Kind         domain.ElementKind
	Config       domain.ElementConfig
	Action       string
	Data         map[string]any
	Shared       *domain.SharedState
	User         domain.UserState
	Now          time.Time
}

// ActionResult is what a handler produces.
type ActionResult struct {
	// Result is returned verbatim to the caller.
	Result any
	// UserState is the partial user state the client merges into its own.
	UserState map[string]any
	// Outputs holds the element's output ports that changed, keyed by port name.
	// They seed cascade propagation.
	Outputs map[string]any
}

// ActionHandler implements one action of one element kind.
type ActionHandler func(ctx context.Context, req *ActionRequest) (*ActionResult, error)

// ActionRegistry manages the available action handlers.
type ActionRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
	fallback ActionHandler
}

// NewActionRegistry creates an empty registry with no fallback.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		handlers: make(map[string]ActionHandler),
	}
}

// Register adds a handler for (kind, action). Either may be Wildcard.
// If a handler with the same key exists, it is overwritten.
func (r *ActionRegistry) Register(kind, action string, h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key(kind, action)] = h
}

// SetFallback sets the handler used when nothing else matches.
func (r *ActionRegistry) SetFallback(h ActionHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Resolve finds the handler for (kind, action): exact match first, then
// kind wildcard action, then wildcard kind, then the fallback.
func (r *ActionRegistry) Resolve(kind, action string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, k := range []string{key(kind, action), key(kind, Wildcard), key(Wildcard, action)} {
		if h, ok := r.handlers[k]; ok {
			return h, true
		}
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Execute resolves and runs the handler for req.
func (r *ActionRegistry) Execute(ctx context.Context, req *ActionRequest) (*ActionResult, error) {
	h, ok := r.Resolve(req.Element.Kind, req.Action)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownAction, req.Action, req.Element.Kind)
	}
	res, err := h(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &ActionResult{}
	}
	return res, nil
}

func key(kind, action string) string {
	return kind + "/" + action
}
