package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/campushive/hivelab/internal/cascade"
	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
	"github.com/campushive/hivelab/pkg/registry"
)

// Service executes element actions against persisted deployment state.
type Service struct {
	catalog   ports.ToolCatalog
	store     ports.StateStore
	publisher ports.RealtimePublisher
	elements  *registry.ElementRegistry
	actions   *registry.ActionRegistry
	cascade   *cascade.Engine
	locks     *Locks
	now       func() time.Time
	cap       int
	hooks     domain.RuntimeHooks
	logger    *slog.Logger
}

var _ ports.ToolGateway = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends a delta after every shared state change.
func WithPublisher(p ports.RealtimePublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithElements overrides the element catalog.
func WithElements(r *registry.ElementRegistry) Option {
	return func(s *Service) { s.elements = r }
}

// WithActions overrides the action handlers.
func WithActions(r *registry.ActionRegistry) Option {
	return func(s *Service) { s.actions = r }
}

// WithCascade overrides the cascade engine.
func WithCascade(e *cascade.Engine) Option {
	return func(s *Service) { s.cascade = e }
}

// WithLocks sets the writer lock table, e.g. one backed by a distributed locker.
func WithLocks(l *Locks) Option {
	return func(s *Service) { s.locks = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTimelineCap bounds the shared timeline.
func WithTimelineCap(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cap = n
		}
	}
}

// WithHooks attaches observability callbacks for executed actions, cascades
// and published deltas.
func WithHooks(h domain.RuntimeHooks) Option {
	return func(s *Service) { s.hooks = h }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service over a definition catalog and a state store.
func New(catalog ports.ToolCatalog, store ports.StateStore, opts ...Option) *Service {
	s := &Service{
		catalog: catalog,
		store:   store,
		now:     time.Now,
		cap:     domain.DefaultTimelineCap,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.elements == nil {
		s.elements = registry.Default()
	}
	if s.actions == nil {
		s.actions = registry.DefaultActions()
	}
	if s.cascade == nil {
		s.cascade = cascade.New(s.elements, cascade.WithLogger(s.logger))
	}
	if s.locks == nil {
		s.locks = NewLocks(WithLockLogger(s.logger))
	}
	return s
}

// Elements returns the element catalog in use.
func (s *Service) Elements() *registry.ElementRegistry { return s.elements }

// LoadTool returns the definition and, for a deployment, the caller's user
// state and the shared state. Uninitialized deployments carry neither.
func (s *Service) LoadTool(ctx context.Context, toolID string, deploymentID domain.DeploymentID) (*domain.LoadResponse, error) {
	def, err := s.catalog.Get(ctx, toolID)
	if err != nil {
		return nil, err
	}
	resp := &domain.LoadResponse{Tool: *def}
	if deploymentID == "" {
		return resp, nil
	}
	if err := deploymentID.Validate(); err != nil {
		return nil, err
	}

	user, err := s.store.LoadUser(ctx, deploymentID, domain.UserFrom(ctx))
	switch {
	case err == nil:
		resp.UserState = user
	case !errors.Is(err, domain.ErrStateNotFound):
		return nil, fmt.Errorf("load user state: %w", err)
	}

	shared, err := s.store.LoadShared(ctx, deploymentID)
	switch {
	case err == nil:
		resp.SharedState = shared
	case !errors.Is(err, domain.ErrStateNotFound):
		return nil, fmt.Errorf("load shared state: %w", err)
	}
	return resp, nil
}

// SaveState stores one user's state. The shared state is never written here.
func (s *Service) SaveState(ctx context.Context, req domain.SaveStateRequest) error {
	if err := req.DeploymentID.Validate(); err != nil {
		return err
	}
	if req.ToolID != "" {
		if _, err := s.catalog.Get(ctx, req.ToolID); err != nil {
			return err
		}
	}
	user := req.UserID
	if user == "" {
		user = domain.UserFrom(ctx)
	}
	state := req.State
	if state == nil {
		state = domain.UserState{}
	}
	if err := s.store.SaveUser(ctx, req.DeploymentID, user, state); err != nil {
		return fmt.Errorf("save user state: %w", err)
	}
	s.logger.Debug("user state saved", "deployment", req.DeploymentID, "user", user)
	return nil
}

// Execute runs one action. Writers of a deployment are serialized; the
// resulting delta is published after the lock is released.
func (s *Service) Execute(ctx context.Context, req domain.ExecuteRequest) (*domain.ExecuteResponse, error) {
	if err := req.DeploymentID.Validate(); err != nil {
		return nil, &domain.ExecutionError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}
	def, err := s.catalog.Get(ctx, req.ToolID)
	if err != nil {
		return nil, err
	}
	el, ok := def.Composition.Element(req.ElementID)
	if !ok {
		return nil, &domain.ExecutionError{
			StatusCode: http.StatusNotFound,
			Message:    fmt.Sprintf("%v: %s", domain.ErrUnknownElement, req.ElementID),
		}
	}
	kind, ok := s.elements.Lookup(el.Kind)
	if !ok {
		return nil, &domain.ExecutionError{StatusCode: http.StatusBadRequest, Message: "unknown element type " + el.Kind}
	}
	cfg, err := domain.DecodeConfig(el.Kind, el.Config)
	if err != nil {
		return nil, &domain.ExecutionError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	}
	user := req.UserID
	if user == "" {
		user = domain.UserFrom(ctx)
	}

	var (
		resp   *domain.ExecuteResponse
		before domain.SharedState
		after  domain.SharedState
		report cascade.Report
	)
	start := s.now()
	err = s.locks.WithLock(ctx, string(req.DeploymentID), func(ctx context.Context) error {
		shared, err := s.loadShared(ctx, req.DeploymentID)
		if err != nil {
			return err
		}
		userState, err := s.store.LoadUser(ctx, req.DeploymentID, user)
		if errors.Is(err, domain.ErrStateNotFound) {
			userState, err = domain.UserState{}, nil
		}
		if err != nil {
			return fmt.Errorf("load user state: %w", err)
		}
		before = shared.Clone()

		now := s.now()
		res, err := s.actions.Execute(ctx, &registry.ActionRequest{
			ToolID:       req.ToolID,
			DeploymentID: req.DeploymentID,
			UserID:       user,
			Element:      *el,
			Kind:         kind,
			Config:       cfg,
			Action:       req.Action,
			Data:         domain.CloneMap(req.Data),
			Shared:       &shared,
			User:         userState,
			Now:          now,
		})
		if err != nil {
			return actionError(err)
		}

		report = s.cascade.Propagate(cascade.NewGraph(&def.Composition), el.InstanceID, res.Outputs)
		for _, id := range report.Affected {
			shared.Computed[registry.CounterKey(id, "inputs")] = report.Inputs[id]
			shared.Computed[registry.CounterKey(id, "outputs")] = report.Outputs[id]
		}

		shared.Version++
		shared.LastModified = now
		shared.AppendTimeline(domain.TimelineEvent{
			ID:        uuid.NewString(),
			Type:      req.Action,
			ElementID: el.InstanceID,
			UserID:    user,
			Data:      domain.CloneMap(req.Data),
			Timestamp: now,
		}, s.cap)

		if err := s.store.SaveShared(ctx, req.DeploymentID, &shared); err != nil {
			return fmt.Errorf("save shared state: %w", err)
		}
		if len(res.UserState) > 0 {
			userState.Merge(res.UserState)
			if err := s.store.SaveUser(ctx, req.DeploymentID, user, userState); err != nil {
				return fmt.Errorf("save user state: %w", err)
			}
		}
		after = shared
		resp = &domain.ExecuteResponse{
			Result:           res.Result,
			State:            domain.UserState(domain.CloneMap(res.UserState)),
			CascadedElements: report.Affected,
			Version:          shared.Version,
		}
		return nil
	})
	event := &domain.ActionEvent{
		ToolID:       req.ToolID,
		DeploymentID: req.DeploymentID,
		ElementID:    req.ElementID,
		Action:       req.Action,
		Duration:     s.now().Sub(start),
		Err:          err,
	}
	if err != nil {
		s.logger.Debug("action failed", "deployment", req.DeploymentID, "element", req.ElementID, "action", req.Action, "error", err)
		if s.hooks.OnAction != nil {
			s.hooks.OnAction(ctx, event)
		}
		return nil, err
	}
	event.CascadedElements = resp.CascadedElements
	if s.hooks.OnAction != nil {
		s.hooks.OnAction(ctx, event)
	}
	if s.hooks.OnCascade != nil && len(report.Affected) > 0 {
		s.hooks.OnCascade(ctx, &domain.CascadeEvent{
			DeploymentID:  req.DeploymentID,
			Origin:        req.ElementID,
			Affected:      report.Affected,
			DepthExceeded: report.DepthExceeded,
		})
	}

	s.logger.Debug("action executed",
		"deployment", req.DeploymentID,
		"element", req.ElementID,
		"action", req.Action,
		"version", resp.Version,
		"cascaded", len(resp.CascadedElements),
		"duration", event.Duration,
	)
	s.publish(ctx, req.DeploymentID, &before, &after)
	return resp, nil
}

func (s *Service) loadShared(ctx context.Context, id domain.DeploymentID) (domain.SharedState, error) {
	shared, err := s.store.LoadShared(ctx, id)
	if errors.Is(err, domain.ErrStateNotFound) {
		return domain.NewSharedState(), nil
	}
	if err != nil {
		return domain.SharedState{}, fmt.Errorf("load shared state: %w", err)
	}
	return *shared, nil
}

func (s *Service) publish(ctx context.Context, id domain.DeploymentID, before, after *domain.SharedState) {
	if s.publisher == nil {
		return
	}
	delta := domain.DiffShared(id, before, after)
	if delta == nil {
		return
	}
	if err := s.publisher.Publish(ctx, delta); err != nil {
		s.logger.Warn("publishing realtime delta failed", "deployment", id, "version", delta.Version, "error", err)
		return
	}
	if s.hooks.OnPush != nil {
		s.hooks.OnPush(ctx, delta)
	}
}

// Snapshot returns the full shared state of a deployment as a snapshot delta,
// used to prime new realtime subscribers.
func (s *Service) Snapshot(ctx context.Context, id domain.DeploymentID) (*domain.SharedStateDelta, error) {
	shared, err := s.store.LoadShared(ctx, id)
	if err != nil {
		return nil, err
	}
	return domain.DiffShared(id, nil, shared), nil
}

// actionError maps handler failures to boundary errors.
func actionError(err error) error {
	switch {
	case errors.Is(err, registry.ErrUnknownAction), errors.Is(err, registry.ErrInvalidPayload):
		return &domain.ExecutionError{StatusCode: http.StatusBadRequest, Message: err.Error()}
	case errors.Is(err, registry.ErrRejected):
		return &domain.ExecutionError{StatusCode: http.StatusConflict, Message: err.Error()}
	default:
		return err
	}
}
