package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/campushive/hivelab/internal/cascade"
	"github.com/campushive/hivelab/internal/realtime"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// ErrClosed is returned by operations on a closed Manager.
var ErrClosed = errors.New("runtime manager closed")

// closeSaveTimeout bounds the fire-and-forget save issued by Close.
const closeSaveTimeout = 5 * time.Second

// ExecuteOutcome is the result of ExecuteAction.
type ExecuteOutcome struct {
	Result           any
	State            domain.UserState
	CascadedElements []string
	// Superseded is set when a newer call for the same element and action
	// replaced this one. Nothing was applied.
	Superseded bool
}

type call struct {
	cancel context.CancelFunc
}

// Manager is the per-deployment state controller of one client.
// All methods are safe for concurrent use. State mutations are synchronous;
// persistence is debounced and never runs two saves at once.
type Manager struct {
	gateway   ports.ToolGateway
	opts      Options
	hooks     domain.RuntimeHooks
	onCascade func([]string)
	userID    string
	logger    *slog.Logger
	feed      ports.RealtimeFeed
	layerOpts []realtime.Option

	saver *autosaver
	base  context.Context
	stop  context.CancelFunc

	mu           sync.Mutex
	status       Status
	toolID       string
	deploymentID domain.DeploymentID
	tool         *domain.ToolDefinition
	user         domain.UserState
	loadedUser   domain.UserState
	shared       domain.SharedState
	executing    int
	saving       bool
	dirty        bool
	synced       bool
	mutations    uint64
	err          error
	saveErr      error
	connected    bool
	closed       bool
	inflight     map[string]*call
	stopLayer    func()

	subMu   sync.Mutex
	subs    map[int]func(View)
	nextSub int
}

// New creates an idle Manager.
func New(gateway ports.ToolGateway, opts ...Option) *Manager {
	m := &Manager{
		gateway:  gateway,
		opts:     DefaultOptions(),
		logger:   defaultLogger(),
		status:   StatusIdle,
		user:     domain.UserState{},
		shared:   domain.NewSharedState(),
		synced:   true,
		inflight: make(map[string]*call),
		subs:     make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.base, m.stop = context.WithCancel(context.Background())
	m.saver = newAutosaver(m.opts.AutoSaveDelay, m.persist)
	return m
}

// Options returns the effective tunables.
func (m *Manager) Options() Options { return m.opts }

// Load fetches the tool and, when deploymentID is set, the caller's states.
// Transient failures are retried. On failure the manager returns to idle and
// the error is both returned and recorded in the view.
func (m *Manager) Load(ctx context.Context, toolID string, deploymentID domain.DeploymentID) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.status = StatusLoading
	m.toolID = toolID
	m.deploymentID = deploymentID
	m.err = nil
	m.cancelInflightLocked()
	stopLayer := m.stopLayer
	m.stopLayer = nil
	m.mu.Unlock()
	m.saver.cancel()
	if stopLayer != nil {
		stopLayer()
	}
	m.publish()

	ctx = domain.WithUser(ctx, m.userID)
	var resp *domain.LoadResponse
	err := retry(ctx, m.opts.RetryAttempts, m.opts.RetryDelay, func(attempt int) error {
		var err error
		resp, err = m.gateway.LoadTool(ctx, toolID, deploymentID)
		if err != nil {
			m.logger.Debug("load attempt failed", "tool", toolID, "attempt", attempt, "error", err)
		}
		return err
	})
	if err == nil && resp == nil {
		err = fmt.Errorf("%w: empty load response", domain.ErrToolNotFound)
	}
	if m.hooks.OnLoad != nil {
		m.hooks.OnLoad(ctx, toolID, deploymentID, err)
	}

	m.mu.Lock()
	if err != nil {
		m.status = StatusIdle
		m.err = err
		m.mu.Unlock()
		m.publish()
		return err
	}
	tool := resp.Tool
	tool.Composition = tool.Composition.Clone()
	normalizeElements(&tool.Composition)
	m.tool = &tool
	m.user = resp.UserState.Clone()
	m.loadedUser = m.user.Clone()
	if resp.SharedState != nil {
		m.shared = resp.SharedState.Clone()
	} else {
		m.shared = domain.NewSharedState()
	}
	m.status = StatusReady
	m.dirty = false
	m.synced = true
	m.saveErr = nil
	m.mu.Unlock()

	m.logger.Debug("tool loaded", "tool", toolID, "deployment", deploymentID)
	m.startLayer(deploymentID)
	m.publish()
	return nil
}

// startLayer subscribes the manager to the realtime feed of deploymentID.
func (m *Manager) startLayer(deploymentID domain.DeploymentID) {
	if m.feed == nil || deploymentID == "" {
		return
	}
	opts := append([]realtime.Option{realtime.WithLogger(m.logger)}, m.layerOpts...)
	stop := realtime.NewLayer(m.feed, m, opts...).Start(m.base, deploymentID)

	m.mu.Lock()
	if m.closed || m.deploymentID != deploymentID || m.stopLayer != nil {
		m.mu.Unlock()
		stop()
		return
	}
	m.stopLayer = stop
	m.mu.Unlock()
}

// cancelInflightLocked cancels every running execute. Their results are
// reported as superseded and never applied.
func (m *Manager) cancelInflightLocked() {
	for key, c := range m.inflight {
		c.cancel()
		delete(m.inflight, key)
	}
}

// normalizeElements gives id-less elements a deterministic id and an empty config.
func normalizeElements(c *domain.ToolComposition) {
	for i := range c.Elements {
		el := &c.Elements[i]
		if el.InstanceID == "" {
			el.InstanceID = fmt.Sprintf("%s_%d", el.Kind, i)
		}
		if el.Config == nil {
			el.Config = map[string]any{}
		}
	}
}

// Reload discards in-memory state and loads again.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	toolID, dep := m.toolID, m.deploymentID
	m.mu.Unlock()
	if toolID == "" {
		return domain.ErrNotLoaded
	}
	m.saver.cancel()
	return m.Load(ctx, toolID, dep)
}

// ExecuteAction sends an element action to the boundary. A newer call for the
// same element and action cancels this one, which then returns an outcome
// with Superseded set and a nil error. Failures leave state untouched and are
// never retried.
func (m *Manager) ExecuteAction(ctx context.Context, elementID, action string, payload map[string]any) (*ExecuteOutcome, error) {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if _, ok := m.tool.Composition.Element(elementID); !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownElement, elementID)
	}
	key := elementID + "\x00" + action
	if prev, ok := m.inflight[key]; ok {
		prev.cancel()
	}
	callCtx, cancel := context.WithCancel(ctx)
	me := &call{cancel: cancel}
	m.inflight[key] = me
	m.executing++
	req := domain.ExecuteRequest{
		ToolID:       m.toolID,
		DeploymentID: m.deploymentID,
		ElementID:    elementID,
		Action:       action,
		Data:         domain.CloneMap(payload),
		SpaceID:      m.deploymentID.SpaceID(),
		UserID:       m.userID,
	}
	m.mu.Unlock()
	m.publish()
	defer cancel()

	start := time.Now()
	resp, err := m.gateway.Execute(callCtx, req)

	m.mu.Lock()
	m.executing--
	if m.inflight[key] != me {
		m.mu.Unlock()
		m.publish()
		m.logger.Debug("action superseded", "element", elementID, "action", action)
		return &ExecuteOutcome{Superseded: true}, nil
	}
	delete(m.inflight, key)

	event := &domain.ActionEvent{
		ToolID:       req.ToolID,
		DeploymentID: req.DeploymentID,
		ElementID:    elementID,
		Action:       action,
		Duration:     time.Since(start),
		Err:          err,
	}
	if err == nil && resp == nil {
		err = errors.New("empty execute response")
		event.Err = err
	}
	if err != nil {
		m.err = err
		m.mu.Unlock()
		m.fireAction(ctx, event)
		m.publish()
		return nil, err
	}

	m.err = nil
	if len(resp.State) > 0 {
		m.user.Merge(resp.State)
		m.markDirtyLocked()
	}
	if resp.Version > m.shared.Version {
		m.shared.Version = resp.Version
	}
	cascaded := boundCascade(resp.CascadedElements, m.opts.MaxCascadeDepth)
	event.CascadedElements = cascaded
	m.mu.Unlock()

	if len(resp.State) > 0 {
		m.saver.schedule()
	}
	m.fireAction(ctx, event)
	if len(cascaded) > 0 && m.hooks.OnCascade != nil {
		m.hooks.OnCascade(ctx, &domain.CascadeEvent{
			DeploymentID:  req.DeploymentID,
			Origin:        elementID,
			Affected:      cascaded,
			DepthExceeded: len(cascaded) < len(resp.CascadedElements),
		})
	}
	cascade.Notify(m.onCascade, cascaded)
	m.publish()

	return &ExecuteOutcome{
		Result:           resp.Result,
		State:            resp.State.Clone(),
		CascadedElements: cascaded,
	}, nil
}

// boundCascade de-duplicates a reported cascade and caps it at depth × 20
// entries, the most a composition of bounded size can reach in depth hops.
func boundCascade(ids []string, depth int) []string {
	if len(ids) == 0 {
		return nil
	}
	limit := depth * domain.MaxElements
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (m *Manager) fireAction(ctx context.Context, e *domain.ActionEvent) {
	if m.hooks.OnAction != nil {
		m.hooks.OnAction(ctx, e)
	}
}

// UpdateState merges partial into the user state and schedules a save.
func (m *Manager) UpdateState(partial map[string]any) error {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.user.Merge(partial)
	m.markDirtyLocked()
	m.mu.Unlock()
	m.saver.schedule()
	m.publish()
	return nil
}

// SetState replaces the user state and schedules a save.
func (m *Manager) SetState(full domain.UserState) error {
	m.mu.Lock()
	if err := m.readyLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.user = full.Clone()
	m.markDirtyLocked()
	m.mu.Unlock()
	m.saver.schedule()
	m.publish()
	return nil
}

// Reset restores the last loaded user state, clears errors and drops any
// pending save.
func (m *Manager) Reset() {
	m.saver.cancel()
	m.mu.Lock()
	m.user = m.loadedUser.Clone()
	m.err = nil
	m.saveErr = nil
	m.dirty = false
	m.synced = true
	m.mutations++
	m.mu.Unlock()
	m.publish()
}

func (m *Manager) markDirtyLocked() {
	m.mutations++
	m.dirty = true
	m.synced = false
}

func (m *Manager) readyLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.status != StatusReady || m.tool == nil {
		return domain.ErrNotLoaded
	}
	return nil
}

func (m *Manager) saveRequestLocked() domain.SaveStateRequest {
	return domain.SaveStateRequest{
		DeploymentID: m.deploymentID,
		ToolID:       m.toolID,
		SpaceID:      m.deploymentID.SpaceID(),
		UserID:       m.userID,
		State:        m.user.Clone(),
	}
}

// persist is the autosaver's save. It always sends the latest state.
func (m *Manager) persist() {
	m.mu.Lock()
	if m.closed || m.status != StatusReady || m.deploymentID == "" {
		m.mu.Unlock()
		return
	}
	req := m.saveRequestLocked()
	seq := m.mutations
	m.saving = true
	m.mu.Unlock()
	m.publish()

	start := time.Now()
	attempts := 0
	err := retry(m.base, m.opts.RetryAttempts, m.opts.RetryDelay, func(attempt int) error {
		attempts = attempt
		return m.gateway.SaveState(m.base, req)
	})
	if m.hooks.OnSave != nil {
		m.hooks.OnSave(m.base, &domain.SaveEvent{
			DeploymentID: req.DeploymentID,
			Attempt:      attempts,
			Duration:     time.Since(start),
			Err:          err,
		})
	}

	m.mu.Lock()
	m.saving = false
	if err != nil {
		m.saveErr = err
		m.synced = false
		m.logger.Warn("saving user state failed", "deployment", req.DeploymentID, "attempts", attempts, "error", err)
	} else {
		m.saveErr = nil
		if m.mutations == seq {
			m.dirty = false
			m.synced = true
		}
	}
	m.mu.Unlock()
	m.publish()
}

// ApplyRealtime merges a pushed delta into the shared state.
// Pushes for other deployments and pushes before the first load are ignored.
func (m *Manager) ApplyRealtime(delta *domain.SharedStateDelta) {
	if delta == nil {
		return
	}
	m.mu.Lock()
	if m.status != StatusReady || (delta.DeploymentID != "" && delta.DeploymentID != m.deploymentID) {
		m.mu.Unlock()
		return
	}
	m.shared = realtime.Merge(m.shared, delta, m.opts.TimelineCap)
	m.mu.Unlock()
	if m.hooks.OnPush != nil {
		m.hooks.OnPush(m.base, delta)
	}
	m.publish()
}

// SetRealtimeConnected records the realtime connection status.
func (m *Manager) SetRealtimeConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
	m.publish()
}

// Snapshot returns a deep copy of the current state.
func (m *Manager) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := View{
		Status:            m.status,
		ToolID:            m.toolID,
		DeploymentID:      m.deploymentID,
		UserState:         m.user.Clone(),
		SharedState:       m.shared.Clone(),
		Executing:         m.executing > 0,
		Saving:            m.saving,
		Dirty:             m.dirty,
		Synced:            m.synced,
		Err:               m.err,
		SaveErr:           m.saveErr,
		RealtimeConnected: m.connected,
	}
	if m.tool != nil {
		t := *m.tool
		t.Composition = t.Composition.Clone()
		v.Tool = &t
	}
	return v
}

// Subscribe registers fn to receive a View after every change.
// fn runs on the goroutine that made the change and must not block.
func (m *Manager) Subscribe(fn func(View)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) publish() {
	m.subMu.Lock()
	if len(m.subs) == 0 {
		m.subMu.Unlock()
		return
	}
	fns := make([]func(View), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	v := m.Snapshot()
	for _, fn := range fns {
		fn(v)
	}
}

// Close cancels in-flight calls and pending saves. Dirty state is sent in a
// best-effort save that Close does not wait for.
func (m *Manager) Close() {
	pending := m.saver.cancel()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.cancelInflightLocked()
	flush := (pending || m.dirty) && m.status == StatusReady && m.deploymentID != ""
	req := m.saveRequestLocked()
	stopLayer := m.stopLayer
	m.stopLayer = nil
	m.mu.Unlock()

	m.stop()
	if stopLayer != nil {
		stopLayer()
	}
	if !flush {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeSaveTimeout)
		defer cancel()
		if err := m.gateway.SaveState(ctx, req); err != nil {
			m.logger.Debug("final save dropped", "deployment", req.DeploymentID, "error", err)
		}
	}()
}
