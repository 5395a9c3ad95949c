package runtime

import (
	"log/slog"
	"time"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/internal/realtime"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// Defaults for Options.
const (
	DefaultAutoSaveDelay   = 2000 * time.Millisecond
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 1000 * time.Millisecond
	DefaultMaxCascadeDepth = 5
)

// Options are the tunables of a Manager.
type Options struct {
	// AutoSaveDelay is the trailing-edge debounce before user state is saved.
	AutoSaveDelay time.Duration
	// RetryAttempts is the total number of load/save attempts, first one included.
	RetryAttempts int
	// RetryDelay is multiplied by the attempt number between attempts.
	RetryDelay time.Duration
	// MaxCascadeDepth bounds cascades reported by the boundary.
	MaxCascadeDepth int
	// TimelineCap bounds the merged realtime timeline.
	TimelineCap int
}

// DefaultOptions returns the stock tunables.
func DefaultOptions() Options {
	return Options{
		AutoSaveDelay:   DefaultAutoSaveDelay,
		RetryAttempts:   DefaultRetryAttempts,
		RetryDelay:      DefaultRetryDelay,
		MaxCascadeDepth: DefaultMaxCascadeDepth,
		TimelineCap:     domain.DefaultTimelineCap,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithOptions replaces every tunable at once. Zero fields keep their default.
func WithOptions(o Options) Option {
	return func(m *Manager) {
		if o.AutoSaveDelay > 0 {
			m.opts.AutoSaveDelay = o.AutoSaveDelay
		}
		if o.RetryAttempts > 0 {
			m.opts.RetryAttempts = o.RetryAttempts
		}
		if o.RetryDelay > 0 {
			m.opts.RetryDelay = o.RetryDelay
		}
		if o.MaxCascadeDepth > 0 {
			m.opts.MaxCascadeDepth = o.MaxCascadeDepth
		}
		if o.TimelineCap > 0 {
			m.opts.TimelineCap = o.TimelineCap
		}
	}
}

// WithAutoSaveDelay overrides the debounce delay.
func WithAutoSaveDelay(d time.Duration) Option {
	return func(m *Manager) { m.opts.AutoSaveDelay = d }
}

// WithRetry overrides the load/save retry policy.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(m *Manager) {
		m.opts.RetryAttempts = attempts
		m.opts.RetryDelay = delay
	}
}

// WithCascadeCallback registers the function told which elements a cascade touched.
func WithCascadeCallback(fn func(elementIDs []string)) Option {
	return func(m *Manager) { m.onCascade = fn }
}

// WithHooks attaches observability callbacks.
func WithHooks(h domain.RuntimeHooks) Option {
	return func(m *Manager) { m.hooks = h }
}

// WithUserID sets the acting user sent with every request.
func WithUserID(id string) Option {
	return func(m *Manager) { m.userID = id }
}

// WithRealtime subscribes the manager to feed for the loaded deployment.
// Pushed deltas are merged into the shared state and the view reports
// whether the subscription is live. Reload resubscribes; Close unsubscribes.
func WithRealtime(feed ports.RealtimeFeed, opts ...realtime.Option) Option {
	return func(m *Manager) {
		m.feed = feed
		m.layerOpts = opts
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func defaultLogger() *slog.Logger { return logging.NewNop() }
