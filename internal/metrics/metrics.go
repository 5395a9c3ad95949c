// Package metrics records engine activity as Prometheus collectors.
package metrics

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campushive/hivelab/pkg/domain"
)

const namespace = "hivelab"

// Collector groups the engine metrics.
type Collector struct {
	registry *prometheus.Registry

	actions     *prometheus.CounterVec
	actionTime  *prometheus.HistogramVec
	loads       *prometheus.CounterVec
	saves       *prometheus.CounterVec
	cascadeSize prometheus.Histogram
	depthHits   prometheus.Counter
	pushes      prometheus.Counter
	requests    *prometheus.CounterVec
}

// New creates a Collector on its own registry, with the Go and process
// collectors included.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Element actions executed, by action and outcome.",
		}, []string{"action", "outcome"}),
		actionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of element actions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_loads_total",
			Help:      "Tool loads, by outcome.",
		}, []string{"outcome"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_saves_total",
			Help:      "User state save attempts, by outcome.",
		}, []string{"outcome"}),
		cascadeSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_elements",
			Help:      "Elements reached by one cascade.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		depthHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_depth_exceeded_total",
			Help:      "Cascades stopped at the depth bound.",
		}),
		pushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_deltas_total",
			Help:      "Shared state deltas published or applied.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.actions, c.actionTime, c.loads, c.saves,
		c.cascadeSize, c.depthHits, c.pushes, c.requests,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Hooks returns runtime hooks feeding the collector.
func (c *Collector) Hooks() domain.RuntimeHooks {
	return domain.RuntimeHooks{
		OnLoad: func(_ context.Context, _ string, _ domain.DeploymentID, err error) {
			c.loads.WithLabelValues(outcome(err)).Inc()
		},
		OnAction: func(_ context.Context, e *domain.ActionEvent) {
			c.actions.WithLabelValues(e.Action, outcome(e.Err)).Inc()
			c.actionTime.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
		},
		OnSave: func(_ context.Context, e *domain.SaveEvent) {
			c.saves.WithLabelValues(outcome(e.Err)).Inc()
		},
		OnCascade: func(_ context.Context, e *domain.CascadeEvent) {
			c.cascadeSize.Observe(float64(len(e.Affected)))
			if e.DepthExceeded {
				c.depthHits.Inc()
			}
		},
		OnPush: func(context.Context, *domain.SharedStateDelta) {
			c.pushes.Inc()
		},
	}
}

// Middleware counts HTTP requests by method and status code.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack keeps websocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
