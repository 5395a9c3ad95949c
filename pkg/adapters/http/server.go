package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/campushive/hivelab/internal/compiler"
	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/internal/validator"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// UserHeader carries the acting user id.
const UserHeader = "X-Hive-User"

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Snapshotter primes new realtime subscribers with the full shared state.
type Snapshotter interface {
	Snapshot(ctx context.Context, id domain.DeploymentID) (*domain.SharedStateDelta, error)
}

// Server exposes a ToolGateway over HTTP.
type Server struct {
	gateway   ports.ToolGateway
	feed      ports.RealtimeFeed
	snapshots Snapshotter
	validator *validator.Validator
	parser    *compiler.Parser
	metrics   http.Handler
	version   string
	ping      time.Duration
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithFeed enables the realtime websocket endpoint.
func WithFeed(feed ports.RealtimeFeed) Option {
	return func(s *Server) { s.feed = feed }
}

// WithSnapshots sends a snapshot as the first realtime message.
func WithSnapshots(sn Snapshotter) Option {
	return func(s *Server) { s.snapshots = sn }
}

// WithValidator overrides the validator of the design-time endpoints.
func WithValidator(v *validator.Validator) Option {
	return func(s *Server) { s.validator = v }
}

// WithParser overrides the generator output parser.
func WithParser(p *compiler.Parser) Option {
	return func(s *Server) { s.parser = p }
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithVersion sets the build version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithPingInterval sets the websocket keepalive period.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.ping = d
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a Server. Nothing is mounted until Handler is called.
func NewServer(gateway ports.ToolGateway, opts ...Option) *Server {
	s := &Server{
		gateway: gateway,
		version: "dev",
		ping:    30 * time.Second,
		logger:  logging.NewNop(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validator.New(nil)
	}
	if s.parser == nil {
		s.parser = compiler.NewParser()
	}
	return s
}

// NewHandler is shorthand for NewServer(gateway, opts...).Handler().
func NewHandler(gateway ports.ToolGateway, opts ...Option) http.Handler {
	return NewServer(gateway, opts...).Handler()
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.health)
	r.Get("/info", s.info)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(RawSpec())
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/tools", func(r chi.Router) {
		r.Post("/execute", s.execute)
		r.Put("/state/{deploymentId}", s.saveState)
		r.Get("/realtime/{deploymentId}", s.realtime)
		r.Post("/validate", s.validate)
		r.Post("/sanitize", s.sanitize)
		r.Post("/parse", s.parse)
		r.Get("/kinds", s.kinds)
		r.Get("/{toolId}", s.loadTool)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+UserHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userContext(r *http.Request) context.Context {
	return domain.WithUser(r.Context(), r.Header.Get(UserHeader))
}

func (s *Server) loadTool(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "toolId")
	dep := domain.DeploymentID(r.URL.Query().Get("deploymentId"))

	resp, err := s.gateway.LoadTool(userContext(r), toolID, dep)
	if err != nil {
		s.fail(w, "load", err)
		return
	}
	s.reply(w, http.StatusOK, resp)
}

func (s *Server) saveState(w http.ResponseWriter, r *http.Request) {
	var req domain.SaveStateRequest
	if !s.decode(w, r, "SaveStateRequest", &req) {
		return
	}
	req.DeploymentID = domain.DeploymentID(chi.URLParam(r, "deploymentId"))
	ctx := userContext(r)
	req.UserID = domain.UserFrom(ctx)

	if err := s.gateway.SaveState(ctx, req); err != nil {
		s.fail(w, "save", err)
		return
	}
	s.reply(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) {
	var req domain.ExecuteRequest
	if !s.decode(w, r, "ExecuteRequest", &req) {
		return
	}
	ctx := userContext(r)
	req.UserID = domain.UserFrom(ctx)

	resp, err := s.gateway.Execute(ctx, req)
	if err != nil {
		s.fail(w, "execute", err)
		return
	}
	s.reply(w, http.StatusOK, resp)
}

func (s *Server) validate(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.reply(w, http.StatusOK, s.validator.Validate(body))
}

func (s *Server) sanitize(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	comp, res := s.validator.Repair(body)
	s.reply(w, http.StatusOK, map[string]any{"composition": comp, "result": res})
}

func (s *Server) parse(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	comp := s.parser.Parse(string(body))
	out := map[string]any{"composition": comp}
	if comp != nil {
		out["result"] = s.validator.Validate(comp)
	}
	s.reply(w, http.StatusOK, out)
}

func (s *Server) kinds(w http.ResponseWriter, _ *http.Request) {
	reg := s.validator.Registry()
	out := make([]domain.ElementKind, 0, len(reg.Kinds()))
	for _, k := range reg.Kinds() {
		kind, _ := reg.Lookup(k)
		out = append(out, kind)
	}
	s.reply(w, http.StatusOK, out)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.reply(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) info(w http.ResponseWriter, _ *http.Request) {
	apiVersion := "unknown"
	if doc, err := Spec(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	s.reply(w, http.StatusOK, map[string]string{
		"app":         "hivelab",
		"version":     s.version,
		"api_version": apiVersion,
	})
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		s.reply(w, http.StatusRequestEntityTooLarge, domain.ErrorResponse{Error: "request body too large"})
		return nil, false
	}
	return body, true
}

// decode reads a JSON body, checks it against the named contract schema and
// unmarshals it into dst.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		s.reply(w, http.StatusBadRequest, domain.ErrorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := checkBody(schema, raw); err != nil {
		s.reply(w, http.StatusBadRequest, domain.ErrorResponse{Error: fmt.Sprintf("invalid %s: %v", schema, err)})
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		s.reply(w, http.StatusBadRequest, domain.ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusOf(err)
	if status >= 500 {
		s.logger.Error("request failed", "op", op, "error", err)
	} else {
		s.logger.Debug("request rejected", "op", op, "status", status, "error", err)
	}
	msg := err.Error()
	var ee *domain.ExecutionError
	if errors.As(err, &ee) {
		msg = ee.Message
	}
	s.reply(w, status, domain.ErrorResponse{Error: msg})
}

func (s *Server) reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}
