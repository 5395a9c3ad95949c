package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// Client is a ToolGateway and RealtimeFeed speaking to a remote Server.
type Client struct {
	base   string
	http   *http.Client
	dialer *websocket.Dialer
	user   string
	logger *slog.Logger
}

var (
	_ ports.ToolGateway  = (*Client)(nil)
	_ ports.RealtimeFeed = (*Client)(nil)
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.http = c }
}

// WithUser sets the user sent when the request context carries none.
func WithUser(id string) ClientOption {
	return func(cl *Client) { cl.user = id }
}

// WithClientLogger sets the client logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 15 * time.Second},
		dialer: websocket.DefaultDialer,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) userOf(ctx context.Context) string {
	if u := domain.UserFrom(ctx); u != domain.AnonymousUser {
		return u
	}
	if c.user != "" {
		return c.user
	}
	return domain.AnonymousUser
}

// LoadTool implements ports.ToolGateway.
func (c *Client) LoadTool(ctx context.Context, toolID string, deploymentID domain.DeploymentID) (*domain.LoadResponse, error) {
	u := c.base + "/tools/" + url.PathEscape(toolID)
	if deploymentID != "" {
		u += "?deploymentId=" + url.QueryEscape(string(deploymentID))
	}
	var out domain.LoadResponse
	if err := c.do(ctx, "load", http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveState implements ports.ToolGateway.
func (c *Client) SaveState(ctx context.Context, req domain.SaveStateRequest) error {
	if req.UserID != "" {
		ctx = domain.WithUser(ctx, req.UserID)
	}
	u := c.base + "/tools/state/" + url.PathEscape(string(req.DeploymentID))
	return c.do(ctx, "save", http.MethodPut, u, req, nil)
}

// Execute implements ports.ToolGateway.
func (c *Client) Execute(ctx context.Context, req domain.ExecuteRequest) (*domain.ExecuteResponse, error) {
	if req.UserID != "" {
		ctx = domain.WithUser(ctx, req.UserID)
	}
	var out domain.ExecuteResponse
	if err := c.do(ctx, "execute", http.MethodPost, c.base+"/tools/execute", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, u string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(UserHeader, c.userOf(ctx))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 300 {
		var e domain.ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return errorOf(op, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Subscribe implements ports.RealtimeFeed over the websocket endpoint.
// The channel closes when ctx ends or the connection drops.
func (c *Client) Subscribe(ctx context.Context, id domain.DeploymentID) (<-chan *domain.SharedStateDelta, error) {
	u, err := url.Parse(c.base + "/tools/realtime/" + url.PathEscape(string(id)))
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	header := http.Header{}
	header.Set(UserHeader, c.userOf(ctx))

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		te := &domain.TransportError{Op: "subscribe", Err: err}
		if resp != nil {
			te.StatusCode = resp.StatusCode
		}
		return nil, te
	}

	out := make(chan *domain.SharedStateDelta, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			var delta domain.SharedStateDelta
			if err := conn.ReadJSON(&delta); err != nil {
				if ctx.Err() == nil {
					c.logger.Debug("realtime connection lost", "deployment", id, "error", err)
				}
				return
			}
			select {
			case out <- &delta:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
