package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/campushive/hivelab/internal/compiler"
	"github.com/campushive/hivelab/internal/logging"
	"github.com/campushive/hivelab/internal/validator"
	"github.com/campushive/hivelab/pkg/domain"
	"github.com/campushive/hivelab/pkg/ports"
)

// KindsURI is the resource listing the element catalog.
const KindsURI = "hivelab://kinds"

// DesignResponse is the structured answer of the design-time tools.
type DesignResponse struct {
	Composition *domain.ToolComposition `json:"composition" jsonschema_description:"The candidate composition after decoding or repair, null when nothing was found"`
	Result      *validator.Result       `json:"result,omitempty" jsonschema_description:"Validation errors and warnings for the composition"`
}

// Server exposes composition validation, repair and extraction to model
// clients over MCP. With a catalog and a gateway it can also read tools and
// execute actions.
type Server struct {
	validator *validator.Validator
	parser    *compiler.Parser
	catalog   ports.ToolCatalog
	gateway   ports.ToolGateway
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog enables the list_tools and get_tool tools.
func WithCatalog(c ports.ToolCatalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithGateway enables the execute_action tool.
func WithGateway(g ports.ToolGateway) Option {
	return func(s *Server) { s.gateway = g }
}

// WithValidator overrides the validator.
func WithValidator(v *validator.Validator) Option {
	return func(s *Server) { s.validator = v }
}

// WithParser overrides the output parser.
func WithParser(p *compiler.Parser) Option {
	return func(s *Server) {
		if p != nil {
			s.parser = p
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

// NewServer creates an MCP server named hivelab at version.
func NewServer(version string, opts ...Option) *Server {
	s := &Server{
		parser: compiler.NewParser(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = validator.New(nil)
	}
	s.mcpServer = server.NewMCPServer("hivelab-mcp", version)
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))
	mux := http.NewServeMux()
	mux.Handle("/sse", sse.SSEHandler())
	mux.Handle("/message", sse.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		errs <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("validate_composition",
		mcp.WithDescription("Validate a tool composition JSON against the element catalog. Returns errors and warnings."),
		mcp.WithString("composition", mcp.Required(), mcp.Description("The composition as a JSON object string")),
		mcp.WithOutputSchema[DesignResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("sanitize_composition",
		mcp.WithDescription("Repair a composition: unique ids, clamped geometry, dropped dangling connections, defaults."),
		mcp.WithString("composition", mcp.Required(), mcp.Description("The composition as a JSON object string")),
		mcp.WithOutputSchema[DesignResponse](),
	), mcp.NewStructuredToolHandler(s.handleSanitize))

	s.mcpServer.AddTool(mcp.NewTool("parse_output",
		mcp.WithDescription("Extract a composition from free-form generator output (plain JSON, fenced block or embedded object)."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw generator output")),
		mcp.WithOutputSchema[DesignResponse](),
	), mcp.NewStructuredToolHandler(s.handleParse))

	s.mcpServer.AddTool(mcp.NewTool("list_element_kinds",
		mcp.WithDescription("List the element kinds with their ports and required config fields."),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(s.kinds())
	})

	if s.catalog != nil {
		s.mcpServer.AddTool(mcp.NewTool("list_tools",
			mcp.WithDescription("List the ids of stored tool definitions."),
		), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			ids, err := s.catalog.List(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
			}
			return jsonResult(ids)
		})
		s.mcpServer.AddTool(mcp.NewTool("get_tool",
			mcp.WithDescription("Get a stored tool definition."),
			mcp.WithString("tool_id", mcp.Required(), mcp.Description("Tool id")),
		), s.handleGetTool)
	}

	if s.gateway != nil {
		s.mcpServer.AddTool(mcp.NewTool("execute_action",
			mcp.WithDescription("Execute an element action in a deployed tool."),
			mcp.WithString("tool_id", mcp.Required(), mcp.Description("Tool id")),
			mcp.WithString("deployment_id", mcp.Required(), mcp.Description("Deployment id, e.g. space:<spaceId>_<placement>")),
			mcp.WithString("element_id", mcp.Required(), mcp.Description("Instance id of the element")),
			mcp.WithString("action", mcp.Required(), mcp.Description("Action name, e.g. vote")),
			mcp.WithString("data", mcp.Description("JSON object payload")),
			mcp.WithString("user_id", mcp.Description("Acting user id")),
		), s.handleExecute)
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(KindsURI, "Element catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.kinds())
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: KindsURI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}

func (s *Server) kinds() []domain.ElementKind {
	reg := s.validator.Registry()
	out := make([]domain.ElementKind, 0, len(reg.Kinds()))
	for _, k := range reg.Kinds() {
		kind, _ := reg.Lookup(k)
		out = append(out, kind)
	}
	return out
}

func (s *Server) handleValidate(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (DesignResponse, error) {
	raw, _ := args["composition"].(string)
	res := s.validator.Validate([]byte(raw))
	return DesignResponse{Composition: res.Sanitized, Result: &res}, nil
}

func (s *Server) handleSanitize(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (DesignResponse, error) {
	raw, _ := args["composition"].(string)
	comp, res := s.validator.Repair([]byte(raw))
	return DesignResponse{Composition: &comp, Result: &res}, nil
}

func (s *Server) handleParse(_ context.Context, _ mcp.CallToolRequest, args map[string]interface{}) (DesignResponse, error) {
	text, _ := args["text"].(string)
	comp := s.parser.Parse(text)
	if comp == nil {
		s.logger.Debug("no composition found in generator output", "size", len(text))
		return DesignResponse{}, nil
	}
	res := s.validator.Validate(comp)
	return DesignResponse{Composition: comp, Result: &res}, nil
}

func (s *Server) handleGetTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("tool_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	def, err := s.catalog.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(def)
}

func (s *Server) handleExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var missing error
	get := func(key string) string {
		v, err := req.RequireString(key)
		if err != nil && missing == nil {
			missing = err
		}
		return v
	}
	exec := domain.ExecuteRequest{
		ToolID:       get("tool_id"),
		DeploymentID: domain.DeploymentID(get("deployment_id")),
		ElementID:    get("element_id"),
		Action:       get("action"),
		UserID:       req.GetString("user_id", domain.AnonymousUser),
	}
	if missing != nil {
		return mcp.NewToolResultError(missing.Error()), nil
	}
	if data := req.GetString("data", ""); data != "" {
		if err := json.Unmarshal([]byte(data), &exec.Data); err != nil {
			return mcp.NewToolResultError("data must be a JSON object: " + err.Error()), nil
		}
	}
	exec.SpaceID = exec.DeploymentID.SpaceID()

	resp, err := s.gateway.Execute(domain.WithUser(ctx, exec.UserID), exec)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("execute failed: %v", err)), nil
	}
	return jsonResult(resp)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
