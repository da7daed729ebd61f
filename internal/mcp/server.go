// ABOUTME: Transport-neutral MCP engine: initialize, ping, tools/list and tools/call.
// ABOUTME: SSE, Streamable HTTP and stdio front ends all dispatch through Server.dispatch.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/plex-mcp-server/internal/auth"
	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/packs"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// supportedProtocolVersions lists the MCP revisions the server speaks.
var supportedProtocolVersions = map[string]bool{
	"2024-11-05": true,
	"2025-03-26": true,
	"2025-06-18": true,
	"2025-11-25": true,
}

// latestProtocolVersion is offered to clients asking for an unknown revision.
const latestProtocolVersion = "2025-11-25"

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// DefaultKeepAlive is the interval between SSE comment pings.
const DefaultKeepAlive = 15 * time.Second

// Config holds configuration for the MCP server.
type Config struct {
	Registry  *packs.Registry
	Router    *packs.Router
	Logger    *slog.Logger
	Name      string
	Version   string
	KeepAlive time.Duration
}

// Server implements the MCP protocol over the registered tools.
type Server struct {
	registry  *packs.Registry
	router    *packs.Router
	logger    *slog.Logger
	name      string
	version   string
	keepAlive time.Duration
	sessions  *sessionStore
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "plex-mcp-server"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	return &Server{
		registry:  cfg.Registry,
		router:    cfg.Router,
		logger:    logger,
		name:      name,
		version:   version,
		keepAlive: keepAlive,
		sessions:  newSessionStore(),
	}, nil
}

// SessionCount returns the number of open HTTP sessions.
func (s *Server) SessionCount() int {
	return s.sessions.len()
}

// negotiateVersion echoes the client's revision when supported.
func negotiateVersion(requested string) string {
	if supportedProtocolVersions[requested] {
		return requested
	}
	return latestProtocolVersion
}

// dispatch handles one JSON-RPC message. It returns nil for notifications.
func (s *Server) dispatch(ctx context.Context, sess *mcpSession, req *JSONRPCRequest) *JSONRPCResponse {
	if req.JSONRPC != "2.0" {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req.ID, JSONRPCInvalidRequest, "invalid JSON-RPC version")
	}

	s.logger.Debug("MCP request",
		"method", req.Method,
		"is_notification", req.IsNotification(),
		"session_id", sess.id,
	)

	if req.IsNotification() {
		if !strings.HasPrefix(req.Method, "notifications/") {
			s.logger.Warn("received notification for non-notification method", "method", req.Method)
		}
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(sess, req)
	case "ping":
		return resultResponse(req.ID, map[string]any{})
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, sess, req)
	default:
		return errorResponse(req.ID, JSONRPCMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) handleInitialize(sess *mcpSession, req *JSONRPCRequest) *JSONRPCResponse {
	var params MCPInitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params")
		}
	}
	version := negotiateVersion(params.ProtocolVersion)
	sess.setClient(version, params.ClientInfo.Name)

	s.logger.Info("MCP session initialized",
		"session_id", sess.id,
		"protocol_version", version,
		"client", params.ClientInfo.Name,
	)

	return resultResponse(req.ID, map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{"listChanged": false},
		},
		"serverInfo": map[string]any{
			"name":    s.name,
			"version": s.version,
		},
	})
}

func (s *Server) handleToolsList(req *JSONRPCRequest) *JSONRPCResponse {
	tools := s.registry.Tools()
	result := MCPListToolsResult{Tools: make([]MCPToolInfo, len(tools))}
	for i, tool := range tools {
		def := tool.Definition
		result.Tools[i] = MCPToolInfo{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
			Annotations: &MCPToolAnnotation{
				ReadOnlyHint:    def.Tier == tier.Read,
				DestructiveHint: def.Tier == tier.Delete,
			},
		}
	}
	s.logger.Debug("tools/list", "count", len(tools))
	return resultResponse(req.ID, result)
}

func (s *Server) handleToolsCall(ctx context.Context, sess *mcpSession, req *JSONRPCRequest) *JSONRPCResponse {
	var params MCPCallToolParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, JSONRPCInvalidParams, "invalid params")
		}
	}
	if params.Name == "" {
		return errorResponse(req.ID, JSONRPCInvalidParams, "tool name is required")
	}

	requestID := uuid.New().String()
	s.logger.Debug("tools/call",
		"tool_name", params.Name,
		"request_id", requestID,
		"principal", auth.PrincipalFrom(ctx),
	)

	res, err := s.router.Call(packs.WithSessionID(ctx, sess.id), params.Name, params.Arguments)
	if err != nil {
		return s.toolError(req.ID, params.Name, requestID, err)
	}

	s.logger.Debug("tools/call complete",
		"tool_name", params.Name,
		"request_id", requestID,
		"cached", res.Cached,
	)
	return resultResponse(req.ID, MCPCallToolResult{
		Content: []MCPContent{{Type: "text", Text: string(res.Output)}},
	})
}

// toolError maps dispatch failures. Invalid arguments are reported to the
// model as an error envelope so it can correct the call; everything else is a
// protocol error.
func (s *Server) toolError(id json.RawMessage, toolName, requestID string, err error) *JSONRPCResponse {
	s.logger.Warn("tool execution failed",
		"tool_name", toolName,
		"request_id", requestID,
		"error", err,
	)

	switch {
	case errors.Is(err, packs.ErrInvalidArguments):
		text, merr := envelope.Errorf("Error calling %s: %v", toolName, err).Marshal()
		if merr != nil {
			text = []byte(`{"status":"error"}`)
		}
		return resultResponse(id, MCPCallToolResult{
			Content: []MCPContent{{Type: "text", Text: string(text)}},
			IsError: true,
		})
	case errors.Is(err, packs.ErrToolNotFound):
		return errorResponse(id, JSONRPCInvalidParams, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return errorResponse(id, JSONRPCInternalError, "tool execution timed out")
	case errors.Is(err, context.Canceled):
		return errorResponse(id, JSONRPCInternalError, "request cancelled")
	default:
		return errorResponse(id, JSONRPCInternalError, "tool execution failed")
	}
}
