// ABOUTME: Routes tool calls to registered handlers with argument validation.
// ABOUTME: Caches read-only replies unless a tool opts out, invalidates on mutation and audits mutating calls.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/2389/plex-mcp-server/internal/cache"
	"github.com/2389/plex-mcp-server/internal/envelope"
	"github.com/2389/plex-mcp-server/internal/store"
	"github.com/2389/plex-mcp-server/internal/tier"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// ErrInvalidArguments indicates the arguments do not match the tool's input schema.
var ErrInvalidArguments = errors.New("invalid arguments")

// DefaultTimeout is the default timeout for tool execution.
const DefaultTimeout = 60 * time.Second

// AuditLog records mutating tool calls. *store.SQLiteStore implements it.
type AuditLog interface {
	RecordToolCall(ctx context.Context, c *store.ToolCall) error
}

// Result is the rendered reply of a tool call.
type Result struct {
	Output json.RawMessage
	Cached bool
}

// Router dispatches tool calls to builtin handlers.
type Router struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration
	cache    cache.Cache
	audit    AuditLog

	mu      sync.Mutex
	schemas map[*BuiltinTool]*gojsonschema.Schema
}

// RouterConfig contains configuration options for the Router. Cache and
// Audit are optional.
type RouterConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Timeout  time.Duration
	Cache    cache.Cache
	Audit    AuditLog
}

// NewRouter creates a new Router with the given configuration. A negative
// timeout disables the per-call deadline.
func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Router{
		registry: cfg.Registry,
		logger:   logger,
		timeout:  timeout,
		cache:    cfg.Cache,
		audit:    cfg.Audit,
		schemas:  make(map[*BuiltinTool]*gojsonschema.Schema),
	}
}

type sessionKey struct{}

// WithSessionID tags ctx with the MCP session a call arrived on.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session tagged by WithSessionID.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}

// Call runs the named tool. It returns ErrToolNotFound for names absent from
// the registry and ErrInvalidArguments when args fail schema validation.
// Domain failures are reported inside the rendered envelope, not as errors.
func (r *Router) Call(ctx context.Context, name string, args json.RawMessage) (*Result, error) {
	tool := r.registry.GetBuiltinTool(name)
	if tool == nil {
		r.logger.Debug("tool not found in registry", "tool_name", name)
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	args = normalizeArgs(args)
	if err := r.validate(tool, args); err != nil {
		return nil, err
	}

	def := tool.Definition
	readOnly := def.Tier == tier.Read

	var key string
	if readOnly && !def.NoCache && r.cache != nil {
		key = cache.Key(name, args)
		if out, ok, err := r.cache.Get(ctx, key); err != nil {
			r.logger.Warn("cache lookup failed", "tool_name", name, "error", err)
		} else if ok {
			r.logger.Debug("cache hit", "tool_name", name)
			return &Result{Output: out, Cached: true}, nil
		}
	}

	r.logger.Info("→ dispatching to builtin", "tool_name", name, "tier", def.Tier.String())

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := tool.Handler(callCtx, args)
	elapsed := time.Since(start)
	if err != nil {
		r.logger.Warn("builtin tool error", "tool_name", name, "error", err)
		out = mustRender(envelope.Errorf("Error executing %s: %v", name, err))
	}
	status, message := envelope.Summarize(out)

	r.logger.Info("← builtin responded",
		"tool_name", name,
		"status", status,
		"duration", elapsed,
	)

	if readOnly {
		if key != "" && status == envelope.StatusSuccess {
			if err := r.cache.Set(ctx, key, out); err != nil {
				r.logger.Warn("cache store failed", "tool_name", name, "error", err)
			}
		}
		return &Result{Output: out}, nil
	}

	if r.cache != nil {
		if err := r.cache.Invalidate(ctx); err != nil {
			r.logger.Warn("cache invalidation failed", "tool_name", name, "error", err)
		}
	}
	if r.audit != nil {
		call := &store.ToolCall{
			Tool:       name,
			Tier:       def.Tier.String(),
			Arguments:  args,
			Status:     status,
			Message:    message,
			DurationMS: elapsed.Milliseconds(),
			SessionID:  SessionID(ctx),
		}
		// a cancelled request must still leave its audit record
		if err := r.audit.RecordToolCall(context.WithoutCancel(ctx), call); err != nil {
			r.logger.Error("failed to record tool call", "tool_name", name, "error", err)
		}
	}
	return &Result{Output: out}, nil
}

// HasTool checks if a tool with the given name is registered.
func (r *Router) HasTool(name string) bool {
	return r.registry.IsBuiltin(name)
}

// GetToolDefinition returns the definition of a tool, or nil if not found.
func (r *Router) GetToolDefinition(name string) *ToolDefinition {
	if tool := r.registry.GetBuiltinTool(name); tool != nil {
		return tool.Definition
	}
	return nil
}

// validate checks args against the tool's input schema. Compiled schemas are
// kept per tool.
func (r *Router) validate(tool *BuiltinTool, args json.RawMessage) error {
	if len(tool.Definition.InputSchema) == 0 {
		return nil
	}

	r.mu.Lock()
	schema, ok := r.schemas[tool]
	if !ok {
		var err error
		schema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(tool.Definition.InputSchema))
		if err != nil {
			r.mu.Unlock()
			r.logger.Error("invalid input schema", "tool_name", tool.Definition.Name, "error", err)
			return nil
		}
		r.schemas[tool] = schema
	}
	r.mu.Unlock()

	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidArguments, strings.Join(msgs, "; "))
	}
	return nil
}

// normalizeArgs maps absent arguments to {} and drops null-valued keys, which
// clients send for optional parameters they leave unset. Anything that is not
// a JSON object is returned as is for validation to reject.
func normalizeArgs(args json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage(`{}`)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(args, &fields); err != nil || fields == nil {
		return args
	}
	dropped := false
	for k, v := range fields {
		if string(v) == "null" {
			delete(fields, k)
			dropped = true
		}
	}
	if !dropped {
		return args
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return args
	}
	return out
}

func mustRender(env envelope.Envelope) json.RawMessage {
	data, err := env.Marshal()
	if err != nil {
		return json.RawMessage(`{"status":"error"}`)
	}
	return data
}
