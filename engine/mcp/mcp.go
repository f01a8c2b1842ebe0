// Package mcp implements the stdio JSON-RPC client lifecycle: connect,
// schema-cached call_tool/read_resource with parameter pre-validation and an
// optional response cache, disconnect. Transport is
// github.com/mark3labs/mcp-go's stdio client; this package layers the
// schema cache, validation, and caching spec.md requires on top.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nika/nika/engine/core"
	"github.com/nika/nika/engine/event"
)

// State names a Client's connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

// Config describes one externally-launched MCP server.
type Config struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	Cwd     string
}

// responseCacheSize bounds the optional per-client tool-response cache.
const responseCacheSize = 256

// Client is one MCP server connection: its lifecycle state, schema cache,
// and optional response cache.
type Client struct {
	mu      sync.Mutex
	cfg     Config
	state   State
	raw     *mcpclient.Client
	schemas map[string]*schemaEntry // keyed by tool name
	cache   *lru.Cache[string, any]
	emitter event.Emitter

	mock      bool
	mockTools map[string]mockTool
}

// New builds a disconnected Client for cfg, emitting lifecycle events to
// emitter (event.NoopEmitter{} if nil events are not wanted).
func New(cfg Config, emitter event.Emitter) *Client {
	cache, _ := lru.New[string, any](responseCacheSize)
	if emitter == nil {
		emitter = event.NoopEmitter{}
	}
	return &Client{
		cfg:     cfg,
		state:   Disconnected,
		schemas: make(map[string]*schemaEntry),
		cache:   cache,
		emitter: emitter,
	}
}

// State reports the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect spawns the child process, performs the initialize handshake, lists
// its tools, and compiles+caches each tool's input schema.
func (c *Client) Connect(ctx context.Context) error {
	if c.mock {
		return nil
	}
	c.mu.Lock()
	c.state = Connecting
	c.mu.Unlock()

	env := make([]string, 0, len(c.cfg.Env))
	for k, v := range c.cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	raw, err := mcpclient.NewStdioMCPClient(c.cfg.Command, env, c.cfg.Args...)
	if err != nil {
		c.setState(Disconnected)
		c.emitter.Emit(event.MCPError(c.cfg.Name, err.Error()))
		return core.NewError(err, core.CodeMcpStartError, map[string]any{"server": c.cfg.Name})
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "nika", Version: "0.1.0"}
	if _, err := raw.Initialize(ctx, initReq); err != nil {
		c.setState(Disconnected)
		c.emitter.Emit(event.MCPError(c.cfg.Name, err.Error()))
		return core.NewError(err, core.CodeMcpProtocolError, map[string]any{"server": c.cfg.Name})
	}

	toolsResult, err := raw.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.setState(Disconnected)
		c.emitter.Emit(event.MCPError(c.cfg.Name, err.Error()))
		return core.NewError(err, core.CodeMcpProtocolError, map[string]any{"server": c.cfg.Name})
	}

	schemas := make(map[string]*schemaEntry, len(toolsResult.Tools))
	names := make([]string, 0, len(toolsResult.Tools))
	for _, tool := range toolsResult.Tools {
		names = append(names, tool.Name)
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			continue
		}
		entry, err := compileSchema(raw)
		if err != nil {
			continue
		}
		schemas[tool.Name] = entry
	}

	c.mu.Lock()
	c.raw = raw
	c.schemas = schemas
	c.state = Connected
	c.mu.Unlock()

	c.emitter.Emit(event.MCPConnected(c.cfg.Name, names))
	return nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// CallTool invokes tool with params, pre-validating against the cached
// schema (if any). The response text is JSON-parsed for downstream binding
// consumers when possible, else kept as a string.
func (c *Client) CallTool(ctx context.Context, tool string, params map[string]any) (any, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}

	if c.mock {
		out, ok := c.mockTools[tool]
		if !ok {
			return nil, core.NewErrorf(core.CodeMcpToolError, map[string]any{"tool": tool}, "mock tool %q not registered", tool)
		}
		return out.result, nil
	}

	c.mu.Lock()
	entry, hasSchema := c.schemas[tool]
	c.mu.Unlock()
	if hasSchema {
		if diags := validateParams(entry, params); len(diags) > 0 {
			messages := make([]string, 0, len(diags))
			for _, d := range diags {
				messages = append(messages, d.String())
			}
			return nil, core.NewErrorf(
				core.CodeMcpValidationFailed,
				map[string]any{"tool": tool, "errors": messages},
				"parameter validation failed for tool %q: %v", tool, messages,
			)
		}
	}

	cacheKey := tool + ":" + core.ETagFromAny(params)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = params
	result, err := c.raw.CallTool(ctx, req)
	if err != nil {
		return nil, core.NewError(err, core.CodeMcpToolError, map[string]any{"tool": tool})
	}
	if result.IsError {
		return nil, core.NewErrorf(core.CodeMcpToolError, map[string]any{"tool": tool}, "tool %q returned an error result", tool)
	}

	text := extractText(result.Content)
	value := parseOrKeepString(text)
	c.cache.Add(cacheKey, value)
	return value, nil
}

// ReadResource reads uri's content, returning the body as text.
func (c *Client) ReadResource(ctx context.Context, uri string) (any, error) {
	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	if c.mock {
		out, ok := c.mockTools[uri]
		if !ok {
			return nil, core.NewErrorf(core.CodeMcpResourceError, map[string]any{"resource": uri}, "mock resource %q not registered", uri)
		}
		return out.result, nil
	}

	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	result, err := c.raw.ReadResource(ctx, req)
	if err != nil {
		return nil, core.NewError(err, core.CodeMcpResourceError, map[string]any{"resource": uri})
	}
	var texts []string
	for _, item := range result.Contents {
		if tc, ok := item.(mcp.TextResourceContents); ok {
			texts = append(texts, tc.Text)
		}
	}
	combined := ""
	for i, t := range texts {
		if i > 0 {
			combined += "\n"
		}
		combined += t
	}
	return parseOrKeepString(combined), nil
}

// Disconnect best-effort kills the child process and marks the client
// Disconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.setState(Disconnecting)
	defer c.setState(Disconnected)
	if c.mock || c.raw == nil {
		return nil
	}
	if err := c.raw.Close(); err != nil {
		return core.NewError(err, core.CodeMcpDisconnectError, map[string]any{"server": c.cfg.Name})
	}
	return nil
}

func (c *Client) requireConnected() error {
	if c.mock {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connected {
		return core.NewErrorf(core.CodeMcpNotConnected, map[string]any{"server": c.cfg.Name}, "mcp server %q is not connected", c.cfg.Name)
	}
	return nil
}

func extractText(content []mcp.Content) string {
	for _, item := range content {
		if tc, ok := item.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func parseOrKeepString(text string) any {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed
	}
	return text
}
