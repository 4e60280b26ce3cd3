package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/server"
	"github.com/mcpforge/mcp-server/transport"
)

// TestClient sends JSON-RPC requests straight to a handler.
type TestClient struct {
	t       testing.TB
	handler transport.Handler
	meta    protocol.RequestMeta
	sender  transport.NotificationSender
	ctx     context.Context
	id      atomic.Int64
}

// NewTestClient creates a client for srv.
func NewTestClient(t testing.TB, srv *server.Server) *TestClient {
	return NewTestClientWithHandler(t, srv)
}

// NewTestClientWithHandler creates a client for any handler, such as a
// server wrapped in extra middleware.
func NewTestClientWithHandler(t testing.TB, handler transport.Handler) *TestClient {
	t.Helper()
	return &TestClient{
		t:       t,
		handler: handler,
		meta:    protocol.RequestMeta{protocol.MetaTransport: "test"},
		ctx:     context.Background(),
	}
}

// WithMeta returns a copy of the client that sends key=value as request
// metadata, like an HTTP header.
func (c *TestClient) WithMeta(key, value string) *TestClient {
	clone := &TestClient{t: c.t, handler: c.handler, sender: c.sender, ctx: c.ctx, meta: maps.Clone(c.meta)}
	clone.meta[key] = value
	return clone
}

// WithBearer returns a copy of the client that authenticates with token.
func (c *TestClient) WithBearer(token string) *TestClient {
	return c.WithMeta(protocol.MetaAuthorization, "Bearer "+token)
}

// WithSender returns a copy of the client whose requests carry sender as
// their per-connection notification channel.
func (c *TestClient) WithSender(sender transport.NotificationSender) *TestClient {
	clone := c.WithMeta(protocol.MetaTransport, c.meta[protocol.MetaTransport])
	clone.sender = sender
	return clone
}

// WithContext returns a copy of the client that sends requests under ctx.
func (c *TestClient) WithContext(ctx context.Context) *TestClient {
	clone := c.WithMeta(protocol.MetaTransport, c.meta[protocol.MetaTransport])
	clone.ctx = ctx
	return clone
}

// Send dispatches a request and returns the response decoded from JSON.
func (c *TestClient) Send(method string, params any) *protocol.Response {
	c.t.Helper()
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      json.RawMessage(strconv.FormatInt(c.id.Add(1), 10)),
		Method:  method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(c.t, err, "marshal params")
		req.Params = raw
	}
	return c.dispatch(req)
}

// Notify sends a notification. Notifications have no response.
func (c *TestClient) Notify(method string, params any) {
	c.t.Helper()
	req := &protocol.Request{JSONRPC: protocol.JSONRPCVersion, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(c.t, err, "marshal params")
		req.Params = raw
	}
	c.dispatch(req)
}

func (c *TestClient) dispatch(req *protocol.Request) *protocol.Response {
	c.t.Helper()
	ctx := protocol.ContextWithRequestMeta(c.ctx, maps.Clone(c.meta))
	if c.sender != nil {
		ctx = transport.ContextWithNotificationSender(ctx, c.sender)
	}
	resp := transport.Dispatch(ctx, c.handler, req)
	if resp == nil {
		return nil
	}

	raw, err := json.Marshal(resp)
	require.NoError(c.t, err, "marshal response")
	var decoded struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *protocol.Error `json:"error"`
	}
	require.NoError(c.t, json.Unmarshal(raw, &decoded), "unmarshal response")
	out := &protocol.Response{JSONRPC: decoded.JSONRPC, ID: decoded.ID, Error: decoded.Error}
	if len(decoded.Result) > 0 {
		out.Result = decoded.Result
	}
	return out
}

// Do sends a request and decodes its result into out. A JSON-RPC error is
// returned as *protocol.Error.
func (c *TestClient) Do(method string, params, out any) error {
	c.t.Helper()
	resp := c.Send(method, params)
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil {
		return nil
	}
	raw, _ := resp.Result.(json.RawMessage)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Initialize performs the handshake and sends notifications/initialized.
func (c *TestClient) Initialize() (*server.InitializeResult, error) {
	var res server.InitializeResult
	err := c.Do(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"clientInfo":      map[string]any{"name": "testutil", "version": "0"},
		"capabilities":    map[string]any{},
	}, &res)
	if err != nil {
		return nil, err
	}
	c.Notify(protocol.MethodInitialized, nil)
	return &res, nil
}

// Ping sends ping.
func (c *TestClient) Ping() error {
	return c.Do(protocol.MethodPing, nil, nil)
}

// ListTools returns tools/list.
func (c *TestClient) ListTools() ([]server.ToolInfo, error) {
	var res struct {
		Tools []server.ToolInfo `json:"tools"`
	}
	err := c.Do(protocol.MethodToolsList, nil, &res)
	return res.Tools, err
}

// CallTool invokes a tool.
func (c *TestClient) CallTool(name string, args any) (*server.ToolResult, error) {
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	var res server.ToolResult
	if err := c.Do(protocol.MethodToolsCall, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CallToolText invokes a tool and joins its text content. A result marked
// IsError is returned as an error.
func (c *TestClient) CallToolText(name string, args any) (string, error) {
	res, err := c.CallTool(name, args)
	if err != nil {
		return "", err
	}
	text := contentText(res.Content)
	if res.IsError {
		return "", fmt.Errorf("tool %s: %s", name, text)
	}
	return text, nil
}

func contentText(content []server.Content) string {
	var parts []string
	for _, ct := range content {
		if ct.Type == "text" {
			parts = append(parts, ct.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ListResources returns resources/list.
func (c *TestClient) ListResources() ([]server.ResourceInfo, error) {
	var res struct {
		Resources []server.ResourceInfo `json:"resources"`
	}
	err := c.Do(protocol.MethodResourcesList, nil, &res)
	return res.Resources, err
}

// ListResourceTemplates returns resources/templates/list.
func (c *TestClient) ListResourceTemplates() ([]server.ResourceTemplateInfo, error) {
	var res struct {
		Templates []server.ResourceTemplateInfo `json:"resourceTemplates"`
	}
	err := c.Do(protocol.MethodResourcesTemplatesList, nil, &res)
	return res.Templates, err
}

// ReadResource reads uri.
func (c *TestClient) ReadResource(uri string) (*server.ReadResourceResult, error) {
	var res server.ReadResourceResult
	if err := c.Do(protocol.MethodResourcesRead, map[string]any{"uri": uri}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReadResourceText reads uri and returns the text of its first content.
func (c *TestClient) ReadResourceText(uri string) (string, error) {
	res, err := c.ReadResource(uri)
	if err != nil {
		return "", err
	}
	if len(res.Contents) == 0 {
		return "", fmt.Errorf("resource %s has no contents", uri)
	}
	return res.Contents[0].Text, nil
}

// Subscribe follows uri.
func (c *TestClient) Subscribe(uri string) error {
	return c.Do(protocol.MethodResourcesSubscribe, map[string]any{"uri": uri}, nil)
}

// Unsubscribe stops following uri.
func (c *TestClient) Unsubscribe(uri string) error {
	return c.Do(protocol.MethodResourcesUnsubscribe, map[string]any{"uri": uri}, nil)
}

// ListPrompts returns prompts/list.
func (c *TestClient) ListPrompts() ([]server.PromptInfo, error) {
	var res struct {
		Prompts []server.PromptInfo `json:"prompts"`
	}
	err := c.Do(protocol.MethodPromptsList, nil, &res)
	return res.Prompts, err
}

// GetPrompt renders a prompt.
func (c *TestClient) GetPrompt(name string, args map[string]string) (*server.PromptResult, error) {
	var res server.PromptResult
	params := map[string]any{"name": name, "arguments": args}
	if err := c.Do(protocol.MethodPromptsGet, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Complete asks for completions of argument argName at ref.
func (c *TestClient) Complete(ref server.CompletionRef, argName, value string) (*server.CompletionResult, error) {
	var res struct {
		Completion server.CompletionResult `json:"completion"`
	}
	params := map[string]any{
		"ref":      ref,
		"argument": map[string]string{"name": argName, "value": value},
	}
	if err := c.Do(protocol.MethodCompletionComplete, params, &res); err != nil {
		return nil, err
	}
	return &res.Completion, nil
}

// SetLogLevel sends logging/setLevel.
func (c *TestClient) SetLogLevel(level server.LogLevel) error {
	return c.Do(protocol.MethodLoggingSetLevel, map[string]any{"level": level}, nil)
}
