package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/schema"
)

// ToolHandler executes a tool with its raw JSON arguments.
type ToolHandler func(ctx context.Context, args json.RawMessage) (*ToolResult, error)

// ToolConfig describes a tool at registration time.
type ToolConfig struct {
	Title       string
	Description string
	InputSchema *schema.Schema
	Annotations *ToolAnnotations

	// ValidateInput checks arguments against InputSchema before the
	// handler runs.
	ValidateInput bool
}

// ToolInfo is the immutable descriptor of a registered tool.
type ToolInfo struct {
	Name        string           `json:"name"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description"`
	InputSchema *schema.Schema   `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// Content is one item of tool output.
type Content struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	Data     string           `json:"data,omitempty"`
	MimeType string           `json:"mimeType,omitempty"`
	Resource *ResourceContent `json:"resource,omitempty"`
}

// ToolResult is the result of a tools/call request.
type ToolResult struct {
	Content           []Content `json:"content"`
	IsError           bool      `json:"isError,omitempty"`
	StructuredContent any       `json:"structuredContent,omitempty"`
}

// TextResult returns a result with a single text item.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult returns a result flagged as a tool-level failure. Unlike a
// handler error, it is delivered to the client as a normal result.
func ErrorResult(text string) *ToolResult {
	r := TextResult(text)
	r.IsError = true
	return r
}

// JSONResult encodes v as text content and keeps it as structured content.
func JSONResult(v any) (*ToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	r := TextResult(string(data))
	r.StructuredContent = v
	return r, nil
}

// Tool is a registered tool.
type Tool struct {
	info     ToolInfo
	validate bool
	handler  ToolHandler
}

// Info returns the tool descriptor.
func (t *Tool) Info() ToolInfo { return t.info.clone() }

func (t *Tool) call(ctx context.Context, args json.RawMessage) (*ToolResult, error) {
	if t.validate && t.info.InputSchema != nil {
		if err := t.info.InputSchema.Validate(args); err != nil {
			return nil, protocol.InvalidParamsf("input validation failed: %v", err)
		}
	}
	res, err := t.handler(ctx, args)
	if err != nil {
		return nil, protocol.WrapHandlerError(err)
	}
	if res == nil {
		res = &ToolResult{Content: []Content{}}
	}
	return res, nil
}

// RegisterTool registers a tool under a unique name. Handler errors are
// translated into protocol errors when the tool is called.
func (s *Server) RegisterTool(name string, cfg ToolConfig, h ToolHandler) error {
	if err := validateName("tool", name); err != nil {
		return err
	}
	if h == nil {
		return protocol.InvalidParamsf("tool %q has no handler", name)
	}
	in := cfg.InputSchema.Clone()
	if in == nil {
		in = schema.Object()
	}
	t := &Tool{
		info: ToolInfo{
			Name:        name,
			Title:       cfg.Title,
			Description: cfg.Description,
			InputSchema: in,
			Annotations: cfg.Annotations.clone(),
		},
		validate: cfg.ValidateInput,
		handler:  h,
	}

	s.mu.Lock()
	if _, ok := s.tools[name]; ok {
		s.mu.Unlock()
		return protocol.InvalidParamsf("tool %q is already registered", name)
	}
	s.tools[name] = t
	size, started := len(s.tools), s.started
	s.mu.Unlock()

	s.registered(KindTool, size, started)
	return nil
}

// GetTool returns the descriptor of a tool, or nil if none is registered
// under name.
func (s *Server) GetTool(name string) (*ToolInfo, error) {
	if err := validateName("tool", name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	if !ok {
		return nil, nil
	}
	info := t.info.clone()
	return &info, nil
}

// GetTools returns all tool descriptors sorted by name.
func (s *Server) GetTools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.toolsLocked()
}

func (s *Server) toolsLocked() []ToolInfo {
	out := make([]ToolInfo, 0, len(s.tools))
	for _, name := range sortedKeys(s.tools) {
		out = append(out, s.tools[name].info.clone())
	}
	return out
}

// CallTool invokes a registered tool. The handler sees a snapshot of the
// shared context through ToolContextFrom.
func (s *Server) CallTool(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error) {
	s.mu.RLock()
	t, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		return nil, protocol.InvalidParamsf("unknown tool %q", name)
	}

	start := time.Now()
	res, err := t.call(s.invocationContext(ctx), args)
	s.metrics.ToolCalled(name, err, time.Since(start))
	return res, err
}

// ToolBuilder registers a tool whose input schema is derived from the
// handler's argument type.
type ToolBuilder struct {
	server *Server
	name   string
	cfg    ToolConfig
	err    error
}

// Tool starts building a tool. Registration happens in Handler.
func (s *Server) Tool(name string) *ToolBuilder {
	return &ToolBuilder{server: s, name: name}
}

// Description sets the tool description.
func (b *ToolBuilder) Description(desc string) *ToolBuilder {
	b.cfg.Description = desc
	return b
}

// ValidateInput enables schema validation of arguments before the handler
// runs. Invalid input fails with InvalidParams.
func (b *ToolBuilder) ValidateInput() *ToolBuilder {
	b.cfg.ValidateInput = true
	return b
}

// Err returns the error from the last step of the builder.
func (b *ToolBuilder) Err() error { return b.err }

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Handler sets the tool handler and registers the tool. fn must be one of
//   - func(input T) (R, error)
//   - func(ctx context.Context, input T) (R, error)
//
// R may be *ToolResult, a string (sent as text) or any JSON-encodable value.
func (b *ToolBuilder) Handler(fn any) *ToolBuilder {
	if b.err != nil {
		return b
	}
	h, in, err := reflectToolHandler(fn)
	if err != nil {
		b.err = fmt.Errorf("tool %q: %w", b.name, err)
		return b
	}
	b.cfg.InputSchema = in
	b.err = b.server.RegisterTool(b.name, b.cfg, h)
	return b
}

func reflectToolHandler(fn any) (ToolHandler, *schema.Schema, error) {
	fnVal := reflect.ValueOf(fn)
	if fn == nil || fnVal.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("handler must be a function, got %T", fn)
	}
	fnType := fnVal.Type()

	numIn := fnType.NumIn()
	if numIn < 1 || numIn > 2 {
		return nil, nil, fmt.Errorf("handler must have 1 or 2 parameters, got %d", numIn)
	}
	hasContext := numIn == 2
	if hasContext && !fnType.In(0).Implements(contextType) {
		return nil, nil, fmt.Errorf("first parameter must be context.Context when using 2 parameters")
	}
	if fnType.NumOut() != 2 || !fnType.Out(1).Implements(errorType) {
		return nil, nil, fmt.Errorf("handler must return (result, error)")
	}

	inputType := fnType.In(numIn - 1)
	isPtr := inputType.Kind() == reflect.Ptr
	if isPtr {
		inputType = inputType.Elem()
	}
	in, err := schema.GenerateFromType(inputType)
	if err != nil {
		return nil, nil, fmt.Errorf("generate input schema: %w", err)
	}

	h := func(ctx context.Context, args json.RawMessage) (*ToolResult, error) {
		input := reflect.New(inputType)
		if len(args) > 0 && string(args) != "null" {
			if err := json.Unmarshal(args, input.Interface()); err != nil {
				return nil, protocol.InvalidParamsf("failed to parse input: %v", err)
			}
		}
		if !isPtr {
			input = input.Elem()
		}
		var callArgs []reflect.Value
		if hasContext {
			callArgs = append(callArgs, reflect.ValueOf(ctx))
		}
		out := fnVal.Call(append(callArgs, input))
		if errVal := out[1].Interface(); errVal != nil {
			return nil, errVal.(error)
		}
		return toToolResult(out[0].Interface())
	}
	return h, in, nil
}

func toToolResult(v any) (*ToolResult, error) {
	switch r := v.(type) {
	case *ToolResult:
		return r, nil
	case ToolResult:
		return &r, nil
	case string:
		return TextResult(r), nil
	case nil:
		return &ToolResult{Content: []Content{}}, nil
	default:
		return JSONResult(r)
	}
}
