package server

import (
	"context"
	"encoding/json"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/transport"
)

// defaultSubscriber is the subscription owner for transports without
// sessions, such as stdio.
const defaultSubscriber = "default"

// HandleRequest implements transport.Handler. The request runs through the
// configured middleware chain before it is routed.
func (s *Server) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	s.mu.RLock()
	mw := append([]Middleware(nil), s.middleware...)
	s.mu.RUnlock()

	h := HandlerFunc(s.route)
	if len(mw) > 0 {
		h = Chain(mw...)(h)
	}
	return h(ctx, req)
}

func (s *Server) route(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return s.handleInitialize(req)
	case protocol.MethodInitialized:
		return nil, nil
	case protocol.MethodPing:
		return protocol.NewResponse(req.ID, struct{}{}), nil
	case protocol.MethodToolsList:
		return protocol.NewResponse(req.ID, map[string]any{"tools": s.GetTools()}), nil
	case protocol.MethodToolsCall:
		return s.handleToolsCall(ctx, req)
	case protocol.MethodResourcesList:
		return protocol.NewResponse(req.ID, map[string]any{"resources": s.GetResources()}), nil
	case protocol.MethodResourcesTemplatesList:
		return protocol.NewResponse(req.ID, map[string]any{"resourceTemplates": s.ListResourceTemplates()}), nil
	case protocol.MethodResourcesRead:
		return s.handleResourcesRead(ctx, req)
	case protocol.MethodResourcesSubscribe:
		return s.handleSubscribe(ctx, req, true)
	case protocol.MethodResourcesUnsubscribe:
		return s.handleSubscribe(ctx, req, false)
	case protocol.MethodPromptsList:
		return protocol.NewResponse(req.ID, map[string]any{"prompts": s.GetPrompts()}), nil
	case protocol.MethodPromptsGet:
		return s.handlePromptsGet(ctx, req)
	case protocol.MethodCompletionComplete:
		return s.handleComplete(ctx, req)
	case protocol.MethodLoggingSetLevel:
		return s.handleSetLevel(req)
	case protocol.MethodCancelled:
		return s.handleCancelled(req)
	default:
		return nil, protocol.NewMethodNotFound(req.Method)
	}
}

// decodeParams unmarshals request params into v. Missing params decode as
// an empty object.
func decodeParams(req *protocol.Request, v any) error {
	if len(req.Params) == 0 || string(req.Params) == "null" {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return protocol.InvalidParamsf("invalid params for %s: %v", req.Method, err)
	}
	return nil
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Info               `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

func (s *Server) handleInitialize(req *protocol.Request) (*protocol.Response, error) {
	info := s.Info()
	return protocol.NewResponse(req.ID, InitializeResult{
		ProtocolVersion: protocol.MCPVersion,
		Capabilities:    s.serverCapabilities(),
		ServerInfo:      info,
		Instructions:    info.Instructions,
	}), nil
}

func (s *Server) handleToolsCall(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, protocol.NewInvalidParams("tool name is required")
	}

	if token := ExtractProgressToken(req.Params); token != "" {
		var sender transport.NotificationSender = s
		if ts := transport.NotificationSenderFromContext(ctx); ts != nil {
			sender = ts
		}
		ctx = ContextWithProgress(ctx, NewProgressReporter(token, sender))
	}

	ctx, done := s.cancellation.Track(ctx, req.ID)
	defer done()

	result, err := s.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, err
	}
	return protocol.NewResponse(req.ID, result), nil
}

func (s *Server) handleResourcesRead(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params SubscribeRequest
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if params.URI == "" {
		return nil, protocol.NewInvalidParams("resource uri is required")
	}
	result, err := s.ReadResource(ctx, params.URI)
	if err != nil {
		return nil, err
	}
	return protocol.NewResponse(req.ID, result), nil
}

func (s *Server) handleSubscribe(ctx context.Context, req *protocol.Request, subscribe bool) (*protocol.Response, error) {
	var params SubscribeRequest
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if params.URI == "" {
		return nil, protocol.NewInvalidParams("resource uri is required")
	}
	client := protocol.GetRequestMeta(ctx, transport.SessionHeader)
	if client == "" {
		client = defaultSubscriber
	}
	if !subscribe {
		s.subscriptions.Unsubscribe(client, params.URI)
		return protocol.NewResponse(req.ID, struct{}{}), nil
	}
	if s.FindResourceForURI(params.URI) == nil {
		return nil, protocol.NewResourceNotFound("resource " + params.URI + " not found")
	}
	s.subscriptions.Subscribe(client, params.URI)
	return protocol.NewResponse(req.ID, struct{}{}), nil
}

func (s *Server) handlePromptsGet(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, protocol.NewInvalidParams("prompt name is required")
	}
	result, err := s.RenderPrompt(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, err
	}
	return protocol.NewResponse(req.ID, result), nil
}

// CompleteRequest is the payload of completion/complete.
type CompleteRequest struct {
	Ref      CompletionRef      `json:"ref"`
	Argument CompletionArgument `json:"argument"`
}

func (s *Server) handleComplete(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params CompleteRequest
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	result, err := s.GetCompletions(ctx, params.Ref, params.Argument)
	if err != nil {
		return nil, err
	}
	return protocol.NewResponse(req.ID, map[string]any{"completion": result}), nil
}

func (s *Server) handleSetLevel(req *protocol.Request) (*protocol.Response, error) {
	var params SetLevelRequest
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	level, err := ParseLogLevel(string(params.Level))
	if err != nil {
		return nil, protocol.NewInvalidParams(err.Error())
	}
	s.SetLogLevel(level)
	return protocol.NewResponse(req.ID, struct{}{}), nil
}

func (s *Server) handleCancelled(req *protocol.Request) (*protocol.Response, error) {
	var params CancelledNotification
	if err := decodeParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.RequestID) > 0 {
		s.cancellation.Cancel(params.RequestID)
	}
	return nil, nil
}
