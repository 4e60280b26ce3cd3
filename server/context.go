package server

import (
	"context"
	"maps"

	"github.com/mcpforge/mcp-server/auth"
	"github.com/mcpforge/mcp-server/middleware"
	"github.com/mcpforge/mcp-server/protocol"
)

// Well-known tool context keys.
const (
	ContextUser      = "user"
	ContextRequestID = "requestId"
)

// ToolContext is the key-value bag handed to every tool invocation. It
// starts as a copy of the server's shared context and carries the
// authenticated user and request id of the current call.
type ToolContext map[string]any

// User returns the authenticated user, or nil.
func (c ToolContext) User() *auth.User {
	u, _ := c[ContextUser].(*auth.User)
	return u
}

// RequestID returns the request id, or "".
func (c ToolContext) RequestID() string {
	id, _ := c[ContextRequestID].(string)
	return id
}

type toolContextKey struct{}

// ToolContextFrom returns the tool context of the current invocation. It
// returns an empty context outside a tool call.
func ToolContextFrom(ctx context.Context) ToolContext {
	if tc, ok := ctx.Value(toolContextKey{}).(ToolContext); ok {
		return tc
	}
	return ToolContext{}
}

// SetContext shallow-merges partial into the shared context: top-level keys
// are overwritten, nested values are not merged.
func (s *Server) SetContext(partial map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.context, partial)
}

// GetContext returns a copy of the shared context. Mutating the returned
// map does not affect the server.
func (s *Server) GetContext() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.context)
}

// invocationContext snapshots the shared context and overlays the caller's
// identity so concurrent calls never observe each other's user.
func (s *Server) invocationContext(ctx context.Context) context.Context {
	tc := ToolContext(s.GetContext())
	if tc == nil {
		tc = ToolContext{}
	}
	if u := auth.UserFromContext(ctx); u != nil {
		tc[ContextUser] = u
	}
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		tc[ContextRequestID] = id
	} else if id := protocol.GetRequestMeta(ctx, protocol.MetaRequestID); id != "" {
		tc[ContextRequestID] = id
	}
	return context.WithValue(ctx, toolContextKey{}, tc)
}
