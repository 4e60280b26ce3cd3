package server

import "github.com/mcpforge/mcp-server/middleware"

// HandlerFunc is the signature for request handlers.
type HandlerFunc = middleware.HandlerFunc

// Middleware wraps a handler with additional behavior.
type Middleware = middleware.Middleware

// Chain composes middleware in order, executing first middleware first.
func Chain(mw ...Middleware) Middleware {
	return middleware.Chain(mw...)
}
