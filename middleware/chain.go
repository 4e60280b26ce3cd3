package middleware

import (
	"context"
	"time"

	"github.com/mcpforge/mcp-server/protocol"
)

// HandlerFunc handles one JSON-RPC request.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middleware so that Chain(a, b)(h) runs a, then b, then h.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// Stack is an ordered, appendable list of middleware.
type Stack []Middleware

// Use starts a stack.
func Use(middlewares ...Middleware) Stack {
	return Stack(middlewares)
}

// Append returns a stack with middlewares added at the end.
func (s Stack) Append(middlewares ...Middleware) Stack {
	out := make(Stack, 0, len(s)+len(middlewares))
	out = append(out, s...)
	return append(out, middlewares...)
}

// Then wraps h with every middleware in the stack.
func (s Stack) Then(h HandlerFunc) HandlerFunc {
	return Chain(s...)(h)
}

// DefaultStack is recover, request id and logging, with an optional
// per-request timeout when timeout > 0.
func DefaultStack(logger Logger, timeout time.Duration) Stack {
	s := Use(Recover(WithRecoverLogger(logger)), RequestID())
	if timeout > 0 {
		s = s.Append(Timeout(timeout))
	}
	return s.Append(Logging(logger))
}
