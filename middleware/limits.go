package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mcpforge/mcp-server/protocol"
)

// Size presets for SizeLimit.
const (
	KB = 1024
	MB = 1024 * KB
)

// Timeout bounds each request by d. A handler that returns
// context.DeadlineExceeded after the deadline passed yields an internal
// error naming the method.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			resp, err := next(ctx, req)
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return nil, protocol.NewInternalError(fmt.Sprintf("%s timed out after %s", req.Method, d))
			}
			return resp, err
		}
	}
}

// SizeLimit rejects requests whose params exceed maxBytes.
func SizeLimit(maxBytes int64, logger Logger) Middleware {
	if logger == nil {
		logger = NopLogger{}
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if size := int64(len(req.Params)); size > maxBytes {
				logger.Warn("request size limit exceeded",
					F("method", req.Method),
					F("size", size),
					F("max", maxBytes),
				)
				return nil, protocol.NewInvalidRequest(
					fmt.Sprintf("request size %d exceeds limit of %d bytes", size, maxBytes))
			}
			return next(ctx, req)
		}
	}
}
