package middleware

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/mcpforge/mcp-server/auth"
	"github.com/mcpforge/mcp-server/protocol"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(ctx context.Context, req *protocol.Request) string

// Built-in rate limit keys.
var (
	// GlobalKey charges every request to one bucket.
	GlobalKey KeyFunc = func(context.Context, *protocol.Request) string { return "global" }
	// MethodKey keeps one bucket per JSON-RPC method.
	MethodKey KeyFunc = func(_ context.Context, req *protocol.Request) string { return req.Method }
	// ClientKey keys by authenticated user, then remote address, then transport.
	ClientKey KeyFunc = func(ctx context.Context, _ *protocol.Request) string {
		if u := auth.UserFromContext(ctx); u != nil {
			return "user:" + u.ID
		}
		if addr := protocol.GetRequestMeta(ctx, protocol.MetaRemoteAddr); addr != "" {
			return "addr:" + addr
		}
		return "transport:" + protocol.GetRequestMeta(ctx, protocol.MetaTransport)
	}
)

// RateLimitOption configures RateLimit.
type RateLimitOption func(*rateLimitConfig)

type rateLimitConfig struct {
	key    KeyFunc
	logger Logger
}

// WithRateLimitKey sets the bucket key. Defaults to GlobalKey.
func WithRateLimitKey(fn KeyFunc) RateLimitOption {
	return func(c *rateLimitConfig) { c.key = fn }
}

// WithRateLimitLogger logs rejected requests.
func WithRateLimitLogger(l Logger) RateLimitOption {
	return func(c *rateLimitConfig) { c.logger = l }
}

// RateLimit admits rate requests per second per key with bursts up to
// burst. Rejected requests fail with CodeRateLimited.
func RateLimit(rate, burst int, opts ...RateLimitOption) Middleware {
	cfg := &rateLimitConfig{key: GlobalKey, logger: NopLogger{}}
	for _, opt := range opts {
		opt(cfg)
	}

	limiter := ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    burst,
		Interval: time.Second,
	})

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			key := cfg.key(ctx, req)
			if !limiter.Allow(ctx, key) {
				cfg.logger.Warn("rate limit exceeded", F("method", req.Method), F("key", key))
				return nil, protocol.NewRateLimited("rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
