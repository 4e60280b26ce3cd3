package middleware

import (
	"context"

	"github.com/mcpforge/mcp-server/auth"
	"github.com/mcpforge/mcp-server/protocol"
)

// AuthOption configures Auth.
type AuthOption func(*authConfig)

type authConfig struct {
	logger       Logger
	skipMethods  map[string]bool
	errorMessage string
}

// WithAuthLogger logs authentication failures.
func WithAuthLogger(l Logger) AuthOption {
	return func(c *authConfig) { c.logger = l }
}

// WithAuthSkipMethods lets methods through unauthenticated, in addition to
// initialize, ping and notifications/initialized.
func WithAuthSkipMethods(methods ...string) AuthOption {
	return func(c *authConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// WithAuthErrorMessage overrides the message of the Unauthorized error.
func WithAuthErrorMessage(msg string) AuthOption {
	return func(c *authConfig) { c.errorMessage = msg }
}

// Auth authenticates the bearer token found in the Authorization request
// metadata and stores the user on the context for later handlers.
func Auth(provider auth.Provider, opts ...AuthOption) Middleware {
	cfg := &authConfig{
		logger: NopLogger{},
		skipMethods: map[string]bool{
			protocol.MethodInitialize:  true,
			protocol.MethodInitialized: true,
			protocol.MethodPing:        true,
		},
		errorMessage: "authentication required",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] || auth.UserFromContext(ctx) != nil {
				return next(ctx, req)
			}

			token := auth.BearerToken(protocol.GetRequestMeta(ctx, protocol.MetaAuthorization))
			user, err := provider.Authenticate(ctx, token)
			if err != nil || user == nil {
				fields := []Field{F("method", req.Method)}
				if err != nil {
					fields = append(fields, F("error", err.Error()))
				}
				cfg.logger.Warn("authentication failed", fields...)
				return nil, protocol.NewUnauthorized(cfg.errorMessage)
			}

			cfg.logger.Debug("authenticated", F("method", req.Method), F("user", user.ID))
			return next(auth.WithUser(ctx, user), req)
		}
	}
}
