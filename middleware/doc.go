// Package middleware wraps the server's dispatch of every JSON-RPC request:
//
//	srv := server.New(info, server.WithMiddleware(
//	    middleware.Recover(),
//	    middleware.RequestID(),
//	    middleware.Auth(provider),
//	    middleware.RateLimit(50, 100, middleware.WithRateLimitKey(middleware.ClientKey)),
//	    middleware.Logging(middleware.NewSlogLogger(logger)),
//	))
//
// Order matters: Chain(a, b)(h) runs a first. Auth must precede anything that
// keys on the authenticated user, such as ClientKey.
package middleware
