// Package mcp is the entry point for building MCP servers.
//
// A server registers tools, resources, resource templates, prompts and
// completion handlers, then serves them over one or more transports:
//
//	srv := mcp.NewServer(mcp.ServerInfo{Name: "notes", Version: "1.0.0"})
//
//	type SearchInput struct {
//	    Query string `json:"query" jsonschema:"required"`
//	}
//
//	srv.Tool("search").
//	    Description("Search notes").
//	    Handler(func(ctx context.Context, in SearchInput) ([]string, error) {
//	        return index.Search(in.Query), nil
//	    })
//
//	mcp.ServeStdio(ctx, srv)
//
// FromConfig and Run build the server, its middleware and its transports
// from a config.Config instead.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcpforge/mcp-server/auth"
	"github.com/mcpforge/mcp-server/config"
	"github.com/mcpforge/mcp-server/metrics"
	"github.com/mcpforge/mcp-server/middleware"
	"github.com/mcpforge/mcp-server/server"
	"github.com/mcpforge/mcp-server/transport"
)

type (
	Server           = server.Server
	ServerInfo       = server.Info
	Option           = server.Option
	Middleware       = middleware.Middleware
	ToolResult       = server.ToolResult
	ToolConfig       = server.ToolConfig
	ToolContext      = server.ToolContext
	Content          = server.Content
	ResourceContent  = server.ResourceContent
	PromptResult     = server.PromptResult
	PromptMessage    = server.PromptMessage
	CompletionRef    = server.CompletionRef
	CompletionResult = server.CompletionResult
	User             = auth.User
)

var (
	NewServer           = server.New
	TextResult          = server.TextResult
	ErrorResult         = server.ErrorResult
	JSONResult          = server.JSONResult
	UserMessage         = server.UserMessage
	AssistantMessage    = server.AssistantMessage
	ToolContextFrom     = server.ToolContextFrom
	ProgressFromContext = server.ProgressFromContext
	UserFromContext     = auth.UserFromContext
)

// StopTimeout bounds how long Serve waits for transports to shut down.
var StopTimeout = 10 * time.Second

// Serve attaches transports, starts the server and blocks until ctx is
// done or a transport that exposes Done (such as stdio) finishes. It then
// stops the server.
func Serve(ctx context.Context, srv *Server, ts ...transport.Transport) error {
	if err := srv.UseTransports(ts...); err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-anyDone(srv.Transports()):
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), StopTimeout)
	defer cancel()
	return srv.Stop(stopCtx)
}

// anyDone closes when the first transport exposing Done finishes.
func anyDone(ts []transport.Transport) <-chan struct{} {
	out := make(chan struct{})
	var cases []reflect.SelectCase
	for _, t := range ts {
		if d, ok := t.(interface{ Done() <-chan struct{} }); ok {
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(d.Done())})
		}
	}
	if len(cases) == 0 {
		return out
	}
	go func() {
		reflect.Select(cases)
		close(out)
	}()
	return out
}

// ServeStdio serves srv on stdin/stdout until stdin closes or ctx is done.
func ServeStdio(ctx context.Context, srv *Server) error {
	return Serve(ctx, srv, transport.NewStdio(transport.WithStdioLogger(srv.Logger())))
}

// ServeHTTP serves srv over HTTP with SSE notifications.
func ServeHTTP(ctx context.Context, srv *Server, addr string, opts ...transport.HTTPOption) error {
	opts = append([]transport.HTTPOption{transport.WithLogger(srv.Logger())}, opts...)
	return Serve(ctx, srv, transport.NewHTTP(addr, opts...))
}

// ServeWebSocket serves srv over WebSocket.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, opts ...transport.WebSocketOption) error {
	opts = append([]transport.WebSocketOption{transport.WithWebSocketLogger(srv.Logger())}, opts...)
	return Serve(ctx, srv, transport.NewWebSocket(addr, opts...))
}

// Run builds a server from cfg, lets setup register capabilities, and
// serves it until ctx is done. Logs go to stderr.
func Run(ctx context.Context, cfg *config.Config, setup func(*Server) error) error {
	srv, err := FromConfig(ctx, cfg, os.Stderr)
	if err != nil {
		return err
	}
	if setup != nil {
		if err := setup(srv); err != nil {
			return fmt.Errorf("setup: %w", err)
		}
	}
	return Serve(ctx, srv)
}

// FromConfig builds a server with its middleware stack and transports
// attached but not started. Logs are written to logOut; stdio servers must
// not log to stdout. ctx bounds background work such as JWKS refresh.
func FromConfig(ctx context.Context, cfg *config.Config, logOut io.Writer, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logOut == nil {
		logOut = io.Discard
	}
	logger := cfg.Logging.NewLogger(logOut)
	reqLog := middleware.NewSlogLogger(logger)

	var recorder *metrics.Recorder
	if cfg.Metrics.Enabled {
		var err error
		if recorder, err = metrics.New(metrics.Config{}); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	stack := middleware.DefaultStack(reqLog, cfg.Server.RequestTimeout).
		Append(middleware.OTel(middleware.WithOTelServiceName(cfg.Server.Name)))
	if recorder != nil {
		stack = stack.Append(recorder.Middleware())
	}
	if cfg.Server.MaxRequestBytes > 0 {
		stack = stack.Append(middleware.SizeLimit(cfg.Server.MaxRequestBytes, reqLog))
	}
	provider, err := authProvider(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}
	if provider != nil {
		stack = stack.Append(middleware.Auth(provider, middleware.WithAuthLogger(reqLog)))
	}
	if cfg.RateLimit.Rate > 0 {
		stack = stack.Append(middleware.RateLimit(cfg.RateLimit.Rate, max(cfg.RateLimit.Burst, cfg.RateLimit.Rate),
			middleware.WithRateLimitKey(rateKey(cfg.RateLimit.Key)),
			middleware.WithRateLimitLogger(reqLog)))
	}

	base := []Option{
		server.WithLogger(logger),
		server.WithInstructions(cfg.Server.Instructions),
		server.WithMiddleware(stack...),
	}
	if recorder != nil {
		base = append(base, server.WithMetrics(recorder))
	}
	srv := server.New(server.Info{Name: cfg.Server.Name, Version: cfg.Server.Version}, append(base, opts...)...)

	ts, err := transports(cfg, logger, recorder)
	if err != nil {
		return nil, err
	}
	if err := srv.UseTransports(ts...); err != nil {
		return nil, err
	}
	return srv, nil
}

func authProvider(ctx context.Context, cfg config.AuthConfig) (auth.Provider, error) {
	jwtCfg := auth.JWTConfig{Issuer: cfg.Issuer, Audiences: cfg.Audience}
	switch cfg.Mode {
	case config.AuthStatic:
		users := make(map[string]auth.User, len(cfg.Tokens))
		for token, u := range cfg.Tokens {
			users[token] = auth.User{ID: u.ID, Name: u.Name, Roles: u.Roles}
		}
		return auth.NewStaticProvider(users), nil
	case config.AuthJWT:
		return auth.NewJWTProvider([]byte(cfg.JWTSecret), jwtCfg)
	case config.AuthJWKS:
		if cfg.JWKSJSON != "" {
			return auth.NewJWKSProviderFromJSON(json.RawMessage(cfg.JWKSJSON), jwtCfg)
		}
		return auth.NewJWKSProviderFromURL(ctx, cfg.JWKSURL, jwtCfg)
	}
	return nil, nil
}

func rateKey(name string) middleware.KeyFunc {
	switch name {
	case "method":
		return middleware.MethodKey
	case "client":
		return middleware.ClientKey
	}
	return middleware.GlobalKey
}

func transports(cfg *config.Config, logger *slog.Logger, recorder *metrics.Recorder) ([]transport.Transport, error) {
	t := cfg.Transports
	var out []transport.Transport

	if t.Stdio {
		out = append(out, transport.NewStdio(transport.WithStdioLogger(logger)))
	}
	if t.HTTP.Addr != "" {
		opts := []transport.HTTPOption{transport.WithLogger(logger)}
		if len(t.HTTP.AllowedOrigins) > 0 {
			cors := transport.DefaultCORSConfig()
			cors.AllowOrigins = t.HTTP.AllowedOrigins
			opts = append(opts, transport.WithCORS(cors))
		}
		if recorder != nil {
			opts = append(opts, transport.WithRoute(cfg.Metrics.Path, recorder.Handler()))
		}
		out = append(out, transport.NewHTTP(t.HTTP.Addr, opts...))
	}
	if t.WebSocket.Addr != "" {
		out = append(out, transport.NewWebSocket(t.WebSocket.Addr, transport.WithWebSocketLogger(logger)))
	}
	if t.Redis.URL != "" {
		opts, err := redis.ParseURL(t.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("transports.redis.url: %w", err)
		}
		out = append(out, transport.NewRedisRelay(transport.RedisRelayConfig{
			Client:    redis.NewClient(opts),
			KeyPrefix: t.Redis.KeyPrefix,
			Logger:    logger,
		}))
	}
	if len(out) == 0 {
		return nil, errors.New("no transports configured")
	}
	return out, nil
}
