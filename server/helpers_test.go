package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/transport"
)

type sentNotification struct {
	Method string
	Params any
}

// fakeTransport records lifecycle calls and notifications.
type fakeTransport struct {
	name     string
	startErr error
	stopErr  error
	sendErr  error

	mu       sync.Mutex
	handler  transport.Handler
	started  int
	stopped  int
	notified []sentNotification
}

func (f *fakeTransport) Start(_ context.Context, h transport.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.handler = h
	f.started++
	return nil
}

func (f *fakeTransport) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return f.stopErr
}

func (f *fakeTransport) Addr() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeTransport) SendNotification(method string, params any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.notified = append(f.notified, sentNotification{Method: method, Params: params})
	return nil
}

func (f *fakeTransport) notifications(method string) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, n := range f.notified {
		if method == "" || n.Method == method {
			out = append(out, n)
		}
	}
	return out
}

// silentTransport cannot deliver notifications.
type silentTransport struct{}

func (silentTransport) Start(context.Context, transport.Handler) error { return nil }
func (silentTransport) Stop(context.Context) error                     { return nil }
func (silentTransport) Addr() string                                   { return "silent" }

func newTestServer(opts ...Option) *Server {
	return New(Info{Name: "test-server", Version: "1.0.0"}, opts...)
}

// startedServer returns a running server with one fake transport.
func startedServer(opts ...Option) (*Server, *fakeTransport) {
	srv := newTestServer(opts...)
	ft := &fakeTransport{}
	if err := srv.UseTransport(ft); err != nil {
		panic(err)
	}
	if err := srv.Start(context.Background()); err != nil {
		panic(err)
	}
	return srv, ft
}

func protocolCode(err error) int {
	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr.Code
	}
	return 0
}

func textResource(text string) ResourceHandler {
	return func(_ context.Context, uri string, _ map[string]string) (*ResourceContent, error) {
		return &ResourceContent{URI: uri, Text: text}, nil
	}
}

func noopPrompt(context.Context, map[string]string) (*PromptResult, error) {
	return &PromptResult{Messages: []PromptMessage{UserMessage("hi")}}, nil
}

func noopTool(context.Context, json.RawMessage) (*ToolResult, error) {
	return TextResult("ok"), nil
}
