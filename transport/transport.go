package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mcpforge/mcp-server/protocol"
)

// Handler processes incoming MCP requests.
type Handler interface {
	HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HandlerFunc is an adapter to allow ordinary functions as handlers.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// HandleRequest calls f(ctx, req).
func (f HandlerFunc) HandleRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// Transport is a wire binding the server facade starts and stops.
type Transport interface {
	// Start begins accepting requests and returns once the transport is
	// ready. Requests keep being served after Start returns.
	Start(ctx context.Context, handler Handler) error

	// Stop shuts the transport down and waits for it to finish.
	Stop(ctx context.Context) error

	// Addr returns the transport's address description.
	Addr() string
}

// NotificationSender can send JSON-RPC notifications to clients.
type NotificationSender interface {
	SendNotification(method string, params any) error
}

// Describer is implemented by handlers that can describe their registered
// capabilities. The HTTP transport serves it on /capabilities.
type Describer interface {
	Describe() any
}

// ErrNotRunning is returned when stopping a transport that was never started.
var ErrNotRunning = errors.New("transport: not running")

type notificationSenderKey struct{}

// ContextWithNotificationSender returns a context with the notification sender attached.
func ContextWithNotificationSender(ctx context.Context, sender NotificationSender) context.Context {
	return context.WithValue(ctx, notificationSenderKey{}, sender)
}

// NotificationSenderFromContext returns the notification sender from context, or nil if none.
func NotificationSenderFromContext(ctx context.Context) NotificationSender {
	sender, _ := ctx.Value(notificationSenderKey{}).(NotificationSender)
	return sender
}

// Dispatch runs a request through handler and converts handler errors into
// an error response. It returns nil for notifications.
func Dispatch(ctx context.Context, handler Handler, req *protocol.Request) *protocol.Response {
	resp, err := handler.HandleRequest(ctx, req)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		return protocol.NewErrorResponse(req.ID, protocol.AsError(err))
	}
	return resp
}

// dispatchRaw decodes a single JSON-RPC message and dispatches it.
func dispatchRaw(ctx context.Context, handler Handler, data []byte) *protocol.Response {
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return protocol.NewErrorResponse(nil, protocol.NewParseError(err.Error()))
	}
	if req.JSONRPC != protocol.JSONRPCVersion || req.Method == "" {
		if req.IsNotification() {
			return nil
		}
		return protocol.NewErrorResponse(req.ID, protocol.NewInvalidRequest("invalid JSON-RPC request"))
	}
	return Dispatch(ctx, handler, &req)
}

func marshalNotification(method string, params any) ([]byte, error) {
	data, err := json.Marshal(protocol.NewNotification(method, params))
	if err != nil {
		return nil, fmt.Errorf("transport: encode %s: %w", method, err)
	}
	return data, nil
}

// runner turns a blocking serve function into Start/Stop semantics.
type runner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (r *runner) start(ctx context.Context, serve func(ctx context.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return errors.New("transport: already started")
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	r.done = make(chan struct{})
	r.err = nil
	done := r.done
	go func() {
		defer close(done)
		err := serve(runCtx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
	}()
	return nil
}

func (r *runner) stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if done == nil {
		return ErrNotRunning
	}
	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.err
	r.cancel, r.done = nil, nil
	return err
}

// wait blocks until the serve function returns.
func (r *runner) wait() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.done
}
