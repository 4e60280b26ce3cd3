package testutil

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/transport"
)

// Notification is a notification captured by RecordingTransport. Params
// hold the value after a JSON round trip.
type Notification struct {
	Method string
	Params json.RawMessage
}

// Decode unmarshals the params into v.
func (n Notification) Decode(v any) error {
	return json.Unmarshal(n.Params, v)
}

// RecordingTransport is an in-memory transport that records every
// notification the server sends.
type RecordingTransport struct {
	mu            sync.Mutex
	handler       transport.Handler
	started       bool
	notifications []Notification
	// SendErr, when set, is returned from SendNotification.
	SendErr error
}

// NewRecordingTransport returns an idle transport.
func NewRecordingTransport() *RecordingTransport {
	return &RecordingTransport{}
}

func (r *RecordingTransport) Start(_ context.Context, h transport.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
	r.started = true
	return nil
}

func (r *RecordingTransport) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return transport.ErrNotRunning
	}
	r.started = false
	return nil
}

func (r *RecordingTransport) Addr() string { return "recording" }

// Started reports whether the transport is running.
func (r *RecordingTransport) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// SendNotification implements transport.NotificationSender.
func (r *RecordingTransport) SendNotification(method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return r.SendErr
	}
	r.notifications = append(r.notifications, Notification{Method: method, Params: raw})
	return nil
}

// Notifications returns the recorded notifications for method, or all of
// them when method is "".
func (r *RecordingTransport) Notifications(method string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if method == "" {
		return slices.Clone(r.notifications)
	}
	var out []Notification
	for _, n := range r.notifications {
		if n.Method == method {
			out = append(out, n)
		}
	}
	return out
}

// Reset forgets recorded notifications.
func (r *RecordingTransport) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = nil
}

// Call dispatches req through the handler the server registered on Start.
func (r *RecordingTransport) Call(ctx context.Context, req *protocol.Request) *protocol.Response {
	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()
	if h == nil {
		return protocol.NewErrorResponse(req.ID, protocol.NewInternalError("transport not started"))
	}
	return transport.Dispatch(transport.ContextWithNotificationSender(ctx, r), h, req)
}
