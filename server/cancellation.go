package server

import (
	"context"
	"encoding/json"
	"sync"
)

// CancelledNotification is the payload of notifications/cancelled.
type CancelledNotification struct {
	RequestID json.RawMessage `json:"requestId"`
	Reason    string          `json:"reason,omitempty"`
}

// CancellationManager tracks in-flight requests so that a client can cancel
// them by id.
type CancellationManager struct {
	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

// NewCancellationManager returns an empty manager.
func NewCancellationManager() *CancellationManager {
	return &CancellationManager{inFlight: make(map[string]context.CancelFunc)}
}

// requestKey normalizes a JSON-RPC id so that "7" and 7 do not collide
// with each other but a string id matches its own cancellation.
func requestKey(id json.RawMessage) string {
	var s string
	if err := json.Unmarshal(id, &s); err == nil {
		return "s:" + s
	}
	return "n:" + string(id)
}

// Track derives a cancellable context for the request with the given id.
// The returned func releases the entry and must be called when the request
// completes.
func (m *CancellationManager) Track(ctx context.Context, id json.RawMessage) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if len(id) == 0 {
		return ctx, cancel
	}
	key := requestKey(id)

	m.mu.Lock()
	m.inFlight[key] = cancel
	m.mu.Unlock()

	return ctx, func() {
		cancel()
		m.mu.Lock()
		delete(m.inFlight, key)
		m.mu.Unlock()
	}
}

// Cancel cancels the request with the given id. It reports whether the
// request was in flight.
func (m *CancellationManager) Cancel(id json.RawMessage) bool {
	key := requestKey(id)
	m.mu.Lock()
	cancel, ok := m.inFlight[key]
	delete(m.inFlight, key)
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// ActiveRequests returns the number of tracked requests.
func (m *CancellationManager) ActiveRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}
