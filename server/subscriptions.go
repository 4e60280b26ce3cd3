package server

import (
	"sort"
	"sync"
)

// SubscribeRequest is the payload of resources/subscribe and
// resources/unsubscribe.
type SubscribeRequest struct {
	URI string `json:"uri"`
}

// ResourceUpdatedNotification is the payload of notifications/resources/updated.
type ResourceUpdatedNotification struct {
	URI string `json:"uri"`
}

// SubscriptionManager records which clients follow which resource URIs.
type SubscriptionManager struct {
	mu    sync.RWMutex
	byURI map[string]map[string]struct{}
}

// NewSubscriptionManager returns an empty manager.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{byURI: make(map[string]map[string]struct{})}
}

// Subscribe records that client follows uri.
func (m *SubscriptionManager) Subscribe(client, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byURI[uri] == nil {
		m.byURI[uri] = make(map[string]struct{})
	}
	m.byURI[uri][client] = struct{}{}
}

// Unsubscribe removes one subscription.
func (m *SubscriptionManager) Unsubscribe(client, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(client, uri)
}

// UnsubscribeAll removes every subscription of client.
func (m *SubscriptionManager) UnsubscribeAll(client string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uri := range m.byURI {
		m.removeLocked(client, uri)
	}
}

func (m *SubscriptionManager) removeLocked(client, uri string) {
	clients, ok := m.byURI[uri]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(m.byURI, uri)
	}
}

// Subscribers returns the clients following uri, sorted.
func (m *SubscriptionManager) Subscribers(uri string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.byURI[uri]))
	for client := range m.byURI[uri] {
		out = append(out, client)
	}
	sort.Strings(out)
	return out
}

// IsSubscribed reports whether client follows uri.
func (m *SubscriptionManager) IsSubscribed(client, uri string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byURI[uri][client]
	return ok
}

// HasSubscribers reports whether anyone follows uri.
func (m *SubscriptionManager) HasSubscribers(uri string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byURI[uri]) > 0
}

// Count returns the total number of subscriptions.
func (m *SubscriptionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, clients := range m.byURI {
		n += len(clients)
	}
	return n
}

// Subscriptions returns the server's subscription bookkeeping.
func (s *Server) Subscriptions() *SubscriptionManager {
	return s.subscriptions
}
