package server

import (
	"log/slog"
	"sync"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/transport"
)

var listChangedMethod = map[string]string{
	KindTool:             protocol.MethodToolsListChanged,
	KindResource:         protocol.MethodResourcesListChanged,
	KindResourceTemplate: protocol.MethodResourcesListChanged,
	KindPrompt:           protocol.MethodPromptsListChanged,
}

// registered records a registry mutation and, once the server runs,
// announces it to clients.
func (s *Server) registered(kind string, size int, started bool) {
	s.metrics.RegistrySize(kind, size)
	if !started {
		return
	}
	if method, ok := listChangedMethod[kind]; ok {
		s.broadcast(method, nil)
	}
}

// broadcast sends a notification to every transport that can deliver one.
// It returns immediately. Delivery failures are logged and dropped.
// Nothing is sent while the server is stopped.
func (s *Server) broadcast(method string, params any) {
	s.mu.RLock()
	if !s.started {
		s.mu.RUnlock()
		return
	}
	var senders []transport.NotificationSender
	for _, t := range s.transports {
		if ns, ok := t.(transport.NotificationSender); ok {
			senders = append(senders, ns)
		}
	}
	s.mu.RUnlock()

	for _, ns := range senders {
		s.pending.add()
		go func() {
			defer s.pending.done()
			err := ns.SendNotification(method, params)
			s.metrics.NotificationSent(method, err)
			if err != nil {
				s.logger.Warn("notification not delivered",
					slog.String("method", method),
					slog.Any("error", err))
			}
		}()
	}
}

// Flush waits until every notification in flight has been attempted.
// Broadcasts may start while Flush waits; it returns once none is left.
func (s *Server) Flush() {
	s.pending.wait()
}

// inflight counts detached sends. Unlike a WaitGroup it allows add to run
// concurrently with wait. The zero value is ready to use.
type inflight struct {
	mu   sync.Mutex
	cond *sync.Cond
	n    int
}

func (f *inflight) add() {
	f.mu.Lock()
	f.n++
	f.mu.Unlock()
}

func (f *inflight) done() {
	f.mu.Lock()
	f.n--
	if f.n == 0 && f.cond != nil {
		f.cond.Broadcast()
	}
	f.mu.Unlock()
}

func (f *inflight) wait() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cond == nil {
		f.cond = sync.NewCond(&f.mu)
	}
	for f.n > 0 {
		f.cond.Wait()
	}
}

// SendNotification broadcasts an arbitrary notification. It lets the
// server act as a transport.NotificationSender for progress reporting.
func (s *Server) SendNotification(method string, params any) error {
	s.broadcast(method, params)
	return nil
}

// SendToolListChanged announces a change to the tool list.
func (s *Server) SendToolListChanged() {
	s.broadcast(protocol.MethodToolsListChanged, nil)
}

// SendResourceListChanged announces a change to the resource or resource
// template lists.
func (s *Server) SendResourceListChanged() {
	s.broadcast(protocol.MethodResourcesListChanged, nil)
}

// SendResourceUpdated announces that the content behind uri changed. Once
// any client has subscribed to anything, only subscribed URIs are announced.
func (s *Server) SendResourceUpdated(uri string) {
	if s.subscriptions.Count() > 0 && !s.subscriptions.HasSubscribers(uri) {
		return
	}
	s.broadcast(protocol.MethodResourcesUpdated, ResourceUpdatedNotification{URI: uri})
}

// SendPromptListChanged announces a change to the prompt list.
func (s *Server) SendPromptListChanged() {
	s.broadcast(protocol.MethodPromptsListChanged, nil)
}

// SendProgress reports progress for the request that carried token.
func (s *Server) SendProgress(token ProgressToken, progress float64, total *float64) {
	s.broadcast(protocol.MethodProgress, progressParams(token, progress, total, ""))
}

// SendLog sends a log message to clients when level passes the level set
// with logging/setLevel.
func (s *Server) SendLog(level LogLevel, logger string, data any) {
	if !ShouldLog(level, s.LogLevel()) {
		return
	}
	s.broadcast(protocol.MethodMessage, LoggingMessage{Level: level, Logger: logger, Data: data})
}

// SendCancellation tells clients that the server abandoned a request.
func (s *Server) SendCancellation(requestID, reason string) {
	s.broadcast(protocol.MethodCancelled, map[string]any{
		"requestId": requestID,
		"reason":    reason,
	})
}
