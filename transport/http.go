package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mcpforge/mcp-server/protocol"
)

// SessionHeader names the header a client uses to bind POST requests to
// its SSE stream.
const SessionHeader = "Mcp-Session-Id"

const maxBodySize = 4 << 20

// HTTP implements an HTTP transport with SSE support for MCP.
//
// Routes:
//
//	POST /mcp           JSON-RPC requests
//	GET  /mcp/sse       server-to-client event stream
//	GET  /health        liveness probe
//	GET  /capabilities  registry snapshot, when the handler is a Describer
type HTTP struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	drainDelay      time.Duration
	corsConfig      *CORSConfig
	logger          *slog.Logger
	middlewares     []func(http.Handler) http.Handler
	routes          map[string]http.Handler

	mu         sync.RWMutex
	listenAddr string
	server     *http.Server
	drain      *drainer
	serveErr   chan error

	sseMu      sync.RWMutex
	sseClients map[string]chan []byte
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.readTimeout = d }
}

// WithWriteTimeout sets the write timeout for HTTP responses. SSE streams
// are long-lived, so keep it at zero when clients subscribe.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) { h.writeTimeout = d }
}

// WithLogger sets the transport logger.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTP) { h.logger = l }
}

// WithHTTPMiddleware adds chi-compatible middleware in front of every route.
func WithHTTPMiddleware(mw ...func(http.Handler) http.Handler) HTTPOption {
	return func(h *HTTP) { h.middlewares = append(h.middlewares, mw...) }
}

// WithRoute mounts an extra handler, e.g. a Prometheus /metrics endpoint.
func WithRoute(pattern string, handler http.Handler) HTTPOption {
	return func(h *HTTP) { h.routes[pattern] = handler }
}

// NewHTTP creates a new HTTP transport.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		readTimeout:     30 * time.Second,
		shutdownTimeout: 30 * time.Second,
		logger:          discardLogger(),
		routes:          make(map[string]http.Handler),
		sseClients:      make(map[string]chan []byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// ListenAddr returns the address the server is listening on once started.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Start binds the listener and serves in the background.
func (h *HTTP) Start(_ context.Context, handler Handler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.server != nil {
		return errors.New("transport: http already started")
	}

	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", h.addr, err)
	}

	h.listenAddr = listener.Addr().String()
	h.drain = newDrainer(h.drainDelay, h.shutdownTimeout)
	h.server = &http.Server{
		Handler:           h.Router(handler),
		ReadTimeout:       h.readTimeout,
		ReadHeaderTimeout: h.readTimeout,
		WriteTimeout:      h.writeTimeout,
	}
	h.serveErr = make(chan error, 1)

	srv, errCh := h.server, h.serveErr
	go func() {
		defer close(errCh)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("http transport stopped", slog.Any("error", err))
			errCh <- err
		}
	}()

	h.logger.Info("http transport listening", slog.String("addr", h.listenAddr))
	return nil
}

// Stop drains in-flight requests, closes SSE streams and shuts the server down.
func (h *HTTP) Stop(ctx context.Context) error {
	h.mu.Lock()
	srv, d, errCh := h.server, h.drain, h.serveErr
	h.server, h.serveErr = nil, nil
	h.mu.Unlock()
	if srv == nil {
		return ErrNotRunning
	}

	drainErr := d.drain(ctx)
	h.closeSSEClients()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if err := <-errCh; err != nil {
		return err
	}
	return drainErr
}

// Serve starts the transport and blocks until ctx is canceled.
func (h *HTTP) Serve(ctx context.Context, handler Handler) error {
	if err := h.Start(ctx, handler); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.Stop(stopCtx); err != nil {
		return err
	}
	return ctx.Err()
}

// Router builds the chi router serving handler. It is exported for tests
// and for embedding the MCP endpoints in an existing server.
func (h *HTTP) Router(handler Handler) http.Handler {
	r := chi.NewRouter()
	if h.corsConfig != nil {
		cfg := *h.corsConfig
		r.Use(func(next http.Handler) http.Handler { return CORSHandler(cfg, next) })
	}
	r.Use(h.middlewares...)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/capabilities", func(w http.ResponseWriter, r *http.Request) {
		d, ok := handler.(Describer)
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, d.Describe())
	})
	r.Get("/mcp/sse", h.handleSSE)
	r.Post("/mcp", func(w http.ResponseWriter, r *http.Request) {
		h.handleMCP(w, r, handler)
	})
	for pattern, extra := range h.routes {
		r.Handle(pattern, extra)
	}
	return r
}

func (h *HTTP) handleMCP(w http.ResponseWriter, r *http.Request, handler Handler) {
	h.mu.RLock()
	d := h.drain
	h.mu.RUnlock()
	if d != nil {
		if !d.enter() {
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			return
		}
		defer d.leave()
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge,
			protocol.NewErrorResponse(nil, protocol.NewInvalidRequest("request body too large")))
		return
	}

	ctx := ContextWithNotificationSender(r.Context(), h.senderFor(r.Header.Get(SessionHeader)))
	ctx = protocol.ContextWithRequestMeta(ctx, requestMetaFromHTTP(r))

	resp := dispatchRaw(ctx, handler, body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func requestMetaFromHTTP(r *http.Request) protocol.RequestMeta {
	meta := protocol.RequestMeta{
		protocol.MetaTransport:  "http",
		protocol.MetaRemoteAddr: r.RemoteAddr,
	}
	for _, key := range []string{protocol.MetaAuthorization, protocol.MetaRequestID, SessionHeader} {
		if v := r.Header.Get(key); v != "" {
			meta[key] = v
		}
	}
	return meta
}

func (h *HTTP) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.NewString()
	messages := make(chan []byte, 16)

	h.sseMu.Lock()
	h.sseClients[clientID] = messages
	h.sseMu.Unlock()

	defer func() {
		h.sseMu.Lock()
		if _, ok := h.sseClients[clientID]; ok {
			delete(h.sseClients, clientID)
			close(messages)
		}
		h.sseMu.Unlock()
	}()

	w.Header().Set(SessionHeader, clientID)
	fmt.Fprintf(w, "event: connected\ndata: {\"clientId\":%q}\n\n", clientID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// SendNotification broadcasts a notification to every SSE client.
func (h *HTTP) SendNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// Broadcast sends a raw message to all connected SSE clients. Clients whose
// buffer is full miss the message.
func (h *HTTP) Broadcast(data []byte) {
	h.sseMu.RLock()
	defer h.sseMu.RUnlock()
	for _, ch := range h.sseClients {
		select {
		case ch <- data:
		default:
		}
	}
}

// SendTo sends a message to a specific SSE client.
func (h *HTTP) SendTo(clientID string, data []byte) bool {
	h.sseMu.RLock()
	defer h.sseMu.RUnlock()
	ch, ok := h.sseClients[clientID]
	if !ok {
		return false
	}
	select {
	case ch <- data:
		return true
	default:
		return false
	}
}

// SSEClients returns the number of connected SSE clients.
func (h *HTTP) SSEClients() int {
	h.sseMu.RLock()
	defer h.sseMu.RUnlock()
	return len(h.sseClients)
}

func (h *HTTP) closeSSEClients() {
	h.sseMu.Lock()
	defer h.sseMu.Unlock()
	for id, ch := range h.sseClients {
		close(ch)
		delete(h.sseClients, id)
	}
}

func (h *HTTP) senderFor(sessionID string) NotificationSender {
	if sessionID == "" {
		return h
	}
	return &sseSender{h: h, id: sessionID}
}

// sseSender targets the SSE stream of one session.
type sseSender struct {
	h  *HTTP
	id string
}

func (s *sseSender) SendNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}
	if !s.h.SendTo(s.id, data) {
		return fmt.Errorf("transport: session %s unavailable", s.id)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
