package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/transport"
)

// Lifecycle errors.
var (
	ErrNoTransports   = errors.New("server: No transports configured, call UseTransport before Start")
	ErrAlreadyStarted = errors.New("server: server has already been started")
	ErrStarted        = errors.New("server: cannot add transports after the server has been started")
)

// Info contains server metadata exposed to clients.
type Info struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Instructions string `json:"-"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger used for best-effort failures such
// as undelivered notifications and skipped completion handlers.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(text string) Option {
	return func(s *Server) { s.info.Instructions = text }
}

// WithMiddleware adds request middleware, executed in order.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Server) { s.middleware = append(s.middleware, mw...) }
}

// Server is the composition root of an MCP server. It owns the capability
// registries, the shared tool context and the attached transports.
// Each Server is fully independent; nothing is shared between instances.
type Server struct {
	mu sync.RWMutex

	info       Info
	logger     *slog.Logger
	metrics    Metrics
	middleware []Middleware

	tools         map[string]*Tool
	resources     map[string]*Resource
	templates     map[string]*ResourceTemplate
	templateOrder []string
	prompts       map[string]*Prompt
	completions   map[string]*completionEntry
	completionSeq []string

	context    map[string]any
	transports []transport.Transport
	started    bool
	starting   bool
	logLevel   LogLevel

	cancellation  *CancellationManager
	subscriptions *SubscriptionManager
	pending       inflight
}

// New creates a new MCP server with the given info and options.
func New(info Info, opts ...Option) *Server {
	s := &Server{
		info:          info,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:       nopMetrics{},
		tools:         make(map[string]*Tool),
		resources:     make(map[string]*Resource),
		templates:     make(map[string]*ResourceTemplate),
		prompts:       make(map[string]*Prompt),
		completions:   make(map[string]*completionEntry),
		context:       make(map[string]any),
		logLevel:      LogLevelInfo,
		cancellation:  NewCancellationManager(),
		subscriptions: NewSubscriptionManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Info returns the server info.
func (s *Server) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Use registers middleware to be executed on every request.
func (s *Server) Use(mw ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, mw...)
}

// UseTransport attaches a transport. Transports can only be attached
// before Start.
func (s *Server) UseTransport(t transport.Transport) error {
	return s.UseTransports(t)
}

// UseTransports attaches several transports at once.
func (s *Server) UseTransports(ts ...transport.Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	for _, t := range ts {
		if t == nil {
			return errors.New("server: nil transport")
		}
	}
	s.transports = append(s.transports, ts...)
	return nil
}

// Transports returns the attached transports.
func (s *Server) Transports() []transport.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]transport.Transport(nil), s.transports...)
}

// Started reports whether Start has completed successfully.
func (s *Server) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Start starts every attached transport concurrently. If any transport
// fails to start, Start returns the first error and the server stays
// stopped; transports that did start are not rolled back.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.starting {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if len(s.transports) == 0 {
		s.mu.Unlock()
		return ErrNoTransports
	}
	s.starting = true
	ts := append([]transport.Transport(nil), s.transports...)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range ts {
		g.Go(func() error {
			if err := t.Start(gctx, s); err != nil {
				return fmt.Errorf("start %s: %w", t.Addr(), err)
			}
			return nil
		})
	}
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		return err
	}
	s.started = true
	s.logger.Info("server started",
		slog.String("name", s.info.Name),
		slog.Int("transports", len(ts)))
	return nil
}

// Stop stops every transport concurrently. It is a no-op when the server
// is not started. Transport stop failures are returned.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	ts := append([]transport.Transport(nil), s.transports...)
	s.mu.Unlock()

	var g errgroup.Group
	for _, t := range ts {
		g.Go(func() error {
			if err := t.Stop(ctx); err != nil && !errors.Is(err, transport.ErrNotRunning) {
				return fmt.Errorf("stop %s: %w", t.Addr(), err)
			}
			return nil
		})
	}
	err := g.Wait()
	s.Flush()
	s.logger.Info("server stopped", slog.String("name", s.info.Name))
	return err
}

// Describe implements transport.Describer.
func (s *Server) Describe() any {
	return s.GetCapabilities()
}

func validateName(kind, name string) error {
	if name == "" {
		return protocol.InvalidParamsf("%s name must be a non-empty string", kind)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
