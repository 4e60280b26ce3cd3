package server

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mcpforge/mcp-server/protocol"
)

// MaxCompletionValues caps the values returned for one completion request.
const MaxCompletionValues = 100

// RefType is the kind of entity a completion request refers to.
type RefType string

const (
	RefPrompt   RefType = "ref/prompt"
	RefResource RefType = "ref/resource"
)

// CompletionRef identifies the prompt or resource being completed.
type CompletionRef struct {
	Type RefType `json:"type"`
	Name string  `json:"name,omitempty"`
	URI  string  `json:"uri,omitempty"`
}

// Key returns the name, or the URI for references given by URI.
func (r CompletionRef) Key() string {
	if r.Name != "" {
		return r.Name
	}
	return r.URI
}

// CompletionArgument is the argument being completed and its partial value.
type CompletionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompletionResult holds completion suggestions.
type CompletionResult struct {
	Values  []string `json:"values"`
	Total   int      `json:"total"`
	HasMore bool     `json:"hasMore"`
}

// CompletionHandler produces suggestions for a reference and argument.
type CompletionHandler func(ctx context.Context, ref CompletionRef, arg CompletionArgument) (*CompletionResult, error)

// CompletionConfig describes a completion handler at registration time.
type CompletionConfig struct {
	Description string

	// SupportedTypes must not be empty.
	SupportedTypes []RefType

	// SupportedArguments restricts the handler to these argument names.
	// Empty means any argument.
	SupportedArguments []string

	// Refs restricts the handler to these prompt names or resource URIs.
	// Empty means any reference.
	Refs []string
}

// CompletionInfo is the descriptor of a registered completion handler.
type CompletionInfo struct {
	Name               string    `json:"name"`
	Description        string    `json:"description,omitempty"`
	SupportedTypes     []RefType `json:"supportedTypes"`
	SupportedArguments []string  `json:"supportedArguments,omitempty"`
}

type completionEntry struct {
	info    CompletionInfo
	refs    []string
	handler CompletionHandler
}

func (e *completionEntry) accepts(ref CompletionRef, arg CompletionArgument) bool {
	if !slices.Contains(e.info.SupportedTypes, ref.Type) {
		return false
	}
	if len(e.info.SupportedArguments) > 0 && !slices.Contains(e.info.SupportedArguments, arg.Name) {
		return false
	}
	if len(e.refs) > 0 && !slices.Contains(e.refs, ref.Name) && !slices.Contains(e.refs, ref.URI) {
		return false
	}
	return true
}

// complete runs the handler, turning a panic into an error so the next
// handler can answer.
func (e *completionEntry) complete(ctx context.Context, ref CompletionRef, arg CompletionArgument) (res *CompletionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("completion handler panicked: %v", r)
		}
	}()
	return e.handler(ctx, ref, arg)
}

// RegisterCompletion registers a completion handler. Handlers are tried in
// registration order.
func (s *Server) RegisterCompletion(name string, cfg CompletionConfig, h CompletionHandler) error {
	if err := validateName("completion", name); err != nil {
		return err
	}
	if len(cfg.SupportedTypes) == 0 {
		return protocol.InvalidParamsf("completion %q must support at least one reference type", name)
	}
	for _, t := range cfg.SupportedTypes {
		if t != RefPrompt && t != RefResource {
			return protocol.InvalidParamsf("completion %q: unsupported reference type %q", name, t)
		}
	}
	if h == nil {
		return protocol.InvalidParamsf("completion %q has no handler", name)
	}
	e := &completionEntry{
		info: CompletionInfo{
			Name:               name,
			Description:        cfg.Description,
			SupportedTypes:     slices.Clone(cfg.SupportedTypes),
			SupportedArguments: slices.Clone(cfg.SupportedArguments),
		},
		refs:    slices.Clone(cfg.Refs),
		handler: h,
	}

	s.mu.Lock()
	if _, ok := s.completions[name]; ok {
		s.mu.Unlock()
		return protocol.InvalidParamsf("completion %q is already registered", name)
	}
	s.completions[name] = e
	s.completionSeq = append(s.completionSeq, name)
	size := len(s.completions)
	s.mu.Unlock()

	s.metrics.RegistrySize(KindCompletion, size)
	return nil
}

// GetCompletion returns the descriptor of a completion handler, or nil if
// absent.
func (s *Server) GetCompletion(name string) (*CompletionInfo, error) {
	if err := validateName("completion", name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.completions[name]
	if !ok {
		return nil, nil
	}
	info := e.info.clone()
	return &info, nil
}

// ListCompletions returns completion descriptors in registration order.
func (s *Server) ListCompletions() []CompletionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completionsLocked()
}

func (s *Server) completionsLocked() []CompletionInfo {
	out := make([]CompletionInfo, 0, len(s.completionSeq))
	for _, name := range s.completionSeq {
		out = append(out, s.completions[name].info.clone())
	}
	return out
}

// refExistsLocked reports whether ref names a registered prompt, or a
// resource or template by name, URI or template string.
func (s *Server) refExistsLocked(ref CompletionRef) bool {
	switch ref.Type {
	case RefPrompt:
		_, ok := s.prompts[ref.Key()]
		return ok
	case RefResource:
		key := ref.Key()
		if _, ok := s.resources[key]; ok {
			return true
		}
		if _, ok := s.templates[key]; ok {
			return true
		}
		for _, r := range s.resources {
			if r.info.URI == key {
				return true
			}
		}
		for _, t := range s.templates {
			if t.info.URITemplate == key {
				return true
			}
			if _, ok := t.tmpl.match(key); ok {
				return true
			}
		}
	}
	return false
}

// GetCompletions dispatches a completion request to the first applicable
// handler in registration order. A failing handler is logged and the next
// one is tried. If no handler answers, an absent reference is an
// InvalidParams error and an existing one yields an empty result.
func (s *Server) GetCompletions(ctx context.Context, ref CompletionRef, arg CompletionArgument) (*CompletionResult, error) {
	s.mu.RLock()
	exists := s.refExistsLocked(ref)
	entries := make([]*completionEntry, 0, len(s.completionSeq))
	for _, name := range s.completionSeq {
		entries = append(entries, s.completions[name])
	}
	s.mu.RUnlock()

	if !exists {
		s.metrics.CompletionServed(CompletionNotFound)
		return nil, protocol.InvalidParamsf("reference %q not found", ref.Key())
	}
	for _, e := range entries {
		if !e.accepts(ref, arg) {
			continue
		}
		res, err := e.complete(ctx, ref, arg)
		if err != nil {
			s.logger.Warn("completion handler failed",
				slog.String("handler", e.info.Name),
				slog.String("ref", ref.Key()),
				slog.String("argument", arg.Name),
				slog.Any("error", err))
			s.metrics.CompletionServed(CompletionSkipped)
			continue
		}
		s.metrics.CompletionServed(CompletionAnswered)
		return capCompletion(res), nil
	}
	s.metrics.CompletionServed(CompletionEmpty)
	return &CompletionResult{Values: []string{}}, nil
}

func capCompletion(res *CompletionResult) *CompletionResult {
	if res == nil {
		return &CompletionResult{Values: []string{}}
	}
	if res.Values == nil {
		res.Values = []string{}
	}
	if res.Total < len(res.Values) {
		res.Total = len(res.Values)
	}
	if len(res.Values) > MaxCompletionValues {
		res.Values = res.Values[:MaxCompletionValues]
		res.HasMore = true
	}
	return res
}

// PromptCompletion registers h for the arguments of a single prompt.
func (s *Server) PromptCompletion(prompt string, h CompletionHandler) error {
	return s.RegisterCompletion("prompt:"+prompt, CompletionConfig{
		SupportedTypes: []RefType{RefPrompt},
		Refs:           []string{prompt},
	}, h)
}

// ResourceCompletion registers h for a single resource or template, given
// by name or URI.
func (s *Server) ResourceCompletion(ref string, h CompletionHandler) error {
	return s.RegisterCompletion("resource:"+ref, CompletionConfig{
		SupportedTypes: []RefType{RefResource},
		Refs:           []string{ref},
	}, h)
}
