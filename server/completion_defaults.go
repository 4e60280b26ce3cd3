package server

import (
	"context"
	"strings"
)

// Names of the built-in completion handlers.
const (
	DefaultPromptCompletion   = "default-prompt"
	DefaultResourceCompletion = "default-resource"
)

// argumentHints maps a keyword found in an argument name to suggestions.
// The first matching keyword wins.
var argumentHints = []struct {
	keyword string
	values  []string
}{
	{"file", []string{".go", ".json", ".md", ".txt", ".yaml", ".ts", ".py"}},
	{"lang", []string{"go", "python", "typescript", "javascript", "rust", "java"}},
	{"format", []string{"json", "yaml", "markdown", "text", "csv", "html"}},
	{"status", []string{"todo", "in-progress", "done", "blocked"}},
	{"priority", []string{"low", "medium", "high", "critical"}},
	{"level", []string{"debug", "info", "warning", "error"}},
	{"tone", []string{"formal", "casual", "concise", "detailed"}},
	{"bool", []string{"true", "false"}},
}

func hintsFor(argName string) []string {
	name := strings.ToLower(argName)
	for _, h := range argumentHints {
		if strings.Contains(name, h.keyword) {
			return h.values
		}
	}
	return nil
}

// filterPrefix keeps the values that start with prefix, ignoring case.
func filterPrefix(values []string, prefix string) []string {
	p := strings.ToLower(prefix)
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), p) {
			out = append(out, v)
		}
	}
	return out
}

func completionOf(values []string) *CompletionResult {
	return &CompletionResult{Values: values, Total: len(values)}
}

// RegisterDefaultPromptCompletion registers a handler that suggests values
// for prompt arguments from keywords in the argument name, e.g. file
// extensions for an argument containing "file".
func (s *Server) RegisterDefaultPromptCompletion() error {
	return s.RegisterCompletion(DefaultPromptCompletion, CompletionConfig{
		Description:    "Keyword-based suggestions for prompt arguments",
		SupportedTypes: []RefType{RefPrompt},
	}, func(_ context.Context, _ CompletionRef, arg CompletionArgument) (*CompletionResult, error) {
		return completionOf(filterPrefix(hintsFor(arg.Name), arg.Value)), nil
	})
}

// RegisterDefaultResourceCompletion registers a handler for resource
// references. Completing the "uri" argument of a template offers the
// template's placeholder names; other arguments use keyword hints.
func (s *Server) RegisterDefaultResourceCompletion() error {
	return s.RegisterCompletion(DefaultResourceCompletion, CompletionConfig{
		Description:    "Placeholder and keyword suggestions for resources",
		SupportedTypes: []RefType{RefResource},
	}, func(_ context.Context, ref CompletionRef, arg CompletionArgument) (*CompletionResult, error) {
		if arg.Name == "uri" {
			if names := s.templatePlaceholders(ref.Key()); len(names) > 0 {
				return completionOf(filterPrefix(names, arg.Value)), nil
			}
		}
		return completionOf(filterPrefix(hintsFor(arg.Name), arg.Value)), nil
	})
}

// templatePlaceholders returns the placeholder names of the template
// registered under key, by name or template string.
func (s *Server) templatePlaceholders(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.templates[key]; ok {
		return append([]string(nil), t.tmpl.names...)
	}
	for _, name := range s.templateOrder {
		if t := s.templates[name]; t.info.URITemplate == key {
			return append([]string(nil), t.tmpl.names...)
		}
	}
	return nil
}
