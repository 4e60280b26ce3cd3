package server

import (
	"context"
	"fmt"

	"github.com/mcpforge/mcp-server/protocol"
)

// TemplateConfig describes a resource template at registration time.
type TemplateConfig struct {
	Title           string
	Description     string
	MimeType        string
	Annotations     map[string]any
	ParameterSchema *ParamSchema
}

// ResourceTemplateInfo is the immutable descriptor of a resource template.
type ResourceTemplateInfo struct {
	Name            string         `json:"name"`
	URITemplate     string         `json:"uriTemplate"`
	Title           string         `json:"title,omitempty"`
	Description     string         `json:"description,omitempty"`
	MimeType        string         `json:"mimeType,omitempty"`
	Annotations     map[string]any `json:"annotations,omitempty"`
	ParameterSchema *ParamSchema   `json:"parameterSchema,omitempty"`
}

// ResourceTemplate is a registered resource template.
type ResourceTemplate struct {
	info    ResourceTemplateInfo
	tmpl    *uriTemplate
	handler ResourceHandler
}

// Info returns the template descriptor.
func (t *ResourceTemplate) Info() ResourceTemplateInfo { return t.info.clone() }

func (t *ResourceTemplate) read(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error) {
	if ps := t.info.ParameterSchema; ps != nil {
		if err := ps.Validate(params); err != nil {
			return nil, err
		}
	}
	return t.handler(ctx, uri, params)
}

// RegisterResourceTemplate registers a URI template under a unique name.
// Placeholders must be {identifier} runs; a template without placeholders
// behaves like a literal resource.
func (s *Server) RegisterResourceTemplate(name, uriTemplate string, cfg TemplateConfig, h ResourceHandler) error {
	if err := validateName("resource template", name); err != nil {
		return err
	}
	tmpl, err := parseURITemplate(uriTemplate)
	if err != nil {
		return err
	}
	if h == nil {
		return protocol.InvalidParamsf("resource template %q has no handler", name)
	}
	if ps := cfg.ParameterSchema; ps != nil {
		if err := ps.check(tmpl.names); err != nil {
			return err
		}
	}
	t := &ResourceTemplate{
		info: ResourceTemplateInfo{
			Name:            name,
			URITemplate:     uriTemplate,
			Title:           cfg.Title,
			Description:     cfg.Description,
			MimeType:        cfg.MimeType,
			Annotations:     cloneAnyMap(cfg.Annotations),
			ParameterSchema: cfg.ParameterSchema.clone(),
		},
		tmpl:    tmpl,
		handler: h,
	}

	s.mu.Lock()
	if _, ok := s.templates[name]; ok {
		s.mu.Unlock()
		return protocol.InvalidParamsf("resource template %q is already registered", name)
	}
	s.templates[name] = t
	s.templateOrder = append(s.templateOrder, name)
	size, started := len(s.templates), s.started
	s.mu.Unlock()

	s.registered(KindResourceTemplate, size, started)
	return nil
}

// GetResourceTemplate returns the descriptor of a template, or nil if absent.
func (s *Server) GetResourceTemplate(name string) (*ResourceTemplateInfo, error) {
	if err := validateName("resource template", name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[name]
	if !ok {
		return nil, nil
	}
	info := t.info.clone()
	return &info, nil
}

// ListResourceTemplates returns all template descriptors in registration
// order.
func (s *Server) ListResourceTemplates() []ResourceTemplateInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templatesLocked()
}

func (s *Server) templatesLocked() []ResourceTemplateInfo {
	out := make([]ResourceTemplateInfo, 0, len(s.templateOrder))
	for _, name := range s.templateOrder {
		out = append(out, s.templates[name].info.clone())
	}
	return out
}

// GenerateResourceURI populates the named template with params.
func (s *Server) GenerateResourceURI(templateName string, params map[string]string) (string, error) {
	s.mu.RLock()
	t, ok := s.templates[templateName]
	s.mu.RUnlock()
	if !ok {
		return "", protocol.NewResourceNotFound(fmt.Sprintf("resource template %q not found", templateName))
	}
	return t.tmpl.populate(params)
}
