package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcpforge/mcp-server/protocol"
)

// ResourceContent is the content returned by a resource read.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"` // base64
}

// ReadResourceResult is the result of a resources/read request.
type ReadResourceResult struct {
	Contents []ResourceContent `json:"contents"`
}

// ResourceHandler reads a resource. params holds the decoded template
// parameters and is empty for literal resources.
type ResourceHandler func(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error)

// ResourceConfig describes a resource at registration time.
type ResourceConfig struct {
	Title       string
	Description string
	MimeType    string
	Annotations *ResourceAnnotations
}

// ResourceInfo is the immutable descriptor of a registered resource.
type ResourceInfo struct {
	Name        string               `json:"name"`
	URI         string               `json:"uri"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
	MimeType    string               `json:"mimeType,omitempty"`
	Annotations *ResourceAnnotations `json:"annotations,omitempty"`
}

// Resource is a registered resource with a fixed URI.
type Resource struct {
	info    ResourceInfo
	handler ResourceHandler
}

// Info returns the resource descriptor.
func (r *Resource) Info() ResourceInfo { return r.info.clone() }

// RegisterResource registers a resource under a unique name.
func (s *Server) RegisterResource(name, uri string, cfg ResourceConfig, h ResourceHandler) error {
	if err := validateName("resource", name); err != nil {
		return err
	}
	if uri == "" {
		return protocol.InvalidParamsf("resource %q must have a URI", name)
	}
	if h == nil {
		return protocol.InvalidParamsf("resource %q has no handler", name)
	}
	r := &Resource{
		info: ResourceInfo{
			Name:        name,
			URI:         uri,
			Title:       cfg.Title,
			Description: cfg.Description,
			MimeType:    cfg.MimeType,
			Annotations: cfg.Annotations.clone(),
		},
		handler: h,
	}

	s.mu.Lock()
	if _, ok := s.resources[name]; ok {
		s.mu.Unlock()
		return protocol.InvalidParamsf("resource %q is already registered", name)
	}
	s.resources[name] = r
	size, started := len(s.resources), s.started
	s.mu.Unlock()

	s.registered(KindResource, size, started)
	return nil
}

// GetResource returns the descriptor of a resource, or nil if absent.
func (s *Server) GetResource(name string) (*ResourceInfo, error) {
	if err := validateName("resource", name); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[name]
	if !ok {
		return nil, nil
	}
	info := r.info.clone()
	return &info, nil
}

// GetResources returns all resource descriptors sorted by name.
func (s *Server) GetResources() []ResourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resourcesLocked()
}

func (s *Server) resourcesLocked() []ResourceInfo {
	out := make([]ResourceInfo, 0, len(s.resources))
	for _, name := range sortedKeys(s.resources) {
		out = append(out, s.resources[name].info.clone())
	}
	return out
}

// ResourceMatch is the outcome of resolving a concrete URI.
type ResourceMatch struct {
	// Name of the matching resource or template.
	Name     string
	Template bool
	Params   map[string]string
}

// FindResourceForURI resolves uri against literal resources first and then
// against resource templates in registration order. It returns nil when
// nothing matches.
func (s *Server) FindResourceForURI(uri string) *ResourceMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, _, _ := s.resolveLocked(uri)
	return m
}

func (s *Server) resolveLocked(uri string) (*ResourceMatch, *Resource, *ResourceTemplate) {
	for _, name := range sortedKeys(s.resources) {
		if r := s.resources[name]; r.info.URI == uri {
			return &ResourceMatch{Name: name, Params: map[string]string{}}, r, nil
		}
	}
	for _, name := range s.templateOrder {
		t := s.templates[name]
		if params, ok := t.tmpl.match(uri); ok {
			return &ResourceMatch{Name: name, Template: true, Params: params}, nil, t
		}
	}
	return nil, nil, nil
}

// ReadResource reads the resource addressed by uri. Template parameters are
// validated against the template's parameter schema before the handler runs.
func (s *Server) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	s.mu.RLock()
	m, r, t := s.resolveLocked(uri)
	s.mu.RUnlock()
	if m == nil {
		return nil, protocol.NewResourceNotFound(fmt.Sprintf("resource %q not found", uri))
	}

	var (
		content  *ResourceContent
		err      error
		mimeType string
	)
	if r != nil {
		mimeType = r.info.MimeType
		content, err = r.handler(ctx, uri, m.Params)
	} else {
		mimeType = t.info.MimeType
		content, err = t.read(ctx, uri, m.Params)
	}
	if err != nil {
		return nil, protocol.WrapHandlerError(err)
	}
	if content == nil {
		return &ReadResourceResult{Contents: []ResourceContent{}}, nil
	}
	if content.URI == "" {
		content.URI = uri
	}
	if content.MimeType == "" {
		content.MimeType = mimeType
	}
	return &ReadResourceResult{Contents: []ResourceContent{*content}}, nil
}

// ResourceBuilder registers a resource or, when the URI has placeholders,
// a resource template.
type ResourceBuilder struct {
	server *Server
	uri    string
	name   string
	cfg    ResourceConfig
	params *ParamSchema
	err    error
}

// Resource starts building a resource for uri. The name defaults to uri.
func (s *Server) Resource(uri string) *ResourceBuilder {
	return &ResourceBuilder{server: s, uri: uri, name: uri}
}

// Name sets the registry name.
func (b *ResourceBuilder) Name(name string) *ResourceBuilder {
	b.name = name
	return b
}

// Title sets the human-readable title.
func (b *ResourceBuilder) Title(title string) *ResourceBuilder {
	b.cfg.Title = title
	return b
}

// Description sets the resource description.
func (b *ResourceBuilder) Description(desc string) *ResourceBuilder {
	b.cfg.Description = desc
	return b
}

// MimeType sets the MIME type of the content.
func (b *ResourceBuilder) MimeType(mimeType string) *ResourceBuilder {
	b.cfg.MimeType = mimeType
	return b
}

// Params sets the parameter schema checked before a template handler runs.
func (b *ResourceBuilder) Params(ps *ParamSchema) *ResourceBuilder {
	b.params = ps
	return b
}

// Err returns the registration error, if any.
func (b *ResourceBuilder) Err() error { return b.err }

// Handler sets the handler and registers the resource.
func (b *ResourceBuilder) Handler(fn ResourceHandler) *ResourceBuilder {
	if b.err != nil {
		return b
	}
	if !strings.ContainsAny(b.uri, "{}") {
		b.err = b.server.RegisterResource(b.name, b.uri, b.cfg, fn)
		return b
	}
	b.err = b.server.RegisterResourceTemplate(b.name, b.uri, TemplateConfig{
		Title:           b.cfg.Title,
		Description:     b.cfg.Description,
		MimeType:        b.cfg.MimeType,
		Annotations:     annotationMap(b.cfg.Annotations),
		ParameterSchema: b.params,
	}, fn)
	return b
}
