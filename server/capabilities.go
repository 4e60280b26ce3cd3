package server

// Capabilities is a point-in-time snapshot of everything registered on a
// server.
type Capabilities struct {
	Tools             []ToolInfo             `json:"tools"`
	Resources         []ResourceInfo         `json:"resources"`
	ResourceTemplates []ResourceTemplateInfo `json:"resourceTemplates"`
	Prompts           []PromptInfo           `json:"prompts"`
	Completions       []CompletionInfo       `json:"completions"`
}

// GetCapabilities returns a snapshot of all five registries. Later
// registrations do not affect a returned snapshot, and all five lists are
// read under one lock so they describe the same moment.
func (s *Server) GetCapabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Capabilities{
		Tools:             s.toolsLocked(),
		Resources:         s.resourcesLocked(),
		ResourceTemplates: s.templatesLocked(),
		Prompts:           s.promptsLocked(),
		Completions:       s.completionsLocked(),
	}
}

// ServerCapabilities is the capability declaration sent in the initialize
// result.
type ServerCapabilities struct {
	Tools       *ListCapability     `json:"tools,omitempty"`
	Resources   *ResourceCapability `json:"resources,omitempty"`
	Prompts     *ListCapability     `json:"prompts,omitempty"`
	Completions *struct{}           `json:"completions,omitempty"`
	Logging     *struct{}           `json:"logging,omitempty"`
}

// ListCapability declares support for a list and its change notifications.
type ListCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResourceCapability declares resource support.
type ResourceCapability struct {
	Subscribe   bool `json:"subscribe"`
	ListChanged bool `json:"listChanged"`
}

func (s *Server) serverCapabilities() ServerCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	caps := ServerCapabilities{Logging: &struct{}{}}
	if len(s.tools) > 0 {
		caps.Tools = &ListCapability{ListChanged: true}
	}
	if len(s.resources) > 0 || len(s.templates) > 0 {
		caps.Resources = &ResourceCapability{Subscribe: true, ListChanged: true}
	}
	if len(s.prompts) > 0 {
		caps.Prompts = &ListCapability{ListChanged: true}
	}
	if len(s.completions) > 0 {
		caps.Completions = &struct{}{}
	}
	return caps
}
