package server

// ToolAnnotations are behavior hints clients may use before calling a tool.
// Nil hints mean "unspecified"; clients assume a tool may have side
// effects, may be destructive and may reach external systems.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// ResourceAnnotations are hints about resource content.
type ResourceAnnotations struct {
	// Audience is "user", "assistant" or both.
	Audience []string `json:"audience,omitempty"`
	// Priority in [0, 1]; higher is more important.
	Priority *float64 `json:"priority,omitempty"`
}

// PromptAnnotations are hints about a prompt's output.
type PromptAnnotations struct {
	Audience []string `json:"audience,omitempty"`
	Priority *float64 `json:"priority,omitempty"`
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

func (b *ToolBuilder) annotations() *ToolAnnotations {
	if b.cfg.Annotations == nil {
		b.cfg.Annotations = &ToolAnnotations{}
	}
	return b.cfg.Annotations
}

// ReadOnly marks the tool as free of side effects.
func (b *ToolBuilder) ReadOnly() *ToolBuilder {
	a := b.annotations()
	a.ReadOnlyHint = Bool(true)
	a.DestructiveHint = Bool(false)
	return b
}

// Destructive marks the tool as potentially destructive.
func (b *ToolBuilder) Destructive() *ToolBuilder {
	b.annotations().DestructiveHint = Bool(true)
	return b
}

// Idempotent marks repeated calls with the same input as equivalent to one.
func (b *ToolBuilder) Idempotent() *ToolBuilder {
	b.annotations().IdempotentHint = Bool(true)
	return b
}

// OpenWorld marks the tool as reaching systems outside the host.
func (b *ToolBuilder) OpenWorld() *ToolBuilder {
	b.annotations().OpenWorldHint = Bool(true)
	return b
}

// ClosedWorld marks the tool as confined to the host.
func (b *ToolBuilder) ClosedWorld() *ToolBuilder {
	b.annotations().OpenWorldHint = Bool(false)
	return b
}

// Title sets the human-readable title, both on the descriptor and in the
// annotations.
func (b *ToolBuilder) Title(title string) *ToolBuilder {
	b.cfg.Title = title
	b.annotations().Title = title
	return b
}

// Annotations replaces the tool annotations.
func (b *ToolBuilder) Annotations(a ToolAnnotations) *ToolBuilder {
	b.cfg.Annotations = &a
	return b
}

// Audience sets the intended audience of a resource: "user" or "assistant".
func (b *ResourceBuilder) Audience(audience ...string) *ResourceBuilder {
	if b.cfg.Annotations == nil {
		b.cfg.Annotations = &ResourceAnnotations{}
	}
	b.cfg.Annotations.Audience = audience
	return b
}

// Priority sets the resource priority hint in [0, 1].
func (b *ResourceBuilder) Priority(priority float64) *ResourceBuilder {
	if b.cfg.Annotations == nil {
		b.cfg.Annotations = &ResourceAnnotations{}
	}
	b.cfg.Annotations.Priority = Float(priority)
	return b
}

// Audience sets the intended audience of the prompt result.
func (b *PromptBuilder) Audience(audience ...string) *PromptBuilder {
	if b.cfg.Annotations == nil {
		b.cfg.Annotations = &PromptAnnotations{}
	}
	b.cfg.Annotations.Audience = audience
	return b
}

// annotationMap flattens resource annotations into the free-form map
// carried by resource templates.
func annotationMap(a *ResourceAnnotations) map[string]any {
	if a == nil {
		return nil
	}
	m := make(map[string]any, 2)
	if len(a.Audience) > 0 {
		m["audience"] = a.Audience
	}
	if a.Priority != nil {
		m["priority"] = *a.Priority
	}
	return m
}
