package server

import (
	"maps"
	"slices"
)

// Registries store private copies of everything handed to Register* and
// hand out fresh copies from every lookup, so descriptors cannot be
// changed from outside once registered.

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// cloneValue copies the container types that appear in annotation maps.
// Other values are returned as is.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneAnyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(x)
	}
	return v
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func (a *ToolAnnotations) clone() *ToolAnnotations {
	if a == nil {
		return nil
	}
	c := *a
	c.ReadOnlyHint = clonePtr(a.ReadOnlyHint)
	c.DestructiveHint = clonePtr(a.DestructiveHint)
	c.IdempotentHint = clonePtr(a.IdempotentHint)
	c.OpenWorldHint = clonePtr(a.OpenWorldHint)
	return &c
}

func (a *ResourceAnnotations) clone() *ResourceAnnotations {
	if a == nil {
		return nil
	}
	return &ResourceAnnotations{Audience: slices.Clone(a.Audience), Priority: clonePtr(a.Priority)}
}

func (a *PromptAnnotations) clone() *PromptAnnotations {
	if a == nil {
		return nil
	}
	return &PromptAnnotations{Audience: slices.Clone(a.Audience), Priority: clonePtr(a.Priority)}
}

func (s *ParamSchema) clone() *ParamSchema {
	if s == nil {
		return nil
	}
	return &ParamSchema{Properties: maps.Clone(s.Properties), Required: slices.Clone(s.Required)}
}

func (i ToolInfo) clone() ToolInfo {
	i.InputSchema = i.InputSchema.Clone()
	i.Annotations = i.Annotations.clone()
	return i
}

func (i ResourceInfo) clone() ResourceInfo {
	i.Annotations = i.Annotations.clone()
	return i
}

func (i ResourceTemplateInfo) clone() ResourceTemplateInfo {
	i.Annotations = cloneAnyMap(i.Annotations)
	i.ParameterSchema = i.ParameterSchema.clone()
	return i
}

func (i PromptInfo) clone() PromptInfo {
	i.Arguments = slices.Clone(i.Arguments)
	i.Annotations = i.Annotations.clone()
	return i
}

func (i CompletionInfo) clone() CompletionInfo {
	i.SupportedTypes = slices.Clone(i.SupportedTypes)
	i.SupportedArguments = slices.Clone(i.SupportedArguments)
	return i
}
