package schema

import (
	"maps"
	"reflect"
	"slices"
	"sort"

	"github.com/invopop/jsonschema"
)

// Schema represents the subset of JSON Schema that MCP tool, prompt and
// template descriptors carry.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Description          string             `json:"description,omitempty"`
	Default              any                `json:"default,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`

	// order keeps property declaration order; JSON objects lose it.
	order []string
}

// Generate creates a JSON Schema from a Go value.
func Generate(v any) (*Schema, error) {
	return GenerateFromType(reflect.TypeOf(v))
}

// For creates a JSON Schema for the type parameter T.
func For[T any]() (*Schema, error) {
	return GenerateFromType(reflect.TypeOf((*T)(nil)).Elem())
}

// GenerateFromType creates a JSON Schema from a reflect.Type. Struct fields
// are described with `json` and `jsonschema` tags, e.g.
// `jsonschema:"required,description=Search query"`.
func GenerateFromType(t reflect.Type) (*Schema, error) {
	if t == nil {
		return &Schema{}, nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r := &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
	}
	return fromReflected(r.ReflectFromType(t)), nil
}

func fromReflected(js *jsonschema.Schema) *Schema {
	if js == nil {
		return nil
	}
	s := &Schema{
		Type:        js.Type,
		Description: js.Description,
		Default:     js.Default,
		Enum:        js.Enum,
		Items:       fromReflected(js.Items),
	}
	if len(js.Required) > 0 {
		s.Required = append([]string(nil), js.Required...)
	}
	if f, err := js.Minimum.Float64(); err == nil && js.Minimum != "" {
		s.Minimum = &f
	}
	if f, err := js.Maximum.Float64(); err == nil && js.Maximum != "" {
		s.Maximum = &f
	}
	if js.Properties != nil && js.Properties.Len() > 0 {
		s.Properties = make(map[string]*Schema, js.Properties.Len())
		for el := js.Properties.Oldest(); el != nil; el = el.Next() {
			s.Properties[el.Key] = fromReflected(el.Value)
			s.order = append(s.order, el.Key)
		}
	}
	if js.Type == "object" && s.Properties == nil {
		s.Properties = map[string]*Schema{}
	}
	return s
}

// PropertyNames returns the object's property names in declaration order.
// Schemas decoded from JSON have no declaration order and are sorted.
func (s *Schema) PropertyNames() []string {
	if s == nil || len(s.Properties) == 0 {
		return []string{}
	}
	if len(s.order) == len(s.Properties) {
		return append([]string(nil), s.order...)
	}
	names := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of s. Default values are copied shallowly.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	c := *s
	c.Required = slices.Clone(s.Required)
	c.Enum = slices.Clone(s.Enum)
	c.order = slices.Clone(s.order)
	c.Items = s.Items.Clone()
	if s.Minimum != nil {
		v := *s.Minimum
		c.Minimum = &v
	}
	if s.Maximum != nil {
		v := *s.Maximum
		c.Maximum = &v
	}
	if s.AdditionalProperties != nil {
		v := *s.AdditionalProperties
		c.AdditionalProperties = &v
	}
	if s.Properties != nil {
		c.Properties = maps.Clone(s.Properties)
		for name, p := range c.Properties {
			c.Properties[name] = p.Clone()
		}
	}
	return &c
}

// IsRequired reports whether name is listed as required.
func (s *Schema) IsRequired(name string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Object starts a hand-written object schema.
func Object() *Schema {
	return &Schema{Type: "object", Properties: map[string]*Schema{}}
}

// Prop adds a property, keeping declaration order.
func (s *Schema) Prop(name string, p *Schema) *Schema {
	if s.Properties == nil {
		s.Properties = map[string]*Schema{}
	}
	if _, exists := s.Properties[name]; !exists {
		s.order = append(s.order, name)
	}
	s.Properties[name] = p
	return s
}

// Require marks properties as required.
func (s *Schema) Require(names ...string) *Schema {
	for _, n := range names {
		if !s.IsRequired(n) {
			s.Required = append(s.Required, n)
		}
	}
	return s
}

// String returns a string property schema.
func String(description string) *Schema { return &Schema{Type: "string", Description: description} }

// Number returns a number property schema.
func Number(description string) *Schema { return &Schema{Type: "number", Description: description} }

// Integer returns an integer property schema.
func Integer(description string) *Schema { return &Schema{Type: "integer", Description: description} }

// Boolean returns a boolean property schema.
func Boolean(description string) *Schema { return &Schema{Type: "boolean", Description: description} }
