// Package schema generates and validates the JSON Schemas attached to tools,
// prompts and resource templates.
//
// Schemas are reflected from Go types with github.com/invopop/jsonschema and
// flattened into the Schema type, which keeps property declaration order so
// prompt arguments can be listed the way they were written:
//
//	type Input struct {
//	    Query string `json:"query" jsonschema:"required,description=Search query"`
//	    Limit int    `json:"limit,omitempty" jsonschema:"minimum=1"`
//	}
//
//	s, err := schema.For[Input]()
//
// Hand-written schemas use the small builder:
//
//	s := schema.Object().Prop("title", schema.String("Card title")).Require("title")
//
// Validation is delegated to github.com/xeipuuv/gojsonschema and reported as
// ValidationErrors with one entry per violated field.
package schema
